// Package paymentcreate обрабатывает создание платежа за pro-тариф.
package paymentcreate

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/remindmybill/remindmybill/internal/http/middlewarectx"
	"github.com/remindmybill/remindmybill/internal/http/response"
	"github.com/remindmybill/remindmybill/internal/lib/sl"
	"github.com/remindmybill/remindmybill/internal/models"
	"github.com/remindmybill/remindmybill/internal/paymentprovider"
)

// Стоимость месяца pro-тарифа у провайдера.
const (
	proPriceValue    = "4.99"
	proPriceCurrency = "USD"
)

// ProviderClient определяет интерфейс для работы с платежным провайдером.
type ProviderClient interface {
	CreatePayment(reqParams paymentprovider.CreatePaymentRequest) (*paymentprovider.CreatePaymentResponse, error)
}

// UserProvider возвращает пользователя по имени для определения его UID.
type UserProvider interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Handler обрабатывает запросы на создание платежа.
type Handler struct {
	log            *slog.Logger
	providerClient ProviderClient
	users          UserProvider
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, providerClient ProviderClient, users UserProvider) *Handler {
	return &Handler{
		log:            log,
		providerClient: providerClient,
		users:          users,
	}
}

// ServeHTTP godoc
// @Summary Создать платеж за pro-тариф
// @Description Создает платеж у провайдера и возвращает ссылку подтверждения.
// @Tags Payments
// @Produce  json
// @Success 200 {object} paymentprovider.CreatePaymentResponse "Успешное создание платежа"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при создании платежа"
// @Router /payments/create [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	username, ok := r.Context().Value(middlewarectx.User).(string)
	if !ok || username == "" {
		log.Error("username not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	user, err := h.users.GetUserByUsername(r.Context(), username)
	if err != nil {
		log.Error("failed to get user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	paymentReq := paymentprovider.CreatePaymentRequest{
		Amount: paymentprovider.Amount{
			Value:    proPriceValue,
			Currency: proPriceCurrency,
		},
		Description: "RemindMyBill Pro, 1 month",
		Metadata: paymentprovider.Metadata{
			UserUID: user.UID,
		},
	}

	paymentResp, err := h.providerClient.CreatePayment(paymentReq)
	if err != nil {
		log.Error("failed to create payment from provider", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("payment provider error"))
		return
	}

	log.Info("payment created", slog.String("payment_id", paymentResp.ID))
	render.JSON(w, r, response.OKWithData(paymentResp))
}
