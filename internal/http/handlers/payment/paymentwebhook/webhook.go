// Package paymentwebhook обрабатывает вебхуки платёжного провайдера.
//
// Handler проверяет HMAC-подпись запроса, разбирает событие и передает его
// в платёжный сервис, который переключает тариф пользователя.
package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/remindmybill/remindmybill/internal/lib/sl"
	"github.com/remindmybill/remindmybill/internal/paymentprovider"
	"github.com/remindmybill/remindmybill/internal/services/limits"
	"github.com/remindmybill/remindmybill/internal/services/payment"
)

// Service описывает интерфейс платёжного сервиса.
type Service interface {
	ProcessWebhook(ctx context.Context, event paymentprovider.WebhookEvent) (limits.Result, error)
}

// Handler обрабатывает вебхуки провайдера.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string // Секрет для проверки подписи
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Проверка подписи вебхука (X-Api-Signature).
func (h *Handler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

// ServeHTTP godoc
// @Summary Вебхук платёжного провайдера
// @Description Принимает события платежей, проверяет подпись и применяет смену тарифа.
// @Tags Payments
// @Accept  json
// @Success 200 "Событие обработано"
// @Failure 400 "Некорректное тело запроса"
// @Failure 401 "Неверная подпись"
// @Failure 500 "Ошибка обработки события"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	signature := r.Header.Get("X-Api-Signature")
	if signature == "" || !h.verifySignature(body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var event paymentprovider.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	result, err := h.service.ProcessWebhook(r.Context(), event)
	if err != nil {
		if errors.Is(err, payment.ErrUnknownEvent) {
			log.Info("ignored webhook event", slog.String("event", event.Event))
			w.WriteHeader(http.StatusOK)
			return
		}
		log.Error("failed to process webhook event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	log.Info("webhook processed",
		slog.String("event", event.Event),
		slog.String("payment_id", event.Object.ID),
		slog.Int("unlocked", result.ChangedCount))
	w.WriteHeader(http.StatusOK)
}
