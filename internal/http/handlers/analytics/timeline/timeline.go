// Package timeline реализует HTTP-обработчик ленты предстоящих платежей.
//
// Handler группирует активные подписки пользователя по спроецированным датам
// списаний и возвращает хронологический список корзин с суммами.
package timeline

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/remindmybill/remindmybill/internal/http/middlewarectx"
	"github.com/remindmybill/remindmybill/internal/http/response"
	"github.com/remindmybill/remindmybill/internal/lib/sl"
	"github.com/remindmybill/remindmybill/internal/services/forecast"
)

// Handler управляет HTTP-запросами на получение ленты платежей.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики построения ленты.
type Service interface {
	Timeline(ctx context.Context, username, monthFilter string) ([]forecast.Bucket, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Лента предстоящих платежей
// @Description Возвращает предстоящие списания, сгруппированные по датам, с конвертацией в валюту пользователя.
// @Tags Analytics
// @Produce  json
// @Param month query string false "Фильтр по месяцу, например Jan"
// @Success 200 {object} map[string]any "Корзины платежей"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /analytics/timeline [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.analytics.timeline"

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

	monthFilter := r.URL.Query().Get("month")

	buckets, err := h.service.Timeline(r.Context(), username, monthFilter)
	if err != nil {
		log.Error("failed to build timeline", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not build timeline"))
		return
	}

	log.Info("timeline built", slog.Int("buckets", len(buckets)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"buckets": buckets,
	}))
}
