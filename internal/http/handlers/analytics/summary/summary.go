// Package summary реализует HTTP-обработчик месячной сводки трат.
//
// Сводка включает сумму за текущий месяц, индикатор скорости трат
// относительно прошлого месяца и данные дуги прогресса.
package summary

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/remindmybill/remindmybill/internal/http/middlewarectx"
	"github.com/remindmybill/remindmybill/internal/http/response"
	"github.com/remindmybill/remindmybill/internal/lib/sl"
	"github.com/remindmybill/remindmybill/internal/services/analytics"
)

// Handler управляет HTTP-запросами на получение месячной сводки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики месячной сводки.
type Service interface {
	MonthlySummary(ctx context.Context, username string) (analytics.Summary, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Месячная сводка трат
// @Description Возвращает сумму трат за текущий месяц, индикатор скорости и дугу прогресса.
// @Tags Analytics
// @Produce  json
// @Success 200 {object} map[string]any "Месячная сводка"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /analytics/summary [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.analytics.summary"

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

	res, err := h.service.MonthlySummary(r.Context(), username)
	if err != nil {
		log.Error("failed to build monthly summary", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not build summary"))
		return
	}

	log.Info("monthly summary built", slog.String("month_total", res.MonthTotal.String()))
	render.JSON(w, r, response.OKWithData(res))
}
