// Package healthscore реализует HTTP-обработчик оценки здоровья портфеля подписок.
package healthscore

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

// Handler управляет HTTP-запросами на получение оценки здоровья.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики оценки портфеля.
type Service interface {
	Health(ctx context.Context, username string) (analytics.HealthReport, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Оценка здоровья портфеля
// @Description Возвращает числовую оценку портфеля подписок и её текстовую метку.
// @Tags Analytics
// @Produce  json
// @Success 200 {object} map[string]any "Оценка и метка"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /analytics/health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.analytics.healthscore"

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

	report, err := h.service.Health(r.Context(), username)
	if err != nil {
		log.Error("failed to score portfolio", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not score portfolio"))
		return
	}

	log.Info("portfolio scored", slog.Int("score", report.Score))
	render.JSON(w, r, response.OKWithData(report))
}
