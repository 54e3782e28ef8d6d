// Package remindmybill предоставляет маршруты основного приложения.
package remindmybill

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/remindmybill/remindmybill/internal/http/handlers/analytics/healthscore"
	"github.com/remindmybill/remindmybill/internal/http/handlers/analytics/summary"
	"github.com/remindmybill/remindmybill/internal/http/handlers/analytics/timeline"
	"github.com/remindmybill/remindmybill/internal/http/handlers/auth/login"
	"github.com/remindmybill/remindmybill/internal/http/handlers/auth/register"
	"github.com/remindmybill/remindmybill/internal/http/handlers/payment/paymentcreate"
	"github.com/remindmybill/remindmybill/internal/http/handlers/payment/paymentwebhook"
	"github.com/remindmybill/remindmybill/internal/http/handlers/subscription/cancel"
	"github.com/remindmybill/remindmybill/internal/http/handlers/subscription/create"
	"github.com/remindmybill/remindmybill/internal/http/handlers/subscription/list"
	"github.com/remindmybill/remindmybill/internal/http/handlers/subscription/read"
	"github.com/remindmybill/remindmybill/internal/http/handlers/subscription/remove"
	"github.com/remindmybill/remindmybill/internal/http/handlers/subscription/update"
	"github.com/remindmybill/remindmybill/internal/http/middlewarectx"
	"github.com/remindmybill/remindmybill/internal/paymentprovider"
	analyticsservice "github.com/remindmybill/remindmybill/internal/services/analytics"
	authservice "github.com/remindmybill/remindmybill/internal/services/auth"
	paymentservice "github.com/remindmybill/remindmybill/internal/services/payment"
	subservice "github.com/remindmybill/remindmybill/internal/services/subscription"
	"github.com/remindmybill/remindmybill/internal/storage/repository"
)

// RouteServices — зависимости, необходимые маршрутам приложения.
type RouteServices struct {
	Auth           *authservice.AuthService
	Subscriptions  *subservice.SubscriptionService
	Analytics      *analyticsservice.Service
	Payments       *paymentservice.Service
	ProviderClient *paymentprovider.Client
	Users          *repository.Storage
	WebhookSecret  string
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc RouteServices) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/auth/register", register.New(logger, svc.Auth).ServeHTTP)
		r.Post("/auth/login", login.New(logger, svc.Auth).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(svc.Auth, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))

			r.Post("/subscriptions", create.New(logger, svc.Subscriptions).ServeHTTP)
			r.Get("/subscriptions", list.New(logger, svc.Subscriptions).ServeHTTP)
			r.Get("/subscriptions/{id}", read.New(logger, svc.Subscriptions).ServeHTTP)
			r.Put("/subscriptions/{id}", update.New(logger, svc.Subscriptions).ServeHTTP)
			r.Delete("/subscriptions/{id}", remove.New(logger, svc.Subscriptions).ServeHTTP)
			r.Post("/subscriptions/{id}/cancel", cancel.New(logger, svc.Subscriptions).ServeHTTP)

			r.Get("/analytics/timeline", timeline.New(logger, svc.Analytics).ServeHTTP)
			r.Get("/analytics/health", healthscore.New(logger, svc.Analytics).ServeHTTP)
			r.Get("/analytics/summary", summary.New(logger, svc.Analytics).ServeHTTP)

			r.Post("/payments/create", paymentcreate.New(logger, svc.ProviderClient, svc.Users).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации)
		r.Post("/payments/webhook", paymentwebhook.New(logger, svc.Payments, svc.WebhookSecret).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
}
