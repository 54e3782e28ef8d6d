// Package remindmybill собирает основное HTTP-приложение: хранилище,
// кэш, сервисы и маршруты.
package remindmybill

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/remindmybill/remindmybill/internal/cache"
	"github.com/remindmybill/remindmybill/internal/config"
	"github.com/remindmybill/remindmybill/internal/lib/currency"
	"github.com/remindmybill/remindmybill/internal/lib/jwt"
	"github.com/remindmybill/remindmybill/internal/migrations"
	"github.com/remindmybill/remindmybill/internal/paymentprovider"
	analyticsservice "github.com/remindmybill/remindmybill/internal/services/analytics"
	authservice "github.com/remindmybill/remindmybill/internal/services/auth"
	"github.com/remindmybill/remindmybill/internal/services/forecast"
	"github.com/remindmybill/remindmybill/internal/services/limits"
	paymentservice "github.com/remindmybill/remindmybill/internal/services/payment"
	subservice "github.com/remindmybill/remindmybill/internal/services/subscription"
	"github.com/remindmybill/remindmybill/internal/storage/repository"
)

// App инкапсулирует HTTP-сервер и его зависимости.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
}

// New собирает приложение: подключает хранилище и кэш, применяет
// миграции и строит граф сервисов поверх общего хранилища.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	jwtMaker := jwt.New(cfg.JWTSecretKey, cfg.TokenTTL)
	rates := currency.NewStaticRates()

	authService := authservice.NewAuthService(db, jwtMaker)
	enforcer := limits.New(db, logger)
	subscriptionService := subservice.NewSubscriptionService(db, cacheRedis, enforcer, logger)
	aggregator := forecast.New(rates, logger)
	analyticsService := analyticsservice.New(db, aggregator, rates, logger)
	paymentService := paymentservice.New(db, enforcer, logger)
	providerClient := paymentprovider.NewClient(
		cfg.ProviderAPIURL, cfg.ProviderAccountID, cfg.ProviderSecretKey)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, RouteServices{
		Auth:           authService,
		Subscriptions:  subscriptionService,
		Analytics:      analyticsService,
		Payments:       paymentService,
		ProviderClient: providerClient,
		Users:          db,
		WebhookSecret:  cfg.WebhookSecret,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
	}, nil
}

// Run запускает HTTP-сервер и корректно останавливает его при отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		_ = a.db.DB.Close()
		return err
	}
}
