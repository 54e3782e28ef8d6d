// Package payment превращает события платёжного провайдера в изменения
// тарифа пользователя. Успешная оплата повышает тариф до pro и
// запускает сверку блокировок, чтобы разблокировать подписки сверх
// бесплатного лимита.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/remindmybill/remindmybill/internal/lib/sl"
	"github.com/remindmybill/remindmybill/internal/models"
	"github.com/remindmybill/remindmybill/internal/paymentprovider"
	"github.com/remindmybill/remindmybill/internal/services/limits"
)

// ErrUnknownEvent возвращается для событий, которые сервис не обрабатывает.
var ErrUnknownEvent = errors.New("unknown webhook event")

// proTermMonths — срок действия pro-тарифа после успешной оплаты.
const proTermMonths = 1

// UserRepository описывает операции хранилища над тарифами пользователей.
type UserRepository interface {
	// SetUserTier выставляет тариф и срок его действия.
	SetUserTier(ctx context.Context, userUID, tier string, expiry *time.Time) error
}

// Reconciler пересчитывает блокировки после смены тарифа.
type Reconciler interface {
	Reconcile(ctx context.Context, userUID string) (limits.Result, error)
}

// Service обрабатывает платёжные события.
type Service struct {
	repo     UserRepository
	enforcer Reconciler
	log      *slog.Logger
}

// New создает новый платёжный сервис.
func New(repo UserRepository, enforcer Reconciler, log *slog.Logger) *Service {
	return &Service{repo: repo, enforcer: enforcer, log: log}
}

// ProcessWebhook применяет событие провайдера к тарифу пользователя.
// Возвращает итог сверки блокировок, чтобы вызывающий мог решить,
// уведомлять ли пользователя о разблокированных подписках.
func (s *Service) ProcessWebhook(ctx context.Context, event paymentprovider.WebhookEvent) (limits.Result, error) {
	const op = "payment.ProcessWebhook"

	userUID := event.Object.Metadata.UserUID
	if userUID == "" {
		return limits.Result{}, fmt.Errorf("%s: event %s carries no user uid", op, event.Event)
	}

	switch event.Event {
	case paymentprovider.EventPaymentSucceeded:
		expiry := time.Now().UTC().AddDate(0, proTermMonths, 0)
		if err := s.repo.SetUserTier(ctx, userUID, models.TierPro, &expiry); err != nil {
			return limits.Result{}, fmt.Errorf("%s: %w", op, err)
		}
		s.log.Info("user upgraded to pro",
			slog.String("user_uid", userUID),
			slog.Time("expiry", expiry))

		result, err := s.enforcer.Reconcile(ctx, userUID)
		if err != nil {
			// тариф уже повышен, сверку доведёт плановый прогон
			s.log.Error("reconciliation after upgrade failed", sl.Err(err))
			return limits.Result{}, nil
		}
		return result, nil

	case paymentprovider.EventPaymentCanceled:
		s.log.Info("payment canceled, tier unchanged", slog.String("user_uid", userUID))
		return limits.Result{}, nil

	default:
		return limits.Result{}, fmt.Errorf("%s: %w: %s", op, ErrUnknownEvent, event.Event)
	}
}

// Downgrade возвращает пользователя на бесплатный тариф и блокирует
// подписки сверх лимита. Вызывается планировщиком при истечении pro.
func (s *Service) Downgrade(ctx context.Context, userUID string) (limits.Result, error) {
	const op = "payment.Downgrade"

	if err := s.repo.SetUserTier(ctx, userUID, models.TierFree, nil); err != nil {
		return limits.Result{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user downgraded to free", slog.String("user_uid", userUID))

	result, err := s.enforcer.Reconcile(ctx, userUID)
	if err != nil {
		return limits.Result{}, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
