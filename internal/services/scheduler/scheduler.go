// Package scheduler содержит плановые задачи: поиск подписок,
// продлевающихся завтра, с публикацией напоминаний в очередь, и
// перевод пользователей с истёкшим pro-тарифом обратно на free.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/remindmybill/remindmybill/internal/lib/datecycle"
	"github.com/remindmybill/remindmybill/internal/lib/sl"
	"github.com/remindmybill/remindmybill/internal/models"
	"github.com/remindmybill/remindmybill/internal/rabbitmq"
	"github.com/remindmybill/remindmybill/internal/services/limits"
)

// SubscriptionRepository описывает доступ к данным для плановых задач.
type SubscriptionRepository interface {
	// ListAllActiveEntries возвращает все активные подписки всех пользователей.
	ListAllActiveEntries(ctx context.Context) ([]*models.Subscription, error)
	// GetUserByUID возвращает пользователя по UID.
	GetUserByUID(ctx context.Context, userUID string) (*models.User, error)
	// ListExpiredProUsers возвращает пользователей, чей pro-тариф истёк к moment.
	ListExpiredProUsers(ctx context.Context, moment time.Time) ([]*models.User, error)
}

// Downgrader переводит пользователя на бесплатный тариф.
type Downgrader interface {
	Downgrade(ctx context.Context, userUID string) (limits.Result, error)
}

// SchedulerService выполняет плановые задачи приложения.
type SchedulerService struct {
	repo       SubscriptionRepository
	downgrader Downgrader
	log        *slog.Logger
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo SubscriptionRepository, downgrader Downgrader, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:       repo,
		downgrader: downgrader,
		log:        log,
	}
}

// RunRenewalReminders запускает поиск завтрашних продлений сразу и далее
// каждые 12 часов, публикуя напоминания в RabbitMQ.
func (s *SchedulerService) RunRenewalReminders(ctx context.Context, channel *amqp.Channel) {
	s.publishRenewalReminders(ctx, channel)

	ticker := time.NewTicker(12 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.publishRenewalReminders(ctx, channel)
		case <-ctx.Done():
			return
		}
	}
}

// DueTomorrow отбирает подписки, чьё следующее списание приходится на
// завтрашний день относительно today. Заблокированные подписки
// пропускаются: блокировка исключает подписку из активного трекинга и
// напоминаний.
func DueTomorrow(subs []*models.Subscription, today time.Time, log *slog.Logger) []*models.Subscription {
	day := datecycle.Truncate(today)
	tomorrow := day.AddDate(0, 0, 1)

	var due []*models.Subscription
	for _, sub := range subs {
		if sub.Locked {
			continue
		}
		next, err := datecycle.NextOccurrence(sub.AnchorDate, sub.Frequency, day)
		if err != nil {
			log.Warn("subscription has invalid anchor date",
				slog.Int("subscription_id", sub.ID), sl.Err(err))
			continue
		}
		if next.Equal(tomorrow) {
			due = append(due, sub)
		}
	}
	return due
}

// publishRenewalReminders публикует напоминание для каждой подписки,
// продлевающейся завтра.
func (s *SchedulerService) publishRenewalReminders(ctx context.Context, channel *amqp.Channel) {
	s.log.Info("looking for subscriptions renewing tomorrow")

	subs, err := s.repo.ListAllActiveEntries(ctx)
	if err != nil {
		s.log.Error("failed to list active subscriptions", sl.Err(err))
		return
	}

	var published int
	for _, sub := range DueTomorrow(subs, time.Now(), s.log) {
		next, err := datecycle.NextOccurrence(sub.AnchorDate, sub.Frequency, time.Now())
		if err != nil {
			continue
		}

		user, err := s.repo.GetUserByUID(ctx, sub.UserUID)
		if err != nil {
			s.log.Error("failed to load subscription owner",
				slog.Int("subscription_id", sub.ID), sl.Err(err))
			continue
		}

		info := models.ReminderInfo{
			Email:       user.Email,
			Username:    user.Username,
			ServiceName: sub.Name,
			RenewalDate: next,
			Cost:        sub.Cost,
			Currency:    sub.Currency,
		}
		if err := rabbitmq.PublishMessage(channel, rabbitmq.RemindersExchange, rabbitmq.RoutingKeyRenewal, info); err != nil {
			s.log.Error("failed to publish reminder", sl.Err(err))
			continue
		}
		published++
	}

	if published == 0 {
		s.log.Info("no renewals due tomorrow")
		return
	}
	s.log.Info("published renewal reminders", slog.Int("count", published))
}

// RunProExpirySweep запускает понижение истёкших pro-тарифов сразу и
// далее раз в сутки.
func (s *SchedulerService) RunProExpirySweep(ctx context.Context) {
	s.downgradeExpiredPro(ctx)

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.downgradeExpiredPro(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *SchedulerService) downgradeExpiredPro(ctx context.Context) {
	s.log.Info("looking for expired pro accounts")

	users, err := s.repo.ListExpiredProUsers(ctx, time.Now())
	if err != nil {
		s.log.Error("failed to list expired pro users", sl.Err(err))
		return
	}
	if len(users) == 0 {
		s.log.Info("no expired pro accounts found")
		return
	}

	for _, user := range users {
		result, err := s.downgrader.Downgrade(ctx, user.UID)
		if err != nil {
			s.log.Error("failed to downgrade user",
				slog.String("user_uid", user.UID), sl.Err(err))
			continue
		}
		s.log.Info("downgraded expired pro account",
			slog.String("user_uid", user.UID),
			slog.Int("locked", result.ChangedCount))
	}
}
