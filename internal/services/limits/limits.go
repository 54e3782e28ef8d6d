// Package limits приводит флаги блокировки активных подписок пользователя
// в соответствие с лимитом его тарифа. Это не чистая функция, а процедура
// сверки состояния: она читает и пишет персистентные флаги через
// интерфейс хранилища.
package limits

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/remindmybill/remindmybill/internal/lib/sl"
	"github.com/remindmybill/remindmybill/internal/models"
)

// SubscriptionRepository определяет операции хранилища, нужные для сверки.
type SubscriptionRepository interface {
	// ListActiveEntries возвращает активные подписки пользователя.
	ListActiveEntries(ctx context.Context, userUID string) ([]*models.Subscription, error)
	// UpdateEntryLock выставляет флаг блокировки у подписки.
	UpdateEntryLock(ctx context.Context, id int, locked bool) error
	// GetUserTier возвращает тариф пользователя с лимитом.
	GetUserTier(ctx context.Context, userUID string) (models.Tier, error)
}

// Result — итог одной сверки.
type Result struct {
	ChangedIDs   []int // Подписки, реально сменившие состояние
	ChangedCount int   // Сколько подписок реально сменили состояние
	AnyChanged   bool  // Были ли изменения вообще
}

// Enforcer выполняет сверку блокировок.
type Enforcer struct {
	repo SubscriptionRepository
	log  *slog.Logger
}

// New создает новый Enforcer.
func New(repo SubscriptionRepository, log *slog.Logger) *Enforcer {
	return &Enforcer{repo: repo, log: log}
}

// Reconcile пересчитывает целевое состояние каждой активной подписки
// пользователя и записывает только реально изменившиеся флаги.
//
// Активные подписки упорядочиваются по времени создания по возрастанию,
// при равенстве — по идентификатору по возрастанию, чтобы порядок был
// полным и повторные запуски не перетасовывали блокировки. Подписки с
// рангом меньше лимита тарифа разблокируются, остальные блокируются.
//
// Ошибка записи по одной подписке логируется и не прерывает обработку
// остальных: следующая сверка доведёт состояние до целевого. Повторный
// запуск без изменений входных данных не делает ни одной записи.
func (e *Enforcer) Reconcile(ctx context.Context, userUID string) (Result, error) {
	const op = "limits.Reconcile"

	tier, err := e.repo.GetUserTier(ctx, userUID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	subs, err := e.repo.ListActiveEntries(ctx, userUID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	sort.Slice(subs, func(i, j int) bool {
		if subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].ID < subs[j].ID
		}
		return subs[i].CreatedAt.Before(subs[j].CreatedAt)
	})

	var result Result
	for rank, sub := range subs {
		target := rank >= tier.Cap
		if sub.Locked == target {
			continue
		}
		if err := e.repo.UpdateEntryLock(ctx, sub.ID, target); err != nil {
			e.log.Error("failed to update lock flag",
				slog.Int("subscription_id", sub.ID),
				slog.Bool("target_locked", target),
				sl.Err(err))
			continue
		}
		result.ChangedIDs = append(result.ChangedIDs, sub.ID)
		result.ChangedCount++
	}
	result.AnyChanged = result.ChangedCount > 0

	if result.AnyChanged {
		e.log.Info("lock state reconciled",
			slog.String("user_uid", userUID),
			slog.String("tier", tier.Name),
			slog.Int("changed", result.ChangedCount))
	}
	return result, nil
}
