// Package subscription содержит бизнес-логику для управления подписками:
// создание, изменение, отмена, кеширование и пересчёт блокировок по
// лимиту тарифа после каждой мутации.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/remindmybill/remindmybill/internal/lib/datecycle"
	"github.com/remindmybill/remindmybill/internal/lib/sl"
	"github.com/remindmybill/remindmybill/internal/models"
	"github.com/remindmybill/remindmybill/internal/services/limits"
)

// Ошибки валидации входных данных.
var (
	ErrInvalidAnchorDate = errors.New("invalid anchor date")
	ErrNegativeCost      = errors.New("cost must not be negative")
	ErrInvalidSharedWith = errors.New("shared_with must be at least 1")
)

// anchorDateLayout — формат даты продления в запросах.
const anchorDateLayout = "02-01-2006"

// SubscriptionRepository определяет методы для работы с подписками в хранилище.
type SubscriptionRepository interface {
	// CreateEntry добавляет новую подписку и возвращает её ID.
	CreateEntry(ctx context.Context, sub models.Subscription) (int, error)
	// ReadEntry возвращает подписку по ID.
	ReadEntry(ctx context.Context, id int) (*models.Subscription, error)
	// UpdateEntry обновляет данные подписки и возвращает количество изменённых записей.
	UpdateEntry(ctx context.Context, sub models.Subscription, id int) (int, error)
	// RemoveEntry удаляет подписку и возвращает количество удалённых записей.
	RemoveEntry(ctx context.Context, id int) (int, error)
	// SetEntryStatus выставляет статус подписки.
	SetEntryStatus(ctx context.Context, id int, status string) (int, error)
	// ListEntries возвращает подписки пользователя с пагинацией.
	ListEntries(ctx context.Context, username string, limit, offset int) ([]*models.Subscription, error)
	// ListAllEntries возвращает все подписки с пагинацией (для админа).
	ListAllEntries(ctx context.Context, limit, offset int) ([]*models.Subscription, error)
	// ListActiveEntries возвращает активные подписки пользователя без пагинации.
	ListActiveEntries(ctx context.Context, userUID string) ([]*models.Subscription, error)
	// GetUserByUsername возвращает пользователя по имени.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// Reconciler пересчитывает блокировки пользователя после мутаций.
type Reconciler interface {
	Reconcile(ctx context.Context, userUID string) (limits.Result, error)
}

// SubscriptionService реализует бизнес-логику работы с подписками.
type SubscriptionService struct {
	repo     SubscriptionRepository
	cache    Cache
	enforcer Reconciler
	log      *slog.Logger
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, cache Cache, enforcer Reconciler, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:     repo,
		cache:    cache,
		enforcer: enforcer,
		log:      log,
	}
}

// parseEntry валидирует DTO и собирает доменную подписку.
// Нераспознанная периодичность приводится к monthly с предупреждением
// в логе: обработка продолжается, но плохие данные остаются видимыми.
func (s *SubscriptionService) parseEntry(req models.DummySubscription) (models.Subscription, error) {
	anchorDate, err := time.Parse(anchorDateLayout, req.AnchorDate)
	if err != nil {
		return models.Subscription{}, fmt.Errorf("%w: %v", ErrInvalidAnchorDate, err)
	}

	cost, err := decimal.NewFromString(req.Cost)
	if err != nil {
		return models.Subscription{}, fmt.Errorf("invalid cost: %w", err)
	}
	if cost.IsNegative() {
		return models.Subscription{}, ErrNegativeCost
	}

	sharedWith := req.SharedWith
	if sharedWith == 0 {
		sharedWith = 1
	}
	if sharedWith < 1 {
		return models.Subscription{}, ErrInvalidSharedWith
	}

	frequency := datecycle.Normalize(req.Frequency)
	if req.Frequency != "" && req.Frequency != frequency {
		s.log.Warn("unrecognized billing frequency, defaulting to monthly",
			slog.String("frequency", req.Frequency))
	}

	return models.Subscription{
		Name:       req.Name,
		Cost:       cost,
		Currency:   req.Currency,
		Frequency:  frequency,
		Category:   req.Category,
		AnchorDate: anchorDate,
		Status:     models.StatusActive,
		IsTrial:    req.IsTrial,
		SharedWith: sharedWith,
	}, nil
}

// Create создает новую подписку пользователя, запускает сверку
// блокировок и возвращает ID созданной записи. Кешируется состояние
// после сверки: она могла заблокировать только что созданную запись.
func (s *SubscriptionService) Create(ctx context.Context, username string, req models.DummySubscription) (int, error) {
	entry, err := s.parseEntry(req)
	if err != nil {
		return 0, err
	}

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	entry.UserUID = user.UID
	entry.Username = username

	id, err := s.repo.CreateEntry(ctx, entry)
	if err != nil {
		return 0, err
	}
	s.log.Info("created new subscription", slog.Int("id", id))

	if res, err := s.enforcer.Reconcile(ctx, user.UID); err != nil {
		s.log.Error("lock reconciliation failed after create", sl.Err(err))
	} else {
		s.invalidateReconciled(res)
	}

	created, err := s.repo.ReadEntry(ctx, id)
	if err != nil || created == nil {
		s.log.Warn("failed to reload created subscription", slog.Int("id", id), sl.Err(err))
		return id, nil
	}
	cacheKey := fmt.Sprintf("subscription:%d", id)
	if err := s.cache.Set(cacheKey, created, time.Hour); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", cacheKey), sl.Err(err))
	}
	return id, nil
}

// Read возвращает подписку по ID, используя кеш или репозиторий.
func (s *SubscriptionService) Read(ctx context.Context, id int) (*models.Subscription, error) {
	var result *models.Subscription
	cacheKey := fmt.Sprintf("subscription:%d", id)
	found, err := s.cache.Get(cacheKey, &result)
	if err != nil {
		return nil, err
	}
	if found {
		return result, nil
	}

	result, err = s.repo.ReadEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if result != nil {
		if err := s.cache.Set(cacheKey, result, time.Hour); err != nil {
			s.log.Warn("failed to add to cache", slog.String("key", cacheKey), sl.Err(err))
		}
	}
	return result, nil
}

// Update обновляет подписку и обновляет кеш.
func (s *SubscriptionService) Update(ctx context.Context, req models.DummySubscription, id int, username string) (int, error) {
	entry, err := s.parseEntry(req)
	if err != nil {
		return 0, err
	}
	entry.Username = username

	res, err := s.repo.UpdateEntry(ctx, entry, id)
	if err != nil {
		return 0, err
	}
	s.log.Info("updated subscription in storage", slog.Int("id", id))

	cacheKey := fmt.Sprintf("subscription:%d", id)
	if err := s.cache.Invalidate(cacheKey); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("key", cacheKey), sl.Err(err))
	}
	return res, nil
}

// Cancel переводит подписку в статус cancelled, не удаляя запись,
// и запускает сверку блокировок: освободившийся слот может разблокировать
// самую свежую из заблокированных подписок.
func (s *SubscriptionService) Cancel(ctx context.Context, id int, username string) (int, error) {
	count, err := s.repo.SetEntryStatus(ctx, id, models.StatusCancelled)
	if err != nil {
		return 0, err
	}

	cacheKey := fmt.Sprintf("subscription:%d", id)
	if err := s.cache.Invalidate(cacheKey); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("key", cacheKey), sl.Err(err))
	}

	if count > 0 {
		s.reconcileByUsername(ctx, username)
	}
	return count, nil
}

// Remove физически удаляет подписку и инвалидирует кеш.
func (s *SubscriptionService) Remove(ctx context.Context, id int, username string) (int, error) {
	cacheKey := fmt.Sprintf("subscription:%d", id)
	if err := s.cache.Invalidate(cacheKey); err != nil {
		s.log.Warn("failed to remove from cache", slog.String("key", cacheKey), sl.Err(err))
	}

	count, err := s.repo.RemoveEntry(ctx, id)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.reconcileByUsername(ctx, username)
	}
	return count, nil
}

// List возвращает список подписок в зависимости от роли пользователя.
func (s *SubscriptionService) List(ctx context.Context, username, role string, limit, offset int) ([]*models.Subscription, error) {
	if role == "admin" {
		return s.repo.ListAllEntries(ctx, limit, offset)
	}
	return s.repo.ListEntries(ctx, username, limit, offset)
}

// ListActive возвращает активные подписки пользователя по имени.
func (s *SubscriptionService) ListActive(ctx context.Context, username string) ([]*models.Subscription, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.repo.ListActiveEntries(ctx, user.UID)
}

func (s *SubscriptionService) reconcileByUsername(ctx context.Context, username string) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		s.log.Error("failed to load user for reconciliation", sl.Err(err))
		return
	}
	res, err := s.enforcer.Reconcile(ctx, user.UID)
	if err != nil {
		s.log.Error("lock reconciliation failed", sl.Err(err))
		return
	}
	s.invalidateReconciled(res)
}

// invalidateReconciled сбрасывает кеш подписок, чьи флаги блокировки
// изменила сверка: закешированные копии этих записей устарели.
func (s *SubscriptionService) invalidateReconciled(res limits.Result) {
	for _, id := range res.ChangedIDs {
		cacheKey := fmt.Sprintf("subscription:%d", id)
		if err := s.cache.Invalidate(cacheKey); err != nil {
			s.log.Warn("failed to invalidate cache", slog.String("key", cacheKey), sl.Err(err))
		}
	}
}
