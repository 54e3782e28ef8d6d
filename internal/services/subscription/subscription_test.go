package subscription

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/remindmybill/remindmybill/internal/models"
	"github.com/remindmybill/remindmybill/internal/services/limits"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CreateEntry(ctx context.Context, sub models.Subscription) (int, error) {
	args := m.Called(ctx, sub)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) ReadEntry(ctx context.Context, id int) (*models.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}
func (m *RepoMock) UpdateEntry(ctx context.Context, sub models.Subscription, id int) (int, error) {
	args := m.Called(ctx, sub, id)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) RemoveEntry(ctx context.Context, id int) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) SetEntryStatus(ctx context.Context, id int, status string) (int, error) {
	args := m.Called(ctx, id, status)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) ListEntries(ctx context.Context, username string, limit, offset int) ([]*models.Subscription, error) {
	args := m.Called(ctx, username, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}
func (m *RepoMock) ListAllEntries(ctx context.Context, limit, offset int) ([]*models.Subscription, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}
func (m *RepoMock) ListActiveEntries(ctx context.Context, userUID string) ([]*models.Subscription, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}
func (m *RepoMock) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}
func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}
func (m *CacheMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

type ReconcilerMock struct{ mock.Mock }

func (m *ReconcilerMock) Reconcile(ctx context.Context, userUID string) (limits.Result, error) {
	args := m.Called(ctx, userUID)
	return args.Get(0).(limits.Result), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func validRequest() models.DummySubscription {
	return models.DummySubscription{
		Name:       "Netflix",
		Cost:       "15.99",
		Currency:   "USD",
		Frequency:  "monthly",
		Category:   "Entertainment",
		AnchorDate: "15-04-2025",
		SharedWith: 1,
	}
}

func TestSubscriptionService_Create(t *testing.T) {
	user := &models.User{UID: "uid-1", Username: "alice", Tier: models.TierFree}

	tests := []struct {
		name       string
		setupMocks func(r *RepoMock, c *CacheMock, e *ReconcilerMock)
		req        models.DummySubscription
		wantID     int
		wantErr    error
	}{
		{
			name: "success create triggers reconcile",
			setupMocks: func(r *RepoMock, c *CacheMock, e *ReconcilerMock) {
				r.On("GetUserByUsername", mock.Anything, "alice").Return(user, nil).Once()
				r.On("CreateEntry", mock.Anything, mock.MatchedBy(func(s models.Subscription) bool {
					return s.Name == "Netflix" &&
						s.Cost.Equal(decimal.RequireFromString("15.99")) &&
						s.Status == models.StatusActive &&
						s.UserUID == "uid-1"
				})).Return(42, nil).Once()
				e.On("Reconcile", mock.Anything, "uid-1").Return(limits.Result{}, nil).Once()
				r.On("ReadEntry", mock.Anything, 42).
					Return(&models.Subscription{ID: 42, Name: "Netflix", UserUID: "uid-1"}, nil).Once()
				c.On("Set", "subscription:42", mock.MatchedBy(func(s *models.Subscription) bool {
					return s.ID == 42
				}), time.Hour).Return(nil).Once()
			},
			req:    validRequest(),
			wantID: 42,
		},
		{
			name:       "invalid anchor date",
			setupMocks: func(_ *RepoMock, _ *CacheMock, _ *ReconcilerMock) {},
			req: func() models.DummySubscription {
				req := validRequest()
				req.AnchorDate = "2025-04-15"
				return req
			}(),
			wantErr: ErrInvalidAnchorDate,
		},
		{
			name:       "negative cost",
			setupMocks: func(_ *RepoMock, _ *CacheMock, _ *ReconcilerMock) {},
			req: func() models.DummySubscription {
				req := validRequest()
				req.Cost = "-1.00"
				return req
			}(),
			wantErr: ErrNegativeCost,
		},
		{
			name:       "negative shared_with rejected",
			setupMocks: func(_ *RepoMock, _ *CacheMock, _ *ReconcilerMock) {},
			req: func() models.DummySubscription {
				req := validRequest()
				req.SharedWith = -2
				return req
			}(),
			wantErr: ErrInvalidSharedWith,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			cache := new(CacheMock)
			enforcer := new(ReconcilerMock)
			tt.setupMocks(repo, cache, enforcer)

			svc := NewSubscriptionService(repo, cache, enforcer, newNoopLogger())
			id, err := svc.Create(context.Background(), "alice", tt.req)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, id)
			}
			repo.AssertExpectations(t)
			cache.AssertExpectations(t)
			enforcer.AssertExpectations(t)
		})
	}
}

func TestSubscriptionService_Create_DefaultsFrequency(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)
	enforcer := new(ReconcilerMock)
	user := &models.User{UID: "uid-1", Username: "alice"}

	repo.On("GetUserByUsername", mock.Anything, "alice").Return(user, nil).Once()
	repo.On("CreateEntry", mock.Anything, mock.MatchedBy(func(s models.Subscription) bool {
		return s.Frequency == "monthly" && s.SharedWith == 1
	})).Return(7, nil).Once()
	enforcer.On("Reconcile", mock.Anything, "uid-1").Return(limits.Result{}, nil).Once()
	repo.On("ReadEntry", mock.Anything, 7).
		Return(&models.Subscription{ID: 7, Frequency: "monthly"}, nil).Once()
	cache.On("Set", "subscription:7", mock.Anything, time.Hour).Return(nil).Once()

	req := validRequest()
	req.Frequency = "fortnightly"
	req.SharedWith = 0

	svc := NewSubscriptionService(repo, cache, enforcer, newNoopLogger())
	id, err := svc.Create(context.Background(), "alice", req)
	require.NoError(t, err)
	assert.Equal(t, 7, id)
	repo.AssertExpectations(t)
}

func TestSubscriptionService_Create_CachesLockedStateAfterReconcile(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)
	enforcer := new(ReconcilerMock)
	user := &models.User{UID: "uid-1", Username: "alice", Tier: models.TierFree}

	// Четвёртая подписка на бесплатном тарифе: сверка блокирует её сразу
	// после вставки, и в кеш должна попасть уже заблокированная запись с ID.
	repo.On("GetUserByUsername", mock.Anything, "alice").Return(user, nil).Once()
	repo.On("CreateEntry", mock.Anything, mock.Anything).Return(4, nil).Once()
	enforcer.On("Reconcile", mock.Anything, "uid-1").
		Return(limits.Result{ChangedIDs: []int{4}, ChangedCount: 1, AnyChanged: true}, nil).Once()
	cache.On("Invalidate", "subscription:4").Return(nil).Once()
	repo.On("ReadEntry", mock.Anything, 4).
		Return(&models.Subscription{ID: 4, Name: "Netflix", UserUID: "uid-1", Locked: true}, nil).Once()
	cache.On("Set", "subscription:4", mock.MatchedBy(func(s *models.Subscription) bool {
		return s.ID == 4 && s.Locked
	}), time.Hour).Return(nil).Once()

	svc := NewSubscriptionService(repo, cache, enforcer, newNoopLogger())
	id, err := svc.Create(context.Background(), "alice", validRequest())
	require.NoError(t, err)
	assert.Equal(t, 4, id)
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
	enforcer.AssertExpectations(t)
}

func TestSubscriptionService_Read_CacheHit(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)
	enforcer := new(ReconcilerMock)

	cache.On("Get", "subscription:5", mock.Anything).Return(true, nil).Once()

	svc := NewSubscriptionService(repo, cache, enforcer, newNoopLogger())
	_, err := svc.Read(context.Background(), 5)
	require.NoError(t, err)

	repo.AssertNotCalled(t, "ReadEntry", mock.Anything, mock.Anything)
	cache.AssertExpectations(t)
}

func TestSubscriptionService_Read_CacheMiss(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)
	enforcer := new(ReconcilerMock)
	entry := &models.Subscription{ID: 5, Name: "Netflix"}

	cache.On("Get", "subscription:5", mock.Anything).Return(false, nil).Once()
	repo.On("ReadEntry", mock.Anything, 5).Return(entry, nil).Once()
	cache.On("Set", "subscription:5", entry, time.Hour).Return(nil).Once()

	svc := NewSubscriptionService(repo, cache, enforcer, newNoopLogger())
	got, err := svc.Read(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, entry, got)
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestSubscriptionService_Cancel_TriggersReconcile(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)
	enforcer := new(ReconcilerMock)
	user := &models.User{UID: "uid-1", Username: "alice"}

	// Освободившийся слот разблокирует подписку 11 — её кеш тоже сбрасывается.
	repo.On("SetEntryStatus", mock.Anything, 9, models.StatusCancelled).Return(1, nil).Once()
	cache.On("Invalidate", "subscription:9").Return(nil).Once()
	repo.On("GetUserByUsername", mock.Anything, "alice").Return(user, nil).Once()
	enforcer.On("Reconcile", mock.Anything, "uid-1").
		Return(limits.Result{ChangedIDs: []int{11}, ChangedCount: 1, AnyChanged: true}, nil).Once()
	cache.On("Invalidate", "subscription:11").Return(nil).Once()

	svc := NewSubscriptionService(repo, cache, enforcer, newNoopLogger())
	count, err := svc.Cancel(context.Background(), 9, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
	enforcer.AssertExpectations(t)
}

func TestSubscriptionService_Cancel_MissingEntrySkipsReconcile(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)
	enforcer := new(ReconcilerMock)

	repo.On("SetEntryStatus", mock.Anything, 9, models.StatusCancelled).Return(0, nil).Once()
	cache.On("Invalidate", "subscription:9").Return(nil).Once()

	svc := NewSubscriptionService(repo, cache, enforcer, newNoopLogger())
	count, err := svc.Cancel(context.Background(), 9, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)
	enforcer.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestSubscriptionService_List_AdminSeesAll(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)
	enforcer := new(ReconcilerMock)
	all := []*models.Subscription{{ID: 1}, {ID: 2}}

	repo.On("ListAllEntries", mock.Anything, 10, 0).Return(all, nil).Once()

	svc := NewSubscriptionService(repo, cache, enforcer, newNoopLogger())
	got, err := svc.List(context.Background(), "root", "admin", 10, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	repo.AssertNotCalled(t, "ListEntries", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubscriptionService_Create_StoreError(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)
	enforcer := new(ReconcilerMock)
	user := &models.User{UID: "uid-1"}

	repo.On("GetUserByUsername", mock.Anything, "alice").Return(user, nil).Once()
	repo.On("CreateEntry", mock.Anything, mock.Anything).Return(0, errors.New("db down")).Once()

	svc := NewSubscriptionService(repo, cache, enforcer, newNoopLogger())
	_, err := svc.Create(context.Background(), "alice", validRequest())
	assert.Error(t, err)
	enforcer.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}
