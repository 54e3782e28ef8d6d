package limits

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remindmybill/remindmybill/internal/models"
)

// fakeRepo хранит подписки в памяти и считает записи,
// чтобы проверять идемпотентность сверки.
type fakeRepo struct {
	mu      sync.Mutex
	tier    models.Tier
	tierErr error
	subs    map[int]*models.Subscription
	writes  int
	failIDs map[int]bool
}

func newFakeRepo(tier models.Tier) *fakeRepo {
	return &fakeRepo{
		tier:    tier,
		subs:    make(map[int]*models.Subscription),
		failIDs: make(map[int]bool),
	}
}

func (f *fakeRepo) add(id int, createdAt time.Time, locked bool) {
	f.subs[id] = &models.Subscription{
		ID:        id,
		Status:    models.StatusActive,
		Locked:    locked,
		CreatedAt: createdAt,
	}
}

func (f *fakeRepo) ListActiveEntries(_ context.Context, _ string) ([]*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Subscription
	for _, sub := range f.subs {
		copied := *sub
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeRepo) UpdateEntryLock(_ context.Context, id int, locked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[id] {
		return errors.New("store write failed")
	}
	f.writes++
	f.subs[id].Locked = locked
	return nil
}

func (f *fakeRepo) GetUserTier(_ context.Context, _ string) (models.Tier, error) {
	if f.tierErr != nil {
		return models.Tier{}, f.tierErr
	}
	return f.tier, nil
}

func (f *fakeRepo) lockedIDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int
	for id, sub := range f.subs {
		if sub.Locked {
			ids = append(ids, id)
		}
	}
	return ids
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestReconcile_FreeTierLocksOverflow(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepo(models.TierByName(models.TierFree))
	repo.add(1, base, false)
	repo.add(2, base.Add(time.Hour), false)
	repo.add(3, base.Add(2*time.Hour), false)
	repo.add(4, base.Add(3*time.Hour), false)
	repo.add(5, base.Add(4*time.Hour), false)

	enforcer := New(repo, newNoopLogger())
	res, err := enforcer.Reconcile(context.Background(), "uid")
	require.NoError(t, err)

	assert.Equal(t, 2, res.ChangedCount)
	assert.True(t, res.AnyChanged)
	assert.ElementsMatch(t, []int{4, 5}, res.ChangedIDs)
	// ровно N-3 заблокированных, и это самые свежие
	assert.ElementsMatch(t, []int{4, 5}, repo.lockedIDs())
}

func TestReconcile_FourthSubscriptionGetsLocked(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepo(models.TierByName(models.TierFree))
	repo.add(1, base, false)
	repo.add(2, base.Add(time.Hour), false)
	repo.add(3, base.Add(2*time.Hour), false)

	enforcer := New(repo, newNoopLogger())
	res, err := enforcer.Reconcile(context.Background(), "uid")
	require.NoError(t, err)
	assert.False(t, res.AnyChanged)
	assert.Empty(t, repo.lockedIDs())

	repo.add(4, base.Add(3*time.Hour), false)
	res, err = enforcer.Reconcile(context.Background(), "uid")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChangedCount)
	assert.ElementsMatch(t, []int{4}, repo.lockedIDs())
}

func TestReconcile_Idempotent(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepo(models.TierByName(models.TierFree))
	for i := range 6 {
		repo.add(i+1, base.Add(time.Duration(i)*time.Hour), false)
	}

	enforcer := New(repo, newNoopLogger())
	_, err := enforcer.Reconcile(context.Background(), "uid")
	require.NoError(t, err)
	firstWrites := repo.writes

	res, err := enforcer.Reconcile(context.Background(), "uid")
	require.NoError(t, err)
	assert.Zero(t, res.ChangedCount)
	assert.False(t, res.AnyChanged)
	assert.Equal(t, firstWrites, repo.writes, "second run must perform zero writes")
}

func TestReconcile_UpgradeUnlocksEverything(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepo(models.TierByName(models.TierFree))
	for i := range 5 {
		repo.add(i+1, base.Add(time.Duration(i)*time.Hour), false)
	}

	enforcer := New(repo, newNoopLogger())
	_, err := enforcer.Reconcile(context.Background(), "uid")
	require.NoError(t, err)
	require.Len(t, repo.lockedIDs(), 2)

	repo.tier = models.TierByName(models.TierPro)
	res, err := enforcer.Reconcile(context.Background(), "uid")
	require.NoError(t, err)
	assert.Equal(t, 2, res.ChangedCount)
	assert.Empty(t, repo.lockedIDs())
}

func TestReconcile_EqualTimestampsTieBreakByID(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepo(models.TierByName(models.TierFree))
	// все созданы в один момент: порядок определяет идентификатор
	for _, id := range []int{7, 3, 9, 5, 1} {
		repo.add(id, base, false)
	}

	enforcer := New(repo, newNoopLogger())
	_, err := enforcer.Reconcile(context.Background(), "uid")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{7, 9}, repo.lockedIDs())
}

func TestReconcile_PartialWriteFailureContinues(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepo(models.TierByName(models.TierFree))
	for i := range 5 {
		repo.add(i+1, base.Add(time.Duration(i)*time.Hour), false)
	}
	repo.failIDs[4] = true

	enforcer := New(repo, newNoopLogger())
	res, err := enforcer.Reconcile(context.Background(), "uid")
	require.NoError(t, err, "batch must not abort on a single failed write")
	assert.Equal(t, 1, res.ChangedCount)
	assert.ElementsMatch(t, []int{5}, repo.lockedIDs())

	// следующая сверка долечивает пропущенную запись
	repo.failIDs[4] = false
	res, err = enforcer.Reconcile(context.Background(), "uid")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChangedCount)
	assert.ElementsMatch(t, []int{4, 5}, repo.lockedIDs())
}

func TestReconcile_TierLoadFailure(t *testing.T) {
	repo := newFakeRepo(models.TierByName(models.TierFree))
	repo.tierErr = errors.New("store unavailable")

	enforcer := New(repo, newNoopLogger())
	_, err := enforcer.Reconcile(context.Background(), "uid")
	assert.Error(t, err)
}
