package analytics

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/remindmybill/remindmybill/internal/lib/currency"
	"github.com/remindmybill/remindmybill/internal/lib/datecycle"
	"github.com/remindmybill/remindmybill/internal/models"
	"github.com/remindmybill/remindmybill/internal/services/forecast"
)

type RepoMock struct{ mock.Mock }

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

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newService(repo *RepoMock) *Service {
	rates := currency.NewStaticRates()
	log := newNoopLogger()
	return New(repo, forecast.New(rates, log), rates, log)
}

func TestTimeline(t *testing.T) {
	repo := new(RepoMock)
	user := &models.User{UID: "uid-1", Username: "alice", Currency: "USD"}
	subs := []*models.Subscription{
		{
			ID:         1,
			Name:       "Netflix",
			Cost:       decimal.RequireFromString("15.99"),
			Currency:   "USD",
			Frequency:  "monthly",
			AnchorDate: time.Now().AddDate(0, 0, 5),
			Status:     models.StatusActive,
			SharedWith: 1,
		},
	}

	repo.On("GetUserByUsername", mock.Anything, "alice").Return(user, nil).Once()
	repo.On("ListActiveEntries", mock.Anything, "uid-1").Return(subs, nil).Once()

	buckets, err := newService(repo).Timeline(context.Background(), "alice", "")
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.True(t, buckets[0].TotalCost.Equal(decimal.RequireFromString("15.99")))
	repo.AssertExpectations(t)
}

func TestHealth(t *testing.T) {
	repo := new(RepoMock)
	user := &models.User{UID: "uid-1", Currency: "USD"}
	subs := []*models.Subscription{
		{Name: "Netflix", Category: "", Status: models.StatusActive, AnchorDate: time.Now().AddDate(0, 1, 0), SharedWith: 1},
	}

	repo.On("GetUserByUsername", mock.Anything, "alice").Return(user, nil).Once()
	repo.On("ListActiveEntries", mock.Anything, "uid-1").Return(subs, nil).Once()

	report, err := newService(repo).Health(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 95, report.Score)
	assert.Equal(t, "Excellent", report.Label)
}

func TestMonthlySummary(t *testing.T) {
	repo := new(RepoMock)
	user := &models.User{UID: "uid-1", Currency: "USD"}
	now := time.Now()
	subs := []*models.Subscription{
		{
			ID:         1,
			Name:       "Netflix",
			Cost:       decimal.RequireFromString("10.00"),
			Currency:   "USD",
			Frequency:  "monthly",
			AnchorDate: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(-1, 0, 0),
			Status:     models.StatusActive,
			SharedWith: 1,
		},
	}

	repo.On("GetUserByUsername", mock.Anything, "alice").Return(user, nil).Once()
	repo.On("ListActiveEntries", mock.Anything, "uid-1").Return(subs, nil).Once()

	summary, err := newService(repo).MonthlySummary(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "USD", summary.Currency)
	assert.True(t, summary.MonthTotal.Equal(decimal.RequireFromString("10.00")),
		"month total = %s", summary.MonthTotal)
	assert.Equal(t, "$10.00", summary.MonthFormatted)
}

func TestMonthlyRunRate_MonthEndAnchor(t *testing.T) {
	svc := newService(new(RepoMock))
	subs := []*models.Subscription{
		{
			ID:         1,
			Name:       "Spotify",
			Cost:       decimal.RequireFromString("9.99"),
			Currency:   "USD",
			Frequency:  "monthly",
			AnchorDate: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
			Status:     models.StatusActive,
			SharedWith: 1,
		},
	}

	// Якорь прошлого периода от 31 марта — 28 февраля, и февральское
	// списание 5-го числа входит в накопленную сумму.
	prev := datecycle.PreviousMonth(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.February, prev.Month())

	got := svc.monthlyRunRate(subs, "USD", prev)
	assert.True(t, got.Equal(decimal.RequireFromString("9.99")), "run rate = %s", got)
}

func TestMonthlySummary_EmptyPortfolio(t *testing.T) {
	repo := new(RepoMock)
	user := &models.User{UID: "uid-1", Currency: "USD"}

	repo.On("GetUserByUsername", mock.Anything, "alice").Return(user, nil).Once()
	repo.On("ListActiveEntries", mock.Anything, "uid-1").Return([]*models.Subscription{}, nil).Once()

	summary, err := newService(repo).MonthlySummary(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, summary.MonthTotal.IsZero())
	assert.True(t, summary.Arc.ProgressPercent.IsZero(), "zero expected total must not divide")
	assert.Equal(t, forecast.DirectionFlat, summary.Velocity.Direction)
}
