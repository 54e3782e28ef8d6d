package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/remindmybill/remindmybill/internal/models"
	"github.com/remindmybill/remindmybill/internal/paymentprovider"
	"github.com/remindmybill/remindmybill/internal/services/limits"
)

type UsersMock struct{ mock.Mock }

func (m *UsersMock) SetUserTier(ctx context.Context, userUID, tier string, expiry *time.Time) error {
	return m.Called(ctx, userUID, tier, expiry).Error(0)
}

type ReconcilerMock struct{ mock.Mock }

func (m *ReconcilerMock) Reconcile(ctx context.Context, userUID string) (limits.Result, error) {
	args := m.Called(ctx, userUID)
	return args.Get(0).(limits.Result), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func succeededEvent(userUID string) paymentprovider.WebhookEvent {
	var event paymentprovider.WebhookEvent
	event.Event = paymentprovider.EventPaymentSucceeded
	event.Object.ID = "pay-1"
	event.Object.Metadata.UserUID = userUID
	return event
}

func TestProcessWebhook_SucceededUpgradesAndReconciles(t *testing.T) {
	users := new(UsersMock)
	enforcer := new(ReconcilerMock)

	users.On("SetUserTier", mock.Anything, "uid-1", models.TierPro,
		mock.MatchedBy(func(expiry *time.Time) bool {
			return expiry != nil && expiry.After(time.Now())
		})).Return(nil).Once()
	enforcer.On("Reconcile", mock.Anything, "uid-1").
		Return(limits.Result{ChangedCount: 2, AnyChanged: true}, nil).Once()

	svc := New(users, enforcer, newNoopLogger())
	result, err := svc.ProcessWebhook(context.Background(), succeededEvent("uid-1"))
	require.NoError(t, err)
	assert.Equal(t, 2, result.ChangedCount)
	users.AssertExpectations(t)
	enforcer.AssertExpectations(t)
}

func TestProcessWebhook_CanceledIsNoop(t *testing.T) {
	users := new(UsersMock)
	enforcer := new(ReconcilerMock)

	event := succeededEvent("uid-1")
	event.Event = paymentprovider.EventPaymentCanceled

	svc := New(users, enforcer, newNoopLogger())
	result, err := svc.ProcessWebhook(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, result.AnyChanged)
	users.AssertNotCalled(t, "SetUserTier", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessWebhook_UnknownEvent(t *testing.T) {
	event := succeededEvent("uid-1")
	event.Event = "payment.refunded"

	svc := New(new(UsersMock), new(ReconcilerMock), newNoopLogger())
	_, err := svc.ProcessWebhook(context.Background(), event)
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestProcessWebhook_MissingUserUID(t *testing.T) {
	event := succeededEvent("")

	svc := New(new(UsersMock), new(ReconcilerMock), newNoopLogger())
	_, err := svc.ProcessWebhook(context.Background(), event)
	assert.Error(t, err)
}

func TestProcessWebhook_ReconcileFailureDoesNotFailWebhook(t *testing.T) {
	users := new(UsersMock)
	enforcer := new(ReconcilerMock)

	users.On("SetUserTier", mock.Anything, "uid-1", models.TierPro, mock.Anything).Return(nil).Once()
	enforcer.On("Reconcile", mock.Anything, "uid-1").
		Return(limits.Result{}, errors.New("store down")).Once()

	svc := New(users, enforcer, newNoopLogger())
	_, err := svc.ProcessWebhook(context.Background(), succeededEvent("uid-1"))
	assert.NoError(t, err, "upgrade already applied, webhook must not be retried as failed")
}

func TestDowngrade(t *testing.T) {
	users := new(UsersMock)
	enforcer := new(ReconcilerMock)

	users.On("SetUserTier", mock.Anything, "uid-1", models.TierFree, (*time.Time)(nil)).Return(nil).Once()
	enforcer.On("Reconcile", mock.Anything, "uid-1").
		Return(limits.Result{ChangedCount: 3, AnyChanged: true}, nil).Once()

	svc := New(users, enforcer, newNoopLogger())
	result, err := svc.Downgrade(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.ChangedCount)
}
