package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/duesledger/backend/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockEventHandler struct {
	mock.Mock
}

func (m *MockEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockEventHandler) EventTypes() []string {
	return []string{"DueCreated"}
}

// brokenStore fails every call
type brokenStore struct{}

func (brokenStore) Reserve(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("store down")
}
func (brokenStore) Complete(context.Context, string, string, time.Duration) error {
	return errors.New("store down")
}
func (brokenStore) Lookup(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store down")
}
func (brokenStore) Release(context.Context, string) error { return errors.New("store down") }
func (brokenStore) Close() error                          { return nil }

func newMemoryStore(t *testing.T) *cache.InMemoryIdempotencyStore {
	t.Helper()
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	inner := new(MockEventHandler)
	event := newLedgerEvent(t)
	inner.On("Handle", mock.Anything, event).Return(nil).Once()

	h := NewIdempotentHandler(inner, newMemoryStore(t), zap.NewNop())
	for range 3 {
		require.NoError(t, h.Handle(t.Context(), event))
	}

	inner.AssertExpectations(t)
	assert.Equal(t, IdempotencyStats{EventsProcessed: 1, EventsDuplicate: 2}, h.Stats())
	assert.Equal(t, []string{"DueCreated"}, h.EventTypes())
}

func TestIdempotentHandler_FailureAllowsRetry(t *testing.T) {
	inner := new(MockEventHandler)
	event := newLedgerEvent(t)
	boom := errors.New("boom")
	inner.On("Handle", mock.Anything, event).Return(boom).Once()
	inner.On("Handle", mock.Anything, event).Return(nil).Once()

	h := NewIdempotentHandler(inner, newMemoryStore(t), zap.NewNop())
	assert.ErrorIs(t, h.Handle(t.Context(), event), boom)
	require.NoError(t, h.Handle(t.Context(), event))

	inner.AssertExpectations(t)
	assert.Equal(t, IdempotencyStats{EventsProcessed: 1, EventsFailed: 1}, h.Stats())
}

func TestIdempotentHandler_StoreOutageStillDelivers(t *testing.T) {
	inner := new(MockEventHandler)
	event := newLedgerEvent(t)
	inner.On("Handle", mock.Anything, event).Return(nil).Twice()

	h := NewIdempotentHandler(inner, brokenStore{}, zap.NewNop())
	require.NoError(t, h.Handle(t.Context(), event))
	require.NoError(t, h.Handle(t.Context(), event))
	inner.AssertExpectations(t)
}

func TestIdempotentHandler_Disabled(t *testing.T) {
	inner := new(MockEventHandler)
	event := newLedgerEvent(t)
	inner.On("Handle", mock.Anything, event).Return(nil).Twice()

	h := NewIdempotentHandler(inner, newMemoryStore(t), zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}))
	require.NoError(t, h.Handle(t.Context(), event))
	require.NoError(t, h.Handle(t.Context(), event))
	inner.AssertExpectations(t)
}
