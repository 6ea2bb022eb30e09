package event

import (
	"testing"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuditLogHandler(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewAuditLogHandler(NewLedgerSerializer(), zap.New(core))
	assert.Contains(t, h.EventTypes(), dues.EventTypeTransactionRecorded)

	ctx := logger.WithRequestID(t.Context(), "req-7")
	ctx = logger.WithUserID(ctx, "user-9")
	event := newLedgerEvent(t)
	require.NoError(t, h.Handle(ctx, event))

	entries := logs.FilterMessage("ledger audit").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, dues.EventTypeDueCreated, fields["event_type"])
	assert.Equal(t, event.AggregateID().String(), fields["aggregate_id"])
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "user-9", fields["user_id"])
	assert.Equal(t, "audit", entries[0].LoggerName)
}
