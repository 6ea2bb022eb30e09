package event

import (
	"context"
	"encoding/json"

	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/duesledger/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// AuditLogHandler writes one structured "ledger audit" line per event with
// the event's JSON payload, giving an append-only trail of every money
// movement in the log pipeline
type AuditLogHandler struct {
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewAuditLogHandler creates an audit handler for every registered ledger event
func NewAuditLogHandler(serializer *EventSerializer, logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{
		serializer: serializer,
		logger:     logger.Named("audit"),
	}
}

// EventTypes returns every type the serializer knows
func (h *AuditLogHandler) EventTypes() []string {
	return h.serializer.RegisteredTypes()
}

// Handle logs the event. Request-scoped fields from ctx are included.
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := h.serializer.Serialize(event)
	if err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
		zap.Any("payload", json.RawMessage(payload)),
	}
	if requestID := logger.GetRequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if userID := logger.GetUserID(ctx); userID != "" {
		fields = append(fields, zap.String("user_id", userID))
	}
	h.logger.Info("ledger audit", fields...)
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
