package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/domain/shared"
)

// EventSerializer converts ledger events to and from JSON by event type
type EventSerializer struct {
	mu       sync.RWMutex
	registry map[string]reflect.Type
}

// NewEventSerializer creates an empty serializer
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{registry: make(map[string]reflect.Type)}
}

// NewLedgerSerializer returns a serializer that knows every dues event
func NewLedgerSerializer() *EventSerializer {
	s := NewEventSerializer()
	s.Register(dues.EventTypeDueCreated, &dues.DueCreatedEvent{})
	s.Register(dues.EventTypeDuePaymentApplied, &dues.DuePaymentAppliedEvent{})
	s.Register(dues.EventTypeDuePaymentReleased, &dues.DuePaymentReleasedEvent{})
	s.Register(dues.EventTypeDueAmountChanged, &dues.DueAmountChangedEvent{})
	s.Register(dues.EventTypeDueDeleted, &dues.DueDeletedEvent{})
	s.Register(dues.EventTypeTransactionRecorded, &dues.TransactionRecordedEvent{})
	s.Register(dues.EventTypeTransactionRevoked, &dues.TransactionRevokedEvent{})
	return s
}

// Register binds eventType to the concrete type of instance
func (s *EventSerializer) Register(eventType string, instance shared.DomainEvent) {
	t := reflect.TypeOf(instance)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	s.mu.Lock()
	s.registry[eventType] = t
	s.mu.Unlock()
}

// Serialize encodes an event as JSON
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	return json.Marshal(event)
}

// Deserialize decodes data into a fresh instance of the type registered for eventType
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	t, ok := s.registry[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", eventType, err)
	}
	event, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("%s does not implement DomainEvent", t)
	}
	return event, nil
}

// RegisteredTypes lists the known event types in sorted order
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.registry))
	for t := range s.registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
