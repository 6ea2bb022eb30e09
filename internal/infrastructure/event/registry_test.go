package event

import (
	"testing"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry(t *testing.T) {
	t.Run("typed and wildcard handlers", func(t *testing.T) {
		r := NewHandlerRegistry()
		typed := newRecordingHandler()
		wild := newRecordingHandler()
		r.Register(typed, dues.EventTypeDueCreated, dues.EventTypeDueDeleted)
		r.Register(wild)

		got := r.GetHandlers(dues.EventTypeDueCreated)
		assert.Len(t, got, 2)
		assert.Same(t, typed, got[0], "typed handlers come first")
		assert.Len(t, r.GetHandlers(dues.EventTypeTransactionRecorded), 1)
		assert.Equal(t, 2, r.Count())
	})

	t.Run("duplicate registration is ignored", func(t *testing.T) {
		r := NewHandlerRegistry()
		h := newRecordingHandler()
		r.Register(h, dues.EventTypeDueCreated)
		r.Register(h, dues.EventTypeDueCreated)
		assert.Len(t, r.GetHandlers(dues.EventTypeDueCreated), 1)
	})

	t.Run("unregister removes every binding", func(t *testing.T) {
		r := NewHandlerRegistry()
		h := newRecordingHandler()
		keep := newRecordingHandler()
		r.Register(h, dues.EventTypeDueCreated, dues.EventTypeDueDeleted)
		r.Register(h)
		r.Register(keep, dues.EventTypeDueCreated)

		r.Unregister(h)
		assert.Len(t, r.GetHandlers(dues.EventTypeDueCreated), 1)
		assert.Empty(t, r.GetHandlers(dues.EventTypeDueDeleted))
		assert.Equal(t, 1, r.Count())
	})
}
