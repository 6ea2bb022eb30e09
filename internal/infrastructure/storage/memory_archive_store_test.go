package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryArchiveStore(t *testing.T) {
	store := NewMemoryArchiveStore("https://files.example.org/archives")
	store.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	body := []byte("line\n")
	require.NoError(t, store.Put(ctx, "t1/ledger.jsonl", "application/x-ndjson", body))
	body[0] = 'X'

	obj, ok := store.Get("t1/ledger.jsonl")
	require.True(t, ok)
	assert.Equal(t, "line\n", string(obj.Body))
	assert.Equal(t, "application/x-ndjson", obj.ContentType)
	assert.Equal(t, 1, store.Len())

	link, err := store.PresignGet(ctx, "t1/ledger.jsonl", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.org/archives/t1/ledger.jsonl?expires=2025-03-01T10%3A15%3A00Z", link)

	assert.ErrorIs(t, store.Put(ctx, "", "text/plain", nil), ErrKeyRequired)
	_, err = store.PresignGet(ctx, "", time.Minute)
	assert.ErrorIs(t, err, ErrKeyRequired)
}

func TestNewMemoryArchiveStore_DefaultBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/archives", NewMemoryArchiveStore("").BaseURL)
}
