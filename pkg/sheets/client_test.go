package sheets

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"inventario-go/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore wraps MemoryStore and counts reads; it can fail the first N
// reads with a retriable error.
type countingStore struct {
	*MemoryStore
	mu        sync.Mutex
	reads     int
	failReads int
}

func (s *countingStore) ReadRows(ctx context.Context, sheet string) ([][]string, error) {
	s.mu.Lock()
	s.reads++
	fail := s.failReads > 0
	if fail {
		s.failReads--
	}
	s.mu.Unlock()
	if fail {
		return nil, apperr.Retriable(errors.New("quota exceeded"))
	}
	return s.MemoryStore.ReadRows(ctx, sheet)
}

func fastOptions() Options {
	return Options{
		CacheTTL:       time.Minute,
		MinInterval:    time.Millisecond,
		CallsPerMinute: 100000,
		MaxRetries:     3,
		CallTimeout:    time.Second,
	}
}

func TestClientCachesReads(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	store.Seed("Suzuki", [][]string{{"Fecha", "Identificador"}, {"01/08/2025", "12345678"}})
	client := NewClient(store, fastOptions())
	ctx := context.Background()

	first, err := client.ReadRows(ctx, "Suzuki")
	require.NoError(t, err)
	second, err := client.ReadRows(ctx, "Suzuki")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.reads, "second read should come from cache")
}

func TestClientWriteInvalidatesCache(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	store.Seed("Suzuki", [][]string{{"Fecha", "Identificador"}})
	client := NewClient(store, fastOptions())
	ctx := context.Background()

	_, err := client.ReadRows(ctx, "Suzuki")
	require.NoError(t, err)

	require.NoError(t, client.AppendRow(ctx, "Suzuki", []string{"01/08/2025", "12345678"}))

	rows, err := client.ReadRows(ctx, "Suzuki")
	require.NoError(t, err)
	assert.Len(t, rows, 2, "read after write must see the appended row")
	assert.Equal(t, 2, store.reads)
}

func TestClientRetriesRetriableErrors(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore(), failReads: 2}
	store.Seed("Suzuki", [][]string{{"Fecha"}})
	client := NewClient(store, fastOptions())

	rows, err := client.ReadRows(context.Background(), "Suzuki")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 3, store.reads)
}

func TestClientSurfacesUnavailableAfterExhaustion(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore(), failReads: 100}
	client := NewClient(store, fastOptions())

	_, err := client.ReadRows(context.Background(), "Suzuki")
	require.Error(t, err)
	assert.True(t, apperr.IsUnavailable(err))
}

func TestClientDoesNotRetryTerminalErrors(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	client := NewClient(store, fastOptions())

	err := client.UpdateRow(context.Background(), "Suzuki", 42, []string{"x"})
	require.Error(t, err)
	assert.False(t, apperr.IsUnavailable(err))
}

func TestMemoryStoreClearKeepsHeader(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("Suzuki", [][]string{{"Fecha"}, {"01/08/2025"}, {"02/08/2025"}})

	require.NoError(t, store.ClearSheet(context.Background(), "Suzuki"))

	rows, err := store.ReadRows(context.Background(), "Suzuki")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Fecha"}}, rows)
}
