package sheets

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process RowStore for tests and local development.
// Sheets are created lazily on first append.
type MemoryStore struct {
	mu     sync.Mutex
	sheets map[string][][]string
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sheets: make(map[string][][]string)}
}

// Seed replaces the contents of a sheet, header included.
func (m *MemoryStore) Seed(sheet string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sheets[sheet] = copyRows(rows)
}

func (m *MemoryStore) ReadRows(_ context.Context, sheet string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRows(m.sheets[sheet]), nil
}

func (m *MemoryStore) AppendRow(_ context.Context, sheet string, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sheets[sheet] = append(m.sheets[sheet], append([]string(nil), row...))
	return nil
}

func (m *MemoryStore) UpdateRow(_ context.Context, sheet string, rowIndex int, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.sheets[sheet]
	if rowIndex < 0 || rowIndex >= len(rows) {
		return fmt.Errorf("row index %d out of range for sheet %q", rowIndex, sheet)
	}
	rows[rowIndex] = append([]string(nil), row...)
	return nil
}

func (m *MemoryStore) ClearSheet(_ context.Context, sheet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.sheets[sheet]
	if len(rows) > 1 {
		m.sheets[sheet] = rows[:1]
	}
	return nil
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
