package audit

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store, used by unit tests and selected by
// Config.Type "memory" (an empty Type defaults to sqlite).
type Memory struct {
	mu      sync.Mutex
	nextID  int64
	records []Record
}

// NewMemory constructs an empty Memory ledger.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	rec.ID = m.nextID
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) Recent(_ context.Context, ownerID uint32, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []Record
	for _, r := range m.records {
		if r.OwnerID == ownerID {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *Memory) Close() error { return nil }
