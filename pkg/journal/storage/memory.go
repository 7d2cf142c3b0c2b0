package storage

import (
	"context"
	"sort"
	"sync"

	"warden-hq/callisto/pkg/journal"
)

// MemoryStorage implements journal.Storage in memory. Used in tests and
// when no journal path is configured but querying is still wanted.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []*journal.Record
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Store persists one record.
func (m *MemoryStorage) Store(ctx context.Context, record *journal.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *record
	m.records = append(m.records, &copied)
	return nil
}

// Query retrieves records matching the filters, newest first.
func (m *MemoryStorage) Query(ctx context.Context, query *journal.Query) ([]*journal.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := []*journal.Record{}
	for _, r := range m.records {
		if matches(r, query) {
			matched = append(matched, r)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].RecordedTime.After(matched[j].RecordedTime)
	})

	if query != nil && query.Offset > 0 {
		if query.Offset >= len(matched) {
			return []*journal.Record{}, nil
		}
		matched = matched[query.Offset:]
	}
	if query != nil && query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}

	return matched, nil
}

// Count returns the number of records matching the filters.
func (m *MemoryStorage) Count(ctx context.Context, query *journal.Query) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, r := range m.records {
		if matches(r, query) {
			count++
		}
	}
	return count, nil
}

// Delete removes records matching the filters.
func (m *MemoryStorage) Delete(ctx context.Context, query *journal.Query) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	var deleted int64
	for _, r := range m.records {
		if matches(r, query) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

// Close is a no-op.
func (m *MemoryStorage) Close() error {
	return nil
}

func matches(r *journal.Record, q *journal.Query) bool {
	if q == nil {
		return true
	}
	if q.StartTime != nil && r.RecordedTime.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && r.RecordedTime.After(*q.EndTime) {
		return false
	}
	if q.Event != "" && r.Event != q.Event {
		return false
	}
	if q.Verdict != "" && r.Verdict != q.Verdict {
		return false
	}
	if q.Mode != "" && r.Mode != q.Mode {
		return false
	}
	return true
}
