package audit

import (
	"context"
	"sync"
)

// Store persists audit records. Implementations must be safe for
// concurrent use.
type Store interface {
	Append(ctx context.Context, record Record) error
	ListByCorrelation(ctx context.Context, correlationID string) ([]Record, error)
}

// InMemoryStore keeps records in a slice. Suitable for tests and local
// development only.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *InMemoryStore) ListByCorrelation(_ context.Context, correlationID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, record := range s.records {
		if record.CorrelationID == correlationID {
			out = append(out, record)
		}
	}
	return out, nil
}

// All returns a copy of every record, oldest first.
func (s *InMemoryStore) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
