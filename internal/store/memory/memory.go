// Package memory provides the in-memory substrate used by tests and by
// dev mode when no persistent backend is configured.
package memory

import (
	"context"
	"sync"
)

type Substrate struct {
	mu     sync.RWMutex
	tables map[string][]byte
}

func New() *Substrate {
	return &Substrate{tables: make(map[string][]byte)}
}

func (s *Substrate) Get(_ context.Context, table string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, ok := s.tables[table]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, true, nil
}

func (s *Substrate) Set(_ context.Context, table string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(payload))
	copy(stored, payload)
	s.tables[table] = stored
	return nil
}

func (s *Substrate) Delete(_ context.Context, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tables, table)
	return nil
}
