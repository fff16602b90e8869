// Package file persists each table as one JSON document in a directory,
// mirroring the single-value-per-table contract of the substrate interface.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Substrate struct {
	mu  sync.RWMutex
	dir string
}

func New(dir string) (*Substrate, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Substrate{dir: dir}, nil
}

func (s *Substrate) path(table string) string {
	return filepath.Join(s.dir, table+".json")
}

func (s *Substrate) Get(_ context.Context, table string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, err := os.ReadFile(s.path(table))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read table %s: %w", table, err)
	}
	return payload, true, nil
}

// Set writes through a temp file and renames it into place so a crash
// mid-write never leaves a truncated table behind.
func (s *Substrate) Set(_ context.Context, table string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, table+"-*.tmp")
	if err != nil {
		return fmt.Errorf("write table %s: %w", table, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write table %s: %w", table, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write table %s: %w", table, err)
	}
	if err := os.Rename(tmpName, s.path(table)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write table %s: %w", table, err)
	}
	return nil
}

func (s *Substrate) Delete(_ context.Context, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(table)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete table %s: %w", table, err)
	}
	return nil
}
