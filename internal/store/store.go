package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidEntity     = errors.New("invalid entity")
)

// Substrate is the raw persistence interface: one opaque serialized value per
// named table. Only the kv layer is allowed to depend on it directly. There
// are no partial writes; every Set replaces the whole table payload.
type Substrate interface {
	// Get returns the raw payload for a table. The second result is false
	// when the table has never been written.
	Get(ctx context.Context, table string) ([]byte, bool, error)

	// Set replaces the table payload.
	Set(ctx context.Context, table string, payload []byte) error

	// Delete removes the table entirely.
	Delete(ctx context.Context, table string) error
}
