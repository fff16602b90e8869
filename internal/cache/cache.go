package cache

import (
	"context"
	"time"
)

// TableCache sits in front of the substrate and caches whole table payloads.
// Writers must invalidate the table they touched before the write settles.
type TableCache interface {
	Get(ctx context.Context, table string) ([]byte, bool, error)
	Set(ctx context.Context, table string, payload []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, table string) error
}

type NoopTableCache struct{}

func (NoopTableCache) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoopTableCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	return nil
}

func (NoopTableCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
