// Package postgres backs the substrate with a single key-value table,
// keeping the one-payload-per-table contract while gaining durable storage.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Substrate struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Substrate, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv_tables (
			name       text PRIMARY KEY,
			payload    bytea NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)
	`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Substrate{db: db}, nil
}

func (s *Substrate) Close() error {
	return s.db.Close()
}

func (s *Substrate) Get(ctx context.Context, table string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM kv_tables WHERE name = $1
	`, table).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func (s *Substrate) Set(ctx context.Context, table string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_tables (name, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
	`, table, payload)
	return err
}

func (s *Substrate) Delete(ctx context.Context, table string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_tables WHERE name = $1`, table)
	return err
}
