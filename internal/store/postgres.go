package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store on the kv_entries table.
type Postgres struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
// Run RunMigrations first so the kv_entries table exists.
func NewPostgres(ctx context.Context, dsn, namespace string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool, namespace: namespace}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Namespace() string { return p.namespace }

// Get returns the value stored under key.
func (p *Postgres) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE namespace = $1 AND key = $2`,
		p.namespace, key,
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("Get: %w", err)
	}
	return v, nil
}

// Put inserts or overwrites the value stored under key.
func (p *Postgres) Put(ctx context.Context, key, value string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO kv_entries (namespace, key, value, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		p.namespace, key, value,
	)
	if err != nil {
		return fmt.Errorf("Put: %w", err)
	}
	return nil
}

// Delete removes key from the namespace.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM kv_entries WHERE namespace = $1 AND key = $2`, p.namespace, key)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

// Clear removes every key of the namespace.
func (p *Postgres) Clear(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM kv_entries WHERE namespace = $1`, p.namespace)
	if err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	return nil
}
