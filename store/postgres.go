package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const winsSchema = `
CREATE TABLE IF NOT EXISTS wins (
	participant TEXT PRIMARY KEY,
	total       BIGINT NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresWins 胜场计数的 postgres 实现
type PostgresWins struct {
	pool *pgxpool.Pool
}

// NewPostgresWins 建立连接池并确保表存在
func NewPostgresWins(ctx context.Context, connString string) (*PostgresWins, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, winsSchema); err != nil {
		pool.Close()
		return nil, classify(err)
	}
	return &PostgresWins{pool: pool}, nil
}

func (p *PostgresWins) Close() { p.pool.Close() }

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}

func (p *PostgresWins) RecordWin(ctx context.Context, id string) (int64, error) {
	var total int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO wins (participant, total) VALUES ($1, 1)
		ON CONFLICT (participant) DO UPDATE SET total = wins.total + 1, updated_at = now()
		RETURNING total`, id).Scan(&total)
	if err != nil {
		return 0, classify(err)
	}
	return total, nil
}

func (p *PostgresWins) Wins(ctx context.Context, id string) (int64, error) {
	var total int64
	err := p.pool.QueryRow(ctx, `SELECT total FROM wins WHERE participant = $1`, id).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, classify(err)
	}
	return total, nil
}

func (p *PostgresWins) TopWins(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, `SELECT participant, total FROM wins ORDER BY total DESC, participant LIMIT $1`, n)
	if err != nil {
		return nil, classify(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.ID, &e.Total)
		return e, err
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}
