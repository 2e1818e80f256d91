package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresBackend struct {
	pool *pgxpool.Pool
}

func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

func (b *PostgresBackend) Load(ctx context.Context, id string) (Checkpoint, bool, error) {
	var position int64
	err := b.pool.QueryRow(ctx, `SELECT position FROM checkpoints WHERE id = $1`, id).Scan(&position)
	if errors.Is(err, pgx.ErrNoRows) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("load checkpoint %s: %w", id, err)
	}
	return Checkpoint{ID: id, Position: uint64(position)}, true, nil
}

func (b *PostgresBackend) Save(ctx context.Context, cp Checkpoint) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO checkpoints (id, position, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET position = EXCLUDED.position, updated_at = now()
	`, cp.ID, int64(cp.Position))
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cp.ID, err)
	}
	return nil
}
