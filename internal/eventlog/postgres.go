package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// appendLockKey serialises appends so positions become visible in commit order
// and catch-up readers never skip a late-committing gap.
const appendLockKey = 7_301_020

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) AppendEvents(ctx context.Context, stream string, expected ExpectedVersion, events []EventData) (AppendResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return AppendResult{}, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
		return AppendResult{}, fmt.Errorf("lock log: %w", err)
	}

	current, exists, err := streamVersion(ctx, tx, stream)
	if err != nil {
		return AppendResult{}, err
	}
	if !expected.matches(current) {
		return AppendResult{}, fmt.Errorf("append to %s: expected %s, stream at %d: %w", stream, expected, current, ErrWrongExpectedVersion)
	}
	if len(events) == 0 {
		return AppendResult{NextExpectedVersion: current}, nil
	}

	if !exists {
		_, err := tx.Exec(ctx, `INSERT INTO streams (name, version, truncate_before) VALUES ($1, -1, 0)`, stream)
		if err != nil {
			return AppendResult{}, fmt.Errorf("create stream %s: %w", stream, err)
		}
	}

	var position int64
	for i, e := range events {
		md, err := json.Marshal(e.Metadata)
		if err != nil {
			return AppendResult{}, fmt.Errorf("encode metadata: %w", err)
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO events (id, stream, version, type, data, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			RETURNING position
		`, e.ID, stream, current+1+int64(i), e.Type, []byte(e.Data), md).Scan(&position)
		if err != nil {
			return AppendResult{}, fmt.Errorf("insert event %s: %w", e.Type, err)
		}
	}

	next := current + int64(len(events))
	if _, err := tx.Exec(ctx, `UPDATE streams SET version = $2 WHERE name = $1`, stream, next); err != nil {
		return AppendResult{}, fmt.Errorf("update stream %s: %w", stream, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return AppendResult{}, fmt.Errorf("commit append: %w", err)
	}
	return AppendResult{NextExpectedVersion: next, Position: uint64(position)}, nil
}

func streamVersion(ctx context.Context, tx pgx.Tx, stream string) (int64, bool, error) {
	var version int64
	err := tx.QueryRow(ctx, `SELECT version FROM streams WHERE name = $1 FOR UPDATE`, stream).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return -1, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load stream %s: %w", stream, err)
	}
	return version, true, nil
}

const selectEvents = `
	SELECT id, type, data, metadata, stream, version, position, created_at
	FROM events
`

func (s *PostgresStore) ReadStream(ctx context.Context, stream string, from int64, dir Direction) ([]RecordedEvent, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM streams WHERE name = $1)`, stream).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", stream, err)
	}
	if !exists {
		return nil, fmt.Errorf("read %s: %w", stream, ErrStreamNotFound)
	}

	var rows pgx.Rows
	switch {
	case dir == Forwards:
		rows, err = s.pool.Query(ctx, selectEvents+` WHERE stream = $1 AND version >= $2 ORDER BY version`, stream, from)
	case from < 0:
		rows, err = s.pool.Query(ctx, selectEvents+` WHERE stream = $1 ORDER BY version DESC`, stream)
	default:
		rows, err = s.pool.Query(ctx, selectEvents+` WHERE stream = $1 AND version <= $2 ORDER BY version DESC`, stream, from)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", stream, err)
	}
	return collectEvents(rows)
}

func (s *PostgresStore) ReadAll(ctx context.Context, after uint64, limit int) ([]RecordedEvent, error) {
	// LIMIT NULL reads to the end of the log
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx, selectEvents+` WHERE position > $1 ORDER BY position LIMIT $2`, int64(after), lim)
	if err != nil {
		return nil, fmt.Errorf("read all after %d: %w", after, err)
	}
	return collectEvents(rows)
}

func (s *PostgresStore) TruncateStream(ctx context.Context, stream string, before int64, expected ExpectedVersion) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin truncate: %w", err)
	}
	defer tx.Rollback(ctx)

	current, exists, err := streamVersion(ctx, tx, stream)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("truncate %s: %w", stream, ErrStreamNotFound)
	}
	if !expected.matches(current) {
		return fmt.Errorf("truncate %s: expected %s, stream at %d: %w", stream, expected, current, ErrWrongExpectedVersion)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM events WHERE stream = $1 AND version < $2`, stream, before); err != nil {
		return fmt.Errorf("truncate %s: %w", stream, err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE streams SET truncate_before = GREATEST(truncate_before, $2) WHERE name = $1
	`, stream, before)
	if err != nil {
		return fmt.Errorf("truncate %s: %w", stream, err)
	}
	return tx.Commit(ctx)
}

func collectEvents(rows pgx.Rows) ([]RecordedEvent, error) {
	defer rows.Close()

	var out []RecordedEvent
	for rows.Next() {
		var (
			e        RecordedEvent
			data, md []byte
			position int64
		)
		if err := rows.Scan(&e.ID, &e.Type, &data, &md, &e.Stream, &e.Version, &position, &e.Created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Data = data
		e.Position = uint64(position)
		if len(md) > 0 {
			if err := json.Unmarshal(md, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
