package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const transientSchema = `CREATE TABLE IF NOT EXISTS tp_transients (
	name       VARCHAR(191) PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tp_transients_expires_at ON tp_transients (expires_at);`

// SQLTransientRepository is the TransientRepository for a plain *sql.DB using
// postgres placeholders (pgx stdlib driver).
type SQLTransientRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLTransientRepository(db *sql.DB) *SQLTransientRepository {
	return &SQLTransientRepository{
		db:  db,
		now: time.Now,
	}
}

func (r *SQLTransientRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, transientSchema); err != nil {
		return fmt.Errorf("failed to create transient schema: %w", err)
	}
	return nil
}

func (r *SQLTransientRepository) Get(ctx context.Context, name string) ([]byte, bool, error) {
	var (
		value     []byte
		expiresAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM tp_transients WHERE name = $1`, name,
	).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		log.Error().
			Err(err).
			Str("name", name).
			Msg("Failed to read transient")
		return nil, false, err
	}

	if expiresAt.Valid && !expiresAt.Time.After(r.now()) {
		return nil, false, nil
	}
	return value, true, nil
}

func (r *SQLTransientRepository) Set(ctx context.Context, name string, value []byte, ttl time.Duration) error {
	now := r.now()

	var expiresAt sql.NullTime
	if exp := expiryFor(now, ttl); exp != nil {
		expiresAt = sql.NullTime{Time: *exp, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tp_transients (name, value, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`,
		name, value, expiresAt, now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store transient %q: %w", name, err)
	}
	return nil
}

func (r *SQLTransientRepository) Delete(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tp_transients WHERE name = $1`, name); err != nil {
		return fmt.Errorf("failed to delete transient %q: %w", name, err)
	}
	return nil
}

func (r *SQLTransientRepository) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tp_transients WHERE expires_at IS NOT NULL AND expires_at <= $1`, r.now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge transients: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	log.Debug().
		Int64("deleted", deleted).
		Msg("Purged expired transients")
	return deleted, nil
}
