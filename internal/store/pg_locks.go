package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type pgLocksRepository struct {
	pool *pgxpool.Pool
}

// NewPgLocksRepository returns a LocksRepository backed by PostgreSQL.
func NewPgLocksRepository(pool *pgxpool.Pool) LocksRepository {
	return &pgLocksRepository{pool: pool}
}

// Claim is a single atomic statement: the INSERT wins only when no row
// exists for the key (or, with a TTL, when the existing row has expired).
// RowsAffected tells the caller whether it won; losing is not an error.
func (r *pgLocksRepository) Claim(ctx context.Context, key, processedBy string, ttl time.Duration) (bool, error) {
	var (
		tag interface{ RowsAffected() int64 }
		err error
	)

	if ttl > 0 {
		tag, err = r.pool.Exec(ctx, `
			INSERT INTO idempotency_locks (key, processed, processed_by, created_at)
			VALUES ($1, TRUE, $2, NOW())
			ON CONFLICT (key) DO UPDATE
			SET processed_by = EXCLUDED.processed_by, created_at = NOW()
			WHERE idempotency_locks.created_at < NOW() - $3::interval`,
			key, processedBy, ttl)
	} else {
		tag, err = r.pool.Exec(ctx, `
			INSERT INTO idempotency_locks (key, processed, processed_by, created_at)
			VALUES ($1, TRUE, $2, NOW())
			ON CONFLICT (key) DO NOTHING`,
			key, processedBy)
	}
	if err != nil {
		return false, fmt.Errorf("claim lock: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
