package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/pushpipe/internal/domain"
)

type pgTokensRepository struct {
	pool *pgxpool.Pool
}

// NewPgTokensRepository returns a TokensRepository backed by PostgreSQL.
func NewPgTokensRepository(pool *pgxpool.Pool) TokensRepository {
	return &pgTokensRepository{pool: pool}
}

// Register deactivates older active tokens for the (session, platform)
// pair and inserts the new one inside a single transaction, so a crash
// cannot leave two active tokens for the same pair.
func (r *pgTokensRepository) Register(ctx context.Context, t *domain.PushToken) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		UPDATE push_tokens
		SET is_active = FALSE, revoked_at = NOW(), revoked_reason = 'superseded', updated_at = NOW()
		WHERE session_id = $1 AND platform = $2 AND is_active`,
		t.SessionID, t.Platform)
	if err != nil {
		return fmt.Errorf("supersede tokens: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO push_tokens
			(id, session_id, platform, token, installation_id, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,TRUE,$6,$7)`,
		t.ID, t.SessionID, t.Platform, t.Token, nullable(t.InstallationID),
		t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *pgTokensRepository) ActiveBySession(ctx context.Context, sessionID string) ([]*domain.PushToken, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, platform, token, installation_id, is_active,
		       revoked_at, revoked_reason, created_at, updated_at
		FROM push_tokens
		WHERE session_id = $1 AND is_active
		ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select active tokens: %w", err)
	}
	defer rows.Close()

	var result []*domain.PushToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *pgTokensRepository) Revoke(ctx context.Context, token, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE push_tokens
		SET is_active = FALSE, revoked_at = NOW(), revoked_reason = $1, updated_at = NOW()
		WHERE token = $2 AND is_active`, reason, token)
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanToken(row pgx.Row) (*domain.PushToken, error) {
	var (
		t       domain.PushToken
		install *string
	)
	err := row.Scan(
		&t.ID, &t.SessionID, &t.Platform, &t.Token, &install, &t.IsActive,
		&t.RevokedAt, &t.RevokedReason, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if install != nil {
		t.InstallationID = *install
	}
	return &t, nil
}
