package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/pushpipe/internal/domain"
)

type pgProfilesRepository struct {
	pool *pgxpool.Pool
}

// NewPgProfilesRepository returns a ProfilesRepository backed by PostgreSQL.
func NewPgProfilesRepository(pool *pgxpool.Pool) ProfilesRepository {
	return &pgProfilesRepository{pool: pool}
}

func (r *pgProfilesRepository) GetByID(ctx context.Context, profileID string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.pool.QueryRow(ctx, `
		SELECT id, event_id, session_id, display_name
		FROM profiles WHERE id = $1`, profileID).
		Scan(&p.ID, &p.EventID, &p.SessionID, &p.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (r *pgProfilesRepository) DisplayNameBySession(ctx context.Context, eventID, sessionID string) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `
		SELECT display_name FROM profiles
		WHERE event_id = $1 AND session_id = $2`, eventID, sessionID).
		Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("display name lookup: %w", err)
	}
	return name, nil
}

func (r *pgProfilesRepository) IsMuted(ctx context.Context, eventID, muterSession, mutedSession string) (bool, error) {
	var muted bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM mutes
			WHERE event_id = $1 AND muter_session_id = $2 AND muted_session_id = $3
		)`, eventID, muterSession, mutedSession).Scan(&muted)
	if err != nil {
		return false, fmt.Errorf("mute lookup: %w", err)
	}
	return muted, nil
}
