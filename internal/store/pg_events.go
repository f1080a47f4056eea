package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/pushpipe/internal/domain"
)

type pgEventsRepository struct {
	pool *pgxpool.Pool
}

// NewPgEventsRepository returns an EventsRepository backed by PostgreSQL.
func NewPgEventsRepository(pool *pgxpool.Pool) EventsRepository {
	return &pgEventsRepository{pool: pool}
}

func (r *pgEventsRepository) Insert(ctx context.Context, e *domain.Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO events (id, country, created_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.Country, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *pgEventsRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("event probe: %w", err)
	}
	return exists, nil
}

type pgRoutesRepository struct {
	pool *pgxpool.Pool
}

// NewPgRoutesRepository returns a RoutesRepository backed by PostgreSQL.
func NewPgRoutesRepository(pool *pgxpool.Pool) RoutesRepository {
	return &pgRoutesRepository{pool: pool}
}

func (r *pgRoutesRepository) Put(ctx context.Context, eventID string, partition domain.PartitionID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_routes (event_id, partition, created_at)
		VALUES ($1,$2,NOW())
		ON CONFLICT (event_id) DO NOTHING`,
		eventID, partition)
	if err != nil {
		return fmt.Errorf("insert route: %w", err)
	}
	return nil
}

func (r *pgRoutesRepository) Lookup(ctx context.Context, eventID string) (domain.PartitionID, error) {
	var partition domain.PartitionID
	err := r.pool.QueryRow(ctx,
		`SELECT partition FROM event_routes WHERE event_id = $1`, eventID).Scan(&partition)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("route lookup: %w", err)
	}
	return partition, nil
}
