package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/pushpipe/internal/domain"
)

type pgJobsRepository struct {
	pool *pgxpool.Pool
}

// NewPgJobsRepository returns a JobsRepository backed by PostgreSQL.
func NewPgJobsRepository(pool *pgxpool.Pool) JobsRepository {
	return &pgJobsRepository{pool: pool}
}

const jobColumns = `id, type, subject_session_id, actor_session_id, event_id,
	aggregation_key, title, body, data, attempts, status, skip_push,
	last_error, status_reason, metadata, created_at, updated_at`

func (r *pgJobsRepository) Insert(ctx context.Context, j *domain.NotificationJob) error {
	data, err := json.Marshal(j.Payload.Data)
	if err != nil {
		return fmt.Errorf("marshal payload data: %w", err)
	}
	meta, err := json.Marshal(j.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notification_jobs
			(id, type, subject_session_id, actor_session_id, event_id,
			 aggregation_key, title, body, data, attempts, status, skip_push,
			 metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		j.ID, j.Type, j.SubjectSessionID, nullable(j.ActorSessionID), j.EventID,
		j.AggregationKey, j.Payload.Title, j.Payload.Body, data, j.Attempts,
		j.Status, j.SkipPush, meta, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *pgJobsRepository) HasRecentDuplicate(ctx context.Context, j *domain.NotificationJob, window time.Duration) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notification_jobs
			WHERE aggregation_key = $1
			  AND subject_session_id = $2
			  AND event_id = $3
			  AND type = $4
			  AND created_at > NOW() - $5::interval
		)`,
		j.AggregationKey, j.SubjectSessionID, j.EventID, j.Type, window,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dedup probe: %w", err)
	}
	return exists, nil
}

func (r *pgJobsRepository) OldestQueued(ctx context.Context, limit int) ([]*domain.NotificationJob, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM notification_jobs
		WHERE status = 'queued'
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select queued jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *pgJobsRepository) GetByID(ctx context.Context, id string) (*domain.NotificationJob, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM notification_jobs WHERE id = $1`, id)

	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return j, err
}

func (r *pgJobsRepository) List(ctx context.Context, f domain.JobFilter) ([]*domain.NotificationJob, int, error) {
	where, args := buildJobWhere(f)
	offset := (f.Page - 1) * f.Limit

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM notification_jobs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	args = append(args, f.Limit, offset)
	query := fmt.Sprintf(`
		SELECT `+jobColumns+`
		FROM notification_jobs%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	return jobs, total, err
}

func (r *pgJobsRepository) MarkSent(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET status = 'sent', last_error = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	return err
}

func (r *pgJobsRepository) MarkSkipped(ctx context.Context, id, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET status = 'skipped', status_reason = $1, updated_at = NOW()
		WHERE id = $2`, reason, id)
	return err
}

func (r *pgJobsRepository) MarkPermanentFailure(ctx context.Context, id, reason, lastError string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET status = 'permanent-failure', status_reason = $1, last_error = $2, updated_at = NOW()
		WHERE id = $3`, reason, nullable(lastError), id)
	return err
}

func (r *pgJobsRepository) RecordFailure(ctx context.Context, id, errMsg string) (int, error) {
	var attempts int
	err := r.pool.QueryRow(ctx, `
		UPDATE notification_jobs
		SET attempts = attempts + 1, last_error = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING attempts`, errMsg, id).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("record failure: %w", err)
	}
	return attempts, nil
}

// ---- helpers ----

func scanJob(row pgx.Row) (*domain.NotificationJob, error) {
	var (
		j     domain.NotificationJob
		actor *string
		data  []byte
		meta  []byte
	)
	err := row.Scan(
		&j.ID, &j.Type, &j.SubjectSessionID, &actor, &j.EventID,
		&j.AggregationKey, &j.Payload.Title, &j.Payload.Body, &data,
		&j.Attempts, &j.Status, &j.SkipPush,
		&j.LastError, &j.StatusReason, &meta,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if actor != nil {
		j.ActorSessionID = *actor
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &j.Payload.Data); err != nil {
			return nil, fmt.Errorf("unmarshal payload data: %w", err)
		}
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &j.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &j, nil
}

func scanJobs(rows pgx.Rows) ([]*domain.NotificationJob, error) {
	var result []*domain.NotificationJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, j)
	}
	return result, rows.Err()
}

func buildJobWhere(f domain.JobFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.Type != nil {
		add("type = $%d", *f.Type)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
