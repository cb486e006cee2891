package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"s3-etl-pipeline/internal/entity"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStoreUnavailable  = errors.New("job store unavailable")
	// ErrNoSentinel means the job table is empty; the setup routine has not run.
	ErrNoSentinel = errors.New("job store has no sentinel job")
)

const jobColumns = `id, files, total_size_in_bytes, latest_file_modified_time, status, failure_msg, created_time, modified_time`

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

// Watermark returns max(latest_file_modified_time) over every job,
// including the sentinel and failed jobs.
func (r *JobRepository) Watermark(ctx context.Context) (time.Time, error) {
	const q = `SELECT max(latest_file_modified_time) FROM scanner_metadata;`

	var wm *time.Time
	if err := r.pool.QueryRow(ctx, q).Scan(&wm); err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if wm == nil {
		return time.Time{}, ErrNoSentinel
	}
	return wm.UTC(), nil
}

// CreateJobs inserts all drafts as PENDING in one transaction and returns
// their ids in draft order.
func (r *JobRepository) CreateJobs(ctx context.Context, drafts []entity.JobDraft) ([]int64, error) {
	if len(drafts) == 0 {
		return nil, nil
	}
	for i, d := range drafts {
		if len(d.FilePaths) == 0 {
			return nil, fmt.Errorf("draft %d has no files", i)
		}
	}

	const q = `
INSERT INTO scanner_metadata (files, latest_file_modified_time, total_size_in_bytes, status)
VALUES ($1, $2, $3, 'PENDING')
RETURNING id;
`
	ids := make([]int64, 0, len(drafts))
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, d := range drafts {
			batch.Queue(q, entity.JoinPaths(d.FilePaths), d.LatestModifiedTime, d.TotalSizeBytes)
		}

		br := tx.SendBatch(ctx, batch)
		for range drafts {
			var id int64
			if err := br.QueryRow().Scan(&id); err != nil {
				_ = br.Close()
				return err
			}
			ids = append(ids, id)
		}
		return br.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("create jobs: %w", err)
	}
	return ids, nil
}

// ClaimNextPending moves the oldest PENDING job to PROCESSING and returns it.
// It returns nil, nil when nothing is pending. The select and the update are
// one statement, so two callers can never claim the same row.
func (r *JobRepository) ClaimNextPending(ctx context.Context) (*entity.Job, error) {
	const q = `
UPDATE scanner_metadata
SET status = 'PROCESSING', modified_time = now()
WHERE status = 'PENDING' AND id = (
	SELECT id FROM scanner_metadata
	WHERE status = 'PENDING'
	ORDER BY latest_file_modified_time ASC, id ASC
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING ` + jobColumns + `;`

	job, err := scanJob(r.pool.QueryRow(ctx, q))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) MarkLoaded(ctx context.Context, id int64) error {
	return r.transition(ctx, id, entity.StatusProcessing, entity.StatusLoaded, nil)
}

func (r *JobRepository) MarkFailed(ctx context.Context, id int64, msg string) error {
	msg = entity.TruncateMessage(msg, entity.MaxFailureMessageBytes)
	return r.transition(ctx, id, entity.StatusProcessing, entity.StatusFailed, &msg)
}

// ResetToPending is the manual operator path for jobs stuck in PROCESSING
// after a loader crash. The pipeline never calls it on its own.
func (r *JobRepository) ResetToPending(ctx context.Context, id int64) error {
	return r.transition(ctx, id, entity.StatusProcessing, entity.StatusPending, nil)
}

func (r *JobRepository) transition(ctx context.Context, id int64, from, to entity.JobStatus, failureMsg *string) error {
	const q = `
UPDATE scanner_metadata
SET status = $3, failure_msg = $4, modified_time = now()
WHERE id = $1 AND status = $2;
`
	tag, err := r.pool.Exec(ctx, q, id, string(from), string(to), failureMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current string
	err = r.pool.QueryRow(ctx, `SELECT status FROM scanner_metadata WHERE id = $1;`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return fmt.Errorf("%w: job %d is %s, want %s -> %s", ErrInvalidTransition, id, current, from, to)
}

func (r *JobRepository) GetByID(ctx context.Context, id int64) (*entity.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM scanner_metadata WHERE id = $1;`

	job, err := scanJob(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// List returns jobs newest first. An empty status matches every job.
func (r *JobRepository) List(ctx context.Context, status entity.JobStatus, limit int) ([]entity.Job, error) {
	q := `
SELECT ` + jobColumns + ` FROM scanner_metadata
WHERE ($1::text = '' OR status = $1::text)
ORDER BY id DESC
LIMIT $2;`

	rows, err := r.pool.Query(ctx, q, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (r *JobRepository) CountByStatus(ctx context.Context) (map[entity.JobStatus]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, count(*) FROM scanner_metadata GROUP BY status;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[entity.JobStatus]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[entity.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	var (
		job        entity.Job
		files      string
		statusText string
	)
	if err := row.Scan(
		&job.ID,
		&files,
		&job.TotalSizeBytes,
		&job.LatestModifiedTime,
		&statusText,
		&job.FailureMessage, // NULL => nil
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	job.FilePaths = entity.SplitPaths(files)
	job.Status = entity.JobStatus(statusText)
	job.LatestModifiedTime = job.LatestModifiedTime.UTC()
	return &job, nil
}
