package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"s3-etl-pipeline/internal/entity"
)

var ErrInvalidStatus = errors.New("invalid status")

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Read side of the job store plus the manual reset (implementation: postgresql.JobRepository)
type JobRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Job, error)
	List(ctx context.Context, status entity.JobStatus, limit int) ([]entity.Job, error)
	CountByStatus(ctx context.Context) (map[entity.JobStatus]int64, error)
	Watermark(ctx context.Context) (time.Time, error)
	ResetToPending(ctx context.Context, id int64) error
}

// JobService backs the operator API. The job table is the source of truth
// for pipeline status, so this is mostly a thin read layer.
type JobService struct {
	repo JobRepository
}

func NewJobService(repo JobRepository) *JobService {
	return &JobService{repo: repo}
}

type ListJobsRequest struct {
	Status entity.JobStatus
	Limit  int
}

func (s *JobService) ListJobs(ctx context.Context, req ListJobsRequest) ([]entity.Job, error) {
	if req.Status != "" && !req.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.repo.List(ctx, req.Status, limit)
}

func (s *JobService) GetJob(ctx context.Context, id int64) (*entity.Job, error) {
	return s.repo.GetByID(ctx, id)
}

// Stats returns a count for every status, including zero counts.
func (s *JobService) Stats(ctx context.Context) (map[entity.JobStatus]int64, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	out := map[entity.JobStatus]int64{
		entity.StatusNone:       0,
		entity.StatusPending:    0,
		entity.StatusProcessing: 0,
		entity.StatusLoaded:     0,
		entity.StatusFailed:     0,
	}
	for st, n := range counts {
		out[st] = n
	}
	return out, nil
}

func (s *JobService) Watermark(ctx context.Context) (time.Time, error) {
	return s.repo.Watermark(ctx)
}

// ResetStuckJob puts a job left in PROCESSING by a crashed loader back to
// PENDING so the next loader run picks it up.
func (s *JobService) ResetStuckJob(ctx context.Context, id int64) error {
	return s.repo.ResetToPending(ctx, id)
}
