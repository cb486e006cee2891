package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"s3-etl-pipeline/internal/entity"
)

type Claimer interface {
	ClaimNextPending(ctx context.Context) (*entity.Job, error)
}

type JobProcessor interface {
	Process(ctx context.Context, job *entity.Job) (entity.JobStatus, error)
}

// DrainResult summarizes one drain of the pending queue.
type DrainResult struct {
	RunID  string
	Loaded int
	Failed int
}

// Loader claims pending jobs one at a time and hands them to a processor
// until none are left.
type Loader struct {
	claimer   Claimer
	processor JobProcessor
	log       *zap.Logger
}

func NewLoader(claimer Claimer, processor JobProcessor, log *zap.Logger) *Loader {
	return &Loader{claimer: claimer, processor: processor, log: log.Named("loader")}
}

// Drain returns when the queue is empty, the context is done, or the job
// store fails. A job that fails to load does not stop the drain.
func (l *Loader) Drain(ctx context.Context) (DrainResult, error) {
	res := DrainResult{RunID: uuid.NewString()}
	log := l.log.With(zap.String("run_id", res.RunID))
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		job, err := l.claimer.ClaimNextPending(ctx)
		if err != nil {
			log.Error("claim next pending", zap.Error(err))
			return res, err
		}
		if job == nil {
			break
		}

		log.Info("job claimed",
			zap.Int64("job_id", job.ID),
			zap.Int64("size_bytes", job.TotalSizeBytes),
			zap.Time("latest_modified", job.LatestModifiedTime),
		)

		status, err := l.processor.Process(ctx, job)
		if err != nil {
			return res, err
		}
		switch status {
		case entity.StatusLoaded:
			res.Loaded++
		case entity.StatusFailed:
			res.Failed++
		}
	}

	log.Info("no more pending jobs",
		zap.Int("loaded", res.Loaded),
		zap.Int("failed", res.Failed),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return res, nil
}
