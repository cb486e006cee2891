package worker

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"s3-etl-pipeline/internal/entity"
	"s3-etl-pipeline/internal/metrics"
	"s3-etl-pipeline/internal/objectstore"
)

type RowSource interface {
	StreamRows(ctx context.Context, location string) (*objectstore.RowReader, error)
}

type ReportWriter interface {
	WriteLoanApplications(ctx context.Context, rows []entity.LoanApplication) (int64, error)
}

// JobFinalizer moves a PROCESSING job to a terminal status.
type JobFinalizer interface {
	MarkLoaded(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, msg string) error
}

type Processor struct {
	source      RowSource
	writer      ReportWriter
	jobs        JobFinalizer
	concurrency int
	log         *zap.Logger
}

// NewProcessor streams up to concurrency files of one job at a time.
func NewProcessor(source RowSource, writer ReportWriter, jobs JobFinalizer, concurrency int, log *zap.Logger) *Processor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Processor{
		source:      source,
		writer:      writer,
		jobs:        jobs,
		concurrency: concurrency,
		log:         log.Named("loader"),
	}
}

// Process loads every file of a claimed job and finalizes it. Read and write
// failures end up in the job record as FAILED and are not returned; the
// returned error means the job store itself could not be updated.
//
// A job interrupted by ctx is left PROCESSING and ctx's error is returned,
// so an operator reset can put it back in the queue.
func (p *Processor) Process(ctx context.Context, job *entity.Job) (entity.JobStatus, error) {
	start := time.Now()
	log := p.log.With(zap.Int64("job_id", job.ID), zap.Int("files", len(job.FilePaths)))
	// MarkLoaded must land even if shutdown starts right after the write commits
	finalizeCtx := context.WithoutCancel(ctx)

	rows, skipped, err := p.collect(ctx, job.FilePaths)
	if err == nil {
		var written int64
		written, err = p.writer.WriteLoanApplications(ctx, rows)
		if err == nil {
			if err := p.jobs.MarkLoaded(finalizeCtx, job.ID); err != nil {
				log.Error("mark loaded", zap.Error(err))
				return "", err
			}
			metrics.LoaderJobs.WithLabelValues(string(entity.StatusLoaded)).Inc()
			metrics.RowsWritten.Add(float64(written))
			log.Info("job loaded",
				zap.String("status", string(entity.StatusLoaded)),
				zap.Int64("rows", written),
				zap.Int64("skipped_rows", skipped),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
			return entity.StatusLoaded, nil
		}
		err = fmt.Errorf("write reporting rows: %w", err)
	}

	if interrupted(ctx, err) {
		log.Warn("job interrupted, left processing",
			zap.String("status", string(entity.StatusProcessing)),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Error(err),
		)
		return entity.StatusProcessing, ctx.Err()
	}

	msg := entity.TruncateMessage(err.Error(), entity.MaxFailureMessageBytes)
	if markErr := p.jobs.MarkFailed(finalizeCtx, job.ID, msg); markErr != nil {
		log.Error("mark failed", zap.Error(markErr), zap.NamedError("cause", err))
		return "", markErr
	}
	metrics.LoaderJobs.WithLabelValues(string(entity.StatusFailed)).Inc()
	log.Warn("job failed",
		zap.String("status", string(entity.StatusFailed)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Error(err),
	)
	return entity.StatusFailed, nil
}

// interrupted reports whether ctx ended while the job was running. Drivers do
// not all wrap the cancellation cause, so any failure after that point is
// treated as an interruption rather than a verdict on the job.
func interrupted(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil
}

// collect streams all files and returns the transformed rows in file order.
// The first read error cancels the remaining streams.
func (p *Processor) collect(ctx context.Context, locations []string) ([]entity.LoanApplication, int64, error) {
	perFile := make([][]entity.LoanApplication, len(locations))
	var skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, loc := range locations {
		i, loc := i, loc
		g.Go(func() error {
			rows, n, err := p.readFile(gctx, loc)
			if err != nil {
				return fmt.Errorf("read %s: %w", loc, err)
			}
			perFile[i] = rows
			skipped.Add(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	total := 0
	for _, rows := range perFile {
		total += len(rows)
	}
	out := make([]entity.LoanApplication, 0, total)
	for _, rows := range perFile {
		out = append(out, rows...)
	}
	return out, skipped.Load(), nil
}

func (p *Processor) readFile(ctx context.Context, location string) ([]entity.LoanApplication, int64, error) {
	reader, err := p.source.StreamRows(ctx, location)
	if err != nil {
		return nil, 0, err
	}
	defer reader.Close()

	var (
		rows    []entity.LoanApplication
		skipped int64
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			skipped++
			metrics.RowsSkipped.Inc()
			p.log.Warn("skip malformed line", zap.String("location", location), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, 0, err
		}

		row, err := TransformLoanRow(rec)
		if err != nil {
			skipped++
			metrics.RowsSkipped.Inc()
			p.log.Warn("skip row", zap.String("location", location), zap.Error(err))
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}
