// Package scanner turns objects modified since the last watermark into
// size-bounded PENDING jobs.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"s3-etl-pipeline/internal/entity"
	"s3-etl-pipeline/internal/metrics"
)

// ErrDraftTooLarge means a batch lists more paths than one job record holds.
// Lowering the job size cap makes batches shorter.
var ErrDraftTooLarge = errors.New("job draft exceeds files column")

// JobStore is the part of the job store the scanner writes to.
type JobStore interface {
	Watermark(ctx context.Context) (time.Time, error)
	CreateJobs(ctx context.Context, drafts []entity.JobDraft) ([]int64, error)
}

type Lister interface {
	List(ctx context.Context, prefix string, since time.Time) ([]entity.ObjectInfo, error)
}

// Locker keeps two scan passes from running at the same time.
type Locker interface {
	TryLock(ctx context.Context) (token string, ok bool, err error)
	Unlock(ctx context.Context, token string) error
}

type Config struct {
	MaxJobBytes int64
}

type Result struct {
	RunID     string
	Watermark time.Time
	Prefixes  int
	Objects   int
	JobIDs    []int64
	// Skipped is set when another scan pass held the lock.
	Skipped bool
}

type Scanner struct {
	store  JobStore
	lister Lister
	locker Locker
	cfg    Config
	log    *zap.Logger
	now    func() time.Time
}

func New(store JobStore, lister Lister, locker Locker, cfg Config, log *zap.Logger) *Scanner {
	return &Scanner{
		store:  store,
		lister: lister,
		locker: locker,
		cfg:    cfg,
		log:    log.Named("scanner"),
		now:    time.Now,
	}
}

// WithClock replaces the wall clock, for tests.
func (s *Scanner) WithClock(now func() time.Time) *Scanner {
	s.now = now
	return s
}

// Run performs one scan pass. Nothing is written when no new object is found.
func (s *Scanner) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	log := s.log.With(zap.String("run_id", res.RunID))
	start := time.Now()

	token, ok, err := s.locker.TryLock(ctx)
	if err != nil {
		return res, fmt.Errorf("acquire scan lock: %w", err)
	}
	if !ok {
		log.Info("scan skipped, another pass holds the lock")
		res.Skipped = true
		return res, nil
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), token); err != nil {
			log.Warn("release scan lock", zap.Error(err))
		}
	}()

	watermark, err := s.store.Watermark(ctx)
	if err != nil {
		return res, fmt.Errorf("read watermark: %w", err)
	}
	res.Watermark = watermark
	metrics.Watermark.Set(float64(watermark.Unix()))

	prefixes := CandidatePrefixes(watermark, s.now())
	res.Prefixes = len(prefixes)
	log.Info("scan started",
		zap.Time("watermark", watermark),
		zap.Int("prefixes", len(prefixes)),
	)

	objects, err := ListNewObjects(ctx, s.lister, prefixes, watermark)
	if err != nil {
		return res, err
	}
	res.Objects = len(objects)
	metrics.ObjectsDiscovered.Add(float64(len(objects)))

	if len(objects) == 0 {
		log.Info("no new files to scan", zap.Int64("duration_ms", time.Since(start).Milliseconds()))
		return res, nil
	}

	drafts := BatchIntoJobs(objects, s.cfg.MaxJobBytes)
	if err := checkDrafts(drafts); err != nil {
		log.Error("job draft too large", zap.Error(err))
		return res, err
	}
	ids, err := s.store.CreateJobs(ctx, drafts)
	if err != nil {
		return res, fmt.Errorf("persist %d jobs: %w", len(drafts), err)
	}
	res.JobIDs = ids
	metrics.JobsCreated.Add(float64(len(ids)))

	log.Info("scan finished",
		zap.Int("objects", len(objects)),
		zap.Int("jobs", len(ids)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return res, nil
}

// checkDrafts rejects the pass up front instead of letting the insert fail
// on a files value that cannot fit.
func checkDrafts(drafts []entity.JobDraft) error {
	for i, d := range drafts {
		n := utf8.RuneCountInString(entity.JoinPaths(d.FilePaths))
		if n <= entity.MaxFilesChars {
			continue
		}
		return fmt.Errorf("%w: draft %d has %d files from %s to %s, %d chars > %d",
			ErrDraftTooLarge, i, len(d.FilePaths),
			d.FilePaths[0], d.FilePaths[len(d.FilePaths)-1],
			n, entity.MaxFilesChars)
	}
	return nil
}

// ListNewObjects lists every prefix with modified >= floor. Each prefix's
// objects are stably sorted by modification time and appended in prefix order;
// equal timestamps keep the store's listing order.
func ListNewObjects(ctx context.Context, lister Lister, prefixes []string, floor time.Time) ([]entity.ObjectInfo, error) {
	var all []entity.ObjectInfo
	for _, prefix := range prefixes {
		objs, err := lister.List(ctx, prefix, floor)
		if err != nil {
			return nil, fmt.Errorf("list prefix %s: %w", prefix, err)
		}
		sort.SliceStable(objs, func(i, j int) bool {
			return objs[i].ModifiedTime.Before(objs[j].ModifiedTime)
		})
		all = append(all, objs...)
	}
	return all, nil
}

// NopLocker always grants the lock. It is used when no Redis is configured.
type NopLocker struct{}

func (NopLocker) TryLock(context.Context) (string, bool, error) { return "", true, nil }
func (NopLocker) Unlock(context.Context, string) error          { return nil }
