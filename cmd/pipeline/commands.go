package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "s3-etl-pipeline/docs"
	"s3-etl-pipeline/internal/config"
	"s3-etl-pipeline/internal/objectstore"
	miniostore "s3-etl-pipeline/internal/objectstore/minio"
	s3store "s3-etl-pipeline/internal/objectstore/s3"
	"s3-etl-pipeline/internal/repository/postgresql"
	"s3-etl-pipeline/internal/scanner"
	"s3-etl-pipeline/internal/service"
	httptransport "s3-etl-pipeline/internal/transport/http"
	"s3-etl-pipeline/internal/worker"
)

type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func rootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "pipeline",
		Short:        "Incremental S3 to Postgres loader",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogDevelopment)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger

			logger.Info("config",
				zap.String("command", cmd.Name()),
				zap.String("metadata_dsn", config.RedactDSN(cfg.MetadataDSN)),
				zap.String("reporting_dsn", config.RedactDSN(cfg.ReportingDSN)),
				zap.String("object_store", cfg.ObjectStoreDriver),
				zap.String("bucket", cfg.Bucket),
				zap.Int64("job_size_bytes", cfg.JobSizeBytes),
			)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.AddCommand(a.setupCommand(), a.scanCommand(), a.loadCommand(), a.serveCommand())
	return root
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (a *app) setupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create tables, seed the sentinel job and check the bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			meta, err := postgresql.NewPool(ctx, a.cfg.MetadataDSN)
			if err != nil {
				return fmt.Errorf("metadata db: %w", err)
			}
			defer meta.Close()

			seeded, err := postgresql.SetupJobStore(ctx, meta)
			if err != nil {
				return err
			}
			a.logger.Info("job store ready", zap.Bool("sentinel_seeded", seeded))

			reporting, err := postgresql.NewPool(ctx, a.cfg.ReportingDSN)
			if err != nil {
				return fmt.Errorf("reporting db: %w", err)
			}
			defer reporting.Close()

			if err := postgresql.SetupReportingStore(ctx, reporting); err != nil {
				return err
			}
			a.logger.Info("reporting store ready")

			gw, err := a.openGateway(ctx)
			if err != nil {
				return err
			}
			ok, err := gw.BucketExists(ctx)
			if err != nil {
				return fmt.Errorf("check bucket %s: %w", a.cfg.Bucket, err)
			}
			if !ok {
				return fmt.Errorf("bucket %s does not exist", a.cfg.Bucket)
			}
			a.logger.Info("bucket found", zap.String("bucket", a.cfg.Bucket))
			return nil
		},
	}
}

func (a *app) scanCommand() *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Enqueue jobs for objects modified since the watermark",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pool, err := postgresql.NewPool(ctx, a.cfg.MetadataDSN)
			if err != nil {
				return fmt.Errorf("metadata db: %w", err)
			}
			defer pool.Close()

			gw, err := a.openGateway(ctx)
			if err != nil {
				return err
			}

			locker, closeLocker, err := a.openLocker(ctx)
			if err != nil {
				return err
			}
			defer closeLocker()

			s := scanner.New(
				postgresql.NewJobRepository(pool),
				gw,
				locker,
				scanner.Config{MaxJobBytes: a.cfg.JobSizeBytes},
				a.logger,
			)
			return a.repeat(ctx, every, func(ctx context.Context) error {
				_, err := s.Run(ctx)
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "repeat the scan at this interval (0 runs once)")
	return cmd
}

func (a *app) loadCommand() *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Drain pending jobs into the reporting store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			meta, err := postgresql.NewPool(ctx, a.cfg.MetadataDSN)
			if err != nil {
				return fmt.Errorf("metadata db: %w", err)
			}
			defer meta.Close()

			reporting := meta
			if a.cfg.ReportingDSN != a.cfg.MetadataDSN {
				reporting, err = postgresql.NewPool(ctx, a.cfg.ReportingDSN)
				if err != nil {
					return fmt.Errorf("reporting db: %w", err)
				}
				defer reporting.Close()
			}

			gw, err := a.openGateway(ctx)
			if err != nil {
				return err
			}

			jobs := postgresql.NewJobRepository(meta)
			processor := worker.NewProcessor(
				gw,
				postgresql.NewReportRepository(reporting),
				jobs,
				a.cfg.FileConcurrency,
				a.logger,
			)
			loader := worker.NewLoader(jobs, processor, a.logger)

			return a.repeat(ctx, every, func(ctx context.Context) error {
				_, err := loader.Drain(ctx)
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "repeat the drain at this interval (0 runs once)")
	return cmd
}

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the operator API, metrics and swagger docs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pool, err := postgresql.NewPool(ctx, a.cfg.MetadataDSN)
			if err != nil {
				return fmt.Errorf("metadata db: %w", err)
			}
			defer pool.Close()

			svc := service.NewJobService(postgresql.NewJobRepository(pool))
			srv := &http.Server{
				Addr:              a.cfg.HTTPAddr,
				Handler:           httptransport.Routes(httptransport.NewHandler(svc, a.logger)),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("http listening", zap.String("addr", a.cfg.HTTPAddr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			a.logger.Info("http stopped")
			return nil
		},
	}
}

// repeat runs fn once when every is zero; otherwise until ctx is done.
func (a *app) repeat(ctx context.Context, every time.Duration, fn func(context.Context) error) error {
	if every <= 0 {
		return fn(ctx)
	}
	worker.Every(ctx, every, a.logger, fn)
	return nil
}

func (a *app) openGateway(ctx context.Context) (objectstore.Gateway, error) {
	if a.cfg.ObjectStoreDriver == config.DriverMinio {
		gw, err := miniostore.New(miniostore.Config{
			Endpoint:  a.cfg.Endpoint,
			Bucket:    a.cfg.Bucket,
			AccessKey: a.cfg.AccessKey,
			SecretKey: a.cfg.SecretKey,
			Region:    a.cfg.Region,
			UseSSL:    a.cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return gw, nil
	}

	gw, err := s3store.New(ctx, s3store.Config{
		Bucket:    a.cfg.Bucket,
		Region:    a.cfg.Region,
		AccessKey: a.cfg.AccessKey,
		SecretKey: a.cfg.SecretKey,
		Endpoint:  a.cfg.Endpoint,
	})
	if err != nil {
		return nil, err
	}
	return gw, nil
}

// openLocker returns the Redis lock when REDIS_ADDR is set, else a no-op.
func (a *app) openLocker(ctx context.Context) (scanner.Locker, func(), error) {
	if a.cfg.RedisAddr == "" {
		return scanner.NopLocker{}, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	lock := service.NewRedisRunLock(rdb, a.cfg.RedisLockKey, a.cfg.RedisLockTTL)
	return lock, func() { _ = rdb.Close() }, nil
}
