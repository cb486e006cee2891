package postgresql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"s3-etl-pipeline/internal/entity"
)

const jobsDDL = `
CREATE TABLE IF NOT EXISTS scanner_metadata (
	id                        BIGSERIAL PRIMARY KEY,
	files                     VARCHAR(65536) NOT NULL,
	latest_file_modified_time TIMESTAMPTZ NOT NULL,
	total_size_in_bytes       BIGINT NOT NULL,
	created_time              TIMESTAMPTZ NOT NULL DEFAULT now(),
	modified_time             TIMESTAMPTZ NOT NULL DEFAULT now(),
	status                    VARCHAR(16) NOT NULL DEFAULT 'PENDING'
		CHECK (status IN ('NONE', 'PENDING', 'PROCESSING', 'LOADED', 'FAILED')),
	failure_msg               VARCHAR(10240)
);
CREATE INDEX IF NOT EXISTS scanner_metadata_pending_idx
	ON scanner_metadata (latest_file_modified_time, id)
	WHERE status = 'PENDING';
`

const reportingDDL = `
CREATE TABLE IF NOT EXISTS loan_applications (
	id                                            BIGINT PRIMARY KEY,
	serious_dlqin_2_yrs                           BIGINT,
	revolving_utilization_of_unsecured_lines      DOUBLE PRECISION,
	age                                           BIGINT,
	number_of_time_30_59_days_past_due_not_worse  BIGINT,
	debt_ratio                                    DOUBLE PRECISION,
	monthly_income                                BIGINT,
	number_of_open_credit_lines_and_loans         BIGINT,
	number_of_time_90_days_late                   BIGINT,
	number_real_estate_loans_or_lines             BIGINT,
	number_of_times_60_89_days_past_due_not_worse BIGINT,
	number_of_dependents                          BIGINT
);
`

// SetupJobStore creates the job table if absent and seeds the sentinel job.
// It is safe to run repeatedly: the sentinel is only inserted into an empty
// table, under a table lock so concurrent setups cannot both insert it.
func SetupJobStore(ctx context.Context, pool *pgxpool.Pool) (seeded bool, err error) {
	if _, err := pool.Exec(ctx, jobsDDL); err != nil {
		return false, fmt.Errorf("create scanner_metadata: %w", err)
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `LOCK TABLE scanner_metadata IN SHARE ROW EXCLUSIVE MODE;`); err != nil {
			return err
		}
		const q = `
INSERT INTO scanner_metadata (files, latest_file_modified_time, total_size_in_bytes, status)
SELECT $1::varchar, $2::timestamptz, 0, 'LOADED'
WHERE NOT EXISTS (SELECT 1 FROM scanner_metadata);
`
		tag, err := tx.Exec(ctx, q, entity.SentinelFiles, entity.EpochFloor)
		if err != nil {
			return err
		}
		seeded = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seed sentinel job: %w", err)
	}
	return seeded, nil
}

func SetupReportingStore(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, reportingDDL); err != nil {
		return fmt.Errorf("create loan_applications: %w", err)
	}
	return nil
}
