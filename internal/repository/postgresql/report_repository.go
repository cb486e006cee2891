package postgresql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"s3-etl-pipeline/internal/entity"
)

var loanColumns = []string{
	"id",
	"serious_dlqin_2_yrs",
	"revolving_utilization_of_unsecured_lines",
	"age",
	"number_of_time_30_59_days_past_due_not_worse",
	"debt_ratio",
	"monthly_income",
	"number_of_open_credit_lines_and_loans",
	"number_of_time_90_days_late",
	"number_real_estate_loans_or_lines",
	"number_of_times_60_89_days_past_due_not_worse",
	"number_of_dependents",
}

type ReportRepository struct {
	pool *pgxpool.Pool
}

func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// WriteLoanApplications bulk-loads rows in one transaction. Rows are copied
// into a temp table and upserted by id, so a job that is loaded twice leaves
// the table as if it were loaded once.
func (r *ReportRepository) WriteLoanApplications(ctx context.Context, rows []entity.LoanApplication) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var written int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const staging = `
CREATE TEMP TABLE loan_applications_staging
(LIKE loan_applications INCLUDING DEFAULTS)
ON COMMIT DROP;
`
		if _, err := tx.Exec(ctx, staging); err != nil {
			return err
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"loan_applications_staging"},
			loanColumns,
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				return loanValues(rows[i]), nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy: %w", err)
		}

		// The staging copy may hold the same id twice when two files of a job
		// overlap; keep the last one so ON CONFLICT never touches a row twice.
		const upsert = `
INSERT INTO loan_applications
SELECT DISTINCT ON (id) * FROM loan_applications_staging ORDER BY id, ctid DESC
ON CONFLICT (id) DO UPDATE SET
	serious_dlqin_2_yrs = EXCLUDED.serious_dlqin_2_yrs,
	revolving_utilization_of_unsecured_lines = EXCLUDED.revolving_utilization_of_unsecured_lines,
	age = EXCLUDED.age,
	number_of_time_30_59_days_past_due_not_worse = EXCLUDED.number_of_time_30_59_days_past_due_not_worse,
	debt_ratio = EXCLUDED.debt_ratio,
	monthly_income = EXCLUDED.monthly_income,
	number_of_open_credit_lines_and_loans = EXCLUDED.number_of_open_credit_lines_and_loans,
	number_of_time_90_days_late = EXCLUDED.number_of_time_90_days_late,
	number_real_estate_loans_or_lines = EXCLUDED.number_real_estate_loans_or_lines,
	number_of_times_60_89_days_past_due_not_worse = EXCLUDED.number_of_times_60_89_days_past_due_not_worse,
	number_of_dependents = EXCLUDED.number_of_dependents;
`
		tag, err := tx.Exec(ctx, upsert)
		if err != nil {
			return fmt.Errorf("upsert: %w", err)
		}
		written = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("write loan_applications: %w", err)
	}
	return written, nil
}

func loanValues(a entity.LoanApplication) []any {
	return []any{
		a.ID,
		a.SeriousDlqin2yrs,
		a.RevolvingUtilizationOfUnsecuredLines,
		a.Age,
		a.NumberOfTime30To59DaysPastDue,
		a.DebtRatio,
		a.MonthlyIncome,
		a.NumberOfOpenCreditLinesAndLoans,
		a.NumberOfTimes90DaysLate,
		a.NumberRealEstateLoansOrLines,
		a.NumberOfTime60To89DaysPastDue,
		a.NumberOfDependents,
	}
}
