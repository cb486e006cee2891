package worker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"s3-etl-pipeline/internal/entity"
)

// ErrInvalidRow marks a record that cannot become a reporting row at all.
// The loader drops such rows and keeps going.
var ErrInvalidRow = errors.New("invalid row")

// Source column names. The id column has no header.
const (
	colID                   = ""
	colSeriousDlqin2yrs     = "SeriousDlqin2yrs"
	colRevolvingUtilization = "RevolvingUtilizationOfUnsecuredLines"
	colAge                  = "age"
	colPastDue30To59        = "NumberOfTime30-59DaysPastDueNotWorse"
	colDebtRatio            = "DebtRatio"
	colMonthlyIncome        = "MonthlyIncome"
	colOpenCreditLines      = "NumberOfOpenCreditLinesAndLoans"
	colLate90Days           = "NumberOfTimes90DaysLate"
	colRealEstateLoans      = "NumberRealEstateLoansOrLines"
	colPastDue60To89        = "NumberOfTime60-89DaysPastDueNotWorse"
	colDependents           = "NumberOfDependents"
)

// TransformLoanRow maps one CSV record onto a loan application. Only the id
// is mandatory; any other field that is missing or does not parse (NA, empty,
// wrong type) is stored as NULL.
func TransformLoanRow(row map[string]string) (entity.LoanApplication, error) {
	raw, ok := row[colID]
	if !ok {
		return entity.LoanApplication{}, fmt.Errorf("%w: no id column", ErrInvalidRow)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return entity.LoanApplication{}, fmt.Errorf("%w: id in wrong format %q", ErrInvalidRow, raw)
	}

	return entity.LoanApplication{
		ID:                                   id,
		SeriousDlqin2yrs:                     intOrNull(row, colSeriousDlqin2yrs),
		RevolvingUtilizationOfUnsecuredLines: floatOrNull(row, colRevolvingUtilization),
		Age:                                  intOrNull(row, colAge),
		NumberOfTime30To59DaysPastDue:        intOrNull(row, colPastDue30To59),
		DebtRatio:                            floatOrNull(row, colDebtRatio),
		MonthlyIncome:                        intOrNull(row, colMonthlyIncome),
		NumberOfOpenCreditLinesAndLoans:      intOrNull(row, colOpenCreditLines),
		NumberOfTimes90DaysLate:              intOrNull(row, colLate90Days),
		NumberRealEstateLoansOrLines:         intOrNull(row, colRealEstateLoans),
		NumberOfTime60To89DaysPastDue:        intOrNull(row, colPastDue60To89),
		NumberOfDependents:                   intOrNull(row, colDependents),
	}, nil
}

func intOrNull(row map[string]string, col string) *int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(row[col]), 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func floatOrNull(row map[string]string, col string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
	if err != nil {
		return nil
	}
	return &v
}
