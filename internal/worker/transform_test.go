package worker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func fullRow() map[string]string {
	return map[string]string{
		"":                                     "17",
		"SeriousDlqin2yrs":                     "1",
		"RevolvingUtilizationOfUnsecuredLines": "0.766126609",
		"age":                                  "45",
		"NumberOfTime30-59DaysPastDueNotWorse": "2",
		"DebtRatio":                            "0.802982129",
		"MonthlyIncome":                        "9120",
		"NumberOfOpenCreditLinesAndLoans":      "13",
		"NumberOfTimes90DaysLate":              "0",
		"NumberRealEstateLoansOrLines":         "6",
		"NumberOfTime60-89DaysPastDueNotWorse": "0",
		"NumberOfDependents":                   "2",
	}
}

func TestTransformLoanRow_AllFields(t *testing.T) {
	got, err := TransformLoanRow(fullRow())
	require.NoError(t, err)

	require.Equal(t, int64(17), got.ID)
	require.Equal(t, int64(1), *got.SeriousDlqin2yrs)
	require.InDelta(t, 0.766126609, *got.RevolvingUtilizationOfUnsecuredLines, 1e-12)
	require.Equal(t, int64(45), *got.Age)
	require.Equal(t, int64(2), *got.NumberOfTime30To59DaysPastDue)
	require.InDelta(t, 0.802982129, *got.DebtRatio, 1e-12)
	require.Equal(t, int64(9120), *got.MonthlyIncome)
	require.Equal(t, int64(13), *got.NumberOfOpenCreditLinesAndLoans)
	require.Equal(t, int64(0), *got.NumberOfTimes90DaysLate)
	require.Equal(t, int64(6), *got.NumberRealEstateLoansOrLines)
	require.Equal(t, int64(0), *got.NumberOfTime60To89DaysPastDue)
	require.Equal(t, int64(2), *got.NumberOfDependents)
}

func TestTransformLoanRow_UnparsableFieldsBecomeNull(t *testing.T) {
	row := fullRow()
	row["MonthlyIncome"] = "NA"
	row["NumberOfDependents"] = ""
	row["age"] = "45.5"
	delete(row, "DebtRatio")

	got, err := TransformLoanRow(row)
	require.NoError(t, err)
	require.Nil(t, got.MonthlyIncome)
	require.Nil(t, got.NumberOfDependents)
	require.Nil(t, got.Age)
	require.Nil(t, got.DebtRatio)
	require.NotNil(t, got.SeriousDlqin2yrs)
}

func TestTransformLoanRow_BadID(t *testing.T) {
	for _, id := range []string{"", "NA", "1.5", "abc"} {
		row := fullRow()
		row[""] = id
		_, err := TransformLoanRow(row)
		require.True(t, errors.Is(err, ErrInvalidRow), "id %q: got %v", id, err)
	}

	row := fullRow()
	delete(row, "")
	_, err := TransformLoanRow(row)
	require.ErrorIs(t, err, ErrInvalidRow)
}
