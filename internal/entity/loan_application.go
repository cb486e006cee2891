package entity

// LoanApplication is one row of the loan_applications reporting table.
// Nil fields are stored as NULL.
type LoanApplication struct {
	ID                                   int64
	SeriousDlqin2yrs                     *int64
	RevolvingUtilizationOfUnsecuredLines *float64
	Age                                  *int64
	NumberOfTime30To59DaysPastDue        *int64
	DebtRatio                            *float64
	MonthlyIncome                        *int64
	NumberOfOpenCreditLinesAndLoans      *int64
	NumberOfTimes90DaysLate              *int64
	NumberRealEstateLoansOrLines         *int64
	NumberOfTime60To89DaysPastDue        *int64
	NumberOfDependents                   *int64
}
