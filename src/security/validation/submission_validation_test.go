package validation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/kabutax/backend/src/models"
)

func validInput() *models.SubmissionInput {
	return &models.SubmissionInput{
		Email:    "filer@example.com",
		Currency: models.CurrencyUSD,
		Symbol:   "VT",
		Years:    []int{2024},
		Transactions: []models.TransactionInput{
			{Date: "2024-01-10", Activity: models.ActivityPurchased, Quantity: 100, Price: 150, Commission: 10},
			{Date: "2024-06-15", Activity: models.ActivitySold, Quantity: -100, Price: 180, Commission: 5},
		},
	}
}

func TestValidateSubmissionAcceptsWellFormedPayload(t *testing.T) {
	require.NoError(t, ValidateSubmission(validInput(), DefaultMaxYears, DefaultMaxTransactions))
}

func TestValidateSubmissionRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *models.SubmissionInput)
		message string
	}{
		{
			name:    "missing email",
			mutate:  func(in *models.SubmissionInput) { in.Email = "not-an-address" },
			message: "valid email address",
		},
		{
			name:    "blank symbol",
			mutate:  func(in *models.SubmissionInput) { in.Symbol = "   " },
			message: "symbol is required",
		},
		{
			name:    "unsupported currency",
			mutate:  func(in *models.SubmissionInput) { in.Currency = "GBP" },
			message: "unsupported currency",
		},
		{
			name:    "no years",
			mutate:  func(in *models.SubmissionInput) { in.Years = nil },
			message: "at least one tax year",
		},
		{
			name:    "too many years",
			mutate:  func(in *models.SubmissionInput) { in.Years = []int{2020, 2021, 2022, 2023, 2024, 2025} },
			message: "at most 5 tax years",
		},
		{
			name:    "no transactions",
			mutate:  func(in *models.SubmissionInput) { in.Transactions = nil },
			message: "at least one transaction",
		},
		{
			name: "malformed date",
			mutate: func(in *models.SubmissionInput) {
				in.Transactions[0].Date = "10/01/2024"
			},
			message: "transaction 1: date must be YYYY-MM-DD",
		},
		{
			name: "unknown activity",
			mutate: func(in *models.SubmissionInput) {
				in.Transactions[1].Activity = "Transferred"
			},
			message: "transaction 2: activity",
		},
		{
			name: "zero quantity",
			mutate: func(in *models.SubmissionInput) {
				in.Transactions[0].Quantity = 0
			},
			message: "transaction 1: quantity",
		},
		{
			name: "NaN quantity",
			mutate: func(in *models.SubmissionInput) {
				in.Transactions[0].Quantity = math.NaN()
			},
			message: "transaction 1: quantity",
		},
		{
			name: "negative purchase quantity",
			mutate: func(in *models.SubmissionInput) {
				in.Transactions[0].Quantity = -100
			},
			message: "purchase quantity must be positive",
		},
		{
			name: "non-positive price",
			mutate: func(in *models.SubmissionInput) {
				in.Transactions[1].Price = 0
			},
			message: "transaction 2: price",
		},
		{
			name: "infinite price",
			mutate: func(in *models.SubmissionInput) {
				in.Transactions[0].Price = math.Inf(1)
			},
			message: "transaction 1: price",
		},
		{
			name: "negative commission",
			mutate: func(in *models.SubmissionInput) {
				in.Transactions[1].Commission = -1
			},
			message: "transaction 2: commission",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(in)
			err := ValidateSubmission(in, DefaultMaxYears, DefaultMaxTransactions)
			require.ErrorIs(t, err, ErrValidationFailed)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestValidateSubmissionAllowsNegativeSoldQuantity(t *testing.T) {
	in := validInput()
	in.Transactions[1].Quantity = -50
	require.NoError(t, ValidateSubmission(in, DefaultMaxYears, DefaultMaxTransactions))
}

func TestValidateSubmissionHonorsConfiguredLimits(t *testing.T) {
	in := validInput()
	in.Years = []int{2023, 2024}
	err := ValidateSubmission(in, 1, DefaultMaxTransactions)
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), "at most 1 tax years")

	in = validInput()
	err = ValidateSubmission(in, DefaultMaxYears, 1)
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), "at most 1 transactions")
}

func TestValidateSubmissionZeroLimitsFallBackToDefaults(t *testing.T) {
	require.NoError(t, ValidateSubmission(validInput(), 0, 0))
}
