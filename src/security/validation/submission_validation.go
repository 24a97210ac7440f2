package validation

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/username/kabutax/backend/src/models"
)

// ErrValidationFailed wraps every rejection of a submission payload so
// handlers can map it to a 422 without inspecting messages.
var ErrValidationFailed = errors.New("validation failed")

var dateFormatRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const (
	DefaultMaxTransactions = 50
	DefaultMaxYears        = 5
)

// ValidateSubmission checks the payload before the engine runs: the engine
// itself only defends against overselling, everything else is rejected here.
func ValidateSubmission(input *models.SubmissionInput, maxYears, maxTransactions int) error {
	if maxYears <= 0 {
		maxYears = DefaultMaxYears
	}
	if maxTransactions <= 0 {
		maxTransactions = DefaultMaxTransactions
	}

	if !strings.Contains(input.Email, "@") {
		return fmt.Errorf("%w: a valid email address is required", ErrValidationFailed)
	}
	if strings.TrimSpace(input.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrValidationFailed)
	}

	switch input.Currency {
	case models.CurrencyUSD, models.CurrencyEUR, models.CurrencyJPY:
	default:
		return fmt.Errorf("%w: unsupported currency %q", ErrValidationFailed, input.Currency)
	}

	if len(input.Years) == 0 {
		return fmt.Errorf("%w: at least one tax year is required", ErrValidationFailed)
	}
	if len(input.Years) > maxYears {
		return fmt.Errorf("%w: at most %d tax years are allowed", ErrValidationFailed, maxYears)
	}

	if len(input.Transactions) == 0 {
		return fmt.Errorf("%w: at least one transaction is required", ErrValidationFailed)
	}
	if len(input.Transactions) > maxTransactions {
		return fmt.Errorf("%w: at most %d transactions are allowed", ErrValidationFailed, maxTransactions)
	}

	for i, tx := range input.Transactions {
		row := i + 1
		if !dateFormatRe.MatchString(tx.Date) {
			return fmt.Errorf("%w: transaction %d: date must be YYYY-MM-DD", ErrValidationFailed, row)
		}
		if tx.Activity != models.ActivityPurchased && tx.Activity != models.ActivitySold {
			return fmt.Errorf("%w: transaction %d: activity must be Purchased or Sold", ErrValidationFailed, row)
		}
		if !isFinite(tx.Quantity) || tx.Quantity == 0 {
			return fmt.Errorf("%w: transaction %d: quantity must be a finite non-zero value", ErrValidationFailed, row)
		}
		if tx.Activity == models.ActivityPurchased && tx.Quantity < 0 {
			return fmt.Errorf("%w: transaction %d: a purchase quantity must be positive", ErrValidationFailed, row)
		}
		if !isFinite(tx.Price) || tx.Price <= 0 {
			return fmt.Errorf("%w: transaction %d: price must be a positive finite value", ErrValidationFailed, row)
		}
		if !isFinite(tx.Commission) || tx.Commission < 0 {
			return fmt.Errorf("%w: transaction %d: commission must be a non-negative finite value", ErrValidationFailed, row)
		}
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
