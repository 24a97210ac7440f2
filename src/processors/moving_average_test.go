package processors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/kabutax/backend/src/models"
)

// fixedRateSource serves hard-coded tables so calculations are deterministic.
type fixedRateSource struct {
	tables map[string]FxTable
}

func (s fixedRateSource) Table(currency string) (FxTable, error) {
	if currency == models.CurrencyJPY {
		return FxTable{}, nil
	}
	table, ok := s.tables[currency]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRateDataUnavailable, currency)
	}
	return table, nil
}

func usdRates() fixedRateSource {
	return fixedRateSource{tables: map[string]FxTable{
		models.CurrencyUSD: {
			quote("2024-06-17", "158.50", "156.50"),
			quote("2024-06-16", "158.00", "156.00"),
			quote("2024-06-15", "157.50", "155.50"),
			quote("2024-06-14", "157.00", "155.00"),
			quote("2024-01-11", "145.80", "143.80"),
			quote("2024-01-10", "145.50", "143.50"),
		},
	}}
}

func TestCalculateBuyThenSellUSD(t *testing.T) {
	calc := NewMovingAverageCalculator(usdRates(), DefaultFxLookbackDays)

	result, err := calc.Calculate(models.SubmissionInput{
		Email:    "filer@example.com",
		Currency: models.CurrencyUSD,
		Symbol:   "TEST",
		Years:    []int{2024},
		Transactions: []models.TransactionInput{
			{Date: "2024-01-10", Activity: models.ActivityPurchased, Quantity: 100, Price: 150, Commission: 10},
			{Date: "2024-06-15", Activity: models.ActivitySold, Quantity: -100, Price: 180, Commission: 5},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.CurrencyUSD, result.Currency)
	assert.Equal(t, "TEST", result.Symbol)
	require.Len(t, result.Summaries, 1)

	// Acquisition: floor((100*150 + 10) * 145.50) = 2,183,955
	// Unit cost:   ceil(2,183,955 / 100)          = 21,840
	// Proceeds:    floor(100*180 * 155.50)        = 2,799,000
	// Commission:  floor(5 * 157.50)              = 787
	// Realized:    2,799,000 - 2,184,000 - 787    = 614,213
	summary := result.Summaries[0]
	assert.Equal(t, 2024, summary.Year)
	assert.Equal(t, float64(100), summary.SellQuantity)
	assert.Equal(t, int64(2_799_000), summary.ProceedsJPY)
	assert.Equal(t, int64(614_213), summary.RealizedGainJPY)

	assert.Empty(t, result.FinalHoldings)
}

func TestCalculateBlendedCostAndPartialSale(t *testing.T) {
	rates := fixedRateSource{tables: map[string]FxTable{
		models.CurrencyEUR: {
			quote("2024-06-15", "170.50", "168.50"),
			quote("2024-01-10", "158.50", "156.50"),
		},
	}}
	calc := NewMovingAverageCalculator(rates, DefaultFxLookbackDays)

	result, err := calc.Calculate(models.SubmissionInput{
		Currency: models.CurrencyEUR,
		Symbol:   "TEST",
		Years:    []int{2024},
		Transactions: []models.TransactionInput{
			{Date: "2024-01-10", Activity: models.ActivityPurchased, Quantity: 50, Price: 100, Commission: 5},
			{Date: "2024-01-10", Activity: models.ActivityPurchased, Quantity: 50, Price: 120, Commission: 5},
			{Date: "2024-06-15", Activity: models.ActivitySold, Quantity: -75, Price: 150, Commission: 10},
		},
	})
	require.NoError(t, err)

	// acq1 = floor(5005 * 158.50)  =   793,292 -> unit ceil = 15,866
	// acq2 = floor(6005 * 158.50)  =   951,792 -> basis 1,745,084, unit ceil = 17,451
	// gross = floor(75*150*168.50) = 1,895,625
	// fee   = floor(10*170.50)     =     1,705
	// gain  = 1,895,625 - 17,451*75 - 1,705 = 585,095
	require.Len(t, result.Summaries, 1)
	summary := result.Summaries[0]
	assert.Equal(t, float64(75), summary.SellQuantity)
	assert.Equal(t, int64(1_895_625), summary.ProceedsJPY)
	assert.Equal(t, int64(585_095), summary.RealizedGainJPY)

	// The first lot is consumed entirely, the second is split; the remainder
	// carries the current blended unit cost.
	require.Len(t, result.FinalHoldings, 1)
	lot := result.FinalHoldings[0]
	assert.Equal(t, "2024-01-10", lot.PurchaseDate)
	assert.Equal(t, float64(25), lot.Quantity)
	assert.Equal(t, int64(17_451), lot.UnitCostJPY)
}

func TestCalculateHomeCurrencyUsesUnitRates(t *testing.T) {
	calc := NewMovingAverageCalculator(fixedRateSource{}, DefaultFxLookbackDays)

	result, err := calc.Calculate(models.SubmissionInput{
		Currency: models.CurrencyJPY,
		Symbol:   "LOCAL",
		Years:    []int{2024},
		Transactions: []models.TransactionInput{
			{Date: "2024-01-10", Activity: models.ActivityPurchased, Quantity: 50, Price: 100},
			{Date: "2024-01-10", Activity: models.ActivityPurchased, Quantity: 50, Price: 120},
			{Date: "2024-03-01", Activity: models.ActivitySold, Quantity: 75, Price: 150},
		},
	})
	require.NoError(t, err)

	// Blended unit cost is (5000+6000)/100 = 110; gain = 11,250 - 75*110.
	require.Len(t, result.Summaries, 1)
	assert.Equal(t, int64(11_250), result.Summaries[0].ProceedsJPY)
	assert.Equal(t, int64(3_000), result.Summaries[0].RealizedGainJPY)

	require.Len(t, result.FinalHoldings, 1)
	assert.Equal(t, float64(25), result.FinalHoldings[0].Quantity)
	assert.Equal(t, int64(110), result.FinalHoldings[0].UnitCostJPY)
}

func TestCalculateSaleExceedingHoldingsFails(t *testing.T) {
	calc := NewMovingAverageCalculator(usdRates(), DefaultFxLookbackDays)

	result, err := calc.Calculate(models.SubmissionInput{
		Currency: models.CurrencyUSD,
		Symbol:   "TEST",
		Years:    []int{2024},
		Transactions: []models.TransactionInput{
			{Date: "2024-01-10", Activity: models.ActivityPurchased, Quantity: 100, Price: 100},
			{Date: "2024-06-15", Activity: models.ActivitySold, Quantity: -150, Price: 150},
		},
	})
	require.ErrorIs(t, err, ErrHoldingsExceeded)
	assert.Contains(t, err.Error(), "2024-06-15")
	assert.Nil(t, result)
}

func TestCalculateSameDayPurchaseProcessedBeforeSale(t *testing.T) {
	calc := NewMovingAverageCalculator(usdRates(), DefaultFxLookbackDays)

	// The sale appears first in the input but must replay after the same-day
	// purchase, otherwise it would oversell.
	result, err := calc.Calculate(models.SubmissionInput{
		Currency: models.CurrencyUSD,
		Symbol:   "TEST",
		Years:    []int{2024},
		Transactions: []models.TransactionInput{
			{Date: "2024-06-15", Activity: models.ActivitySold, Quantity: 100, Price: 180},
			{Date: "2024-06-15", Activity: models.ActivityPurchased, Quantity: 100, Price: 150},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Summaries, 1)
	assert.Equal(t, float64(100), result.Summaries[0].SellQuantity)
	assert.Empty(t, result.FinalHoldings)
}

func TestCalculateCrossYearSummaries(t *testing.T) {
	rates := fixedRateSource{tables: map[string]FxTable{
		models.CurrencyUSD: {
			quote("2025-01-10", "150.00", "148.00"),
			quote("2024-06-15", "157.50", "155.50"),
			quote("2024-01-10", "145.50", "143.50"),
		},
	}}
	calc := NewMovingAverageCalculator(rates, DefaultFxLookbackDays)

	result, err := calc.Calculate(models.SubmissionInput{
		Currency: models.CurrencyUSD,
		Symbol:   "TEST",
		Years:    []int{2025, 2024},
		Transactions: []models.TransactionInput{
			{Date: "2024-01-10", Activity: models.ActivityPurchased, Quantity: 100, Price: 100},
			{Date: "2024-06-15", Activity: models.ActivitySold, Quantity: -50, Price: 150},
			{Date: "2025-01-10", Activity: models.ActivitySold, Quantity: -50, Price: 200},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{2024, 2025}, result.Years)
	require.Len(t, result.Summaries, 2)
	assert.Equal(t, 2024, result.Summaries[0].Year)
	assert.Equal(t, float64(50), result.Summaries[0].SellQuantity)
	assert.Equal(t, 2025, result.Summaries[1].Year)
	assert.Equal(t, float64(50), result.Summaries[1].SellQuantity)
}

func TestCalculateUnrequestedYearIsDroppedButStillMovesPosition(t *testing.T) {
	calc := NewMovingAverageCalculator(fixedRateSource{}, DefaultFxLookbackDays)

	result, err := calc.Calculate(models.SubmissionInput{
		Currency: models.CurrencyJPY,
		Symbol:   "LOCAL",
		Years:    []int{2025},
		Transactions: []models.TransactionInput{
			{Date: "2024-01-10", Activity: models.ActivityPurchased, Quantity: 100, Price: 100},
			{Date: "2024-06-15", Activity: models.ActivitySold, Quantity: 40, Price: 120},
			{Date: "2025-02-01", Activity: models.ActivitySold, Quantity: 60, Price: 130},
		},
	})
	require.NoError(t, err)

	// The 2024 sale is not summarized, but it reduced holdings so the 2025
	// sale of the remaining 60 still succeeds.
	require.Len(t, result.Summaries, 1)
	assert.Equal(t, 2025, result.Summaries[0].Year)
	assert.Equal(t, float64(60), result.Summaries[0].SellQuantity)
	assert.Empty(t, result.FinalHoldings)
}

func TestCalculateRequestedYearWithoutActivityIsZeroed(t *testing.T) {
	calc := NewMovingAverageCalculator(fixedRateSource{}, DefaultFxLookbackDays)

	result, err := calc.Calculate(models.SubmissionInput{
		Currency: models.CurrencyJPY,
		Symbol:   "LOCAL",
		Years:    []int{2023, 2024},
		Transactions: []models.TransactionInput{
			{Date: "2024-01-10", Activity: models.ActivityPurchased, Quantity: 10, Price: 100},
			{Date: "2024-02-10", Activity: models.ActivitySold, Quantity: 10, Price: 110},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Summaries, 2)
	assert.Equal(t, 2023, result.Summaries[0].Year)
	assert.Equal(t, float64(0), result.Summaries[0].SellQuantity)
	assert.Equal(t, int64(0), result.Summaries[0].ProceedsJPY)
	assert.Equal(t, int64(0), result.Summaries[0].RealizedGainJPY)
}

func TestCalculateWeekendTransactionUsesLookback(t *testing.T) {
	// 2024-06-16 is a Sunday with no quote; the calendar-day lookback lands
	// on Friday 2024-06-14.
	rates := fixedRateSource{tables: map[string]FxTable{
		models.CurrencyUSD: {
			quote("2024-06-14", "157.00", "155.00"),
			quote("2024-01-10", "145.50", "143.50"),
		},
	}}
	calc := NewMovingAverageCalculator(rates, DefaultFxLookbackDays)

	result, err := calc.Calculate(models.SubmissionInput{
		Currency: models.CurrencyUSD,
		Symbol:   "TEST",
		Years:    []int{2024},
		Transactions: []models.TransactionInput{
			{Date: "2024-01-10", Activity: models.ActivityPurchased, Quantity: 10, Price: 100, Commission: 0},
			{Date: "2024-06-16", Activity: models.ActivitySold, Quantity: 10, Price: 120, Commission: 0},
		},
	})
	require.NoError(t, err)

	// Proceeds convert at Friday's TTB: floor(10*120*155.00) = 186,000.
	require.Len(t, result.Summaries, 1)
	assert.Equal(t, int64(186_000), result.Summaries[0].ProceedsJPY)
}

func TestCalculateFinalizeRoundsNegativeHalfTowardPositive(t *testing.T) {
	calc := NewMovingAverageCalculator(fixedRateSource{}, DefaultFxLookbackDays)

	// Fractional quantities can leave a year total on an exact half yen.
	// Buy 2 @ 100.5 JPY: cost 201, unit cost ceil(100.5) = 101. Sell 0.5 @
	// 100: proceeds floor(50) = 50, realized 50 - 101*0.5 = -0.5, which
	// rounds to 0, not -1.
	result, err := calc.Calculate(models.SubmissionInput{
		Currency: models.CurrencyJPY,
		Symbol:   "LOCAL",
		Years:    []int{2024},
		Transactions: []models.TransactionInput{
			{Date: "2024-01-10", Activity: models.ActivityPurchased, Quantity: 2, Price: 100.5},
			{Date: "2024-06-15", Activity: models.ActivitySold, Quantity: 0.5, Price: 100},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Summaries, 1)
	summary := result.Summaries[0]
	assert.Equal(t, float64(1), summary.SellQuantity) // 0.5 rounds up
	assert.Equal(t, int64(50), summary.ProceedsJPY)
	assert.Equal(t, int64(0), summary.RealizedGainJPY)

	require.Len(t, result.FinalHoldings, 1)
	assert.Equal(t, float64(2), result.FinalHoldings[0].Quantity) // 1.5 rounds up
	assert.Equal(t, int64(101), result.FinalHoldings[0].UnitCostJPY)
}

func TestCalculateUnknownCurrencyPropagatesRateError(t *testing.T) {
	calc := NewMovingAverageCalculator(usdRates(), DefaultFxLookbackDays)

	_, err := calc.Calculate(models.SubmissionInput{
		Currency: "GBP",
		Symbol:   "TEST",
		Years:    []int{2024},
		Transactions: []models.TransactionInput{
			{Date: "2024-01-10", Activity: models.ActivityPurchased, Quantity: 10, Price: 100},
		},
	})
	require.ErrorIs(t, err, ErrRateDataUnavailable)
}
