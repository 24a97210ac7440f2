package processors

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/kabutax/backend/src/models"
)

// ErrHoldingsExceeded means a sale's quantity would drive running holdings
// negative. The whole calculation fails; no partial result is returned.
var ErrHoldingsExceeded = errors.New("sale exceeds current holdings")

// MovingAverageCalculator computes per-year realized gains in yen using the
// moving-average cost method: all held units share one blended unit cost,
// re-blended on every purchase and reduced proportionally on every sale.
type MovingAverageCalculator struct {
	rates        RateSource
	lookbackDays int
}

func NewMovingAverageCalculator(rates RateSource, lookbackDays int) *MovingAverageCalculator {
	if lookbackDays <= 0 {
		lookbackDays = DefaultFxLookbackDays
	}
	return &MovingAverageCalculator{rates: rates, lookbackDays: lookbackDays}
}

type sortedTransaction struct {
	models.TransactionInput
	sortOrder int // Purchased=0, Sold=1
}

// displayLot tracks a remaining purchase batch for the end-of-run holdings
// view only. The lot queue never drives the cost math; that is the single
// blended unit cost on runningPosition.
type displayLot struct {
	date string
	qty  decimal.Decimal
}

type runningPosition struct {
	holdings     decimal.Decimal
	costBasisJPY decimal.Decimal
	unitCostJPY  decimal.Decimal
}

type yearTotals struct {
	sellQuantity    decimal.Decimal
	proceedsJPY     decimal.Decimal
	realizedGainJPY decimal.Decimal
}

// Calculate replays the submission's transactions chronologically and returns
// one summary per requested year plus the remaining open lots. Same-day ties
// process purchases before sales.
func (c *MovingAverageCalculator) Calculate(input models.SubmissionInput) (*models.CalcResult, error) {
	table, err := c.rates.Table(input.Currency)
	if err != nil {
		return nil, err
	}

	sorted := make([]sortedTransaction, 0, len(input.Transactions))
	for _, tx := range input.Transactions {
		order := 0
		if tx.Activity == models.ActivitySold {
			order = 1
		}
		sorted = append(sorted, sortedTransaction{TransactionInput: tx, sortOrder: order})
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return sorted[i].sortOrder < sorted[j].sortOrder
	})

	pos := runningPosition{
		holdings:     decimal.Zero,
		costBasisJPY: decimal.Zero,
		unitCostJPY:  decimal.Zero,
	}

	years := make(map[int]*yearTotals, len(input.Years))
	for _, year := range input.Years {
		years[year] = &yearTotals{
			sellQuantity:    decimal.Zero,
			proceedsJPY:     decimal.Zero,
			realizedGainJPY: decimal.Zero,
		}
	}

	var lots []displayLot

	for _, tx := range sorted {
		txDate, err := time.Parse(fxDateFormat, tx.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction date %q: %w", tx.Date, err)
		}
		rate := table.RateOnOrBefore(tx.Date, c.lookbackDays)
		year := txDate.Year()

		if tx.Activity == models.ActivityPurchased {
			qty := decimal.NewFromFloat(tx.Quantity)
			price := decimal.NewFromFloat(tx.Price)
			commission := decimal.NewFromFloat(tx.Commission)

			// Acquisition commission folds into cost, converted at the buy rate.
			acqJPY := roundDown0(qty.Mul(price).Add(commission).Mul(rate.TTS))

			pos.holdings = pos.holdings.Add(qty)
			pos.costBasisJPY = pos.costBasisJPY.Add(acqJPY)
			if pos.holdings.IsPositive() {
				pos.unitCostJPY = roundUp0(pos.costBasisJPY.Div(pos.holdings))
			} else {
				pos.unitCostJPY = decimal.Zero
			}

			lots = append(lots, displayLot{date: tx.Date, qty: qty})
			continue
		}

		// Sale. Quantity is normalized to a positive magnitude; a negative
		// quantity on a Sold row is accepted as its absolute value.
		qty := decimal.NewFromFloat(tx.Quantity).Abs()
		price := decimal.NewFromFloat(tx.Price)
		commission := decimal.NewFromFloat(tx.Commission)

		// Proceeds convert at the sell rate; the sale commission converts at
		// the buy rate. That asymmetry is the fixed bank-quote convention,
		// not a mistake.
		grossJPY := roundDown0(qty.Mul(price).Mul(rate.TTB))
		commissionJPY := roundDown0(commission.Mul(rate.TTS))

		unitCostPrevJPY := pos.unitCostJPY
		realized := grossJPY.Sub(unitCostPrevJPY.Mul(qty)).Sub(commissionJPY)

		pos.holdings = pos.holdings.Sub(qty)
		if pos.holdings.IsNegative() {
			return nil, fmt.Errorf("%s: %w", tx.Date, ErrHoldingsExceeded)
		}

		if pos.holdings.IsPositive() {
			pos.costBasisJPY = pos.holdings.Mul(unitCostPrevJPY)
			pos.unitCostJPY = roundUp0(pos.costBasisJPY.Div(pos.holdings))
		} else {
			pos.costBasisJPY = decimal.Zero
			pos.unitCostJPY = decimal.Zero
		}

		// Years the caller did not ask for are silently dropped.
		if totals, ok := years[year]; ok {
			totals.sellQuantity = totals.sellQuantity.Add(qty)
			totals.proceedsJPY = totals.proceedsJPY.Add(grossJPY)
			totals.realizedGainJPY = totals.realizedGainJPY.Add(realized)
		}

		lots = consumeLots(lots, qty)
	}

	return c.finalize(input, years, lots, pos), nil
}

// consumeLots takes the sold quantity from the front of the queue, oldest
// lots first, splitting a lot that is only partially consumed.
func consumeLots(lots []displayLot, qty decimal.Decimal) []displayLot {
	remaining := qty
	for remaining.IsPositive() && len(lots) > 0 {
		consume := decimal.Min(lots[0].qty, remaining)
		lots[0].qty = lots[0].qty.Sub(consume)
		remaining = remaining.Sub(consume)
		if lots[0].qty.IsZero() {
			lots = lots[1:]
		}
	}
	return lots
}

func (c *MovingAverageCalculator) finalize(input models.SubmissionInput, years map[int]*yearTotals, lots []displayLot, pos runningPosition) *models.CalcResult {
	summaries := make([]models.YearSummary, 0, len(years))
	for year, totals := range years {
		summaries = append(summaries, models.YearSummary{
			Year:            year,
			SellQuantity:    roundHalfUp(totals.sellQuantity).InexactFloat64(),
			ProceedsJPY:     roundHalfUp(totals.proceedsJPY).IntPart(),
			RealizedGainJPY: roundHalfUp(totals.realizedGainJPY).IntPart(),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Year < summaries[j].Year })

	unitCost := roundHalfUp(pos.unitCostJPY).IntPart()
	holdings := make([]models.HoldingLot, 0, len(lots))
	for _, lot := range lots {
		holdings = append(holdings, models.HoldingLot{
			PurchaseDate: lot.date,
			Quantity:     roundHalfUp(lot.qty).InexactFloat64(),
			UnitCostJPY:  unitCost,
		})
	}

	sortedYears := append([]int(nil), input.Years...)
	sort.Ints(sortedYears)

	return &models.CalcResult{
		Currency:      input.Currency,
		Symbol:        input.Symbol,
		Years:         sortedYears,
		Summaries:     summaries,
		FinalHoldings: holdings,
	}
}
