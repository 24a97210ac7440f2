package processors

import "github.com/shopspring/decimal"

// The home currency has no minor unit, so every monetary conversion lands on
// whole yen. Acquisition costs and gross proceeds truncate toward zero; the
// blended per-unit cost rounds up so future cost basis is never under-counted.
// Both roundings are applied transaction by transaction, never deferred.

func roundDown0(d decimal.Decimal) decimal.Decimal {
	return d.RoundDown(0)
}

func roundUp0(d decimal.Decimal) decimal.Decimal {
	return d.RoundUp(0)
}

// roundHalfUp rounds to the nearest whole yen with exact halves going toward
// positive infinity, so -0.5 becomes 0, not -1. Summary totals use this at
// finalize time; it only diverges from half-away-from-zero on negative halves,
// which need fractional quantities to occur at all.
func roundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Add(decimal.New(5, -1)).Floor()
}
