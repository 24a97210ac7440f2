package processors

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/kabutax/backend/src/logger"
	"github.com/username/kabutax/backend/src/models"
)

// ErrRateDataUnavailable is returned when no usable rate table exists for a
// requested currency. No default rate is ever silently substituted; only the
// home currency gets the explicit unit-rate fallback.
var ErrRateDataUnavailable = errors.New("exchange rate data unavailable")

// DefaultFxLookbackDays is how many calendar days RateOnOrBefore walks
// backward looking for a valid quote before falling back to the oldest one.
const DefaultFxLookbackDays = 5

const fxDateFormat = "2006-01-02"

// FxQuote is one daily bank quote. TTS applies when the filer buys foreign
// currency (purchases, fees), TTB when selling it (sale proceeds).
type FxQuote struct {
	Date string          `json:"date"` // YYYY-MM-DD
	TTS  decimal.Decimal `json:"tts"`
	TTB  decimal.Decimal `json:"ttb"`
}

// FxTable is the daily quote history for one currency. It may be sorted
// ascending or descending by date; lookups only rely on on-or-before
// semantics. An empty table represents the home currency.
type FxTable []FxQuote

func unitQuote(date string) FxQuote {
	one := decimal.NewFromInt(1)
	return FxQuote{Date: date, TTS: one, TTB: one}
}

// RateOnOrBefore returns the quote effective on the given date. If the date
// has no valid quote (missing, or zeroed placeholder), it steps back one
// calendar day at a time, up to maxLookbackDays days, taking at each step the
// most recent quote dated on or before the candidate day. When the whole
// window is exhausted it returns the oldest quote in the table regardless of
// validity.
//
// The lookback counts calendar days, not table entries, so a gap wider than
// the window falls through to the oldest-quote fallback even when closer
// quotes exist outside the window. That matches the spreadsheet logic this
// replaces; do not "fix" it without domain confirmation.
func (t FxTable) RateOnOrBefore(date string, maxLookbackDays int) FxQuote {
	if len(t) == 0 {
		return unitQuote(date)
	}

	for offset := 0; offset <= maxLookbackDays; offset++ {
		target := subtractDays(date, offset)
		if q, ok := t.latestOnOrBefore(target); ok && q.TTS.IsPositive() && q.TTB.IsPositive() {
			return q
		}
	}

	return t.oldest()
}

// latestOnOrBefore finds the most recent quote dated on or before the target.
// Dates are YYYY-MM-DD, so string comparison orders them correctly.
func (t FxTable) latestOnOrBefore(target string) (FxQuote, bool) {
	best := -1
	for i := range t {
		if t[i].Date > target {
			continue
		}
		if best < 0 || t[i].Date > t[best].Date {
			best = i
		}
	}
	if best < 0 {
		return FxQuote{}, false
	}
	return t[best], true
}

func (t FxTable) oldest() FxQuote {
	best := 0
	for i := range t {
		if t[i].Date < t[best].Date {
			best = i
		}
	}
	return t[best]
}

func subtractDays(dateStr string, days int) string {
	d, err := time.Parse(fxDateFormat, dateStr)
	if err != nil {
		return dateStr
	}
	return d.AddDate(0, 0, -days).Format(fxDateFormat)
}

// RateSource hands the calculator a rate table for a currency. It is injected
// rather than read from ambient state so tests can supply fixed tables.
type RateSource interface {
	Table(currency string) (FxTable, error)
}

// FxStore serves rate tables loaded from per-currency JSON files
// (<dir>/usd.json, <dir>/eur.json, ...). The home currency is served as an
// empty table without touching disk.
type FxStore struct {
	dir    string
	tables map[string]FxTable
}

var fxFileCurrencies = []string{models.CurrencyUSD, models.CurrencyEUR}

// LoadFxStore reads the rate tables at startup. A missing file is tolerated
// (that currency just becomes unavailable); a malformed file is an error.
func LoadFxStore(dir string) (*FxStore, error) {
	s := &FxStore{dir: dir, tables: make(map[string]FxTable)}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir is the directory the store reads its per-currency files from.
func (s *FxStore) Dir() string {
	return s.dir
}

// Reload re-reads every currency file from the store's directory.
func (s *FxStore) Reload() error {
	tables := make(map[string]FxTable)
	for _, currency := range fxFileCurrencies {
		path := filepath.Join(s.dir, strings.ToLower(currency)+".json")
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				logger.L.Warn("Exchange rate file missing, currency will be unavailable", "currency", currency, "path", path)
				continue
			}
			return fmt.Errorf("error reading exchange rate file '%s': %w", path, err)
		}

		var table FxTable
		if err := json.Unmarshal(raw, &table); err != nil {
			return fmt.Errorf("error unmarshalling exchange rates from '%s': %w", path, err)
		}
		tables[currency] = table
		logger.L.Info("Exchange rates loaded", "currency", currency, "path", path, "quoteCount", len(table))
	}
	s.tables = tables
	return nil
}

// Table implements RateSource.
func (s *FxStore) Table(currency string) (FxTable, error) {
	if currency == models.CurrencyJPY {
		return FxTable{}, nil
	}
	table, ok := s.tables[currency]
	if !ok || len(table) == 0 {
		logger.L.Warn("No exchange rate table for currency", "currency", currency)
		return nil, fmt.Errorf("%w: %s", ErrRateDataUnavailable, currency)
	}
	return table, nil
}
