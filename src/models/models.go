package models

// Activity values accepted on a transaction row.
const (
	ActivityPurchased = "Purchased"
	ActivitySold      = "Sold"
)

// Supported transaction currencies. JPY is the home currency and needs
// no conversion.
const (
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
	CurrencyJPY = "JPY"
)

// TransactionInput is a single buy or sell row as submitted by the filer.
type TransactionInput struct {
	Date       string  `json:"date"` // YYYY-MM-DD
	Activity   string  `json:"activity"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	Commission float64 `json:"commission,omitempty"`
}

// SubmissionInput is the full payload of one filing request.
type SubmissionInput struct {
	Email        string             `json:"email"`
	Currency     string             `json:"currency"`
	Symbol       string             `json:"symbol"`
	Years        []int              `json:"years"`
	Transactions []TransactionInput `json:"transactions"`
}

// YearSummary aggregates realized sales for one requested tax year.
// Monetary fields are whole yen.
type YearSummary struct {
	Year            int     `json:"year"`
	SellQuantity    float64 `json:"sellQuantity"`
	ProceedsJPY     int64   `json:"proceedsJPY"`
	RealizedGainJPY int64   `json:"realizedGainJPY"`
}

// HoldingLot is a remaining open purchase batch at the end of processing.
// All open lots share the single blended unit cost.
type HoldingLot struct {
	PurchaseDate string  `json:"purchaseDate"`
	Quantity     float64 `json:"quantity"`
	UnitCostJPY  int64   `json:"unitCostJPY"`
}

// CalcResult is the engine output for one submission.
type CalcResult struct {
	Currency      string        `json:"currency"`
	Symbol        string        `json:"symbol"`
	Years         []int         `json:"years"`
	Summaries     []YearSummary `json:"summaries"`
	FinalHoldings []HoldingLot  `json:"finalHoldings"`
}
