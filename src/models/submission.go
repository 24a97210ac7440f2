package models

import "time"

// Submission is one persisted filing request.
type Submission struct {
	ID               int64     `json:"id"`
	Reference        string    `json:"reference"`
	Email            string    `json:"email"`
	Symbol           string    `json:"symbol"`
	Currency         string    `json:"currency"`
	Years            []int     `json:"years"`
	TransactionCount int       `json:"transaction_count"`
	PDFGenerated     bool      `json:"pdf_generated"`
	CreatedAt        time.Time `json:"created_at"`
}

// Customer aggregates submissions per email address for the admin views.
type Customer struct {
	Email            string    `json:"email"`
	FirstSubmission  time.Time `json:"first_submission"`
	LastSubmission   time.Time `json:"last_submission"`
	TotalSubmissions int       `json:"total_submissions"`
	TotalPDFs        int       `json:"total_pdfs"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalSubmissions  int `json:"total_submissions"`
	TotalCustomers    int `json:"total_customers"`
	TotalTransactions int `json:"total_transactions"`
	SubmissionsLast30 int `json:"submissions_last_30_days"`
}
