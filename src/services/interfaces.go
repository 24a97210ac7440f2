package services

import (
	"errors"

	"github.com/username/kabutax/backend/src/models"
)

var (
	ErrReportFailed = errors.New("report generation failed")
	ErrEmailFailed  = errors.New("email delivery failed")
)

// SubmissionOutcome is what one processed filing produces. When Emailed is
// false the handler falls back to streaming the PDF to the caller.
type SubmissionOutcome struct {
	Reference string
	Result    *models.CalcResult
	PDF       []byte
	Filename  string
	Emailed   bool
}

// SubmissionService runs the full filing pipeline: validate, compute,
// persist, render, deliver.
type SubmissionService interface {
	ProcessSubmission(input models.SubmissionInput) (*SubmissionOutcome, error)
}

// ReportService renders a computed result to a PDF document.
type ReportService interface {
	RenderReport(result *models.CalcResult, email string) ([]byte, error)
}

// EmailService delivers the result PDF to the filer.
type EmailService interface {
	SendReportEmail(toEmail, subject, body, filename string, pdf []byte) error
}

// AdminService backs the admin console endpoints.
type AdminService interface {
	GetStats() (models.Stats, error)
	GetCustomers() ([]models.Customer, error)
	GetCustomerSubmissions(email string) ([]models.Submission, error)
	DeleteCustomer(email string) (int64, error)
	InvalidateCache()
}

// FxSyncService refreshes the on-disk exchange rate tables from the
// configured upstream feed.
type FxSyncService interface {
	SyncCurrency(currency string) (int, error)
}
