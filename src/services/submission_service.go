package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/username/kabutax/backend/src/database"
	"github.com/username/kabutax/backend/src/logger"
	"github.com/username/kabutax/backend/src/model"
	"github.com/username/kabutax/backend/src/models"
	"github.com/username/kabutax/backend/src/processors"
	"github.com/username/kabutax/backend/src/security/validation"
)

type submissionServiceImpl struct {
	calculator      *processors.MovingAverageCalculator
	reportService   ReportService
	emailService    EmailService
	adminService    AdminService
	maxYears        int
	maxTransactions int
}

func NewSubmissionService(
	calculator *processors.MovingAverageCalculator,
	reportService ReportService,
	emailService EmailService,
	adminService AdminService,
	maxYears int,
	maxTransactions int,
) SubmissionService {
	return &submissionServiceImpl{
		calculator:      calculator,
		reportService:   reportService,
		emailService:    emailService,
		adminService:    adminService,
		maxYears:        maxYears,
		maxTransactions: maxTransactions,
	}
}

func (s *submissionServiceImpl) ProcessSubmission(input models.SubmissionInput) (*SubmissionOutcome, error) {
	startTime := time.Now()
	logger.L.Info("ProcessSubmission START", "email", input.Email, "symbol", input.Symbol, "currency", input.Currency, "transactionCount", len(input.Transactions))

	if err := validation.ValidateSubmission(&input, s.maxYears, s.maxTransactions); err != nil {
		return nil, err
	}

	result, err := s.calculator.Calculate(input)
	if err != nil {
		return nil, err
	}

	pdfBytes, err := s.reportService.RenderReport(result, input.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReportFailed, err)
	}

	reference := uuid.NewString()
	filename := fmt.Sprintf("kabutax-%s-%s.pdf", input.Symbol, time.Now().Format("20060102150405"))

	// Persistence failure is logged but does not block delivery; the filer
	// still gets their report.
	_, err = model.InsertSubmission(database.DB, models.Submission{
		Reference:    reference,
		Email:        input.Email,
		Symbol:       input.Symbol,
		Currency:     input.Currency,
		Years:        result.Years,
		PDFGenerated: true,
	}, input.Transactions)
	if err != nil {
		logger.L.Error("Failed to persist submission", "email", input.Email, "reference", reference, "error", err)
	} else {
		s.adminService.InvalidateCache()
	}

	outcome := &SubmissionOutcome{
		Reference: reference,
		Result:    result,
		PDF:       pdfBytes,
		Filename:  filename,
	}

	body := reportEmailBody(result)
	if err := s.emailService.SendReportEmail(input.Email, "Your capital gains report", body, filename, pdfBytes); err != nil {
		// Delivery failure degrades to a direct PDF download.
		logger.L.Warn("Email delivery failed, falling back to PDF download", "email", input.Email, "error", err)
	} else {
		outcome.Emailed = true
	}

	logger.L.Info("ProcessSubmission END", "email", input.Email, "reference", reference, "emailed", outcome.Emailed, "duration", time.Since(startTime))
	return outcome, nil
}

func reportEmailBody(result *models.CalcResult) string {
	return fmt.Sprintf(
		"Please find attached the capital gains report generated from your submitted transactions.\n\n"+
			"Symbol: %s\nCurrency: %s\nTax years: %s\n\n"+
			"If anything looks wrong, reply to this email.\n",
		result.Symbol, result.Currency, formatYears(result.Years))
}

func formatYears(years []int) string {
	out := ""
	for i, y := range years {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%d", y)
	}
	return out
}
