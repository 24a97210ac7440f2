package model

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/username/kabutax/backend/src/models"
)

// InsertSubmission stores one submission and its transaction rows in a single
// database transaction and returns the new submission id.
func InsertSubmission(db *sql.DB, sub models.Submission, txs []models.TransactionInput) (int64, error) {
	yearsJSON, err := json.Marshal(sub.Years)
	if err != nil {
		return 0, fmt.Errorf("error marshalling years: %w", err)
	}

	dbTx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	res, err := dbTx.Exec(
		`INSERT INTO submissions (reference, email, symbol, currency, years, transaction_count, pdf_generated) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.Reference, sub.Email, sub.Symbol, sub.Currency, string(yearsJSON), len(txs), sub.PDFGenerated,
	)
	if err != nil {
		return 0, fmt.Errorf("error inserting submission: %w", err)
	}
	submissionID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error reading submission id: %w", err)
	}

	stmt, err := dbTx.Prepare(`INSERT INTO submission_transactions (submission_id, date, activity, quantity, price, commission) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("error preparing transaction insert: %w", err)
	}
	defer stmt.Close()

	for _, tx := range txs {
		if _, err := stmt.Exec(submissionID, tx.Date, tx.Activity, tx.Quantity, tx.Price, tx.Commission); err != nil {
			return 0, fmt.Errorf("error inserting transaction (date %s): %w", tx.Date, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing submission: %w", err)
	}
	return submissionID, nil
}

func scanSubmissions(rows *sql.Rows) ([]models.Submission, error) {
	var subs []models.Submission
	for rows.Next() {
		var sub models.Submission
		var yearsJSON string
		if err := rows.Scan(&sub.ID, &sub.Reference, &sub.Email, &sub.Symbol, &sub.Currency, &yearsJSON, &sub.TransactionCount, &sub.PDFGenerated, &sub.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(yearsJSON), &sub.Years); err != nil {
			// Legacy rows may hold malformed years; surface them with no years
			// rather than hiding the whole submission.
			sub.Years = nil
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

const submissionColumns = `id, reference, email, symbol, currency, years, transaction_count, pdf_generated, created_at`

// GetAllSubmissions returns every submission, newest first.
func GetAllSubmissions(db *sql.DB) ([]models.Submission, error) {
	rows, err := db.Query(`SELECT ` + submissionColumns + ` FROM submissions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// GetSubmissionsByEmail returns one customer's submissions, newest first.
func GetSubmissionsByEmail(db *sql.DB, email string) ([]models.Submission, error) {
	rows, err := db.Query(`SELECT `+submissionColumns+` FROM submissions WHERE email = ? ORDER BY created_at DESC`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// GetCustomers aggregates submissions per email, most recently active first.
func GetCustomers(db *sql.DB) ([]models.Customer, error) {
	rows, err := db.Query(`
		SELECT email,
		       MIN(created_at),
		       MAX(created_at),
		       COUNT(*),
		       SUM(CASE WHEN pdf_generated THEN 1 ELSE 0 END)
		FROM submissions
		GROUP BY email
		ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		var c models.Customer
		var first, last string
		if err := rows.Scan(&c.Email, &first, &last, &c.TotalSubmissions, &c.TotalPDFs); err != nil {
			return nil, err
		}
		// MIN/MAX strip the column's declared type, so timestamps come back
		// as text here.
		c.FirstSubmission = parseStoredTime(first)
		c.LastSubmission = parseStoredTime(last)
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func parseStoredTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// GetStats returns the admin dashboard counters.
func GetStats(db *sql.DB) (models.Stats, error) {
	var stats models.Stats

	err := db.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT email) FROM submissions`).Scan(&stats.TotalSubmissions, &stats.TotalCustomers)
	if err != nil {
		return stats, err
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM submission_transactions`).Scan(&stats.TotalTransactions); err != nil {
		return stats, err
	}

	cutoff := time.Now().AddDate(0, 0, -30)
	if err := db.QueryRow(`SELECT COUNT(*) FROM submissions WHERE created_at >= ?`, cutoff).Scan(&stats.SubmissionsLast30); err != nil {
		return stats, err
	}
	return stats, nil
}

// DeleteCustomer removes a customer's submissions and their transaction rows.
// It returns the number of submissions deleted.
func DeleteCustomer(db *sql.DB, email string) (int64, error) {
	dbTx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.Exec(`DELETE FROM submission_transactions WHERE submission_id IN (SELECT id FROM submissions WHERE email = ?)`, email); err != nil {
		return 0, fmt.Errorf("error deleting customer transactions: %w", err)
	}
	res, err := dbTx.Exec(`DELETE FROM submissions WHERE email = ?`, email)
	if err != nil {
		return 0, fmt.Errorf("error deleting customer submissions: %w", err)
	}
	deleted, _ := res.RowsAffected()

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing customer delete: %w", err)
	}
	return deleted, nil
}
