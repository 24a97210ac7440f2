package model

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/kabutax/backend/src/database"
	"github.com/username/kabutax/backend/src/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() { database.DB.Close() })
	return database.DB
}

func sampleSubmission(reference, email string) (models.Submission, []models.TransactionInput) {
	sub := models.Submission{
		Reference:    reference,
		Email:        email,
		Symbol:       "VT",
		Currency:     models.CurrencyUSD,
		Years:        []int{2024},
		PDFGenerated: true,
	}
	txs := []models.TransactionInput{
		{Date: "2024-01-10", Activity: models.ActivityPurchased, Quantity: 100, Price: 150, Commission: 10},
		{Date: "2024-06-15", Activity: models.ActivitySold, Quantity: -100, Price: 180, Commission: 5},
	}
	return sub, txs
}

func TestInsertAndGetSubmissions(t *testing.T) {
	db := newTestDB(t)

	sub, txs := sampleSubmission("ref-1", "filer@example.com")
	id, err := InsertSubmission(db, sub, txs)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	all, err := GetAllSubmissions(db)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "ref-1", all[0].Reference)
	assert.Equal(t, "filer@example.com", all[0].Email)
	assert.Equal(t, []int{2024}, all[0].Years)
	assert.Equal(t, 2, all[0].TransactionCount)
	assert.True(t, all[0].PDFGenerated)

	byEmail, err := GetSubmissionsByEmail(db, "filer@example.com")
	require.NoError(t, err)
	assert.Len(t, byEmail, 1)

	none, err := GetSubmissionsByEmail(db, "other@example.com")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInsertSubmissionRejectsDuplicateReference(t *testing.T) {
	db := newTestDB(t)

	sub, txs := sampleSubmission("ref-dup", "filer@example.com")
	_, err := InsertSubmission(db, sub, txs)
	require.NoError(t, err)

	_, err = InsertSubmission(db, sub, txs)
	require.Error(t, err)
}

func TestGetCustomersAggregates(t *testing.T) {
	db := newTestDB(t)

	subA, txsA := sampleSubmission("ref-a1", "alice@example.com")
	_, err := InsertSubmission(db, subA, txsA)
	require.NoError(t, err)

	subA2, txsA2 := sampleSubmission("ref-a2", "alice@example.com")
	subA2.PDFGenerated = false
	_, err = InsertSubmission(db, subA2, txsA2)
	require.NoError(t, err)

	subB, txsB := sampleSubmission("ref-b1", "bob@example.com")
	_, err = InsertSubmission(db, subB, txsB)
	require.NoError(t, err)

	customers, err := GetCustomers(db)
	require.NoError(t, err)
	require.Len(t, customers, 2)

	byEmail := make(map[string]models.Customer, len(customers))
	for _, c := range customers {
		byEmail[c.Email] = c
	}
	alice := byEmail["alice@example.com"]
	assert.Equal(t, 2, alice.TotalSubmissions)
	assert.Equal(t, 1, alice.TotalPDFs)
	bob := byEmail["bob@example.com"]
	assert.Equal(t, 1, bob.TotalSubmissions)
}

func TestGetStatsCounts(t *testing.T) {
	db := newTestDB(t)

	subA, txsA := sampleSubmission("ref-a1", "alice@example.com")
	_, err := InsertSubmission(db, subA, txsA)
	require.NoError(t, err)
	subB, txsB := sampleSubmission("ref-b1", "bob@example.com")
	_, err = InsertSubmission(db, subB, txsB)
	require.NoError(t, err)

	stats, err := GetStats(db)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSubmissions)
	assert.Equal(t, 2, stats.TotalCustomers)
	assert.Equal(t, 4, stats.TotalTransactions)
	assert.Equal(t, 2, stats.SubmissionsLast30)
}

func TestDeleteCustomerRemovesSubmissionsAndTransactions(t *testing.T) {
	db := newTestDB(t)

	subA, txsA := sampleSubmission("ref-a1", "alice@example.com")
	_, err := InsertSubmission(db, subA, txsA)
	require.NoError(t, err)
	subB, txsB := sampleSubmission("ref-b1", "bob@example.com")
	_, err = InsertSubmission(db, subB, txsB)
	require.NoError(t, err)

	deleted, err := DeleteCustomer(db, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := GetAllSubmissions(db)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "bob@example.com", remaining[0].Email)

	var orphaned int
	err = db.QueryRow(`SELECT COUNT(*) FROM submission_transactions st
		LEFT JOIN submissions s ON s.id = st.submission_id
		WHERE s.id IS NULL`).Scan(&orphaned)
	require.NoError(t, err)
	assert.Zero(t, orphaned)
}
