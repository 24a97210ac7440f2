package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/kabutax/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateSubmissionsTable()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reference TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		symbol TEXT NOT NULL,
		currency TEXT NOT NULL,
		years TEXT NOT NULL,
		transaction_count INTEGER NOT NULL,
		pdf_generated BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS submission_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		activity TEXT NOT NULL,
		quantity REAL NOT NULL,
		price REAL NOT NULL,
		commission REAL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(submission_id) REFERENCES submissions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_email ON submissions(email);
	CREATE INDEX IF NOT EXISTS idx_submission_transactions_submission ON submission_transactions(submission_id);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

func migrateSubmissionsTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='submissions'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("'submissions' table does not exist, no migration needed as table will be created.")
			} else {
				stdlog.Println("'submissions' table does not exist, no migration needed as table will be created.")
			}
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'submissions' table", "error", err)
		} else {
			stdlog.Printf("Error checking for 'submissions' table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(submissions)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'submissions'", "error", err)
		} else {
			stdlog.Printf("Error querying table schema for 'submissions': %v", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info for 'submissions'", "error", err)
			} else {
				stdlog.Printf("Error scanning column info for 'submissions': %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'submissions'", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for 'submissions': %v", err)
		}
		return
	}

	if _, ok := columnExists["reference"]; !ok {
		_, err := DB.Exec("ALTER TABLE submissions ADD COLUMN reference TEXT NOT NULL DEFAULT ''")
		if err != nil {
			logger.L.Error("Error adding 'reference' column to 'submissions' table", "error", err)
		} else {
			logger.L.Info("Added 'reference' column to 'submissions' table")
		}
	}
	if _, ok := columnExists["pdf_generated"]; !ok {
		_, err := DB.Exec("ALTER TABLE submissions ADD COLUMN pdf_generated BOOLEAN DEFAULT FALSE")
		if err != nil {
			logger.L.Error("Error adding 'pdf_generated' column to 'submissions' table", "error", err)
		} else {
			logger.L.Info("Added 'pdf_generated' column to 'submissions' table")
		}
	}
}
