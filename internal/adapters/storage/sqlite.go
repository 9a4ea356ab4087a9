package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// NewSQLiteStorage opens (or creates) a SQLite database at the given path.
// ":memory:" gives an ephemeral store for tests and one-shot runs.
func NewSQLiteStorage(path string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// SQLite serializes writers anyway; a single connection avoids
	// SQLITE_BUSY churn under concurrent batches.
	db.SetMaxOpenConns(1)

	store, err := NewSQLStore(db, DialectSQLite, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Opened sqlite storage", zap.String("path", path))
	return store, nil
}
