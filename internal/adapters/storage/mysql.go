package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// NewMySQLStorage opens a MySQL-backed store from a DSN such as
// "user:pass@tcp(host:3306)/email_guardian"
func NewMySQLStorage(dsn string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mysql connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging mysql: %w", err)
	}

	store, err := NewSQLStore(db, DialectMySQL, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Opened mysql storage")
	return store, nil
}
