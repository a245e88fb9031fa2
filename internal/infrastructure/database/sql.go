package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/eslsoft/intentd/internal/infrastructure/config"
)

// AuditDB is the database/sql handle of the audit sink together with its driver name.
type AuditDB struct {
	*sql.DB
	Driver string
}

// NewAuditDB opens the audit sink database selected by audit.driver.
func NewAuditDB(cfg *config.Config) (*AuditDB, func(), error) {
	driver := cfg.Audit.Driver
	db, err := sql.Open(driver, cfg.AuditDSN())
	if err != nil {
		return nil, nil, fmt.Errorf("open %s audit db: %w", driver, err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping %s audit db: %w", driver, err)
	}

	return &AuditDB{DB: db, Driver: driver}, func() { _ = db.Close() }, nil
}
