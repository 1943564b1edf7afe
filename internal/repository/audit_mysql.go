package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"
)

// MySQL rejects multi-statement Exec by default, so each DDL runs alone.
var mysqlDialect = dialect{
	name:        "mysql",
	placeholder: questionMark,
	schema: []string{`
	CREATE TABLE IF NOT EXISTS dispatch_audit (
		id VARCHAR(36) PRIMARY KEY,
		session_id VARCHAR(64) NOT NULL,
		request_id VARCHAR(64) NOT NULL DEFAULT '',
		action VARCHAR(64) NOT NULL,
		line_item_id VARCHAR(64) NOT NULL,
		master_item_id VARCHAR(64) NOT NULL DEFAULT '',
		deal_price VARCHAR(32) NOT NULL DEFAULT '',
		account_id VARCHAR(64) NOT NULL,
		shop_id VARCHAR(64) NOT NULL DEFAULT '',
		outcome VARCHAR(16) NOT NULL,
		error_kind VARCHAR(32) NOT NULL DEFAULT '',
		error_message TEXT NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		created_at DATETIME(3) NOT NULL,
		INDEX idx_audit_line_item (line_item_id),
		INDEX idx_audit_created_at (created_at)
	)`},
}

// NewMySQLAuditRepository connects to MySQL.
func NewMySQLAuditRepository(dsn string) (AuditRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	repo, err := newSQLAuditRepository(db, mysqlDialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.WithField("component", "AuditRepository").Info("MySQL audit store initialized")
	return repo, nil
}
