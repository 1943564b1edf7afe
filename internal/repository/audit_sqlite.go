package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var sqliteDialect = dialect{
	name:        "sqlite",
	placeholder: questionMark,
	schema: []string{`
	CREATE TABLE IF NOT EXISTS dispatch_audit (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		request_id TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		line_item_id TEXT NOT NULL,
		master_item_id TEXT NOT NULL DEFAULT '',
		deal_price TEXT NOT NULL DEFAULT '',
		account_id TEXT NOT NULL,
		shop_id TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_line_item ON dispatch_audit(line_item_id);
	CREATE INDEX IF NOT EXISTS idx_audit_created_at ON dispatch_audit(created_at);
	`},
}

// NewSQLiteAuditRepository opens (or creates) the SQLite audit database at dbPath.
// Use ":memory:" for an ephemeral store.
func NewSQLiteAuditRepository(dbPath string) (AuditRepository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Keep connection alive

	repo, err := newSQLAuditRepository(db, sqliteDialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.WithFields(log.Fields{"component": "AuditRepository", "path": dbPath}).Info("SQLite audit store initialized")
	return repo, nil
}
