package repository

import (
	"fmt"

	"consign-review-api/internal/config"
)

// NewAuditRepository opens the audit backend selected by cfg.Type.
func NewAuditRepository(cfg config.AuditConfig) (AuditRepository, error) {
	switch cfg.Type {
	case "mongodb", "mongo":
		return NewMongoDBAuditRepository(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	case "postgres", "postgresql":
		return NewPostgresAuditRepository(cfg.PostgresDSN())
	case "mysql":
		return NewMySQLAuditRepository(cfg.MySQLDSN())
	case "sqlite", "":
		return NewSQLiteAuditRepository(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown AUDIT_DB_TYPE: %s", cfg.Type)
	}
}
