package repository

import (
	"context"
	"time"

	"consign-review-api/internal/model"
)

// AuditFilter narrows an audit listing. Empty fields match everything.
type AuditFilter struct {
	LineItemID string
	ShopID     string
	Action     string
}

// AuditRepository stores the audit trail of dispatched platform mutations.
type AuditRepository interface {
	// InsertDispatch records one dispatch attempt.
	InsertDispatch(ctx context.Context, rec *model.DispatchRecord) error

	// ListDispatches returns records newest first, with the total matching count.
	ListDispatches(ctx context.Context, filter AuditFilter, limit, offset int) ([]model.DispatchRecord, int64, error)

	// DeleteOlderThan removes records created before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// GetStats returns statistics about the audit store.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the repository connection.
	Close() error
}
