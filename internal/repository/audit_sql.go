package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"consign-review-api/internal/model"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	name        string
	placeholder func(n int) string
	schema      []string
}

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

// sqlAuditRepository implements AuditRepository over database/sql.
// The SQLite backend serializes writers through mu.
type sqlAuditRepository struct {
	db      *sql.DB
	dialect dialect
	mu      sync.RWMutex
}

func newSQLAuditRepository(db *sql.DB, d dialect) (*sqlAuditRepository, error) {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create %s audit tables: %w", d.name, err)
		}
	}
	return &sqlAuditRepository{db: db, dialect: d}, nil
}

const auditColumns = `id, session_id, request_id, action, line_item_id, master_item_id, deal_price,
	account_id, shop_id, outcome, error_kind, error_message, duration_ms, created_at`

// InsertDispatch records one dispatch attempt.
func (r *sqlAuditRepository) InsertDispatch(ctx context.Context, rec *model.DispatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	ph := make([]string, 14)
	for i := range ph {
		ph[i] = r.dialect.placeholder(i + 1)
	}
	query := `INSERT INTO dispatch_audit (` + auditColumns + `) VALUES (` + strings.Join(ph, ", ") + `)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.SessionID, rec.RequestID, rec.Action, rec.LineItemID, rec.MasterItemID, rec.DealPrice,
		rec.AccountID, rec.ShopID, rec.Outcome, rec.ErrorKind, rec.ErrorMessage, rec.DurationMs, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert dispatch record: %w", err)
	}
	return nil
}

func (r *sqlAuditRepository) where(filter AuditFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(col, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		conds = append(conds, col+" = "+r.dialect.placeholder(len(args)))
	}
	add("line_item_id", filter.LineItemID)
	add("shop_id", filter.ShopID)
	add("action", filter.Action)

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListDispatches returns records newest first.
func (r *sqlAuditRepository) ListDispatches(ctx context.Context, filter AuditFilter, limit, offset int) ([]model.DispatchRecord, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	where, args := r.where(filter)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dispatch_audit"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count dispatch records: %w", err)
	}

	n := len(args)
	query := `SELECT ` + auditColumns + ` FROM dispatch_audit` + where +
		` ORDER BY created_at DESC LIMIT ` + r.dialect.placeholder(n+1) + ` OFFSET ` + r.dialect.placeholder(n+2)

	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list dispatch records: %w", err)
	}
	defer rows.Close()

	records := []model.DispatchRecord{}
	for rows.Next() {
		var rec model.DispatchRecord
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.RequestID, &rec.Action, &rec.LineItemID, &rec.MasterItemID, &rec.DealPrice,
			&rec.AccountID, &rec.ShopID, &rec.Outcome, &rec.ErrorKind, &rec.ErrorMessage, &rec.DurationMs, &rec.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan dispatch record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate dispatch records: %w", err)
	}

	return records, total, nil
}

// DeleteOlderThan removes records created before cutoff.
func (r *sqlAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `DELETE FROM dispatch_audit WHERE created_at < ` + r.dialect.placeholder(1)
	result, err := r.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old dispatch records: %w", err)
	}
	return result.RowsAffected()
}

// GetStats returns record counts per outcome.
func (r *sqlAuditRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := map[string]interface{}{"backend": r.dialect.name}

	rows, err := r.db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM dispatch_audit GROUP BY outcome")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var total int64
	for rows.Next() {
		var outcome string
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		stats[outcome+"_dispatches"] = count
		total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats["total_dispatches"] = total

	return stats, nil
}

// Close closes the database connection.
func (r *sqlAuditRepository) Close() error {
	return r.db.Close()
}

var _ AuditRepository = (*sqlAuditRepository)(nil)
