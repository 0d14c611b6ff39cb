package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/thereiwas/internal/domain"
)

const (
	insertAuditEntrySQL = `INSERT INTO audit_log (request_time, action, result, source) VALUES ($1, $2, $3, $4)`
	listAuditEntriesSQL = `SELECT request_time, action, result, source FROM audit_log ORDER BY request_time DESC, id DESC LIMIT $1`

	listAuditEntriesByResultSQL = `SELECT request_time, action, result, source FROM audit_log WHERE result = $2 ORDER BY request_time DESC, id DESC LIMIT $1`
)

// AuditRepo stores sign-in attempts in the audit_log table.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Record(ctx context.Context, entry domain.AuditEntry) error {
	_, err := r.pool.Exec(withStatement(ctx, "audit_insert"), insertAuditEntrySQL,
		entry.RequestTime.UTC(), string(entry.Action), string(entry.Result), entry.Source)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (r *AuditRepo) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	return r.list(ctx, listAuditEntriesSQL, limit)
}

// RecentWithResult is Recent restricted to one result. The limit applies after filtering.
func (r *AuditRepo) RecentWithResult(ctx context.Context, limit int, result domain.AuditResult) ([]domain.AuditEntry, error) {
	return r.list(ctx, listAuditEntriesByResultSQL, limit, string(result))
}

func (r *AuditRepo) list(ctx context.Context, query string, args ...any) ([]domain.AuditEntry, error) {
	rows, err := r.pool.Query(withStatement(ctx, "audit_list"), query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AuditEntry, error) {
		var (
			e              domain.AuditEntry
			requestTime    time.Time
			action, result string
		)
		if err := row.Scan(&requestTime, &action, &result, &e.Source); err != nil {
			return e, err
		}
		e.RequestTime = requestTime
		e.Action = domain.AuditAction(action)
		e.Result = domain.AuditResult(result)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit entries: %w", err)
	}
	return entries, nil
}
