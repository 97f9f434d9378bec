// Package usage records per-tenant token consumption and answers
// whether a tenant is over its monthly budget.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/murmur-ai/murmur/pkg/models"
)

// Ledger stores usage records in SQLite.
type Ledger struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS usage_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id TEXT NOT NULL,
	tokens_in INTEGER NOT NULL,
	tokens_out INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_usage_tenant_time ON usage_records(tenant_id, created_at);
`

// New opens the usage database and runs auto-migration.
func New(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open usage db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate usage db: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Record stores one generation's token counts for a tenant.
func (l *Ledger) Record(ctx context.Context, rec models.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO usage_records (tenant_id, tokens_in, tokens_out, created_at) VALUES (?, ?, ?, ?)`,
		rec.TenantID, rec.TokensIn, rec.TokensOut, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// MonthTotals returns the tenant's consumption since the start of the
// current calendar month (UTC).
func (l *Ledger) MonthTotals(ctx context.Context, tenantID string) (models.UsageTotals, error) {
	totals := models.UsageTotals{TenantID: tenantID}

	err := l.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(tokens_in), 0), COALESCE(SUM(tokens_out), 0)
		 FROM usage_records WHERE tenant_id = ? AND created_at >= ?`,
		tenantID, monthStart(time.Now().UTC()),
	).Scan(&totals.TokensIn, &totals.TokensOut)
	if err != nil {
		return totals, fmt.Errorf("month totals: %w", err)
	}
	return totals, nil
}

// Exceeded reports whether the tenant has spent its monthly input or
// output token budget.
func (l *Ledger) Exceeded(ctx context.Context, ent models.Entitlement) (bool, error) {
	totals, err := l.MonthTotals(ctx, ent.TenantID)
	if err != nil {
		return false, err
	}
	return totals.TokensIn >= ent.Caps.TokensMonthIn || totals.TokensOut >= ent.Caps.TokensMonthOut, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func monthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
