// Package tenantstore persists tenant entitlements in SQLite. It is
// the source of truth beneath the entitlement cache; the billing side
// writes here and then publishes an invalidation.
package tenantstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/murmur-ai/murmur/pkg/entitlements"
	"github.com/murmur-ai/murmur/pkg/models"
)

// Store reads and writes entitlement rows. It implements
// entitlements.Store.
type Store struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS tenant_entitlements (
	tenant_id TEXT PRIMARY KEY,
	plan TEXT NOT NULL,
	caps TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// New opens the entitlement database and runs auto-migration.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tenant db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tenant db: %w", err)
	}

	return &Store{db: db}, nil
}

// Lookup returns the stored entitlement for a tenant, or
// entitlements.ErrTenantNotFound.
func (s *Store) Lookup(ctx context.Context, tenantID string) (models.Entitlement, error) {
	var plan string
	var capsJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT plan, caps FROM tenant_entitlements WHERE tenant_id = ?`, tenantID,
	).Scan(&plan, &capsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entitlement{}, entitlements.ErrTenantNotFound
	}
	if err != nil {
		return models.Entitlement{}, fmt.Errorf("lookup entitlement: %w", err)
	}

	ent := models.Entitlement{TenantID: tenantID, Plan: models.ParsePlan(plan)}
	if err := json.Unmarshal([]byte(capsJSON), &ent.Caps); err != nil {
		return models.Entitlement{}, fmt.Errorf("decode caps for %s: %w", tenantID, err)
	}
	return ent, nil
}

// Upsert replaces a tenant's entitlement row wholesale.
func (s *Store) Upsert(ctx context.Context, ent models.Entitlement) error {
	capsJSON, err := json.Marshal(ent.Caps)
	if err != nil {
		return fmt.Errorf("encode caps: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tenant_entitlements (tenant_id, plan, caps, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(tenant_id) DO UPDATE SET plan = excluded.plan, caps = excluded.caps, updated_at = excluded.updated_at`,
		ent.TenantID, string(ent.Plan), string(capsJSON), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert entitlement: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
