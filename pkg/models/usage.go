package models

import "time"

// UsageRecord is one generation's token consumption for a tenant.
type UsageRecord struct {
	TenantID  string    `json:"tenant_id"`
	TokensIn  int64     `json:"tokens_in"`
	TokensOut int64     `json:"tokens_out"`
	CreatedAt time.Time `json:"created_at"`
}

// UsageTotals aggregates a tenant's consumption over a billing month.
type UsageTotals struct {
	TenantID  string `json:"tenant_id"`
	TokensIn  int64  `json:"tokens_in"`
	TokensOut int64  `json:"tokens_out"`
}
