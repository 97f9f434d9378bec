package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/murmur-ai/murmur/pkg/models"
)

func setup(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestMonthTotals(t *testing.T) {
	l := setup(t)
	ctx := context.Background()

	_ = l.Record(ctx, models.UsageRecord{TenantID: "t1", TokensIn: 100, TokensOut: 40})
	_ = l.Record(ctx, models.UsageRecord{TenantID: "t1", TokensIn: 50, TokensOut: 20})
	_ = l.Record(ctx, models.UsageRecord{TenantID: "t2", TokensIn: 999, TokensOut: 999})

	totals, err := l.MonthTotals(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if totals.TokensIn != 150 || totals.TokensOut != 60 {
		t.Errorf("expected 150/60, got %d/%d", totals.TokensIn, totals.TokensOut)
	}
}

func TestMonthTotalsExcludesPastMonths(t *testing.T) {
	l := setup(t)
	ctx := context.Background()

	_ = l.Record(ctx, models.UsageRecord{
		TenantID: "t1", TokensIn: 500, TokensOut: 500,
		CreatedAt: time.Now().UTC().AddDate(0, -2, 0),
	})
	_ = l.Record(ctx, models.UsageRecord{TenantID: "t1", TokensIn: 10, TokensOut: 5})

	totals, err := l.MonthTotals(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if totals.TokensIn != 10 || totals.TokensOut != 5 {
		t.Errorf("past months leaked into totals: %+v", totals)
	}
}

func TestExceeded(t *testing.T) {
	l := setup(t)
	ctx := context.Background()

	ent := models.Entitlement{TenantID: "t1", Plan: models.PlanBasic, Caps: models.DefaultCaps(models.PlanBasic)}

	over, err := l.Exceeded(ctx, ent)
	if err != nil || over {
		t.Fatalf("fresh tenant should be under budget: %v %v", over, err)
	}

	_ = l.Record(ctx, models.UsageRecord{TenantID: "t1", TokensOut: ent.Caps.TokensMonthOut})
	over, err = l.Exceeded(ctx, ent)
	if err != nil {
		t.Fatal(err)
	}
	if !over {
		t.Error("expected output budget exhaustion to be reported")
	}
}
