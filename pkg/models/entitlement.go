package models

// Plan is a tenant's billing tier.
type Plan string

const (
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
	PlanPro     Plan = "pro"
)

// ParsePlan maps a stored plan string to a Plan, defaulting unknown
// values to the basic tier.
func ParsePlan(s string) Plan {
	switch Plan(s) {
	case PlanPremium:
		return PlanPremium
	case PlanPro:
		return PlanPro
	default:
		return PlanBasic
	}
}

// Caps holds the numeric monthly allowances for a plan.
type Caps struct {
	Concurrency    int64 `json:"concurrency" yaml:"concurrency"`
	TokensMonthIn  int64 `json:"tokens_month_in" yaml:"tokens_month_in"`
	TokensMonthOut int64 `json:"tokens_month_out" yaml:"tokens_month_out"`
	ImageGen       int64 `json:"image_gen" yaml:"image_gen"`
	MusicGen       int64 `json:"music_gen" yaml:"music_gen"`
	VisionDescribe int64 `json:"vision_describe" yaml:"vision_describe"`
}

// Entitlement is an immutable snapshot of what a tenant's plan allows.
// A new snapshot replaces the old one wholesale; fields are never
// updated in place.
type Entitlement struct {
	TenantID string `json:"tenant_id"`
	Plan     Plan   `json:"plan"`
	Caps     Caps   `json:"caps"`
}

// DefaultCaps returns the built-in caps for a plan. The basic tier
// doubles as the conservative fallback when the entitlement store is
// unreachable.
func DefaultCaps(plan Plan) Caps {
	switch plan {
	case PlanPro:
		return Caps{
			Concurrency:    5,
			TokensMonthIn:  2000000,
			TokensMonthOut: 600000,
			ImageGen:       200,
			MusicGen:       50,
			VisionDescribe: 200,
		}
	case PlanPremium:
		return Caps{
			Concurrency:    2,
			TokensMonthIn:  800000,
			TokensMonthOut: 240000,
			ImageGen:       50,
			MusicGen:       10,
			VisionDescribe: 50,
		}
	default:
		return Caps{
			Concurrency:    1,
			TokensMonthIn:  200000,
			TokensMonthOut: 60000,
		}
	}
}

// DefaultEntitlement is the snapshot served when the tenant is unknown
// or the store is unavailable.
func DefaultEntitlement(tenantID string) Entitlement {
	return Entitlement{
		TenantID: tenantID,
		Plan:     PlanBasic,
		Caps:     DefaultCaps(PlanBasic),
	}
}
