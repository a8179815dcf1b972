package domain

// Plan is the billing tier for a session. It controls quota enforcement
// and which generation model is selected; nothing else.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// ParsePlan maps untrusted client input to a plan. Anything that is not
// exactly "pro" resolves to free.
func ParsePlan(s string) Plan {
	if s == string(PlanPro) {
		return PlanPro
	}
	return PlanFree
}
