package domain

import "strings"

// Plan is a pricing tier.
type Plan string

const (
	PlanStart      Plan = "start"
	PlanFlow       Plan = "flow"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Plans lists every plan in ascending order.
var Plans = []Plan{PlanStart, PlanFlow, PlanPro, PlanEnterprise}

// ParsePlan normalizes a plan name. Unknown or empty names resolve to start.
func ParsePlan(s string) Plan {
	switch p := Plan(strings.ToLower(strings.TrimSpace(s))); p {
	case PlanStart, PlanFlow, PlanPro, PlanEnterprise:
		return p
	}
	return PlanStart
}

// SeatLimitForPlan returns the number of seats included in a plan.
// A nil result means unlimited.
func SeatLimitForPlan(p Plan) *int {
	var n int
	switch ParsePlan(string(p)) {
	case PlanFlow:
		n = 3
	case PlanPro:
		n = 10
	case PlanEnterprise:
		return nil
	default:
		n = 1
	}
	return &n
}
