package billing

import (
	"strings"

	"github.com/ManuelReschke/NoteFox/internal/pkg/entitlements"
)

// PlanLookup maps provider plan ids to internal plans.
type PlanLookup map[string]entitlements.Plan

// NewPlanLookup builds a lookup from a plan_id → plan name table. Names that
// are no known plan are skipped.
func NewPlanLookup(table map[string]string) PlanLookup {
	out := make(PlanLookup, len(table))
	for id, name := range table {
		plan, ok := entitlements.ParsePlan(name)
		if !ok {
			continue
		}
		out[strings.TrimSpace(id)] = plan
	}
	return out
}

func (l PlanLookup) Resolve(providerPlanID string) (entitlements.Plan, bool) {
	plan, ok := l[strings.TrimSpace(providerPlanID)]
	return plan, ok
}
