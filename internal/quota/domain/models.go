package domain

import (
	"fmt"
	"time"

	identitydomain "github.com/keshav-const/promptlens-sub000/internal/identity/domain"
)

// ResetWindow is the rolling quota window. It is anchored to the user's
// last reset, not to a calendar boundary.
const ResetWindow = 24 * time.Hour

// planLimits maps plans to their daily ceiling. Absent means unlimited.
var planLimits = map[identitydomain.Plan]int{
	identitydomain.PlanFree:       4,
	identitydomain.PlanProMonthly: 50,
}

// LimitFor returns the ceiling for a plan and whether one applies.
// Unknown plans get the free ceiling so a corrupted plan value fails
// safe instead of open.
func LimitFor(plan identitydomain.Plan) (int, bool) {
	if !plan.Known() {
		plan = identitydomain.PlanFree
	}
	limit, limited := planLimits[plan]
	return limit, limited
}

// ExceededError reports a quota rejection with enough detail for the
// caller to present retry guidance.
type ExceededError struct {
	UsageCount int
	Limit      int
	Plan       identitydomain.Plan
	ResetAt    time.Time
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota_exceeded: %d/%d on plan %s, resets at %s",
		e.UsageCount, e.Limit, e.Plan, e.ResetAt.Format(time.RFC3339))
}

// Summary is the read-only view served to usage inspection endpoints.
type Summary struct {
	UsageCount int                 `json:"usage_count"`
	Limit      *int                `json:"limit"`
	Plan       identitydomain.Plan `json:"plan"`
	ResetAt    time.Time           `json:"reset_at"`
}
