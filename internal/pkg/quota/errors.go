package quota

import (
	"errors"
	"fmt"

	"github.com/ManuelReschke/NoteFox/internal/pkg/entitlements"
)

var (
	// ErrFeatureNotEntitled means the plan does not include the feature at all.
	ErrFeatureNotEntitled = errors.New("feature not available for plan")

	// ErrStorage wraps every persistence failure. Callers must treat it as a denial.
	ErrStorage = errors.New("usage storage failure")

	// ErrContention is returned by stores when conditional updates keep losing races.
	ErrContention = errors.New("usage record contended")
)

// LimitExceededError reports an exhausted quota for the current window.
type LimitExceededError struct {
	Feature   entitlements.Feature
	Plan      entitlements.Plan
	Period    entitlements.Period
	UsedCount int64
	Limit     int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit reached for your %s plan (%d/%d %s)", e.Feature, e.Plan, e.UsedCount, e.Limit, cadence(e.Period))
}

func cadence(p entitlements.Period) string {
	if p == entitlements.PeriodMonth {
		return "monthly"
	}
	return "daily"
}

// IsDenied reports whether err is a user-facing quota denial rather than an
// internal failure.
func IsDenied(err error) bool {
	var limitErr *LimitExceededError
	return errors.Is(err, ErrFeatureNotEntitled) || errors.As(err, &limitErr)
}
