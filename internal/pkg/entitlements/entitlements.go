package entitlements

import (
	"encoding/json"
	"strconv"
	"strings"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
	PlanPro     Plan = "pro"
)

// Feature is a separately metered capability.
type Feature string

const (
	FeatureSummaries   Feature = "summaries"
	FeatureQuestions   Feature = "questions"
	FeatureFlashcards  Feature = "flashcards"
	FeatureHumanize    Feature = "humanize"
	FeatureUploads     Feature = "uploads"
	FeatureVocabulary  Feature = "vocabulary"
	FeatureDiagrams    Feature = "diagrams"
	FeatureHandwritten Feature = "handwritten"
)

// Period is the reset cadence of a quota.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// Limit is either a bounded non-negative count or unbounded.
type Limit struct {
	n         int64
	unbounded bool
}

// Bounded returns a limit of n calls per window. Negative values clamp to 0.
func Bounded(n int64) Limit {
	if n < 0 {
		n = 0
	}
	return Limit{n: n}
}

// Unbounded returns a limit that is never enforced.
func Unbounded() Limit {
	return Limit{unbounded: true}
}

func (l Limit) IsUnbounded() bool { return l.unbounded }

// Value returns the bounded count; it is meaningless for unbounded limits.
func (l Limit) Value() int64 { return l.n }

// Allows reports whether one more call fits after used calls.
func (l Limit) Allows(used int64) bool {
	return l.unbounded || used < l.n
}

// Remaining returns how many calls are left, or -1 when unbounded.
func (l Limit) Remaining(used int64) int64 {
	if l.unbounded {
		return -1
	}
	if used >= l.n {
		return 0
	}
	return l.n - used
}

func (l Limit) String() string {
	if l.unbounded {
		return "unlimited"
	}
	return strconv.FormatInt(l.n, 10)
}

// MarshalJSON encodes unbounded limits as null.
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.unbounded {
		return []byte("null"), nil
	}
	return json.Marshal(l.n)
}

// Rule is the per-feature allowance of a plan.
type Rule struct {
	Limit  Limit  `json:"limit"`
	Period Period `json:"period"`
}

// Catalog maps plan → feature → rule. It is built once and only read afterwards.
type Catalog map[Plan]map[Feature]Rule

// LimitsFor returns the rule of a feature for a plan. ok is false when the
// plan is not entitled to the feature at all, which is distinct from a zero limit.
func (c Catalog) LimitsFor(plan Plan, feature Feature) (Rule, bool) {
	features, ok := c[plan]
	if !ok {
		return Rule{}, false
	}
	rule, ok := features[feature]
	return rule, ok
}

// Features lists every metered feature in a stable order.
func Features() []Feature {
	return []Feature{
		FeatureSummaries,
		FeatureQuestions,
		FeatureFlashcards,
		FeatureHumanize,
		FeatureUploads,
		FeatureVocabulary,
		FeatureDiagrams,
		FeatureHandwritten,
	}
}

func day(n int64) Rule   { return Rule{Limit: Bounded(n), Period: PeriodDay} }
func month(n int64) Rule { return Rule{Limit: Bounded(n), Period: PeriodMonth} }

var defaultCatalog = Catalog{
	PlanFree: {
		FeatureSummaries:  day(3),
		FeatureQuestions:  day(5),
		FeatureFlashcards: day(3),
		FeatureHumanize:   month(10),
		FeatureUploads:    day(1),
	},
	PlanBasic: {
		FeatureSummaries:   month(300),
		FeatureQuestions:   month(100),
		FeatureFlashcards:  month(300),
		FeatureHumanize:    month(20),
		FeatureUploads:     day(15),
		FeatureVocabulary:  month(100),
		FeatureDiagrams:    month(50),
		FeatureHandwritten: month(30),
	},
	PlanPremium: {
		FeatureSummaries:   month(900),
		FeatureQuestions:   month(650),
		FeatureFlashcards:  month(900),
		FeatureHumanize:    month(200),
		FeatureUploads:     day(50),
		FeatureVocabulary:  month(400),
		FeatureDiagrams:    month(200),
		FeatureHandwritten: month(100),
	},
	PlanPro: {
		FeatureSummaries:   {Limit: Unbounded(), Period: PeriodMonth},
		FeatureQuestions:   {Limit: Unbounded(), Period: PeriodMonth},
		FeatureFlashcards:  {Limit: Unbounded(), Period: PeriodMonth},
		FeatureHumanize:    {Limit: Unbounded(), Period: PeriodMonth},
		FeatureUploads:     {Limit: Unbounded(), Period: PeriodDay},
		FeatureVocabulary:  {Limit: Unbounded(), Period: PeriodMonth},
		FeatureDiagrams:    {Limit: Unbounded(), Period: PeriodMonth},
		FeatureHandwritten: {Limit: Unbounded(), Period: PeriodMonth},
	},
}

// DefaultCatalog returns the process-wide plan table. Callers must not mutate it.
func DefaultCatalog() Catalog {
	return defaultCatalog
}

// ParsePlan normalizes a stored plan name. Unknown names report ok=false.
func ParsePlan(plan string) (Plan, bool) {
	switch p := Plan(strings.ToLower(strings.TrimSpace(plan))); p {
	case PlanFree, PlanBasic, PlanPremium, PlanPro:
		return p, true
	default:
		return PlanFree, false
	}
}
