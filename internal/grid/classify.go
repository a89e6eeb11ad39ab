package grid

import "calgrid/internal/model"

// Visual buckets an event bar can be painted with.
const (
	ClassNone      = ""
	ClassReading   = "reading"
	ClassSupport   = "support"
	ClassCrisis    = "crisis"
	ClassPractical = "practical"
	ClassJob       = "job"
	ClassRunning   = "running"
)

// DefaultClasses maps normalized category keys to visual buckets.
var DefaultClasses = map[string]string{
	"reading":     ClassReading,
	"mathematics": ClassReading,
	"support":     ClassSupport,
	"crisis":      ClassCrisis,
	"practical":   ClassPractical,
	"programming": ClassPractical,
	"job":         ClassJob,
	"running":     ClassRunning,
}

// Classifier resolves a category label to a visual bucket by exact match on
// the normalized category key. Substring matching is intentionally not
// supported: "jobsearch" must not be painted as "job".
type Classifier struct {
	table map[string]string
}

// NewClassifier builds a classifier from DefaultClasses plus extra entries.
// Extra keys are normalized; an extra entry overrides a default with the same key.
func NewClassifier(extra map[string]string) *Classifier {
	table := make(map[string]string, len(DefaultClasses)+len(extra))
	for k, v := range DefaultClasses {
		table[k] = v
	}
	for k, v := range extra {
		table[model.CategoryKey(k)] = v
	}
	return &Classifier{table: table}
}

// Classify returns the bucket for category, or ClassNone when unknown.
func (c *Classifier) Classify(category string) string {
	if c == nil {
		return DefaultClasses[model.CategoryKey(category)]
	}
	return c.table[model.CategoryKey(category)]
}
