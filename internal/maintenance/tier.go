package maintenance

import "time"

// Tier is the freshness classification of a category.
type Tier string

const (
	TierFresh Tier = "fresh"
	TierAging Tier = "aging"
	TierStale Tier = "stale"
)

const (
	freshDays = 7
	agingDays = 30
)

// TierForDays maps elapsed days to a tier: under 7 is fresh, under 30 is
// aging, anything else is stale.
func TierForDays(days float64) Tier {
	switch {
	case days < freshDays:
		return TierFresh
	case days < agingDays:
		return TierAging
	default:
		return TierStale
	}
}

// ClassifyTier grades the distance between target and now. A future target
// is graded by its distance just like a past one.
func ClassifyTier(target, now time.Time) Tier {
	return TierForDays(DaysSince(target, now))
}
