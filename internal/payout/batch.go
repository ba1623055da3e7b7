package payout

import (
	"sort"
	"time"
)

// NextCutoff returns the earliest batch cutoff strictly after now. Cutoffs
// occur at fixed hours in the operating timezone; a request landing after the
// day's last cutoff rolls to the first cutoff of the next day.
func NextCutoff(now time.Time, loc *time.Location, cutoffHours []int) time.Time {
	local := now.In(loc)

	hours := append([]int(nil), cutoffHours...)
	sort.Ints(hours)

	for _, h := range hours {
		cutoff := time.Date(local.Year(), local.Month(), local.Day(), h, 0, 0, 0, loc)
		if cutoff.After(local) {
			return cutoff
		}
	}
	next := local.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), hours[0], 0, 0, 0, loc)
}

// BatchID is the grouping key for a cutoff. Payouts scheduled into the same
// window share it, so batch aggregates are a single indexed query.
func BatchID(cutoff time.Time) string {
	return cutoff.Format(time.RFC3339)
}
