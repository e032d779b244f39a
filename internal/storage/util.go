package storage

import (
	"time"

	"github.com/batman-nair/TimeTrak/internal/session"
)

// Query helpers shared by the storage backends. Backends load the relevant
// identity records and delegate the aggregation semantics here so both give
// identical answers.

// CollectLast sums ongoing sessions by name across the given records.
func CollectLast(records []IdentityRecord, from *time.Time) map[string]float64 {
	totals := make(map[string]float64)
	for _, record := range records {
		session.Accumulate(totals, record.Ongoing, from)
	}
	return totals
}

// CollectAggregated sums finalized sessions by name, then folds in ongoing
// sessions under the same filter. Finalized and ongoing are disjoint by
// construction, so nothing is double counted.
func CollectAggregated(records []IdentityRecord, from *time.Time) map[string]float64 {
	totals := make(map[string]float64)
	for _, record := range records {
		session.Accumulate(totals, record.Finalized, from)
		session.Accumulate(totals, record.Ongoing, from)
	}
	return totals
}

// CollectLongest ranks the union of finalized and ongoing sessions across the
// given records by duration descending.
func CollectLongest(records []IdentityRecord) []session.Ranked {
	entries := make([]session.Ranked, 0)
	for _, record := range records {
		for _, s := range record.Finalized {
			entries = append(entries, session.Ranked{Session: s, IdentityID: record.IdentityID})
		}
		for _, s := range record.Ongoing {
			entries = append(entries, session.Ranked{Session: s, IdentityID: record.IdentityID})
		}
	}
	return session.RankLongest(entries)
}
