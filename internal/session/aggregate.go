package session

import (
	"sort"
	"time"
)

// Accumulate adds the duration of every session starting at or after from
// into totals, keyed by activity name. A nil from means no lower bound; there
// is never an upper bound. Durations stay in float64 seconds so repeated
// accumulation never loses sub-second precision; rounding is left to callers
// at presentation time.
func Accumulate(totals map[string]float64, sessions []Session, from *time.Time) {
	for _, s := range sessions {
		if from != nil && s.StartTime.Before(*from) {
			continue
		}
		totals[s.Name] += s.Duration
	}
}

// SumDurations returns per-name summed durations for the given sessions,
// filtered by from as in Accumulate.
func SumDurations(sessions []Session, from *time.Time) map[string]float64 {
	totals := make(map[string]float64)
	Accumulate(totals, sessions, from)
	return totals
}

// RankLongest orders sessions by duration descending. The sort is stable so
// equal durations keep their insertion order; no secondary key is defined.
func RankLongest(entries []Ranked) []Ranked {
	ranked := make([]Ranked, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Duration > ranked[j].Duration
	})
	return ranked
}
