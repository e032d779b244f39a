package session

import "time"

// Merge folds one activity snapshot into an identity's ongoing sessions.
//
// For every reported name, the matching ongoing session is extended in place
// when the new sample starts before the session's end plus breakDelay;
// otherwise the stale session is finalized and a fresh ongoing session is
// started. Names with no ongoing session start a new one. Ongoing sessions
// absent from the snapshot are swept to finalized once their end plus
// breakDelay has passed the sample's end time. Extension always wins over
// sweeping for names present in the snapshot.
//
// Merge is pure: it never mutates its inputs and builds new slices instead of
// removing entries mid-iteration. Duplicate names in a single snapshot are
// deduplicated, an empty snapshot still runs the sweep, and zero-length
// samples (start == end) are legal.
func Merge(ongoing []Session, names []string, start, end time.Time, breakDelay time.Duration) (updated, finalized []Session) {
	start = start.Truncate(time.Millisecond)
	end = end.Truncate(time.Millisecond)

	duration := end.Sub(start).Seconds()
	if duration < 0 {
		duration = 0
	}

	reported := make(map[string]bool, len(names))
	order := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := reported[name]; !ok {
			reported[name] = false
			order = append(order, name)
		}
	}

	updated = make([]Session, 0, len(ongoing)+len(order))
	finalized = make([]Session, 0)

	for _, current := range ongoing {
		matched, isReported := reported[current.Name]
		switch {
		case isReported && !matched:
			reported[current.Name] = true
			if current.End().Add(breakDelay).After(start) {
				// Same session continuing, extend in place.
				current.Duration += duration
				updated = append(updated, current)
			} else {
				// Grace window elapsed: close the stale session and begin a
				// new one under the same name. The new session may have zero
				// duration this tick; it grows (or is swept) on later ticks.
				finalized = append(finalized, current)
				updated = append(updated, New(current.Name, start, duration))
			}
		case current.End().Add(breakDelay).Before(end):
			// Not reported this tick and the grace window has lapsed.
			finalized = append(finalized, current)
		default:
			// Not reported, but still inside the grace window. Keep it open so
			// a single missed sample does not fracture the session.
			updated = append(updated, current)
		}
	}

	for _, name := range order {
		if !reported[name] {
			updated = append(updated, New(name, start, duration))
		}
	}

	return updated, finalized
}
