package storage

import (
	"time"

	"github.com/batman-nair/TimeTrak/internal/session"
)

// IdentityRecord is the persisted unit of session data: one document per
// tracked identity within a scope, holding its mutable ongoing sessions and
// its immutable finalized sessions. The two collections are always written
// together; a record where one was saved without the other can resurrect or
// lose sessions on restart.
type IdentityRecord struct {
	IdentityID string            `json:"identity_id"`
	Ongoing    []session.Session `json:"ongoing_sessions"`
	Finalized  []session.Session `json:"sessions"`
}

// Fold applies one activity snapshot to the record, moving newly finalized
// sessions from Ongoing into Finalized. It returns how many sessions were
// finalized by this sample.
func (r *IdentityRecord) Fold(names []string, start, end time.Time, breakDelay time.Duration) int {
	updated, finalized := session.Merge(r.Ongoing, names, start, end, breakDelay)
	r.Ongoing = updated
	r.Finalized = append(r.Finalized, finalized...)
	return len(finalized)
}

// Empty reports whether the record holds no session data at all.
func (r *IdentityRecord) Empty() bool {
	return len(r.Ongoing) == 0 && len(r.Finalized) == 0
}
