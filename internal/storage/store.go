package storage

import (
	"context"
	"errors"
	"time"

	"github.com/batman-nair/TimeTrak/internal/session"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface. One concrete implementation
// exists per backend so the tracking and query layers never depend on a
// backend's query language.
type Store interface {
	Close() error
	Sessions() SessionStore
	Blacklist() BlacklistStore
}

// QueryFilter narrows session queries. A zero IdentityID means the whole
// scope; a nil From means all time. Filters are inclusive of sessions whose
// start time is on or after From, with no upper bound.
type QueryFilter struct {
	IdentityID string
	From       *time.Time
}

// SessionStore manages per-scope session records keyed by identity.
//
// AddActivitySample is the write entry point driven by the tracker each tick:
// it folds the snapshot into the identity's ongoing sessions and persists the
// ongoing and finalized collections together, atomically. Samples for
// distinct identities are independent; samples for the same identity are
// serialized by the backend so two concurrent ticks cannot drop a session.
type SessionStore interface {
	AddActivitySample(ctx context.Context, scopeID, identityID string, names []string, start, end time.Time) error

	// LastActivities sums ongoing sessions by name.
	LastActivities(ctx context.Context, scopeID string, filter QueryFilter) (map[string]float64, error)
	// AggregatedActivities sums finalized plus ongoing sessions by name, so an
	// in-progress session contributes its partial duration to totals.
	AggregatedActivities(ctx context.Context, scopeID string, filter QueryFilter) (map[string]float64, error)
	// LongestActivities ranks the union of finalized and ongoing sessions by
	// duration descending, attributing each entry to its identity. An empty
	// identityID ranks the whole scope.
	LongestActivities(ctx context.Context, scopeID, identityID string) ([]session.Ranked, error)
	// RawSessions exports full identity records for external visualization.
	RawSessions(ctx context.Context, scopeID, identityID string) ([]IdentityRecord, error)

	// ResetIdentity and ResetScope destroy session data only, leaving the
	// blacklist untouched. The Delete variants also strip the identity or
	// scope from the blacklist collection.
	ResetIdentity(ctx context.Context, scopeID, identityID string) error
	ResetScope(ctx context.Context, scopeID string) error
	DeleteIdentity(ctx context.Context, scopeID, identityID string) error
	DeleteScope(ctx context.Context, scopeID string) error
}

// BlacklistStore manages per-scope exclusion sets with idempotent set
// semantics. Reading a scope that never had an entry yields an empty set.
type BlacklistStore interface {
	Add(ctx context.Context, scopeID string, identityIDs []string) error
	Remove(ctx context.Context, scopeID string, identityIDs []string) error
	Get(ctx context.Context, scopeID string) (map[string]struct{}, error)
}
