package session

import "time"

// Session is a contiguous period of one named activity. A session is either
// ongoing (still being extended by new samples) or finalized (immutable);
// which state it is in is determined by the collection that holds it, not by
// a field on the session itself.
type Session struct {
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Duration  float64   `json:"duration"` // seconds
}

// New creates a session with its start time normalized to millisecond
// precision so stored timestamps round-trip exactly through JSON.
func New(name string, start time.Time, duration float64) Session {
	return Session{
		Name:      name,
		StartTime: start.Truncate(time.Millisecond),
		Duration:  duration,
	}
}

// End returns the instant the session's observed activity last covered.
func (s Session) End() time.Time {
	return s.StartTime.Add(time.Duration(s.Duration * float64(time.Second)))
}

// Ranked is a session attributed to the identity that produced it, used by
// longest-session rankings and raw exports.
type Ranked struct {
	Session
	IdentityID string `json:"identity_id"`
}
