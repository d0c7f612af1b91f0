package scrobbler

import (
	"fmt"
	"time"
)

// State is the submission state of a queued record
type State int

const (
	StatePending  State = iota // Waiting for submission
	StateInFlight              // Submission currently in progress
	StateFailed                // Submission failed, scheduled for retry
	StateHeld                  // Rejected permanently, kept for operator action
)

// String returns a human-readable representation of the State
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in-flight"
	case StateFailed:
		return "failed"
	case StateHeld:
		return "held"
	default:
		return "unknown"
	}
}

// Record is a qualified listen awaiting submission.
//
// The pair (TrackID, StartedAt) is the record's natural key: it identifies
// one unique listen and deduplicates enqueues and retried submissions.
type Record struct {
	TrackID   string    // Opaque track identifier from the session
	StartedAt time.Time // When the listen began (millisecond precision)
	Artist    string
	Title     string
	Album     string
	Duration  time.Duration // Total track duration
	Played    time.Duration // Accumulated listened time

	State      State
	RetryCount int       // Consecutive failed submissions of this record
	NextRetry  time.Time // Earliest time the record is ready again
	LastError  string    // Message from the most recent failure
}

// Key identifies a unique listen for deduplication
type Key struct {
	TrackID   string
	StartedAt time.Time
}

// Key returns the record's natural key
func (r Record) Key() Key {
	return Key{TrackID: r.TrackID, StartedAt: r.StartedAt}
}

// String returns a short description of the key for logging
func (k Key) String() string {
	return fmt.Sprintf("%s@%d", k.TrackID, k.StartedAt.UnixMilli())
}
