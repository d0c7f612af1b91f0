package playback

import (
	"context"
	"time"
)

// Track represents a track observed in the remote playback session
type Track struct {
	ID       string        // Opaque stable track identifier from the session
	Artist   string        // Artist name
	Title    string        // Track title
	Album    string        // Album name (optional)
	Duration time.Duration // Total track duration
}

// EventKind identifies the type of a playback state change
type EventKind int

const (
	EventStarted      EventKind = iota // A new track started playing
	EventPaused                        // Playback paused
	EventResumed                       // Playback resumed from pause
	EventSeeked                        // Playback position jumped
	EventStopped                       // Playback stopped, no replacement track
	EventTrackChanged                  // The session switched to a different track
)

// String returns a human-readable representation of the EventKind
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventSeeked:
		return "seeked"
	case EventStopped:
		return "stopped"
	case EventTrackChanged:
		return "track_changed"
	default:
		return "unknown"
	}
}

// Event is a single playback state change observed in the session.
// Events arrive in non-decreasing wall-clock order; the bridge is
// responsible for ordering.
type Event struct {
	Kind     EventKind
	Track    *Track        // Set for Started and TrackChanged events
	Position time.Duration // Playback position when the event occurred
	At       time.Time     // Wall-clock time the event was observed
}

// Stream produces an ordered, unbounded sequence of playback events.
//
// Next blocks until an event is available, the context is cancelled, or
// the session ends. A stream ends exactly once, by returning io.EOF;
// streams are not restartable - reconnection surfaces as a fresh stream.
type Stream interface {
	Next(ctx context.Context) (Event, error)
}
