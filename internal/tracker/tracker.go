package tracker

import (
	"time"

	"github.com/jfmyers9/scrobbled/internal/playback"
	"github.com/rs/zerolog"
)

// sessionState represents the playback state of the tracked session
type sessionState int

const (
	statePlaying sessionState = iota
	statePaused
)

// Session is the single currently-tracked listen. It is owned exclusively
// by the Tracker and never shared.
type Session struct {
	Track          playback.Track
	StartedAt      time.Time     // Wall-clock time the session began
	Played         time.Duration // Accumulated listened time, excludes pauses
	state          sessionState
	lastTransition time.Time // When the session last entered its current state
}

// Outcome is a finalized session, handed to the caller for qualification
type Outcome struct {
	Track     playback.Track
	StartedAt time.Time
	Played    time.Duration
}

// Tracker converts ordered playback events into finalized session outcomes.
//
// It maintains at most one active Session at a time, accumulating listened
// time across pause/resume cycles. Not safe for concurrent use: the event
// path is sequential by design and the Tracker is owned by the event loop.
type Tracker struct {
	session *Session
	logger  zerolog.Logger
}

// New creates a new Tracker instance
func New(logger zerolog.Logger) *Tracker {
	return &Tracker{
		logger: logger.With().Str("component", "tracker").Logger(),
	}
}

// Current returns the currently tracked session, or nil if none is active
func (t *Tracker) Current() *Session {
	return t.session
}

// Handle consumes one playback event and returns the finalized session
// outcome when the event ends a listen, or nil otherwise.
func (t *Tracker) Handle(ev playback.Event) *Outcome {
	switch ev.Kind {
	case playback.EventStarted, playback.EventTrackChanged:
		outcome := t.finalize(ev.At)
		t.session = &Session{
			Track:          *ev.Track,
			StartedAt:      ev.At,
			state:          statePlaying,
			lastTransition: ev.At,
		}
		t.logger.Debug().
			Str("track", ev.Track.Title).
			Str("artist", ev.Track.Artist).
			Msg("Tracking new session")
		return outcome

	case playback.EventPaused:
		if t.session == nil {
			t.logger.Warn().Str("event", ev.Kind.String()).Msg("Event with no active session")
			return nil
		}
		if t.session.state == statePlaying {
			t.session.Played += ev.At.Sub(t.session.lastTransition)
			t.session.state = statePaused
			t.session.lastTransition = ev.At
		}
		return nil

	case playback.EventResumed:
		if t.session == nil {
			t.logger.Warn().Str("event", ev.Kind.String()).Msg("Event with no active session")
			return nil
		}
		if t.session.state == statePaused {
			t.session.state = statePlaying
			t.session.lastTransition = ev.At
		}
		return nil

	case playback.EventSeeked:
		// Position jumps are not listened time; nothing to accumulate
		if t.session == nil {
			t.logger.Warn().Str("event", ev.Kind.String()).Msg("Event with no active session")
			return nil
		}
		t.logger.Debug().
			Dur("position", ev.Position).
			Str("track", t.session.Track.Title).
			Msg("Seek within session")
		return nil

	case playback.EventStopped:
		if t.session == nil {
			t.logger.Warn().Str("event", ev.Kind.String()).Msg("Event with no active session")
			return nil
		}
		return t.finalize(ev.At)

	default:
		t.logger.Warn().Str("event", ev.Kind.String()).Msg("Unknown event kind")
		return nil
	}
}

// Flush finalizes the active session, if any, using now as the end time.
// Called when the event stream closes so a listen cut short by session end
// is still evaluated for qualification.
func (t *Tracker) Flush(now time.Time) *Outcome {
	return t.finalize(now)
}

// finalize closes out the active session and clears it, returning the
// accumulated outcome. Returns nil if no session is active.
func (t *Tracker) finalize(at time.Time) *Outcome {
	if t.session == nil {
		return nil
	}

	s := t.session
	t.session = nil

	if s.state == statePlaying {
		s.Played += at.Sub(s.lastTransition)
	}

	t.logger.Debug().
		Str("track", s.Track.Title).
		Dur("played", s.Played).
		Msg("Finalized session")

	return &Outcome{
		Track:     s.Track,
		StartedAt: s.StartedAt,
		Played:    s.Played,
	}
}
