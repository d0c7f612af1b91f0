package playback

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// wireTrack is the JSON representation of a track on the event wire
type wireTrack struct {
	ID         string `json:"id"`
	Artist     string `json:"artist"`
	Title      string `json:"title"`
	Album      string `json:"album,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// wireEvent is the JSON representation of a playback event.
// The bridge process emits one event per line.
type wireEvent struct {
	Kind       string     `json:"kind"`
	Track      *wireTrack `json:"track,omitempty"`
	PositionMs int64      `json:"position_ms"`
	At         int64      `json:"at"` // Unix milliseconds
}

// streamLine is one raw line from the reader, or the terminal read error
type streamLine struct {
	data []byte
	err  error
}

// JSONStream reads newline-delimited JSON playback events from a reader,
// typically the stdout of a playback-session bridge piped into us.
type JSONStream struct {
	lines  chan streamLine
	logger zerolog.Logger
}

// NewJSONStream creates a Stream that decodes events from r
func NewJSONStream(r io.Reader, logger zerolog.Logger) *JSONStream {
	scanner := bufio.NewScanner(r)
	// Generous line limit; events are small but titles are unbounded
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	s := &JSONStream{
		lines:  make(chan streamLine),
		logger: logger.With().Str("component", "stream").Logger(),
	}
	go s.read(scanner)
	return s
}

// read pumps lines from the reader into the channel until the reader is
// exhausted or fails. Reads cannot be interrupted by a context, so they
// happen on this goroutine and Next selects against the channel; after
// the consumer walks away it stays parked on the read until the reader
// is closed.
func (s *JSONStream) read(scanner *bufio.Scanner) {
	defer close(s.lines)

	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		s.lines <- streamLine{data: line}
	}
	if err := scanner.Err(); err != nil {
		s.lines <- streamLine{err: err}
	}
}

// Next returns the next playback event from the reader, unblocking with
// the context's error on cancellation even while the reader is idle.
// Malformed lines are logged and skipped - a misbehaving bridge must not
// abort the engine. Returns io.EOF when the reader is exhausted.
func (s *JSONStream) Next(ctx context.Context) (Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}

		var ln streamLine
		var ok bool
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case ln, ok = <-s.lines:
			if !ok {
				return Event{}, io.EOF
			}
		}

		if ln.err != nil {
			return Event{}, fmt.Errorf("failed to read event stream: %w", ln.err)
		}
		if len(ln.data) == 0 {
			continue
		}

		var we wireEvent
		if err := json.Unmarshal(ln.data, &we); err != nil {
			s.logger.Warn().Err(err).Msg("Skipping malformed event line")
			continue
		}

		ev, err := we.toEvent()
		if err != nil {
			s.logger.Warn().Err(err).Str("kind", we.Kind).Msg("Skipping invalid event")
			continue
		}

		return ev, nil
	}
}

// toEvent converts a wire event to the internal representation
func (we *wireEvent) toEvent() (Event, error) {
	kind, err := parseKind(we.Kind)
	if err != nil {
		return Event{}, err
	}

	ev := Event{
		Kind:     kind,
		Position: time.Duration(we.PositionMs) * time.Millisecond,
		At:       time.UnixMilli(we.At),
	}

	if kind == EventStarted || kind == EventTrackChanged {
		if we.Track == nil {
			return Event{}, fmt.Errorf("%s event is missing track", we.Kind)
		}
		ev.Track = &Track{
			ID:       we.Track.ID,
			Artist:   we.Track.Artist,
			Title:    we.Track.Title,
			Album:    we.Track.Album,
			Duration: time.Duration(we.Track.DurationMs) * time.Millisecond,
		}
		if ev.Track.ID == "" {
			return Event{}, fmt.Errorf("%s event has track without id", we.Kind)
		}
	}

	return ev, nil
}

// parseKind maps a wire kind string to an EventKind
func parseKind(kind string) (EventKind, error) {
	switch kind {
	case "started":
		return EventStarted, nil
	case "paused":
		return EventPaused, nil
	case "resumed":
		return EventResumed, nil
	case "seeked":
		return EventSeeked, nil
	case "stopped":
		return EventStopped, nil
	case "track_changed":
		return EventTrackChanged, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q", kind)
	}
}
