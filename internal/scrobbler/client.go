package scrobbler

import (
	"context"
	"errors"

	"github.com/jfmyers9/scrobbled/internal/playback"
)

// Client is the external submission service as seen by the engine: a
// now-playing indicator update and a scrobble submission. Implementations
// translate their transport errors into the retryable/permanent split via
// PermanentError.
type Client interface {
	// UpdateNowPlaying sets the now-playing indicator for the track.
	// Best-effort: callers log failures and move on.
	UpdateNowPlaying(ctx context.Context, track playback.Track) error

	// Submit reports one completed listen. A nil return means the service
	// confirmed the scrobble and the record may be removed.
	Submit(ctx context.Context, record Record) error
}

// PermanentError marks a submission failure that retrying cannot fix,
// such as rejected credentials or a payload the service refuses.
type PermanentError struct {
	Err error
}

// Error returns the underlying error message
func (e *PermanentError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *PermanentError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err is a permanent submission failure
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
