package scrobbler

import (
	"context"
	"errors"
	"fmt"

	"github.com/jfmyers9/scrobbled/internal/playback"
	"github.com/jfmyers9/scrobbled/pkg/lastfm"
	"github.com/rs/zerolog"
)

// LastFM implements Client against the Last.fm API
type LastFM struct {
	client *lastfm.Client
	logger zerolog.Logger
}

// NewLastFM creates a Last.fm submission client with an existing session key
func NewLastFM(apiKey, apiSecret, sessionKey string, logger zerolog.Logger) (*LastFM, error) {
	client, err := lastfm.NewClient(lastfm.Config{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		SessionKey: sessionKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create lastfm client: %w", err)
	}

	return &LastFM{
		client: client,
		logger: logger.With().Str("component", "lastfm").Logger(),
	}, nil
}

// UpdateNowPlaying sets the Last.fm now-playing indicator for the track
func (l *LastFM) UpdateNowPlaying(ctx context.Context, track playback.Track) error {
	lfmTrack := lastfm.Track{
		Artist: track.Artist,
		Track:  track.Title,
		Album:  track.Album,
	}
	if track.Duration > 0 {
		lfmTrack.Duration = int(track.Duration.Seconds())
	}

	_, err := l.client.Scrobble().UpdateNowPlaying(ctx, lfmTrack)
	if err != nil {
		return fmt.Errorf("failed to update now playing: %w", err)
	}

	return nil
}

// Submit scrobbles one completed listen.
//
// The listen's start timestamp goes on the wire; since Last.fm
// deduplicates on (track, timestamp), resubmitting the same record
// after an ambiguous failure cannot double-count the listen.
//
// Errors the API classifies as unfixable come back wrapped in
// PermanentError so the worker holds the record instead of retrying.
func (l *LastFM) Submit(ctx context.Context, record Record) error {
	lfmTrack := lastfm.Track{
		Artist: record.Artist,
		Track:  record.Title,
		Album:  record.Album,
	}
	if record.Duration > 0 {
		lfmTrack.Duration = int(record.Duration.Seconds())
	}

	resp, err := l.client.Scrobble().Scrobble(ctx, lfmTrack, record.StartedAt)
	if err != nil {
		var lfmErr *lastfm.Error
		if errors.As(err, &lfmErr) && lfmErr.Permanent() {
			return &PermanentError{Err: err}
		}
		return fmt.Errorf("failed to scrobble track: %w", err)
	}

	if resp.Ignored > 0 {
		// The service deliberately declined this listen (timestamp too
		// old, filtered artist). Retrying the same payload can never
		// change its mind, but the rejection is per-record, not fatal:
		// count it as done and move on.
		l.logger.Warn().
			Str("track", record.Title).
			Str("artist", record.Artist).
			Int("code", resp.IgnoredMessage.Code).
			Str("reason", resp.IgnoredMessage.Text).
			Msg("Scrobble ignored by Last.fm")
	}

	return nil
}
