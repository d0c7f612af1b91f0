package scrobbler

import (
	"time"
)

// Scrobble qualification constants
const (
	// MinimumTrackDuration is the minimum track length for a listen to
	// ever count (30 seconds). Shorter tracks are noise or previews.
	MinimumTrackDuration = 30 * time.Second

	// ScrobblePercentage is the fraction of the track that must be played (50%)
	ScrobblePercentage = 0.5

	// MaxScrobbleThreshold caps the required listened time (4 minutes)
	MaxScrobbleThreshold = 4 * time.Minute
)

// ScrobbleThreshold returns the listened time required for a track of
// the given duration to qualify: half the duration, capped at 4 minutes
func ScrobbleThreshold(trackDuration time.Duration) time.Duration {
	threshold := time.Duration(float64(trackDuration) * ScrobblePercentage)
	if threshold > MaxScrobbleThreshold {
		threshold = MaxScrobbleThreshold
	}
	return threshold
}

// ShouldScrobble decides whether a finished listen counts as a scrobble.
//
// A track shorter than 30 seconds never qualifies. Otherwise the listen
// qualifies when the accumulated played time reaches half the track's
// duration or 4 minutes, whichever is smaller.
//
// This is the single place the qualification policy lives; every
// finalized session passes through here exactly once.
func ShouldScrobble(trackDuration, playedDuration time.Duration) bool {
	if trackDuration < MinimumTrackDuration {
		return false
	}

	return playedDuration >= ScrobbleThreshold(trackDuration)
}
