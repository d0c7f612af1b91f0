package lastfm

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"
)

// ScrobbleService provides scrobbling operations for the Last.fm API.
type ScrobbleService struct {
	client *Client
}

// UpdateNowPlaying updates the "now playing" status on Last.fm.
//
// This should be called when a track starts playing. It does not count
// as a scrobble and does not affect play counts.
//
// Requires authentication (session key must be set via SetSessionKey).
//
// Example:
//
//	track := lastfm.Track{
//	    Artist: "The Beatles",
//	    Track:  "Yesterday",
//	    Album:  "Help!",
//	}
//	_, err := client.Scrobble().UpdateNowPlaying(ctx, track)
//	if err != nil {
//	    log.Printf("Failed to update now playing: %v", err)
//	}
func (s *ScrobbleService) UpdateNowPlaying(ctx context.Context, track Track) (*NowPlayingResponse, error) {
	if s.client.sessionKey == "" {
		return nil, ErrNoSessionKey
	}

	params := map[string]string{
		"artist": track.Artist,
		"track":  track.Track,
		"sk":     s.client.sessionKey,
	}

	// Add optional parameters
	if track.Album != "" {
		params["album"] = track.Album
	}
	if track.AlbumArtist != "" {
		params["albumArtist"] = track.AlbumArtist
	}
	if track.Duration > 0 {
		params["duration"] = fmt.Sprintf("%d", track.Duration)
	}
	if track.TrackNumber > 0 {
		params["trackNumber"] = fmt.Sprintf("%d", track.TrackNumber)
	}
	if track.MBTrackID != "" {
		params["mbid"] = track.MBTrackID
	}

	resp, err := s.client.call(ctx, "track.updateNowPlaying", params, true)
	if err != nil {
		return nil, err
	}

	nowPlaying, err := unmarshalNowPlaying(resp)
	if err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse now playing response: %w", err)
	}

	return nowPlaying, nil
}

// Scrobble submits a single scrobble to Last.fm.
//
// A track should only be scrobbled when:
//   - The track is longer than 30 seconds, AND
//   - The track has been played for at least 50% of its duration OR 4 minutes
//     (whichever comes first)
//
// The timestamp is when the listen began, and also serves as the
// submission's idempotency anchor: Last.fm deduplicates on it, so
// resubmitting the same (track, timestamp) pair after an ambiguous
// failure is safe.
//
// Requires authentication (session key must be set via SetSessionKey).
//
// Example:
//
//	track := lastfm.Track{
//	    Artist:   "The Beatles",
//	    Track:    "Yesterday",
//	    Album:    "Help!",
//	    Duration: 123,
//	}
//	timestamp := time.Now().Add(-2 * time.Minute)
//	resp, err := client.Scrobble().Scrobble(ctx, track, timestamp)
//	if err != nil {
//	    log.Printf("Failed to scrobble: %v", err)
//	}
func (s *ScrobbleService) Scrobble(ctx context.Context, track Track, timestamp time.Time) (*ScrobbleResponse, error) {
	if s.client.sessionKey == "" {
		return nil, ErrNoSessionKey
	}

	params := map[string]string{
		"artist":    track.Artist,
		"track":     track.Track,
		"timestamp": fmt.Sprintf("%d", timestamp.Unix()),
		"sk":        s.client.sessionKey,
	}

	// Add optional parameters
	if track.Album != "" {
		params["album"] = track.Album
	}
	if track.AlbumArtist != "" {
		params["albumArtist"] = track.AlbumArtist
	}
	if track.Duration > 0 {
		params["duration"] = fmt.Sprintf("%d", track.Duration)
	}
	if track.TrackNumber > 0 {
		params["trackNumber"] = fmt.Sprintf("%d", track.TrackNumber)
	}
	if track.MBTrackID != "" {
		params["mbid"] = track.MBTrackID
	}

	resp, err := s.client.call(ctx, "track.scrobble", params, true)
	if err != nil {
		return nil, err
	}

	scrobbleResp, err := unmarshalScrobble(resp)
	if err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse scrobble response: %w", err)
	}

	return scrobbleResp, nil
}

// nowPlayingResponse represents the XML response from track.updateNowPlaying.
type nowPlayingResponse struct {
	Artist         string `xml:"nowplaying>artist"`
	Track          string `xml:"nowplaying>track"`
	Album          string `xml:"nowplaying>album"`
	AlbumArtist    string `xml:"nowplaying>albumArtist"`
	IgnoredMessage struct {
		Code int    `xml:"code,attr"`
		Text string `xml:",chardata"`
	} `xml:"nowplaying>ignoredMessage"`
}

// unmarshalNowPlaying parses the XML response from track.updateNowPlaying.
func unmarshalNowPlaying(data []byte) (*NowPlayingResponse, error) {
	// Wrap inner XML in root element for proper unmarshaling
	wrapped := []byte("<root>" + string(data) + "</root>")

	var resp nowPlayingResponse
	if err := xml.Unmarshal(wrapped, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal now playing response: %w", err)
	}

	return &NowPlayingResponse{
		Artist:      resp.Artist,
		Track:       resp.Track,
		Album:       resp.Album,
		AlbumArtist: resp.AlbumArtist,
		IgnoredMessage: IgnoredMessage{
			Code: resp.IgnoredMessage.Code,
			Text: resp.IgnoredMessage.Text,
		},
	}, nil
}

// scrobbleResponse represents the XML response from track.scrobble.
type scrobbleResponse struct {
	Scrobbles struct {
		Accepted string `xml:"accepted,attr"`
		Ignored  string `xml:"ignored,attr"`
		Scrobble struct {
			Artist         string `xml:"artist"`
			Track          string `xml:"track"`
			Album          string `xml:"album"`
			Timestamp      string `xml:"timestamp"`
			IgnoredMessage struct {
				Code int    `xml:"code,attr"`
				Text string `xml:",chardata"`
			} `xml:"ignoredMessage"`
		} `xml:"scrobble"`
	} `xml:"scrobbles"`
}

// unmarshalScrobble parses the XML response from track.scrobble.
func unmarshalScrobble(data []byte) (*ScrobbleResponse, error) {
	// Wrap inner XML in root element for proper unmarshaling
	wrapped := []byte("<root>" + string(data) + "</root>")

	var resp scrobbleResponse
	if err := xml.Unmarshal(wrapped, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scrobble response: %w", err)
	}

	// Parse accepted and ignored counts
	accepted := 0
	ignored := 0
	if resp.Scrobbles.Accepted != "" {
		fmt.Sscanf(resp.Scrobbles.Accepted, "%d", &accepted)
	}
	if resp.Scrobbles.Ignored != "" {
		fmt.Sscanf(resp.Scrobbles.Ignored, "%d", &ignored)
	}

	var timestamp int64
	if resp.Scrobbles.Scrobble.Timestamp != "" {
		fmt.Sscanf(resp.Scrobbles.Scrobble.Timestamp, "%d", &timestamp)
	}

	return &ScrobbleResponse{
		Accepted:  accepted,
		Ignored:   ignored,
		Artist:    resp.Scrobbles.Scrobble.Artist,
		Track:     resp.Scrobbles.Scrobble.Track,
		Album:     resp.Scrobbles.Scrobble.Album,
		Timestamp: timestamp,
		IgnoredMessage: IgnoredMessage{
			Code: resp.Scrobbles.Scrobble.IgnoredMessage.Code,
			Text: resp.Scrobbles.Scrobble.IgnoredMessage.Text,
		},
	}, nil
}
