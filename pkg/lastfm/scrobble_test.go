package lastfm

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestScrobbleService_UpdateNowPlaying tests the UpdateNowPlaying method.
func TestScrobbleService_UpdateNowPlaying(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		statusCode  int
		track       Track
		wantErr     bool
		errContains string
	}{
		{
			name: "success",
			response: `<?xml version="1.0" encoding="utf-8"?>
<lfm status="ok">
	<nowplaying>
		<artist corrected="0">The Beatles</artist>
		<track corrected="0">Yesterday</track>
		<album corrected="0">Help!</album>
		<albumArtist corrected="0">The Beatles</albumArtist>
	</nowplaying>
</lfm>`,
			statusCode: http.StatusOK,
			track: Track{
				Artist: "The Beatles",
				Track:  "Yesterday",
				Album:  "Help!",
			},
			wantErr: false,
		},
		{
			name: "with all optional fields",
			response: `<?xml version="1.0" encoding="utf-8"?>
<lfm status="ok">
	<nowplaying>
		<artist corrected="0">The Beatles</artist>
		<track corrected="0">Yesterday</track>
		<album corrected="0">Help!</album>
		<albumArtist corrected="0">The Beatles</albumArtist>
	</nowplaying>
</lfm>`,
			statusCode: http.StatusOK,
			track: Track{
				Artist:      "The Beatles",
				Track:       "Yesterday",
				Album:       "Help!",
				AlbumArtist: "The Beatles",
				Duration:    125,
				TrackNumber: 1,
				MBTrackID:   "mbid-123",
			},
			wantErr: false,
		},
		{
			name: "api error - invalid session key",
			response: `<?xml version="1.0" encoding="utf-8"?>
<lfm status="failed">
	<error code="9">Invalid session key</error>
</lfm>`,
			statusCode: http.StatusOK,
			track: Track{
				Artist: "The Beatles",
				Track:  "Yesterday",
			},
			wantErr:     true,
			errContains: "error 9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				// Verify request method
				if r.Method != "POST" {
					t.Errorf("expected POST request, got %s", r.Method)
				}

				// Parse form data
				if err := r.ParseForm(); err != nil {
					t.Fatalf("failed to parse form: %v", err)
				}

				// Verify required parameters
				if method := r.FormValue("method"); method != "track.updateNowPlaying" {
					t.Errorf("expected method track.updateNowPlaying, got %s", method)
				}
				if artist := r.FormValue("artist"); artist != tt.track.Artist {
					t.Errorf("expected artist %s, got %s", tt.track.Artist, artist)
				}
				if track := r.FormValue("track"); track != tt.track.Track {
					t.Errorf("expected track %s, got %s", tt.track.Track, track)
				}
				if sk := r.FormValue("sk"); sk != "test-session-key" {
					t.Errorf("expected sk test-session-key, got %s", sk)
				}

				// Verify optional parameters if provided
				if tt.track.Album != "" {
					if album := r.FormValue("album"); album != tt.track.Album {
						t.Errorf("expected album %s, got %s", tt.track.Album, album)
					}
				}
				if tt.track.AlbumArtist != "" {
					if albumArtist := r.FormValue("albumArtist"); albumArtist != tt.track.AlbumArtist {
						t.Errorf("expected albumArtist %s, got %s", tt.track.AlbumArtist, albumArtist)
					}
				}
				if tt.track.Duration > 0 {
					if duration := r.FormValue("duration"); duration != fmt.Sprintf("%d", tt.track.Duration) {
						t.Errorf("expected duration %d, got %s", tt.track.Duration, duration)
					}
				}

				w.WriteHeader(tt.statusCode)
				if _, err := w.Write([]byte(tt.response)); err != nil {
					t.Fatalf("failed to write response body: %v", err)
				}
			}))
			defer server.Close()

			client, err := NewClient(Config{
				APIKey:     "test-api-key",
				APISecret:  "test-secret",
				SessionKey: "test-session-key",
				BaseURL:    server.URL,
			})
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}

			ctx := context.Background()
			resp, err := client.Scrobble().UpdateNowPlaying(ctx, tt.track)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("expected error to contain %q, got %v", tt.errContains, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if resp.Artist != tt.track.Artist {
				t.Errorf("expected artist %s, got %s", tt.track.Artist, resp.Artist)
			}
			if resp.Track != tt.track.Track {
				t.Errorf("expected track %s, got %s", tt.track.Track, resp.Track)
			}
		})
	}
}

// TestScrobbleService_Scrobble tests the Scrobble method.
func TestScrobbleService_Scrobble(t *testing.T) {
	timestamp := time.Unix(1234567890, 0)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Parse form data
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}

		// Verify required parameters
		if method := r.FormValue("method"); method != "track.scrobble" {
			t.Errorf("expected method track.scrobble, got %s", method)
		}
		if artist := r.FormValue("artist"); artist != "The Beatles" {
			t.Errorf("expected artist The Beatles, got %s", artist)
		}
		if track := r.FormValue("track"); track != "Yesterday" {
			t.Errorf("expected track Yesterday, got %s", track)
		}
		if ts := r.FormValue("timestamp"); ts != "1234567890" {
			t.Errorf("expected timestamp 1234567890, got %s", ts)
		}
		if sk := r.FormValue("sk"); sk != "test-session-key" {
			t.Errorf("expected sk test-session-key, got %s", sk)
		}

		response := `<?xml version="1.0" encoding="utf-8"?>
<lfm status="ok">
	<scrobbles accepted="1" ignored="0">
		<scrobble>
			<artist corrected="0">The Beatles</artist>
			<track corrected="0">Yesterday</track>
			<album corrected="0">Help!</album>
			<timestamp>1234567890</timestamp>
		</scrobble>
	</scrobbles>
</lfm>`
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(response)); err != nil {
			t.Fatalf("failed to write response body: %v", err)
		}
	}))
	defer server.Close()

	client, err := NewClient(Config{
		APIKey:     "test-api-key",
		APISecret:  "test-secret",
		SessionKey: "test-session-key",
		BaseURL:    server.URL,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	ctx := context.Background()
	track := Track{
		Artist: "The Beatles",
		Track:  "Yesterday",
		Album:  "Help!",
	}

	resp, err := client.Scrobble().Scrobble(ctx, track, timestamp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Accepted != 1 {
		t.Errorf("expected accepted 1, got %d", resp.Accepted)
	}
	if resp.Ignored != 0 {
		t.Errorf("expected ignored 0, got %d", resp.Ignored)
	}
	if resp.Timestamp != 1234567890 {
		t.Errorf("expected timestamp 1234567890, got %d", resp.Timestamp)
	}
}

// TestScrobbleService_Scrobble_Ignored tests parsing of an ignored scrobble.
func TestScrobbleService_Scrobble_Ignored(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := `<?xml version="1.0" encoding="utf-8"?>
<lfm status="ok">
	<scrobbles accepted="0" ignored="1">
		<scrobble>
			<artist corrected="0">The Beatles</artist>
			<track corrected="0">Yesterday</track>
			<timestamp>1234567890</timestamp>
			<ignoredMessage code="3">Timestamp too old</ignoredMessage>
		</scrobble>
	</scrobbles>
</lfm>`
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(response)); err != nil {
			t.Fatalf("failed to write response body: %v", err)
		}
	}))
	defer server.Close()

	client, err := NewClient(Config{
		APIKey:     "test-api-key",
		APISecret:  "test-secret",
		SessionKey: "test-session-key",
		BaseURL:    server.URL,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	ctx := context.Background()
	track := Track{
		Artist: "The Beatles",
		Track:  "Yesterday",
	}

	resp, err := client.Scrobble().Scrobble(ctx, track, time.Unix(1234567890, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// An ignored submission is not an API error; the caller decides
	if resp.Accepted != 0 {
		t.Errorf("expected accepted 0, got %d", resp.Accepted)
	}
	if resp.Ignored != 1 {
		t.Errorf("expected ignored 1, got %d", resp.Ignored)
	}
	if resp.IgnoredMessage.Code != 3 {
		t.Errorf("expected ignored message code 3, got %d", resp.IgnoredMessage.Code)
	}
	if resp.IgnoredMessage.Text != "Timestamp too old" {
		t.Errorf("expected ignored message text, got %q", resp.IgnoredMessage.Text)
	}
}

// TestScrobbleService_NoSessionKey tests that methods require a session key.
func TestScrobbleService_NoSessionKey(t *testing.T) {
	client, err := NewClient(Config{
		APIKey:    "test-api-key",
		APISecret: "test-secret",
		// No session key
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	ctx := context.Background()
	track := Track{
		Artist: "The Beatles",
		Track:  "Yesterday",
	}

	// Test UpdateNowPlaying
	_, err = client.Scrobble().UpdateNowPlaying(ctx, track)
	if err == nil {
		t.Error("expected error for UpdateNowPlaying without session key, got nil")
	}
	if !strings.Contains(err.Error(), "session key required") {
		t.Errorf("expected error to contain 'session key required', got %v", err)
	}

	// Test Scrobble
	_, err = client.Scrobble().Scrobble(ctx, track, time.Now())
	if err == nil {
		t.Error("expected error for Scrobble without session key, got nil")
	}
	if !strings.Contains(err.Error(), "session key required") {
		t.Errorf("expected error to contain 'session key required', got %v", err)
	}
}

// TestScrobbleService_ContextCancellation tests context cancellation.
func TestScrobbleService_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Simulate slow server
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`<lfm status="ok"><scrobbles accepted="1" ignored="0"></scrobbles></lfm>`)); err != nil {
			t.Fatalf("failed to write response body: %v", err)
		}
	}))
	defer server.Close()

	client, err := NewClient(Config{
		APIKey:     "test-api-key",
		APISecret:  "test-secret",
		SessionKey: "test-session-key",
		BaseURL:    server.URL,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	track := Track{
		Artist: "The Beatles",
		Track:  "Yesterday",
	}

	_, err = client.Scrobble().UpdateNowPlaying(ctx, track)
	if err == nil {
		t.Error("expected error for cancelled context, got nil")
	}
	if !strings.Contains(err.Error(), "context") {
		t.Errorf("expected context error, got %v", err)
	}
}

// ExampleScrobbleService_UpdateNowPlaying demonstrates how to update the now playing status.
func ExampleScrobbleService_UpdateNowPlaying() {
	client, err := NewClient(Config{
		APIKey:     "your-api-key",
		APISecret:  "your-api-secret",
		SessionKey: "your-session-key",
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	track := Track{
		Artist:   "The Beatles",
		Track:    "Yesterday",
		Album:    "Help!",
		Duration: 125,
	}

	resp, err := client.Scrobble().UpdateNowPlaying(ctx, track)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Now playing: %s - %s\n", resp.Artist, resp.Track)
}

// ExampleScrobbleService_Scrobble demonstrates how to scrobble a track.
func ExampleScrobbleService_Scrobble() {
	client, err := NewClient(Config{
		APIKey:     "your-api-key",
		APISecret:  "your-api-secret",
		SessionKey: "your-session-key",
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	track := Track{
		Artist:   "The Beatles",
		Track:    "Yesterday",
		Album:    "Help!",
		Duration: 125,
	}

	// The timestamp is when the listen began
	timestamp := time.Now().Add(-2 * time.Minute)

	resp, err := client.Scrobble().Scrobble(ctx, track, timestamp)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Scrobbled: %d accepted, %d ignored\n", resp.Accepted, resp.Ignored)
}
