package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jfmyers9/scrobbled/internal/playback"
	"github.com/jfmyers9/scrobbled/internal/scrobbler"
	"github.com/jfmyers9/scrobbled/internal/tracker"
	"github.com/rs/zerolog"
)

// Config holds engine configuration
type Config struct {
	QueueDB           string        // Path to the submission store database
	NowPlayingTimeout time.Duration // Deadline for best-effort now-playing updates
	SubmitTimeout     time.Duration // Per-submission deadline for the worker
	PollInterval      time.Duration // How often the worker checks for due retries
	BaseDelay         time.Duration // Worker backoff base
	MaxDelay          time.Duration // Worker backoff cap
}

// Engine wires the session tracker, qualification policy, submission
// store, and submission worker together, and owns their lifecycle.
//
// Event consumption is sequential: events are handled one at a time in
// arrival order on a single goroutine. The worker runs independently;
// the store is the only resource the two paths share.
type Engine struct {
	config  Config
	stream  playback.Stream
	client  scrobbler.Client
	store   *scrobbler.Store
	tracker *tracker.Tracker
	worker  *scrobbler.Worker
	logger  zerolog.Logger

	npWg sync.WaitGroup // Outstanding now-playing updates
}

// New creates a new Engine instance
func New(cfg Config, stream playback.Stream, client scrobbler.Client, logger zerolog.Logger) (*Engine, error) {
	if cfg.NowPlayingTimeout <= 0 {
		cfg.NowPlayingTimeout = 10 * time.Second
	}

	store, err := scrobbler.NewStore(cfg.QueueDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open submission store: %w", err)
	}

	worker := scrobbler.NewWorker(store, client, scrobbler.WorkerConfig{
		PollInterval:  cfg.PollInterval,
		SubmitTimeout: cfg.SubmitTimeout,
		BaseDelay:     cfg.BaseDelay,
		MaxDelay:      cfg.MaxDelay,
	}, logger)

	return &Engine{
		config:  cfg,
		stream:  stream,
		client:  client,
		store:   store,
		tracker: tracker.New(logger),
		worker:  worker,
		logger:  logger.With().Str("component", "engine").Logger(),
	}, nil
}

// Run starts the engine and blocks until the event stream ends or a
// shutdown signal is received
func (e *Engine) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		<-sigChan
		e.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Second signal forces exit
		<-sigChan
		e.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	if err := e.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// run is the main engine loop
func (e *Engine) run(ctx context.Context) error {
	e.logger.Info().Msg("Starting engine")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	// Start the submission worker
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := e.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Error().Err(err).Msg("Worker error")
		}
	}()

	// Watch for conditions that make delivery impossible: once the worker
	// reports one, the only correct move is to stop and tell the operator
	var fatalErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case err := <-e.worker.Fatal():
			fatalErr = err
			cancel()
		case <-ctx.Done():
		}
	}()

	// Consume events on this goroutine; ordering is correctness-relevant
	consumeErr := e.consumeEvents(ctx)

	cancel()
	e.npWg.Wait()
	wg.Wait()

	e.logger.Info().Msg("Engine stopped")

	if fatalErr != nil {
		return fatalErr
	}
	return consumeErr
}

// consumeEvents drives the tracker from the event stream until the
// stream closes or the context is cancelled. The active session is
// flushed either way, so a listen in progress still gets evaluated.
func (e *Engine) consumeEvents(ctx context.Context) error {
	for {
		ev, err := e.stream.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				e.logger.Info().Msg("Event stream closed")
				return e.finalize(e.tracker.Flush(time.Now()))
			case errors.Is(err, context.Canceled):
				if flushErr := e.finalize(e.tracker.Flush(time.Now())); flushErr != nil {
					return flushErr
				}
				return err
			default:
				return fmt.Errorf("event stream error: %w", err)
			}
		}

		if err := e.handleEvent(ctx, ev); err != nil {
			return err
		}
	}
}

// handleEvent processes a single playback event
func (e *Engine) handleEvent(ctx context.Context, ev playback.Event) error {
	e.logger.Debug().
		Str("event", ev.Kind.String()).
		Time("at", ev.At).
		Msg("Playback event")

	if ev.Kind == playback.EventStarted || ev.Kind == playback.EventTrackChanged {
		e.announceNowPlaying(ctx, *ev.Track)
	}

	return e.finalize(e.tracker.Handle(ev))
}

// announceNowPlaying fires a best-effort now-playing update without
// blocking event consumption. Failures are cosmetic: the next track's
// update supersedes this one, so nothing is queued or retried.
func (e *Engine) announceNowPlaying(ctx context.Context, track playback.Track) {
	e.npWg.Add(1)
	go func() {
		defer e.npWg.Done()

		npCtx, cancel := context.WithTimeout(ctx, e.config.NowPlayingTimeout)
		defer cancel()

		if err := e.client.UpdateNowPlaying(npCtx, track); err != nil {
			e.logger.Warn().
				Err(err).
				Str("track", track.Title).
				Str("artist", track.Artist).
				Msg("Failed to update now playing")
			return
		}

		e.logger.Debug().
			Str("track", track.Title).
			Str("artist", track.Artist).
			Msg("Updated now playing")
	}()
}

// finalize qualifies a finished session and enqueues it for submission.
// A store write failure is returned as-is: the engine must not keep
// running once durability is gone.
func (e *Engine) finalize(outcome *tracker.Outcome) error {
	if outcome == nil {
		return nil
	}

	if !scrobbler.ShouldScrobble(outcome.Track.Duration, outcome.Played) {
		e.logger.Debug().
			Str("track", outcome.Track.Title).
			Dur("played", outcome.Played).
			Dur("duration", outcome.Track.Duration).
			Msg("Session below scrobble threshold")
		return nil
	}

	record := scrobbler.Record{
		TrackID:   outcome.Track.ID,
		StartedAt: outcome.StartedAt,
		Artist:    outcome.Track.Artist,
		Title:     outcome.Track.Title,
		Album:     outcome.Track.Album,
		Duration:  outcome.Track.Duration,
		Played:    outcome.Played,
	}

	// Enqueue must not depend on shutdown state; the store write is the
	// moment the listen becomes durable
	if err := e.store.Enqueue(context.Background(), record); err != nil {
		return fmt.Errorf("failed to enqueue scrobble: %w", err)
	}

	e.logger.Info().
		Str("track", record.Title).
		Str("artist", record.Artist).
		Dur("played", record.Played).
		Msg("Queued scrobble")

	e.worker.Wake()
	return nil
}

// Shutdown releases the engine's resources after Run returns
func (e *Engine) Shutdown() error {
	e.logger.Info().Msg("Shutting down engine")

	if err := e.store.Close(); err != nil {
		return fmt.Errorf("failed to close submission store: %w", err)
	}

	return nil
}
