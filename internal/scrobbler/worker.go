package scrobbler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// WorkerConfig holds submission worker configuration
type WorkerConfig struct {
	PollInterval  time.Duration // How often to check for due retries
	SubmitTimeout time.Duration // Per-submission deadline
	BaseDelay     time.Duration // Backoff base delay
	MaxDelay      time.Duration // Backoff cap
}

// jitterFraction is the spread applied to backoff delays (±20%) so
// retries of unrelated records do not synchronize into storms
const jitterFraction = 0.2

// Worker drains the submission store: it repeatedly takes the oldest
// ready record, submits it, and removes it only on confirmed success.
//
// Retryable failures are rescheduled with capped exponential backoff;
// there is no maximum retry count. Permanent failures park the record
// as held and surface on the Fatal channel, since continuing to run
// with rejected credentials cannot make progress.
type Worker struct {
	store  *Store
	client Client
	config WorkerConfig
	logger zerolog.Logger

	wake  chan struct{}
	fatal chan error

	// Injectable for deterministic tests
	now    func() time.Time
	jitter func() float64
}

// NewWorker creates a new submission worker
func NewWorker(store *Store, client Client, cfg WorkerConfig, logger zerolog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 30 * time.Second
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 10 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Minute
	}

	return &Worker{
		store:  store,
		client: client,
		config: cfg,
		logger: logger.With().Str("component", "worker").Logger(),
		wake:   make(chan struct{}, 1),
		fatal:  make(chan error, 1),
		now:    time.Now,
		jitter: rand.Float64,
	}
}

// Wake nudges the worker to check the store immediately, called by the
// event path after an enqueue. Never blocks.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Fatal delivers the first condition that makes eventual delivery
// impossible without operator action
func (w *Worker) Fatal() <-chan error {
	return w.fatal
}

// Run processes the submission queue until the context is cancelled.
// An in-flight submission is allowed to finish or time out before Run
// returns; a failure at shutdown falls back to the failed state like
// any other.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().
		Dur("poll_interval", w.config.PollInterval).
		Msg("Starting submission worker")

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// Drain whatever survived the last run before waiting
	w.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Submission worker stopped")
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		case <-w.wake:
			w.drain(ctx)
		}
	}
}

// drain submits ready records one at a time until none are due or the
// context is cancelled
func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		ok, err := w.submitNext(ctx)
		if err != nil {
			// Store failures break the durability guarantee; escalate
			w.reportFatal(err)
			return
		}
		if !ok {
			return
		}
	}
}

// submitNext takes the oldest ready record and attempts submission.
// Returns false when no record is due.
//
// Store mutations run on a background context so that a submission
// settling during shutdown is still recorded consistently.
func (w *Worker) submitNext(ctx context.Context) (bool, error) {
	storeCtx := context.Background()

	ready, err := w.store.PeekReady(storeCtx, w.now(), 1)
	if err != nil {
		return false, fmt.Errorf("failed to read ready submissions: %w", err)
	}
	if len(ready) == 0 {
		return false, nil
	}

	record := ready[0]
	key := record.Key()

	if err := w.store.MarkInFlight(storeCtx, key); err != nil {
		return false, fmt.Errorf("failed to mark submission in-flight: %w", err)
	}

	submitCtx, cancel := context.WithTimeout(ctx, w.config.SubmitTimeout)
	submitErr := w.client.Submit(submitCtx, record)
	cancel()

	if submitErr == nil {
		w.logger.Info().
			Str("track", record.Title).
			Str("artist", record.Artist).
			Msg("Scrobbled successfully")
		if err := w.store.MarkSubmitted(storeCtx, key); err != nil {
			return false, fmt.Errorf("failed to mark submission complete: %w", err)
		}
		return true, nil
	}

	if errors.Is(submitErr, context.Canceled) {
		// Shutdown interrupted the attempt before the service answered;
		// requeue without a retry penalty
		w.logger.Debug().
			Str("track", record.Title).
			Msg("Submission interrupted, returning record to pending")
		if err := w.store.MarkPending(storeCtx, key); err != nil {
			return false, fmt.Errorf("failed to requeue submission: %w", err)
		}
		return false, nil
	}

	if IsPermanent(submitErr) {
		w.logger.Error().
			Err(submitErr).
			Str("key", key.String()).
			Str("track", record.Title).
			Msg("Submission rejected permanently, holding record")
		if err := w.store.MarkHeld(storeCtx, key, submitErr.Error()); err != nil {
			return false, fmt.Errorf("failed to hold submission: %w", err)
		}
		w.reportFatal(fmt.Errorf("permanent submission failure for %s: %w", key, submitErr))
		return false, nil
	}

	retryCount := record.RetryCount + 1
	nextRetry := w.now().Add(w.backoff(retryCount))

	w.logger.Warn().
		Err(submitErr).
		Str("track", record.Title).
		Int("retry_count", retryCount).
		Time("next_retry", nextRetry).
		Msg("Submission failed, scheduling retry")

	if err := w.store.MarkFailed(storeCtx, key, retryCount, nextRetry, submitErr.Error()); err != nil {
		return false, fmt.Errorf("failed to mark submission failed: %w", err)
	}

	// The record is parked until nextRetry; move on to other records
	return true, nil
}

// backoff returns the delay before the given consecutive retry:
// baseDelay doubled per attempt, jittered ±20%, capped at MaxDelay
func (w *Worker) backoff(retryCount int) time.Duration {
	delay := w.config.BaseDelay
	for i := 0; i < retryCount && delay < w.config.MaxDelay; i++ {
		delay *= 2
	}

	spread := 1 + jitterFraction*(2*w.jitter()-1)
	delay = time.Duration(float64(delay) * spread)

	if delay > w.config.MaxDelay {
		delay = w.config.MaxDelay
	}
	return delay
}

// reportFatal delivers err on the fatal channel if there is room.
// Later fatal conditions are logged but not queued; the first one is
// enough to bring the engine down.
func (w *Worker) reportFatal(err error) {
	select {
	case w.fatal <- err:
	default:
		w.logger.Error().Err(err).Msg("Fatal condition while shutting down")
	}
}
