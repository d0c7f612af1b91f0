package scrobbler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jfmyers9/scrobbled/internal/playback"
	"github.com/rs/zerolog"
)

// fakeSubmitClient scripts Submit results per call, in order.
// A nil entry means success; after the script runs out, calls succeed.
type fakeSubmitClient struct {
	mu        sync.Mutex
	script    []error
	submitted []Record
}

func (f *fakeSubmitClient) UpdateNowPlaying(ctx context.Context, track playback.Track) error {
	return nil
}

func (f *fakeSubmitClient) Submit(ctx context.Context, record Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	if len(f.script) > 0 {
		err = f.script[0]
		f.script = f.script[1:]
	}
	if err == nil {
		f.submitted = append(f.submitted, record)
	}
	return err
}

func (f *fakeSubmitClient) submissions() []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Record(nil), f.submitted...)
}

// newTestWorker builds a worker with a fixed clock and neutral jitter
func newTestWorker(t *testing.T, client Client, cfg WorkerConfig) (*Worker, *Store) {
	t.Helper()

	store := createTestStore(t)
	worker := NewWorker(store, client, cfg, zerolog.Nop())
	worker.now = func() time.Time { return time.UnixMilli(1_000_000) }
	worker.jitter = func() float64 { return 0.5 } // spread factor exactly 1.0
	return worker, store
}

func TestWorkerSubmitsAndRemoves(t *testing.T) {
	client := &fakeSubmitClient{}
	worker, store := newTestWorker(t, client, WorkerConfig{})
	ctx := context.Background()

	record := testRecord("track-1", time.UnixMilli(1000))
	if err := store.Enqueue(ctx, record); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	worker.drain(ctx)

	submitted := client.submissions()
	if len(submitted) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(submitted))
	}
	if submitted[0].TrackID != "track-1" {
		t.Errorf("expected track-1 submitted, got %s", submitted[0].TrackID)
	}

	count, err := store.Count(ctx, nil)
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty store after submission, got %d records", count)
	}
}

func TestWorkerRetryableFailureSchedulesBackoff(t *testing.T) {
	client := &fakeSubmitClient{script: []error{errors.New("connection refused")}}
	worker, store := newTestWorker(t, client, WorkerConfig{
		BaseDelay: 10 * time.Second,
		MaxDelay:  30 * time.Minute,
	})
	ctx := context.Background()

	record := testRecord("track-1", time.UnixMilli(1000))
	if err := store.Enqueue(ctx, record); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	worker.drain(ctx)

	if len(client.submissions()) != 0 {
		t.Fatal("failed submission should not be recorded as success")
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("failed record must remain queued, got %d records", len(records))
	}

	got := records[0]
	if got.State != StateFailed {
		t.Errorf("expected failed state, got %s", got.State)
	}
	if got.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", got.RetryCount)
	}
	// base × 2^1 with neutral jitter
	wantRetry := worker.now().Add(20 * time.Second)
	if !got.NextRetry.Equal(wantRetry) {
		t.Errorf("expected next retry at %s, got %s", wantRetry, got.NextRetry)
	}
	if got.LastError != "connection refused" {
		t.Errorf("expected last error preserved, got %q", got.LastError)
	}

	// Not due yet: a second drain must not touch it
	worker.drain(ctx)
	records, _ = store.List(ctx)
	if records[0].RetryCount != 1 {
		t.Errorf("drain before retry time must not resubmit, retry count %d", records[0].RetryCount)
	}

	// Once due, the next attempt succeeds and the record is removed
	worker.now = func() time.Time { return wantRetry.Add(time.Second) }
	worker.drain(ctx)

	if len(client.submissions()) != 1 {
		t.Fatalf("expected successful resubmission, got %d", len(client.submissions()))
	}
	count, _ := store.Count(ctx, nil)
	if count != 0 {
		t.Errorf("expected empty store, got %d records", count)
	}
}

func TestWorkerBackoffGrowthAndCap(t *testing.T) {
	worker, _ := newTestWorker(t, &fakeSubmitClient{}, WorkerConfig{
		BaseDelay: 10 * time.Second,
		MaxDelay:  30 * time.Minute,
	})

	// With neutral jitter the delay doubles per consecutive failure and
	// never decreases or exceeds the cap
	prev := time.Duration(0)
	for count := 1; count <= 20; count++ {
		delay := worker.backoff(count)
		if delay < prev {
			t.Errorf("backoff(%d) = %s decreased from %s", count, delay, prev)
		}
		if delay > 30*time.Minute {
			t.Errorf("backoff(%d) = %s exceeds cap", count, delay)
		}
		prev = delay
	}

	if got := worker.backoff(1); got != 20*time.Second {
		t.Errorf("backoff(1) = %s, want 20s", got)
	}
	if got := worker.backoff(20); got != 30*time.Minute {
		t.Errorf("backoff(20) = %s, want cap of 30m", got)
	}
}

func TestWorkerBackoffJitterBounds(t *testing.T) {
	worker, _ := newTestWorker(t, &fakeSubmitClient{}, WorkerConfig{
		BaseDelay: 10 * time.Second,
		MaxDelay:  30 * time.Minute,
	})

	// base × 2^2 = 40s, jittered ±20%
	worker.jitter = func() float64 { return 0 }
	if got := worker.backoff(2); got != 32*time.Second {
		t.Errorf("lower jitter bound: got %s, want 32s", got)
	}

	worker.jitter = func() float64 { return 1 }
	if got := worker.backoff(2); got != 48*time.Second {
		t.Errorf("upper jitter bound: got %s, want 48s", got)
	}
}

func TestWorkerRetryCountsAreIndependent(t *testing.T) {
	// track-1 fails twice; track-2 succeeds immediately with its own
	// zero retry count, unaffected by track-1's streak
	client := &fakeSubmitClient{script: []error{
		errors.New("network error"), // track-1, attempt 1
		nil,                         // track-2
	}}
	worker, store := newTestWorker(t, client, WorkerConfig{
		BaseDelay: 10 * time.Second,
		MaxDelay:  30 * time.Minute,
	})
	ctx := context.Background()

	if err := store.Enqueue(ctx, testRecord("track-1", time.UnixMilli(1000))); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}
	if err := store.Enqueue(ctx, testRecord("track-2", time.UnixMilli(2000))); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	worker.drain(ctx)

	submitted := client.submissions()
	if len(submitted) != 1 || submitted[0].TrackID != "track-2" {
		t.Fatalf("expected track-2 submitted past track-1's failure, got %+v", submitted)
	}
	if submitted[0].RetryCount != 0 {
		t.Errorf("track-2 should carry its own zero retry count, got %d", submitted[0].RetryCount)
	}

	records, _ := store.List(ctx)
	if len(records) != 1 || records[0].TrackID != "track-1" {
		t.Fatalf("expected only track-1 still queued")
	}
	if records[0].RetryCount != 1 {
		t.Errorf("track-1 retry count = %d, want 1", records[0].RetryCount)
	}
}

func TestWorkerPermanentFailureHoldsRecord(t *testing.T) {
	permErr := &PermanentError{Err: errors.New("invalid session key")}
	client := &fakeSubmitClient{script: []error{permErr}}
	worker, store := newTestWorker(t, client, WorkerConfig{})
	ctx := context.Background()

	record := testRecord("track-1", time.UnixMilli(1000))
	if err := store.Enqueue(ctx, record); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	worker.drain(ctx)

	// The record is held, not discarded and not retried
	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("held record must remain in the store")
	}
	if records[0].State != StateHeld {
		t.Errorf("expected held state, got %s", records[0].State)
	}

	// The fatal condition surfaces for the engine
	select {
	case err := <-worker.Fatal():
		if !IsPermanent(err) {
			t.Errorf("expected permanent error on fatal channel, got %v", err)
		}
	default:
		t.Error("expected fatal condition to be reported")
	}
}

func TestWorkerInterruptedSubmissionKeepsRecordClean(t *testing.T) {
	// A submission cut short by shutdown is not a service verdict; the
	// record returns to pending with no retry penalty recorded
	client := &fakeSubmitClient{script: []error{context.Canceled}}
	worker, store := newTestWorker(t, client, WorkerConfig{
		BaseDelay: 10 * time.Second,
		MaxDelay:  30 * time.Minute,
	})
	ctx := context.Background()

	record := testRecord("track-1", time.UnixMilli(1000))
	if err := store.Enqueue(ctx, record); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	worker.drain(ctx)

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("interrupted record must remain queued, got %d records", len(records))
	}

	got := records[0]
	if got.State != StatePending {
		t.Errorf("expected pending state, got %s", got.State)
	}
	if got.RetryCount != 0 {
		t.Errorf("expected retry count untouched, got %d", got.RetryCount)
	}
	if got.LastError != "" {
		t.Errorf("expected no error recorded, got %q", got.LastError)
	}

	select {
	case err := <-worker.Fatal():
		t.Errorf("interruption must not be fatal, got %v", err)
	default:
	}
}

func TestWorkerRunDrainsOnWake(t *testing.T) {
	client := &fakeSubmitClient{}
	worker, store := newTestWorker(t, client, WorkerConfig{
		PollInterval: time.Hour, // only Wake can trigger work
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	if err := store.Enqueue(ctx, testRecord("track-1", time.UnixMilli(1000))); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}
	worker.Wake()

	deadline := time.After(5 * time.Second)
	for {
		if len(client.submissions()) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("worker did not submit after wake")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop on context cancellation")
	}
}
