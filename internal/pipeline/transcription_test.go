package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quill/internal/jobs"
	"quill/internal/pipeline"
	"quill/internal/polling"
)

type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (c *fakeClock) NewTicker(time.Duration) polling.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	ticker := &fakeTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, ticker)
	return ticker
}

func (c *fakeClock) waitTicker(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		count := len(c.tickers)
		c.mu.Unlock()
		if count >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("ticker %d never created", n)
}

func (c *fakeClock) tick(t *testing.T) bool {
	t.Helper()
	c.mu.Lock()
	if len(c.tickers) == 0 {
		c.mu.Unlock()
		t.Fatal("no ticker created")
	}
	ticker := c.tickers[len(c.tickers)-1]
	c.mu.Unlock()

	select {
	case ticker.ch <- time.Now():
		return true
	case <-time.After(200 * time.Millisecond):
		return false
	}
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {}

// fakeTranscriptionClient scripts poll responses and records actions.
type fakeTranscriptionClient struct {
	mu       sync.Mutex
	statuses []jobs.Status
	queries  int
	retries  int
	cancels  int
	retryErr error
	serviced chan struct{}
}

func newFakeTranscriptionClient(statuses ...jobs.Status) *fakeTranscriptionClient {
	return &fakeTranscriptionClient{statuses: statuses, serviced: make(chan struct{}, 32)}
}

func (f *fakeTranscriptionClient) TranscriptionStatus(context.Context) (jobs.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.queries
	f.queries++
	f.serviced <- struct{}{}
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	return f.statuses[idx], nil
}

func (f *fakeTranscriptionClient) RetryTranscription(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries++
	return f.retryErr
}

func (f *fakeTranscriptionClient) CancelTranscription(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return nil
}

func (f *fakeTranscriptionClient) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

// fakeUploader fails the first n invocations.
type fakeUploader struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *fakeUploader) ReserveAndSend(context.Context, string, []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("upload failed: network error")
	}
	return nil
}

func (f *fakeUploader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitQuery(t *testing.T, client *fakeTranscriptionClient) {
	t.Helper()
	select {
	case <-client.serviced:
	case <-time.After(time.Second):
		t.Fatal("status query was not serviced")
	}
}

func waitOutcome(t *testing.T, done <-chan pipeline.Outcome) pipeline.Outcome {
	t.Helper()
	select {
	case outcome := <-done:
		return outcome
	case <-time.After(time.Second):
		t.Fatal("no outcome delivered")
		return pipeline.Outcome{}
	}
}

func newTranscription(client pipeline.TranscriptionClient, uploader pipeline.Uploader, clock polling.Clock) *pipeline.Transcription {
	return pipeline.NewTranscription(client, uploader, pipeline.TranscriptionOptions{
		Clock:       clock,
		AutoRetries: 1,
	})
}

func TestTranscriptionHappyPath(t *testing.T) {
	clock := &fakeClock{}
	client := newFakeTranscriptionClient(jobs.StatusUploaded, jobs.StatusTranscribing, jobs.StatusDone)
	uploader := &fakeUploader{}
	pipe := newTranscription(client, uploader, clock)
	defer pipe.Stop()

	if err := pipe.Start(context.Background(), "clip.webm", []byte{1, 2}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	clock.waitTicker(t, 1)
	for i := 0; i < 3; i++ {
		clock.tick(t)
		waitQuery(t, client)
	}

	outcome := waitOutcome(t, pipe.Done())
	if !outcome.Success() {
		t.Fatalf("expected done outcome, got %#v", outcome)
	}
	if uploader.callCount() != 1 {
		t.Fatalf("expected one upload, got %d", uploader.callCount())
	}
	if client.queryCount() != 3 {
		t.Fatalf("expected 3 queries, got %d", client.queryCount())
	}
}

func TestTranscriptionUploadAutoHeals(t *testing.T) {
	clock := &fakeClock{}
	client := newFakeTranscriptionClient(jobs.StatusDone)
	uploader := &fakeUploader{failures: 1}
	pipe := newTranscription(client, uploader, clock)
	defer pipe.Stop()

	if err := pipe.Start(context.Background(), "clip.webm", nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	clock.waitTicker(t, 1)
	clock.tick(t)
	waitQuery(t, client)

	outcome := waitOutcome(t, pipe.Done())
	if !outcome.Success() {
		t.Fatalf("expected success after auto-heal, got %#v", outcome)
	}
	if uploader.callCount() != 2 {
		t.Fatalf("expected exactly one automatic re-attempt, got %d calls", uploader.callCount())
	}
}

func TestTranscriptionSecondUploadFailureSurfaces(t *testing.T) {
	client := newFakeTranscriptionClient(jobs.StatusDone)
	uploader := &fakeUploader{failures: 2}
	pipe := newTranscription(client, uploader, &fakeClock{})
	defer pipe.Stop()

	if err := pipe.Start(context.Background(), "clip.webm", nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	outcome := waitOutcome(t, pipe.Done())
	if outcome.Status != jobs.StatusUploadFailed {
		t.Fatalf("expected upload_failed, got %#v", outcome)
	}
	if uploader.callCount() != 2 {
		t.Fatalf("no third attempt may occur, got %d calls", uploader.callCount())
	}
}

func TestTranscriptionHealsBackendReportedUploadFailure(t *testing.T) {
	clock := &fakeClock{}
	client := newFakeTranscriptionClient(jobs.StatusUploadFailed, jobs.StatusTranscribing, jobs.StatusDone)
	uploader := &fakeUploader{}
	pipe := newTranscription(client, uploader, clock)
	defer pipe.Stop()

	if err := pipe.Start(context.Background(), "clip.webm", nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	clock.waitTicker(t, 1)
	clock.tick(t)
	waitQuery(t, client)

	// The heal re-uploads and restarts polling on a fresh timer.
	clock.waitTicker(t, 2)
	clock.tick(t)
	waitQuery(t, client)
	clock.tick(t)
	waitQuery(t, client)

	outcome := waitOutcome(t, pipe.Done())
	if !outcome.Success() {
		t.Fatalf("expected success, got %#v", outcome)
	}
	if uploader.callCount() != 2 {
		t.Fatalf("expected initial upload plus one heal, got %d", uploader.callCount())
	}
}

func TestCancelIsRequestThenConfirm(t *testing.T) {
	clock := &fakeClock{}
	client := newFakeTranscriptionClient(
		jobs.StatusTranscribing,
		jobs.StatusTranscribing,
		jobs.StatusCancelled,
	)
	pipe := newTranscription(client, &fakeUploader{}, clock)
	defer pipe.Stop()

	if err := pipe.Start(context.Background(), "clip.webm", nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	clock.waitTicker(t, 1)
	clock.tick(t)
	waitQuery(t, client)

	if err := pipe.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if pipe.Status() == jobs.StatusCancelled {
		t.Fatal("cancel must not transition local state before the backend confirms")
	}

	// Intermediate ticks keep being handled normally.
	clock.tick(t)
	waitQuery(t, client)
	if pipe.Status() != jobs.StatusTranscribing {
		t.Fatalf("expected transcribing while cancel is pending, got %s", pipe.Status())
	}

	clock.tick(t)
	waitQuery(t, client)
	outcome := waitOutcome(t, pipe.Done())
	if outcome.Status != jobs.StatusCancelled {
		t.Fatalf("expected cancelled outcome, got %#v", outcome)
	}
}

func TestRetryOnlyFromTranscriptionFailed(t *testing.T) {
	clock := &fakeClock{}
	client := newFakeTranscriptionClient(jobs.StatusTranscriptionFailed, jobs.StatusTranscribing, jobs.StatusDone)
	pipe := newTranscription(client, &fakeUploader{}, clock)
	defer pipe.Stop()

	if err := pipe.Retry(context.Background()); !errors.Is(err, pipeline.ErrRetryUnavailable) {
		t.Fatalf("expected ErrRetryUnavailable before failure, got %v", err)
	}

	if err := pipe.Start(context.Background(), "clip.webm", nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	clock.waitTicker(t, 1)
	clock.tick(t)
	waitQuery(t, client)

	outcome := waitOutcome(t, pipe.Done())
	if outcome.Status != jobs.StatusTranscriptionFailed {
		t.Fatalf("expected transcription_failed, got %#v", outcome)
	}

	if err := pipe.Retry(context.Background()); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if pipe.Status() != jobs.StatusUploaded {
		t.Fatalf("retry should resume from uploaded, got %s", pipe.Status())
	}

	clock.waitTicker(t, 2)
	clock.tick(t)
	waitQuery(t, client)
	clock.tick(t)
	waitQuery(t, client)
	if outcome := waitOutcome(t, pipe.Done()); !outcome.Success() {
		t.Fatalf("expected success after retry, got %#v", outcome)
	}
}

func TestFailedRetryCallLeavesStateUnchanged(t *testing.T) {
	clock := &fakeClock{}
	client := newFakeTranscriptionClient(jobs.StatusTranscriptionFailed)
	client.retryErr = errors.New("retry endpoint unavailable")
	pipe := newTranscription(client, &fakeUploader{}, clock)
	defer pipe.Stop()

	if err := pipe.Start(context.Background(), "clip.webm", nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	clock.waitTicker(t, 1)
	clock.tick(t)
	waitQuery(t, client)
	waitOutcome(t, pipe.Done())

	if err := pipe.Retry(context.Background()); err == nil {
		t.Fatal("expected retry call error to propagate")
	}
	if pipe.Status() != jobs.StatusTranscriptionFailed {
		t.Fatalf("failed retry must not regress state, got %s", pipe.Status())
	}
}

func TestStopLeavesNoLiveTimer(t *testing.T) {
	clock := &fakeClock{}
	client := newFakeTranscriptionClient(jobs.StatusTranscribing)
	pipe := newTranscription(client, &fakeUploader{}, clock)

	if err := pipe.Start(context.Background(), "clip.webm", nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	clock.waitTicker(t, 1)
	clock.tick(t)
	waitQuery(t, client)

	pipe.Stop()
	if clock.tick(t) {
		t.Fatal("no tick should be consumed after Stop")
	}
}
