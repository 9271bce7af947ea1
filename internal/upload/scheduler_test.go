package upload_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"quill/internal/upload"
)

// fakeBackend scripts reservation and write outcomes per call index.
type fakeBackend struct {
	mu          sync.Mutex
	reserveErrs []error
	writeErrs   []error
	reserves    int
	writes      int
	addresses   []string
}

func (f *fakeBackend) ReserveUpload(ctx context.Context, filename string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.reserves
	f.reserves++
	if idx < len(f.reserveErrs) && f.reserveErrs[idx] != nil {
		return "", f.reserveErrs[idx]
	}
	address := fmt.Sprintf("http://upload.example/slot-%d", idx+1)
	f.addresses = append(f.addresses, address)
	return address, nil
}

func (f *fakeBackend) WriteUpload(ctx context.Context, address string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.writes
	f.writes++
	if idx < len(f.writeErrs) && f.writeErrs[idx] != nil {
		return f.writeErrs[idx]
	}
	return nil
}

func TestFirstAttemptSucceeds(t *testing.T) {
	backend := &fakeBackend{}
	scheduler := upload.New(backend, 0, nil)

	if err := scheduler.ReserveAndSend(context.Background(), "clip.webm", []byte{1}); err != nil {
		t.Fatalf("ReserveAndSend failed: %v", err)
	}
	if backend.reserves != 1 || backend.writes != 1 {
		t.Fatalf("expected one reserve and one write, got %d/%d", backend.reserves, backend.writes)
	}
}

func TestWriteFailureRetriesWithFreshSlot(t *testing.T) {
	backend := &fakeBackend{writeErrs: []error{errors.New("network error")}}
	scheduler := upload.New(backend, 0, nil)

	if err := scheduler.ReserveAndSend(context.Background(), "clip.webm", []byte{1}); err != nil {
		t.Fatalf("expected retried attempt to succeed, got %v", err)
	}
	if backend.reserves != 2 || backend.writes != 2 {
		t.Fatalf("expected two reservations and two writes, got %d/%d", backend.reserves, backend.writes)
	}
	if backend.addresses[0] == backend.addresses[1] {
		t.Fatal("a failed slot must not be reused")
	}
}

func TestReserveFailureCountsAsAttempt(t *testing.T) {
	backend := &fakeBackend{reserveErrs: []error{errors.New("503")}}
	scheduler := upload.New(backend, 0, nil)

	if err := scheduler.ReserveAndSend(context.Background(), "clip.webm", nil); err != nil {
		t.Fatalf("expected second cycle to succeed, got %v", err)
	}
	if backend.reserves != 2 || backend.writes != 1 {
		t.Fatalf("unexpected call counts: reserves=%d writes=%d", backend.reserves, backend.writes)
	}
}

func TestTwoFailuresAreTerminal(t *testing.T) {
	backend := &fakeBackend{writeErrs: []error{errors.New("first"), errors.New("second")}}
	scheduler := upload.New(backend, 0, nil)

	err := scheduler.ReserveAndSend(context.Background(), "clip.webm", nil)
	if !errors.Is(err, upload.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if backend.reserves != 2 || backend.writes != 2 {
		t.Fatalf("no third attempt may occur: reserves=%d writes=%d", backend.reserves, backend.writes)
	}
}

func TestEmptyFilenameRejectedBeforeNetwork(t *testing.T) {
	backend := &fakeBackend{}
	scheduler := upload.New(backend, 0, nil)

	if err := scheduler.ReserveAndSend(context.Background(), "  ", nil); !errors.Is(err, upload.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if backend.reserves != 0 {
		t.Fatal("no reservation should happen for an invalid filename")
	}
}

func TestCancelledContextStopsAttempts(t *testing.T) {
	backend := &fakeBackend{}
	scheduler := upload.New(backend, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := scheduler.ReserveAndSend(ctx, "clip.webm", nil); !errors.Is(err, upload.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if backend.reserves != 0 {
		t.Fatal("no reservation should happen after cancellation")
	}
}
