package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"quill/internal/config"
	"quill/internal/library"
	"quill/internal/testsupport"
)

// fakeBackend emulates the contract service for end-to-end command tests.
type fakeBackend struct {
	mu                  sync.Mutex
	uploads             int
	transcriptionPolls  int
	generationRequested bool
	generationPolls     int
	server              *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /contracts/audio/reserve", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"upload_url": b.server.URL + "/upload/slot"})
	})
	mux.HandleFunc("PUT /upload/slot", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.uploads++
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /contracts/audio/status", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.transcriptionPolls++
		polls := b.transcriptionPolls
		b.mu.Unlock()
		status := "transcribing"
		if polls >= 2 {
			status = "done"
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	mux.HandleFunc("POST /contracts/generate", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.generationRequested = true
		b.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /contracts/generate/status", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.generationPolls++
		polls := b.generationPolls
		b.mu.Unlock()
		payload := map[string]string{"status": "generating"}
		if polls >= 2 {
			payload = map[string]string{"status": "done", "contract_id": "contract-e2e-1"}
		}
		_ = json.NewEncoder(w).Encode(payload)
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func TestConvertCommandEndToEnd(t *testing.T) {
	backend := newFakeBackend(t)
	env := setupCLITestEnv(t, backend.server.URL)

	// Seed a recording on disk and in the library.
	audioPath := filepath.Join(env.recordings, "recording_test.webm")
	seedRecording(t, env, "recording_test.webm", audioPath)

	out, _, err := runCLI(t, []string{"convert"}, env.configPath)
	if err != nil {
		t.Fatalf("convert: %v\noutput: %s", err, out)
	}
	requireContains(t, out, "Transcription complete.")
	requireContains(t, out, "Contract ready: contract-e2e-1")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.uploads != 1 {
		t.Fatalf("expected 1 upload, got %d", backend.uploads)
	}
	if !backend.generationRequested {
		t.Fatal("expected generation to be requested")
	}
}

func TestConvertCommandTranscriptOnly(t *testing.T) {
	backend := newFakeBackend(t)
	env := setupCLITestEnv(t, backend.server.URL)

	audioPath := filepath.Join(env.recordings, "recording_short.webm")
	seedRecording(t, env, "recording_short.webm", audioPath)

	out, _, err := runCLI(t, []string{"convert", "--transcript-only"}, env.configPath)
	if err != nil {
		t.Fatalf("convert --transcript-only: %v\noutput: %s", err, out)
	}
	requireContains(t, out, "Transcription complete.")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.generationRequested {
		t.Fatal("generation should not run with --transcript-only")
	}
}

func TestConvertCommandNoRecordings(t *testing.T) {
	backend := newFakeBackend(t)
	env := setupCLITestEnv(t, backend.server.URL)

	_, _, err := runCLI(t, []string{"convert"}, env.configPath)
	if err == nil {
		t.Fatal("expected error when no recordings exist")
	}
	requireContains(t, err.Error(), "no recordings yet")
}

func TestStatusCommand(t *testing.T) {
	backend := newFakeBackend(t)
	env := setupCLITestEnv(t, backend.server.URL)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Transcription")
	requireContains(t, out, "transcribing")
}

func seedRecording(t *testing.T, env *cliTestEnv, filename, path string) {
	t.Helper()

	testsupport.WriteFile(t, path, 256)

	cfg, _, _, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	store, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("open library: %v", err)
	}
	defer store.Close()

	if _, err := store.Add(context.Background(), filename, path, 256, 5); err != nil {
		t.Fatalf("seed recording: %v", err)
	}
}
