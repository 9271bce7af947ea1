package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"quill/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckBackend_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "transcribing"}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(srv.URL))
	cfg.Backend.APIToken = "good-token"

	result := CheckBackend(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckBackend_NoJobIsHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "No audio data"}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(srv.URL))

	result := CheckBackend(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("expected pass for empty backend, got: %s", result.Detail)
	}
}

func TestCheckBackend_BadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(srv.URL))
	cfg.Backend.APIToken = "bad-token"

	result := CheckBackend(context.Background(), cfg)
	if result.Passed {
		t.Fatal("expected failure for rejected token")
	}
	if result.Detail != "auth failed (invalid api token)" {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckBackend_MissingConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Backend.BaseURL = ""
	if result := CheckBackend(context.Background(), cfg); result.Passed {
		t.Fatal("expected failure for missing url")
	}

	cfg = testsupport.NewConfig(t)
	cfg.Backend.APIToken = ""
	if result := CheckBackend(context.Background(), cfg); result.Passed {
		t.Fatal("expected failure for missing token")
	}
}

func TestCheckFFmpeg_NotFound(t *testing.T) {
	result := CheckFFmpeg("definitely-not-a-real-binary-name")
	if result.Passed {
		t.Fatal("expected failure for missing binary")
	}
}

func TestAllPassed(t *testing.T) {
	ok := []Result{{Passed: true}, {Passed: true}}
	if !AllPassed(ok) {
		t.Fatal("expected all passed")
	}
	mixed := []Result{{Passed: true}, {Passed: false}}
	if AllPassed(mixed) {
		t.Fatal("expected failure to be reported")
	}
}
