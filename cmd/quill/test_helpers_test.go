package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	recordings string
	logs       string
}

func setupCLITestEnv(t *testing.T, backendURL string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("QUILL_API_TOKEN", "")

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		recordings: filepath.Join(base, "recordings"),
		logs:       filepath.Join(base, "logs"),
	}
	writeTestConfig(t, env, backendURL)
	return env
}

func writeTestConfig(t *testing.T, env *cliTestEnv, backendURL string) {
	t.Helper()

	stub := filepath.Join(env.baseDir, "bin", "ffmpeg")
	if err := os.MkdirAll(filepath.Dir(stub), 0o755); err != nil {
		t.Fatalf("mkdir stub bin: %v", err)
	}
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}

	content := fmt.Sprintf(`[paths]
recordings_dir = %q
log_dir = %q

[backend]
base_url = %q
api_token = "test-token"

[pipeline]
poll_interval_ms = 100

[capture]
ffmpeg_binary = %q
`, env.recordings, env.logs, backendURL, stub)

	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
