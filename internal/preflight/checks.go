package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"quill/internal/api"
	"quill/internal/config"
)

// CheckBackend verifies that the contract service is reachable and the
// token is accepted. It uses a 5-second timeout and a single attempt.
func CheckBackend(ctx context.Context, cfg *config.Config) Result {
	const name = "Contract backend"

	base := strings.TrimRight(strings.TrimSpace(cfg.Backend.BaseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing backend url"}
	}
	if strings.TrimSpace(cfg.Backend.APIToken) == "" {
		return Result{Name: name, Detail: "missing api token"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := api.New(api.Config{BaseURL: base, Token: cfg.Backend.APIToken})
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	if err := client.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeBackendError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFFmpeg verifies the capture binary can be resolved on PATH.
func CheckFFmpeg(binary string) Result {
	const name = "FFmpeg"

	if strings.TrimSpace(binary) == "" {
		return Result{Name: name, Detail: "capture binary not configured"}
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s not found on PATH", binary)}
	}
	return Result{Name: name, Passed: true, Detail: resolved}
}

// summarizeBackendError produces a human-readable summary for backend check failures.
func summarizeBackendError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (backend unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (backend unreachable)"
	}
	if errors.Is(err, api.ErrUnauthorized) {
		return "auth failed (invalid api token)"
	}
	return err.Error()
}
