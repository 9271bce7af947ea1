package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"quill/internal/logging"
)

// FFmpegCommand is the default capture binary.
const FFmpegCommand = "ffmpeg"

// Recorder captures microphone audio to a local file via ffmpeg.
type Recorder struct {
	binary     string
	device     string
	maxSeconds int
	registry   *Registry
	logger     *slog.Logger

	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewRecorder creates a recorder for the given input device. maxSeconds caps
// the recording length; the context can end it earlier.
func NewRecorder(binary, device string, maxSeconds int, registry *Registry, logger *slog.Logger) *Recorder {
	if binary == "" {
		binary = FFmpegCommand
	}
	if device == "" {
		device = "default"
	}
	return &Recorder{
		binary:     binary,
		device:     device,
		maxSeconds: maxSeconds,
		registry:   registry,
		logger:     logging.WithComponent(logger, "recorder"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (r *Recorder) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	r.commandRunner = runner
}

// Record captures audio to dest until the context ends or the length cap is
// reached. The live device handle is registered with the registry for the
// duration and released on return; context cancellation is the ordinary way
// to stop recording, not an error.
func (r *Recorder) Record(ctx context.Context, dest string) error {
	if strings.TrimSpace(dest) == "" {
		return fmt.Errorf("record: destination path required")
	}

	runCtx, cancel := context.WithCancel(ctx)
	handle := newDeviceHandle(r.device, cancel)
	if r.registry != nil {
		r.registry.Register(handle)
	}
	defer func() { _ = handle.Release() }()

	args := buildFFmpegCaptureArgs(r.device, r.maxSeconds, dest)
	r.logger.Info("recording started",
		logging.String("device", r.device),
		logging.String("dest", dest),
	)
	if err := r.run(runCtx, r.binary, args...); err != nil {
		if runCtx.Err() != nil {
			r.logger.Info("recording stopped", logging.String("dest", dest))
			return nil
		}
		return fmt.Errorf("record: %w", err)
	}
	r.logger.Info("recording finished", logging.String("dest", dest))
	return nil
}

func (r *Recorder) run(ctx context.Context, name string, args ...string) error {
	if r.commandRunner != nil {
		return r.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func buildFFmpegCaptureArgs(device string, maxSeconds int, dest string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "pulse",
		"-i", device,
	}
	if maxSeconds > 0 {
		args = append(args, "-t", strconv.Itoa(maxSeconds))
	}
	args = append(args,
		"-ac", "1",
		"-c:a", "libopus",
		"-y", dest,
	)
	return args
}

// deviceHandle wraps the cancel function that stops the capture process.
type deviceHandle struct {
	device string
	once   sync.Once
	cancel context.CancelFunc
}

func newDeviceHandle(device string, cancel context.CancelFunc) *deviceHandle {
	return &deviceHandle{device: device, cancel: cancel}
}

// Release stops the capture process. Safe to call repeatedly and from
// multiple owners.
func (h *deviceHandle) Release() error {
	h.once.Do(h.cancel)
	return nil
}
