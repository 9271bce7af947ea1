package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBackend()
	c.normalizePipeline()
	c.normalizeCapture()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RecordingsDir) == "" {
		c.Paths.RecordingsDir = defaultRecordingsDir
	}
	if c.Paths.RecordingsDir, err = expandPath(c.Paths.RecordingsDir); err != nil {
		return fmt.Errorf("paths.recordings_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBackend() {
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = defaultBackendBaseURL
	}
	if c.Backend.APIToken == "" {
		if value, ok := os.LookupEnv("QUILL_API_TOKEN"); ok {
			c.Backend.APIToken = value
		}
	}
	c.Backend.APIToken = strings.TrimSpace(c.Backend.APIToken)
	if c.Backend.RequestTimeout <= 0 {
		c.Backend.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.PollIntervalMS <= 0 {
		c.Pipeline.PollIntervalMS = defaultPollIntervalMS
	}
	if c.Pipeline.UploadAttempts <= 0 {
		c.Pipeline.UploadAttempts = defaultUploadAttempts
	}
	if c.Pipeline.AutoRetries < 0 {
		c.Pipeline.AutoRetries = defaultAutoRetries
	}
}

func (c *Config) normalizeCapture() {
	c.Capture.FFmpegBinary = strings.TrimSpace(c.Capture.FFmpegBinary)
	c.Capture.InputDevice = strings.TrimSpace(c.Capture.InputDevice)
	if c.Capture.InputDevice == "" {
		c.Capture.InputDevice = defaultInputDevice
	}
	if c.Capture.MaxSeconds <= 0 {
		c.Capture.MaxSeconds = defaultMaxSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
