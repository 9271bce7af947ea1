package config

const (
	defaultRecordingsDir  = "~/.local/share/quill/recordings"
	defaultLogDir         = "~/.local/share/quill/logs"
	defaultBackendBaseURL = "http://127.0.0.1:8000/api"
	defaultRequestTimeout = 30
	defaultPollIntervalMS = 3000
	defaultUploadAttempts = 2
	defaultAutoRetries    = 1
	defaultInputDevice    = "default"
	defaultMaxSeconds     = 1800
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RecordingsDir: defaultRecordingsDir,
			LogDir:        defaultLogDir,
		},
		Backend: Backend{
			BaseURL:        defaultBackendBaseURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Pipeline: Pipeline{
			PollIntervalMS: defaultPollIntervalMS,
			UploadAttempts: defaultUploadAttempts,
			AutoRetries:    defaultAutoRetries,
		},
		Capture: Capture{
			InputDevice: defaultInputDevice,
			MaxSeconds:  defaultMaxSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
