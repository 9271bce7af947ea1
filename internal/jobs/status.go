package jobs

import "strings"

// Status represents the lifecycle of a backend-tracked job.
type Status string

const (
	StatusUploading           Status = "uploading"
	StatusUploaded            Status = "uploaded"
	StatusTranscribing        Status = "transcribing"
	StatusUploadFailed        Status = "upload_failed"
	StatusTranscriptionFailed Status = "transcription_failed"
	StatusGenerating          Status = "generating"
	StatusFailed              Status = "failed"
	StatusDone                Status = "done"
	StatusCancelled           Status = "cancelled"
	StatusError               Status = "error"
)

// Kind distinguishes the two job families tracked by the backend.
type Kind string

const (
	KindTranscription Kind = "transcription"
	KindGeneration    Kind = "generation"
)

var transcriptionStatuses = []Status{
	StatusUploading,
	StatusUploaded,
	StatusTranscribing,
	StatusUploadFailed,
	StatusTranscriptionFailed,
	StatusDone,
	StatusCancelled,
	StatusError,
}

var generationStatuses = []Status{
	StatusGenerating,
	StatusDone,
	StatusFailed,
	StatusCancelled,
	StatusError,
}

var transcriptionSet = statusSet(transcriptionStatuses)

var generationSet = statusSet(generationStatuses)

func statusSet(statuses []Status) map[Status]struct{} {
	set := make(map[Status]struct{}, len(statuses))
	for _, status := range statuses {
		set[status] = struct{}{}
	}
	return set
}

// terminalStatuses are statuses after which no further progress is expected
// without explicit user action.
var terminalStatuses = map[Status]struct{}{
	StatusUploadFailed:        {},
	StatusTranscriptionFailed: {},
	StatusFailed:              {},
	StatusDone:                {},
	StatusCancelled:           {},
	StatusError:               {},
}

// TranscriptionStatuses returns the ordered transcription status family.
func TranscriptionStatuses() []Status {
	cp := make([]Status, len(transcriptionStatuses))
	copy(cp, transcriptionStatuses)
	return cp
}

// GenerationStatuses returns the ordered generation status family.
func GenerationStatuses() []Status {
	cp := make([]Status, len(generationStatuses))
	copy(cp, generationStatuses)
	return cp
}

// ParseStatus converts a backend value into a known Status for the given kind.
// Values are case-sensitive on the wire; surrounding whitespace is tolerated.
func ParseStatus(kind Kind, value string) (Status, bool) {
	candidate := Status(strings.TrimSpace(value))
	if candidate == "" {
		return "", false
	}
	set := transcriptionSet
	if kind == KindGeneration {
		set = generationSet
	}
	_, ok := set[candidate]
	return candidate, ok
}

// IsTerminal reports whether the status ends polling absent user action.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// IsActive reports whether the status reflects in-flight backend work.
func (s Status) IsActive() bool {
	switch s {
	case StatusUploading, StatusUploaded, StatusTranscribing, StatusGenerating:
		return true
	default:
		return false
	}
}

// IsFailure reports whether the status represents a recoverable backend
// failure (retryable by the user), as opposed to a transport error.
func (s Status) IsFailure() bool {
	switch s {
	case StatusUploadFailed, StatusTranscriptionFailed, StatusFailed:
		return true
	default:
		return false
	}
}
