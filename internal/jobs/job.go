package jobs

import "time"

// Job is one backend-tracked unit of asynchronous work. The backend scopes a
// job to the authenticated user and allows one active job per kind, so a Job
// carries no caller-supplied identifier. Correlation holds whatever is needed
// to resume after a failure: for transcription, the filename and in-memory
// audio bytes; for generation, nothing.
type Job struct {
	Kind        Kind
	Status      Status
	Correlation Correlation
	StartedAt   time.Time
}

// Correlation is the kind-specific payload needed to re-attempt a job.
type Correlation struct {
	Filename string
	Audio    []byte
}

// NewTranscription builds the job value for a fresh upload attempt. Status
// starts at uploading optimistically; the first poll confirms it.
func NewTranscription(filename string, audio []byte) Job {
	return Job{
		Kind:        KindTranscription,
		Status:      StatusUploading,
		Correlation: Correlation{Filename: filename, Audio: audio},
		StartedAt:   time.Now().UTC(),
	}
}

// NewGeneration builds the job value for a generation request. The backend
// infers the work from prior transcription state, so no correlation data.
func NewGeneration() Job {
	return Job{
		Kind:      KindGeneration,
		Status:    StatusGenerating,
		StartedAt: time.Now().UTC(),
	}
}

// DiscardAudio drops the retained audio bytes once a same-session retry can
// no longer need them.
func (j *Job) DiscardAudio() {
	j.Correlation.Audio = nil
}
