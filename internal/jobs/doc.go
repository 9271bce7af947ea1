// Package jobs defines the status vocabulary and job model shared by the
// transcription and generation pipelines. The backend is the source of truth
// for status; values here only mirror what it reports, plus the optimistic
// "uploading" shown before the first poll confirms it.
package jobs
