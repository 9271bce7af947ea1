// Package pipeline drives a recorded conversation through the contract
// service: upload and transcription first, then contract generation. Each
// pipeline owns a single status poller, applies the bounded auto-retry
// policy, and translates every transport failure into a status instead of
// letting it escape to the caller. Cancellation is request-then-confirm:
// sending cancel never changes local state; polling continues until the
// backend reports cancelled.
package pipeline
