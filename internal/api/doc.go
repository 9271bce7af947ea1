// Package api wraps the contract service REST API. The backend tracks one
// active transcription job and one active generation job per authenticated
// user; the client therefore addresses jobs only by endpoint, never by id.
// Transport failures surface as tagged errors so callers can translate them
// into pipeline statuses without inspecting HTTP details.
package api
