// Package library indexes locally recorded audio clips in SQLite: where the
// file lives, when it was captured, whether it was uploaded, and which
// contract it produced. It deliberately stores no job status — client-side
// job state is reconstructed from the backend on the next poll, never
// persisted here.
package library
