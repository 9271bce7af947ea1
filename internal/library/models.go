package library

import "time"

// Recording describes a locally captured audio clip tracked by the library.
// Pipeline state lives on the backend; the library only remembers what was
// captured and, once known, which contract a clip produced.
type Recording struct {
	ID              int64
	Filename        string
	Path            string
	SizeBytes       int64
	DurationSeconds int64
	CreatedAt       time.Time
	UploadedAt      *time.Time
	ContractID      string
}

// Uploaded reports whether the clip has been sent to the backend at least once.
func (r *Recording) Uploaded() bool {
	return r != nil && r.UploadedAt != nil
}
