package pipeline

import "quill/internal/jobs"

// Outcome is a terminal pipeline result delivered on Done. ContractID is set
// only for a successful generation; Err carries the cause for upload_failed
// and error outcomes.
type Outcome struct {
	Status     jobs.Status
	ContractID string
	Err        error
}

// Success reports whether the pipeline reached done.
func (o Outcome) Success() bool {
	return o.Status == jobs.StatusDone
}

const outcomeBuffer = 4

func sendOutcome(ch chan Outcome, outcome Outcome) {
	select {
	case ch <- outcome:
	default:
	}
}
