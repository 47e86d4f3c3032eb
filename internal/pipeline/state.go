package pipeline

// State is a step of the per-request pipeline. Rendered, Rejected,
// ExtractionFailed and Failed are terminal.
type State string

const (
	StateIdle             State = "idle"
	StateTextReceived     State = "text_received"
	StateFileReceived     State = "file_received"
	StateSizeChecked      State = "size_checked"
	StateExtracted        State = "extracted"
	StateValidated        State = "validated"
	StateSummarized       State = "summarized"
	StateRendered         State = "rendered"
	StateRejected         State = "rejected"
	StateExtractionFailed State = "extraction_failed"
	StateFailed           State = "failed"
)

func (s State) Terminal() bool {
	switch s {
	case StateRendered, StateRejected, StateExtractionFailed, StateFailed:
		return true
	}
	return false
}
