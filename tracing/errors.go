package tracing

import "fmt"

// TruncatedTraceError reports that the trace ended while call frames were still open. The
// call tree built up to that point remains valid; the unterminated frames carry a
// truncation marker instead of an exit step.
type TruncatedTraceError struct {
	// Steps describes how many steps the trace contained.
	Steps int

	// OpenFrames describes how many frames were still open when the trace ended.
	OpenFrames int
}

func (e *TruncatedTraceError) Error() string {
	return fmt.Sprintf("trace ended after %d step(s) with %d call frame(s) still open", e.Steps, e.OpenFrames)
}
