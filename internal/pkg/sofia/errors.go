package sofia

// FrameError reports a recoverable framing problem: a malformed header line,
// a bad boundary, or a truncated prefix. Before returning one the reader
// skips past the offending bytes (to the next boundary-validated header when
// one is buffered, otherwise past the current line), so the caller can keep
// iterating.
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return "invalid frame header: " + e.Reason
}

func frameError(reason string) *FrameError {
	return &FrameError{Reason: reason}
}
