package reports

import (
	"errors"
	"fmt"
)

// InputError marks a request that was rejected before any computation
// ran: missing site id, malformed filters, invalid definitions.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return e.Reason
}

func NewInputError(format string, args ...any) *InputError {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}

func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// DataUnavailableError marks a failed or over-budget event store read.
// It is retryable and is never silently treated as an empty window.
type DataUnavailableError struct {
	Cause error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("event data unavailable: %v", e.Cause)
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Cause
}

func IsDataUnavailable(err error) bool {
	var de *DataUnavailableError
	return errors.As(err, &de)
}
