package remote

import (
	"errors"
	"fmt"
)

// TransportError means no usable response was obtained: bad URL, request
// encoding failure, connection failure, timeout or cancellation.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteOperationFailedError is a response whose status is not the success
// status for the operation. Body is kept for logs only.
type RemoteOperationFailedError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *RemoteOperationFailedError) Error() string {
	return fmt.Sprintf("%s: remote operation failed with status %d", e.Operation, e.StatusCode)
}

// DecodingError is a success response whose body has an unexpected shape.
type DecodingError struct {
	Operation string
	Err       error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("%s: decode response: %v", e.Operation, e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status of a RemoteOperationFailedError in err's chain, or 0.
func StatusCode(err error) int {
	var rerr *RemoteOperationFailedError
	if errors.As(err, &rerr) {
		return rerr.StatusCode
	}
	return 0
}
