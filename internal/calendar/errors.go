package calendar

import (
	"errors"
	"fmt"
)

// RemoteAPIError is any failure reported by the remote calendar. NotFound is
// set when the target event no longer exists.
type RemoteAPIError struct {
	Op         string
	StatusCode int
	NotFound   bool
	Err        error
}

func (e *RemoteAPIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("calendar %s failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("calendar %s failed: %v", e.Op, e.Err)
}

func (e *RemoteAPIError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is the not-found class of remote failure.
func IsNotFound(err error) bool {
	var apiErr *RemoteAPIError
	return errors.As(err, &apiErr) && apiErr.NotFound
}
