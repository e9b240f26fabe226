package portal

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the portal adapter.
var (
	ErrAuthentication  = errors.New("portal authentication failed")
	ErrInvalidResponse = errors.New("invalid portal response")
)

// Error is a non-2xx answer from the portal gateway.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("portal returned %d", e.Status)
	}
	return fmt.Sprintf("portal returned %d: %s", e.Status, e.Message)
}

// Temporary reports whether the call may succeed if retried.
func (e *Error) Temporary() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}
