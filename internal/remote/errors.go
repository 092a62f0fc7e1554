package remote

import (
	"errors"
	"fmt"
	"net"
)

// APIError is a non-2xx response from the pipelines API.
type APIError struct {
	StatusCode int
	Op         string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
}

// IsTransient reports whether an error is worth retrying on the next poll
// tick: network failures, timeouts, rate limiting, and server-side errors.
// Client errors other than 429 indicate a request that will never succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// url.Error and friends wrap syscall-level failures; treat any remaining
	// transport error as transient since the poll loop owns the retry budget.
	return true
}
