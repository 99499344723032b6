package interclient

import (
	"fmt"
	"net/http"
	"time"
)

// InterServiceError is the single failure shape raised by the Request
// Relay. Whatever went wrong underneath (connection refused, timeout,
// downstream 4xx/5xx, token minting) callers see this one type, with the
// downstream status code propagated when one exists.
type InterServiceError struct {
	Service    string    `json:"service"`
	Path       string    `json:"endpoint"`
	Method     string    `json:"method"`
	StatusCode int       `json:"statusCode"`
	Message    string    `json:"message"`
	RequestID  string    `json:"requestId"`
	Timestamp  time.Time `json:"timestamp"`

	cause error
}

func (e *InterServiceError) Error() string {
	return fmt.Sprintf("interclient: %s %s%s failed (%d): %s",
		e.Method, e.Service, e.Path, e.StatusCode, e.Message)
}

// Unwrap exposes the underlying cause so callers can still branch with
// errors.Is on e.g. intertoken.ErrSigning or context.DeadlineExceeded.
func (e *InterServiceError) Unwrap() error { return e.cause }

// Temporary reports whether a retry could plausibly succeed.
func (e *InterServiceError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError ||
		e.StatusCode == http.StatusTooManyRequests
}
