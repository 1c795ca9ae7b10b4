package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError represents a response with status >= 400 returned by the remote service.
type HTTPError struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("http error: status=%d body=%s", e.StatusCode, string(e.Body))
}

// StatusCode returns the status carried by err when it is (or wraps) an
// HTTPError, and 0 otherwise.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr != nil {
		return httpErr.StatusCode
	}
	return 0
}
