package marketdata

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPStatusError is a client error response from a data provider. Requests
// that fail with one are not retried.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("http %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// isPermanentStatus reports whether a retry cannot change the response.
// 408 and 429 are transient.
func isPermanentStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return false
	}
	return code >= 400 && code < 500
}

// isPermanent reports whether err carries a permanent client error.
func isPermanent(err error) bool {
	var se *HTTPStatusError
	return errors.As(err, &se) && isPermanentStatus(se.StatusCode)
}

// statusTransport turns permanent 4xx responses into *HTTPStatusError so
// they surface as typed errors through the SDK.
type statusTransport struct {
	next http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	resp, err := next.RoundTrip(req)
	if err != nil || !isPermanentStatus(resp.StatusCode) {
		return resp, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
