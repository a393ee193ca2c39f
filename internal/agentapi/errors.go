package agentapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// TransportError is a failure to talk to the remote service, as opposed to a
// run that reached a failed state.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RateLimited reports whether the service throttled the call.
func (e *TransportError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// NotFound reports whether the addressed resource does not exist.
func (e *TransportError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Rejected reports whether the service refused the request as invalid.
func (e *TransportError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && !e.RateLimited()
}

// AsTransportError extracts a TransportError from an error chain.
func AsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// wrapError converts an SDK error into a TransportError carrying the HTTP status.
func wrapError(op string, err error) error {
	te := &TransportError{Op: op, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		te.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		te.StatusCode = reqErr.HTTPStatusCode
	}

	return te
}

// ignoreNotFound makes deletes idempotent on missing ids.
func ignoreNotFound(err error) error {
	if te, ok := AsTransportError(err); ok && te.NotFound() {
		return nil
	}
	return err
}
