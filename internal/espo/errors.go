package espo

import (
	"errors"
	"fmt"
)

// APIError reports a failed EspoCRM call: a transport failure, a non-200
// status or a response body that is not a JSON object.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("espo: wrong request, status code is %d, reason is %s", e.StatusCode, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("espo: %s: %v", e.Message, e.Err)
	}
	return "espo: " + e.Message
}

// Unwrap returns the transport error, if any.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsAPIError reports whether err is, or wraps, an *APIError.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// StatusCode extracts the HTTP status of an APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
