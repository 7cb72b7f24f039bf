package zoom

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an error response is kept as the message.
const maxErrorBody = 4096

// APIError is returned when the Zoom API rejects a call.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Code is Zoom's numeric error code, when the body carried one.
	Code int
	// Message is Zoom's error message, or the raw body when it was not JSON.
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("zoom api: status %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("zoom api: status %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an *APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// newAPIError builds an APIError from a non-2xx response.
func newAPIError(res *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))

	apiErr := &APIError{StatusCode: res.StatusCode}

	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && (payload.Code != 0 || payload.Message != "") {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(res.StatusCode)
	}
	return apiErr
}
