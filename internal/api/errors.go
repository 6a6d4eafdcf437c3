package api

import (
	"encoding/json"
	"fmt"
)

// APIError is the decoded form of an ErrorResponse, with the HTTP status
// attached so a programmatic caller can branch on either the status or the
// numeric error code. Policy denials keep their upgrade advisory.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
	Advisory  *AdvisoryInfo
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("api error: status %d", e.Status)
}

// DecodeError rebuilds the typed error from a non-2xx response. A body
// that is not the standard error shape still yields a usable error
// carrying the status.
func DecodeError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		apiErr.Code = resp.Code
		apiErr.ErrorCode = resp.ErrorCode
		apiErr.Message = resp.Error
		apiErr.Advisory = resp.Advisory
	}
	return apiErr
}
