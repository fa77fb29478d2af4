package salesforce

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is a non-2xx response from the REST API.
type APIError struct {
	StatusCode int
	Code       string // errorCode of the first reported error
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("salesforce status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("salesforce status %d: %s", e.StatusCode, e.Message)
}

type restError struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status}

	var errs []restError
	if err := json.Unmarshal(body, &errs); err == nil && len(errs) > 0 {
		e.Code = errs[0].ErrorCode
		e.Message = errs[0].Message
		return e
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "empty response"
	}
	e.Message = msg
	return e
}
