package graph

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Subscription is the part of the subscription resource returned on PATCH.
type Subscription struct {
	ID                 string `json:"id"`
	Resource           string `json:"resource"`
	ChangeType         string `json:"changeType"`
	ExpirationDateTime string `json:"expirationDateTime"`
	NotificationURL    string `json:"notificationUrl"`
}

// errorResponse is Graph's standard error envelope.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is a non-2xx answer from Graph.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Method     string
	Path       string
}

func (e *APIError) Error() string {
	if e.StatusCode == http.StatusUnauthorized {
		return fmt.Sprintf("graph authentication failed (401) on %s %s: %s", e.Method, e.Path, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("graph API error (%d %s) on %s %s: %s", e.StatusCode, e.Code, e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Message)
}

func newAPIError(status int, method, path string, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Method: method, Path: path, Message: string(body)}
	var parsed errorResponse
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Code != "" {
		apiErr.Code = parsed.Error.Code
		apiErr.Message = parsed.Error.Message
	}
	return apiErr
}
