package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is returned for every failed call. Status is 0 when the request
// never produced an HTTP response.
type APIError struct {
	Status  int
	Message string
	// Fields holds field-level validation messages, keyed by field name.
	Fields map[string]string
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == 404
	case ErrUnauthorized:
		return e.Status == 401
	}
	return false
}

// Message extracts a user-facing message from any error returned by the
// client, falling back to err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}

	return err.Error()
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	// Errors is a field map on validation failures, but some endpoints
	// send a plain list, so it is decoded separately.
	Errors json.RawMessage `json:"errors"`
}

func parseError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		switch {
		case eb.Message != "":
			apiErr.Message = eb.Message
		case eb.Error != "":
			apiErr.Message = eb.Error
		}

		var fields map[string]json.RawMessage
		if len(eb.Errors) > 0 && json.Unmarshal(eb.Errors, &fields) == nil && len(fields) > 0 {
			apiErr.Fields = make(map[string]string, len(fields))
			for field, raw := range fields {
				if msg := fieldMessage(raw); msg != "" {
					apiErr.Fields[field] = msg
				}
			}
		} else if apiErr.Message == "" {
			apiErr.Message = fieldMessage(eb.Errors)
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("request failed with status %d", status)
	}

	return apiErr
}

// fieldMessage accepts both "field": "msg" and "field": ["msg", ...].
func fieldMessage(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}

	var list []string
	if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
		return list[0]
	}

	return ""
}

func networkError(err error) *APIError {
	return &APIError{Message: "network error: " + err.Error()}
}
