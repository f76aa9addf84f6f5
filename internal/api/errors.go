package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error is a rejection from the analyzer service. Detail carries the
// server-supplied message when the body had one.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("upstream returned status %d", e.Status)
}

func newError(status int, body []byte) error {
	var payload struct {
		Detail string `json:"detail"`
	}
	_ = json.Unmarshal(body, &payload)
	return &Error{Status: status, Detail: payload.Detail}
}

// Message returns the server-supplied detail when err carries one, and
// fallback otherwise. Transport failures and detail-less rejections
// both collapse to the fallback.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}
