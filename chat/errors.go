// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a structured error response from the chat service.
// Callers use errors.As to extract the status code:
//
//	var apiErr *chat.APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound { ... }
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Message is the provider's error description, when it sent one.
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat: API error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("chat: API error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError for a missing or
// inaccessible resource.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
