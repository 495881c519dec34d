// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for the backend error taxonomy.
var (
	// ErrUnauthorized indicates an authentication failure; the session
	// manager forces a logout when it sees this.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnavailable indicates the backend could not be reached. Callers
	// degrade to cached or default data rather than crashing.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
)

// APIError is a structured error response from a backend service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
}

// apiErrorResponse is the wire shape of backend error bodies.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newAPIError builds the typed error for a non-2xx response.
func newAPIError(status int, body []byte) error {
	apiErr := &APIError{Status: status, Message: errorMessage(body)}
	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Code = parsed.Error.Code
	}
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", ErrUnavailable, apiErr.Message)
	}
	return apiErr
}

// errorMessage extracts a human-readable message from an error body.
func errorMessage(body []byte) string {
	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		return "no error details"
	}
	return s
}

// IsForeignKeyViolation reports whether an error matches the signature the
// media service returns when an attachment references a message that is
// not yet durable on its side. The upload flow retries on exactly this
// condition; everything else fails the file immediately.
func IsForeignKeyViolation(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == "foreign_key_violation" {
			return true
		}
		msg := strings.ToLower(apiErr.Message)
		return strings.Contains(msg, "foreign key")
	}
	return false
}

// IsUnavailable reports whether the error means the backend was
// unreachable or degraded.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
