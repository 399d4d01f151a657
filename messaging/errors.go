// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// MatrixError is a structured error response from the homeserver.
// Extract it with errors.As:
//
//	var matrixErr *MatrixError
//	if errors.As(err, &matrixErr) {
//	    if matrixErr.Code == ErrCodeUnknownToken { ... }
//	}
type MatrixError struct {
	// Code is the Matrix error code (e.g., "M_FORBIDDEN", "M_UNKNOWN_TOKEN").
	Code string `json:"errcode"`
	// Message is the human-readable description from the server.
	Message string `json:"error"`
	// RetryAfterMs is the server-requested wait on M_LIMIT_EXCEEDED,
	// in milliseconds. Zero when the server did not specify one.
	RetryAfterMs int64 `json:"retry_after_ms,omitempty"`
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
}

func (e *MatrixError) Error() string {
	return fmt.Sprintf("matrix: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// RetryAfter returns the server-specified rate-limit delay, or
// fallback when the server did not provide one.
func (e *MatrixError) RetryAfter(fallback time.Duration) time.Duration {
	if e.RetryAfterMs > 0 {
		return time.Duration(e.RetryAfterMs) * time.Millisecond
	}
	return fallback
}

// Matrix error codes the agent acts on.
const (
	ErrCodeForbidden     = "M_FORBIDDEN"
	ErrCodeUnknownToken  = "M_UNKNOWN_TOKEN"
	ErrCodeMissingToken  = "M_MISSING_TOKEN"
	ErrCodeNotFound      = "M_NOT_FOUND"
	ErrCodeLimitExceeded = "M_LIMIT_EXCEEDED"
	ErrCodeUnknown       = "M_UNKNOWN"
)

// IsMatrixError reports whether err is a *MatrixError with the given code.
func IsMatrixError(err error, code string) bool {
	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) {
		return matrixErr.Code == code
	}
	return false
}

// IsAuthInvalid reports whether err means the current session is no
// longer accepted — token unknown, missing, or refused outright — the
// condition that forces a full reauthentication (store wipe plus fresh
// login). M_FORBIDDEN belongs here for authenticated endpoints, where
// it means the session was revoked; at password login the same code
// means wrong credentials, which callers check separately.
func IsAuthInvalid(err error) bool {
	return IsMatrixError(err, ErrCodeUnknownToken) ||
		IsMatrixError(err, ErrCodeMissingToken) ||
		IsMatrixError(err, ErrCodeForbidden)
}

// IsRateLimited reports whether err is a server rate-limit response.
// When it is, the *MatrixError is returned so the caller can read
// RetryAfter.
func IsRateLimited(err error) (*MatrixError, bool) {
	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) {
		if matrixErr.Code == ErrCodeLimitExceeded || matrixErr.StatusCode == http.StatusTooManyRequests {
			return matrixErr, true
		}
	}
	return nil, false
}

// IsTransient reports whether err is worth retrying at the same state:
// connection-level failures and 5xx server errors. Rate limits are NOT
// transient in this classification — they carry their own delay and
// are handled separately. Other 4xx responses are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) {
		if matrixErr.StatusCode >= 500 {
			return true
		}
		return false
	}

	// Non-Matrix errors (connection refused, reset, timeout, EOF) are
	// transport-level and transient.
	return true
}
