// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package meli

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is returned for any upstream call that resolves unsuccessfully.
// It carries attempt metadata (retry count, correlation id) for diagnostics.
type APIError struct {
	// Status is the HTTP status code, or 0 for network/timeout faults.
	Status int

	// Method and Path identify the logical call.
	Method string
	Path   string

	// CorrelationID is the X-Request-Id sent with the call.
	CorrelationID string

	// Retries is the number of additional attempts performed.
	Retries int

	// Body holds a truncated copy of the upstream error body, if any.
	Body string

	// Err is the underlying transport error for network faults.
	Err error
}

func (e *APIError) Error() string {
	if e.Status == 0 && e.Err != nil {
		return fmt.Sprintf("meli: %s %s failed after %d retries [%s]: %v",
			e.Method, e.Path, e.Retries, e.CorrelationID, e.Err)
	}
	return fmt.Sprintf("meli: %s %s returned status %d after %d retries [%s]",
		e.Method, e.Path, e.Status, e.Retries, e.CorrelationID)
}

func (e *APIError) Unwrap() error { return e.Err }

// Unauthorized reports whether the error is an authorization failure (401).
func (e *APIError) Unauthorized() bool { return e.Status == http.StatusUnauthorized }

// Transient reports whether the error is retryable: rate limit, request
// timeout, any 5xx, or a network/timeout fault.
func (e *APIError) Transient() bool {
	if e.Status == 0 {
		return e.Err != nil // network or timeout fault
	}
	return e.Status == http.StatusTooManyRequests ||
		e.Status == http.StatusRequestTimeout ||
		(e.Status >= 500 && e.Status <= 599)
}

// Permanent reports whether the error is a non-retryable client error:
// any 4xx other than 401, 408 and 429.
func (e *APIError) Permanent() bool {
	return e.Status >= 400 && e.Status <= 499 &&
		e.Status != http.StatusUnauthorized &&
		e.Status != http.StatusRequestTimeout &&
		e.Status != http.StatusTooManyRequests
}

// IsUnauthorized reports whether err is an upstream 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}

// IsTransient reports whether err is a retryable upstream failure.
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Transient()
}

// IsPermanent reports whether err is a non-retryable upstream client error.
func IsPermanent(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Permanent()
}
