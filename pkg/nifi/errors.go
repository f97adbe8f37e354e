// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nifi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// -----------------------------------------------------------------------------
// Error Kinds
// -----------------------------------------------------------------------------

// Sentinel errors for the failure kinds callers branch on. Every *APIError
// unwraps to exactly one of them.
var (
	// ErrNotFound means the referenced group, processor or connection does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrRevisionConflict means NiFi rejected a mutation because the revision
	// sent was not the current one.
	ErrRevisionConflict = errors.New("revision conflict")

	// ErrTransport covers network failures and timeouts.
	ErrTransport = errors.New("transport failure")

	// ErrUnexpectedStatus covers any other non-success response.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// staleRevisionMarker is the phrase NiFi puts in 400 responses when a
// mutation carried an out-of-date revision.
const staleRevisionMarker = "is not the most up-to-date revision"

// maxBodyExcerpt bounds how much of a response body is kept on an error.
const maxBodyExcerpt = 512

// APIError describes a failed call against the NiFi REST API.
//
// # Description
//
// Carries the request method and path, the HTTP status (zero for transport
// failures) and an excerpt of the response body. Kind is one of the sentinel
// errors above, so callers use errors.Is(err, nifi.ErrRevisionConflict)
// rather than inspecting status codes.
//
// # Example
//
//	var apiErr *nifi.APIError
//	if errors.As(err, &apiErr) {
//	    log.Printf("%s %s returned %d", apiErr.Method, apiErr.Path, apiErr.Status)
//	}
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
	Kind   error
	Cause  error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %v", e.Method, e.Path, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	} else if e.Body != "" {
		fmt.Fprintf(&b, ": %s", e.Body)
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *APIError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

var _ error = (*APIError)(nil)

// classifyStatus maps an HTTP status and body to an error kind.
func classifyStatus(status int, body string) error {
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrRevisionConflict
	case status == http.StatusBadRequest && strings.Contains(body, staleRevisionMarker):
		return ErrRevisionConflict
	case status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout:
		return ErrTransport
	default:
		return ErrUnexpectedStatus
	}
}

func newStatusError(method, path string, status int, body []byte) *APIError {
	text := strings.TrimSpace(string(body))
	if len(text) > maxBodyExcerpt {
		text = text[:maxBodyExcerpt] + "..."
	}
	return &APIError{
		Method: method,
		Path:   path,
		Status: status,
		Body:   text,
		Kind:   classifyStatus(status, text),
	}
}

func newTransportError(method, path string, cause error) *APIError {
	return &APIError{Method: method, Path: path, Kind: ErrTransport, Cause: cause}
}

// IsTransient reports whether err is worth retrying. Only transport
// failures qualify; revision conflicts in particular never do.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransport)
}
