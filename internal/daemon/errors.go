// SPDX-License-Identifier: MIT

package daemon

import "errors"

var (
	// ErrMissingHandler is returned when a manager is created without
	// an HTTP handler.
	ErrMissingHandler = errors.New("HTTP handler is required")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("manager already started")

	// ErrNotStarted is returned when shutting down a manager that
	// never started.
	ErrNotStarted = errors.New("manager not started")
)
