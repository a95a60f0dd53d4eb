// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by the proxy layer
var (
	// ErrDetached is returned by operations on a proxy that was deleted
	ErrDetached = errors.New("object is detached")

	// ErrUnbound is returned by operations on a proxy that has no remote handle yet
	ErrUnbound = errors.New("object has no remote handle")

	// ErrNotConnected is returned by session operations that need a project
	ErrNotConnected = errors.New("session is not connected")

	// ErrUnsupportedConfigFile is returned when a configuration file extension
	// is neither .tcc nor .xml
	ErrUnsupportedConfigFile = errors.New("configuration file type not supported")

	// ErrNoObjects is returned by bulk helpers that were given an empty set
	ErrNoObjects = errors.New("no objects to act on")
)

// Error represents a failed remote call with operation context
type Error struct {
	// Operation name that failed (create, get, perform, ...)
	Operation string

	// Handle is the remote handle the operation targeted, if any
	Handle string

	// Human-readable error message
	Message string

	// InternalMsg contains detailed error information for internal logging
	InternalMsg string

	// StatusCode is the HTTP status code for REST failures, 0 otherwise
	StatusCode int

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Handle != "" {
		return fmt.Sprintf("testcenter: %s %s failed: %s", e.Operation, e.Handle, e.Message)
	}
	return fmt.Sprintf("testcenter: %s failed: %s", e.Operation, e.Message)
}

// DetailedError returns the full error message including internal details
//
// This should only be used in secure logging contexts where sensitive information
// disclosure is acceptable (e.g., server-side logs, debug output).
func (e *Error) DetailedError() string {
	if e.InternalMsg == "" {
		return e.Error()
	}
	return fmt.Sprintf("%s (internal: %s)", e.Error(), e.InternalMsg)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// CommandFailedError is returned by TestCommandRC when the last command
// result carries a non-success status
type CommandFailedError struct {
	// Key is the result field that was checked (e.g. "Status", "PassFailState")
	Key string

	// Status is the raw status string returned by the remote system
	Status string
}

// Error implements the error interface
func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("testcenter: command failed: %s = %s", e.Key, e.Status)
}

// TimeoutError is returned when a bounded polling loop never observes the
// expected state
type TimeoutError struct {
	// Operation that was waiting
	Operation string

	// Handle of the polled object
	Handle string

	// State is the last observed state
	State string

	// Expected lists the states that would have ended the wait
	Expected []string

	// Elapsed is the time spent polling
	Elapsed time.Duration
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("testcenter: %s %s timed out after %v: state %q not in %v",
		e.Operation, e.Handle, e.Elapsed, e.State, e.Expected)
}
