// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Transport is the uniform operation set every backend implements.
//
// Command names, attribute names and result shapes are vendor-defined and
// pass through unmodified. A transport only normalizes call convention and
// serialization: argument passing, list encoding, and session bootstrap.
//
// Transports are not safe for concurrent use unless stated otherwise.
type Transport interface {
	// Create requests remote creation of objType under parent and returns
	// the new handle.
	Create(ctx context.Context, objType, parent string, attrs Attrs) (string, error)

	// Delete removes a remote object. Deleting a missing handle may fail.
	Delete(ctx context.Context, handle string) error

	// Get returns a single attribute value. Multi-valued results are joined
	// with a single space.
	Get(ctx context.Context, handle, attr string) (string, error)

	// GetAll returns every attribute of the object.
	GetAll(ctx context.Context, handle string) (map[string]string, error)

	// GetList returns a whitespace-delimited attribute value as tokens.
	GetList(ctx context.Context, handle, attr string) ([]string, error)

	// Config sets attributes or relations in one remote call without commit.
	Config(ctx context.Context, handle string, attrs Attrs) error

	// Perform executes a named remote command. A nil result means the
	// backend handled the command locally and produced nothing.
	Perform(ctx context.Context, command string, args Attrs) (CommandResult, error)

	// Subscribe establishes a statistics view subscription.
	Subscribe(ctx context.Context, args Attrs) (string, error)

	// Unsubscribe tears down a subscription.
	Unsubscribe(ctx context.Context, handle string) error

	// Apply commits buffered configuration to the running state.
	Apply(ctx context.Context) error

	// Wait blocks until the command sequencer is idle.
	Wait(ctx context.Context) error
}

// SessionCloser is implemented by transports that hold a server-side session
type SessionCloser interface {
	// EndSession leaves the server session. When terminate is true the
	// server-side session is destroyed as well.
	EndSession(ctx context.Context, terminate bool) error
}

// FileUploader is implemented by transports whose server cannot read the
// caller's file system. Upload returns the name to use in remote commands.
type FileUploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// TypeReporter is implemented by transports that can report a handle's
// object type directly. ok is false when the backend does not know it.
type TypeReporter interface {
	HandleType(ctx context.Context, handle string) (objType string, ok bool, err error)
}

// loggerAware is implemented by transports that log through the session logger
type loggerAware interface {
	setLogger(Logger)
}

// formatValue serializes an attribute value. listFn encodes handle/token
// lists in the backend's list syntax.
func formatValue(v any, listFn func([]string) string) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []string:
		return listFn(val)
	case Proxy:
		return val.Handle()
	case []Proxy:
		return listFn(handlesOf(val))
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// spaceList joins tokens with a single space
func spaceList(tokens []string) string {
	return strings.Join(tokens, " ")
}

// sortedKeys returns attribute names in a stable order
func sortedKeys(attrs Attrs) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stringAttrs serializes all attribute values with the given list encoding
func stringAttrs(attrs Attrs, listFn func([]string) string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = formatValue(v, listFn)
	}
	return out
}

// lookupFold returns the attribute whose name matches key case-insensitively
func lookupFold(attrs Attrs, key string) (any, bool) {
	for k, v := range attrs {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}
