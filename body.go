// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"fmt"
	"strings"

	"github.com/tidwall/sjson"
)

// Body provides a fluent interface for building REST request bodies
// using sjson for path-based manipulation.
//
// The Body builder tracks errors internally to enable method chaining
// while providing error checking through String() or Err() methods.
//
// Example:
//
//	body := testcenter.Body{}.
//	    Set("command", "ArpNdStart").
//	    Set("HandleList", "port1 port2")
//
//	value, err := body.String()
//	if err != nil {
//	    log.Fatal(err)
//	}
type Body struct {
	// str contains the JSON string being built
	str string
	// err tracks the first error encountered during building
	err error
}

// Set sets a value at the specified JSON path and returns a new Body
//
// The path uses dot notation for nested fields (e.g., "args.PortList").
// Use SetKey for vendor names that may contain dots.
//
// If an error occurs, the error is stored and returned by String() or Err().
// Once an error occurs, all subsequent operations are no-ops that preserve the error.
//
// Returns the Body for method chaining.
func (b Body) Set(path string, value any) Body {
	if b.err != nil {
		return b
	}

	result, err := sjson.Set(b.str, path, value)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("Set(%q): %w", path, err)}
	}
	return Body{str: result, err: nil}
}

// SetKey sets a top-level field whose name is taken literally
//
// Example:
//
//	body := testcenter.Body{}.SetKey("spirent.core.GetSupportedSpeeds", "")
func (b Body) SetKey(key string, value any) Body {
	return b.Set(escapeKey(key), value)
}

// SetAttrs sets every attribute as a top-level string field. List values
// are joined with spaces. Keys are written in sorted order.
func (b Body) SetAttrs(attrs Attrs) Body {
	for _, k := range sortedKeys(attrs) {
		b = b.SetKey(k, formatValue(attrs[k], spaceList))
	}
	return b
}

// String returns the JSON string representation and any error encountered during building
//
// An empty builder yields "{}" so that it can always be sent as a request body.
func (b Body) String() (string, error) {
	if b.err == nil && b.str == "" {
		return "{}", nil
	}
	return b.str, b.err
}

// Err returns any error that occurred during the building process
func (b Body) Err() error {
	return b.err
}

// Bytes returns the JSON byte slice representation and any error encountered during building
func (b Body) Bytes() ([]byte, error) {
	s, err := b.String()
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// pathEscaper escapes the characters sjson treats as path syntax
var pathEscaper = strings.NewReplacer(`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`)

func escapeKey(key string) string {
	return pathEscaper.Replace(key)
}
