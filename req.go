// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import "time"

// Attrs holds attribute or command argument values keyed by their vendor
// names. Names and values pass through to the remote system unmodified;
// each transport only normalizes how values are serialized.
//
// Supported value types: string, bool, integers, floats, []string (a list of
// handles or tokens), Proxy (serialized as its handle), []Proxy and
// fmt.Stringer.
type Attrs map[string]any

// Req represents a request modifier for individual proxy operations
//
// This struct is used to apply operation-specific options via functional
// modifiers.
//
// Example:
//
//	// Configure and immediately commit
//	err := port.SetAttributes(ctx, testcenter.Attrs{"Location": "10.0.0.1/1/1"},
//	    testcenter.Apply())
//
//	// Run a command and let the chassis settle for 4 seconds
//	res, err := project.Command(ctx, "DeviceStart", args,
//	    testcenter.WaitAfter(4*time.Second))
type Req struct {
	// Apply commits buffered configuration after a write
	Apply bool

	// WaitAfter is the settle time slept after a command
	WaitAfter time.Duration
}

// newReq builds a Req from modifiers
func newReq(mods []func(*Req)) *Req {
	req := &Req{}
	for _, mod := range mods {
		mod(req)
	}
	return req
}

// Clone returns a shallow copy of the attributes
func (a Attrs) Clone() Attrs {
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
