// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"regexp"
	"strings"
)

// handleTypePattern matches "<type><sequence number>" handles such as port1 or
// streamblock42. The greedy prefix must end in a non-digit so embedded digits
// in the type name survive (ipv4if3 -> ipv4if).
var handleTypePattern = regexp.MustCompile(`(.*\D+)\d+`)

// ExtractType recovers the object type from a remote handle by stripping the
// trailing sequence number.
//
// Handles of singleton types carry no sequence number (automationoptions);
// in that case the whole handle is the type. The result is lowercased.
//
// Example:
//
//	testcenter.ExtractType("port1")             // "port"
//	testcenter.ExtractType("streamblock42")     // "streamblock"
//	testcenter.ExtractType("automationoptions") // "automationoptions"
func ExtractType(handle string) string {
	m := handleTypePattern.FindStringSubmatch(handle)
	if m == nil {
		return strings.ToLower(handle)
	}
	return strings.ToLower(m[1])
}

// splitHandles tokenizes a whitespace-delimited handle list
func splitHandles(value string) []string {
	return strings.Fields(value)
}

// handlesOf returns the handles of the given proxies in order
func handlesOf[P Proxy](objects []P) []string {
	handles := make([]string, 0, len(objects))
	for _, o := range objects {
		handles = append(handles, o.Handle())
	}
	return handles
}

// isLocalLocation reports whether a port location points at the local host,
// in which case no physical port is reserved.
func isLocalLocation(location string) bool {
	host := strings.ToLower(strings.SplitN(location, "/", 2)[0])
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
