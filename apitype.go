// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"fmt"
	"strings"
)

// APIType selects the transport backend
type APIType string

// API type constants
const (
	// APIRest talks to the automation server over its HTTP REST API
	APIRest APIType = "rest"

	// APITcl drives the vendor Tcl package through an interpreter
	APITcl APIType = "tcl"

	// APINative calls an in-process vendor binding
	APINative APIType = "native"
)

// ValidAPITypes contains the list of valid API type values
var ValidAPITypes = []APIType{
	APIRest,
	APITcl,
	APINative,
}

// ParseAPIType converts a string to an APIType (case-insensitive)
//
// Returns an error if the value is not one of the supported API types.
//
// Example:
//
//	api, err := testcenter.ParseAPIType("REST")
//	if err != nil {
//	    log.Fatal(err)
//	}
func ParseAPIType(s string) (APIType, error) {
	api := APIType(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range ValidAPITypes {
		if api == valid {
			return api, nil
		}
	}
	return "", fmt.Errorf("invalid api type: %s (valid values: rest, tcl, native)", s)
}
