// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Status is the outcome of a remote command as reported in one result field
type Status int

const (
	// StatusNone means the field is absent or empty
	StatusNone Status = iota

	// StatusSuccess means the field reports success
	StatusSuccess

	// StatusFailure means the field reports anything else
	StatusFailure
)

// String returns the string representation of a Status
func (s Status) String() string {
	switch s {
	case StatusNone:
		return "NONE"
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// successTokens is the success vocabulary of the remote command sequencer.
// Any other non-empty status is a failure.
var successTokens = []string{"passed", "successful"}

// ClassifyStatus translates a raw vendor status string into a Status.
//
// This is the single place where vendor wording is interpreted: a status is
// successful when its lowercased value contains "passed" or "successful",
// empty when blank, and a failure otherwise.
func ClassifyStatus(raw string) Status {
	status := strings.ToLower(strings.TrimSpace(raw))
	if status == "" {
		return StatusNone
	}
	for _, token := range successTokens {
		if strings.Contains(status, token) {
			return StatusSuccess
		}
	}
	return StatusFailure
}

// CommandResult holds the named return values of a perform-style command
type CommandResult map[string]string

// Get returns a result field by name (case-insensitive)
func (r CommandResult) Get(key string) string {
	if v, ok := r[key]; ok {
		return v
	}
	for k, v := range r {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Status classifies the named result field
func (r CommandResult) Status(key string) Status {
	return ClassifyStatus(r.Get(key))
}

// Check returns a *CommandFailedError when the named field reports failure.
// Absent or empty fields are not failures.
func (r CommandResult) Check(key string) error {
	if r.Status(key) == StatusFailure {
		return &CommandFailedError{Key: key, Status: r.Get(key)}
	}
	return nil
}

// JSON returns the result as a JSON object string.
// Returns an empty string if marshaling fails.
func (r CommandResult) JSON() string {
	if r == nil {
		return ""
	}
	data, err := json.Marshal(map[string]string(r))
	if err != nil {
		return ""
	}
	return string(data)
}

// GetValue retrieves a value from the result using a gjson path.
//
// Example:
//
//	res, err := project.Command(ctx, "ChassisConnect", testcenter.Attrs{"Hostname": "10.0.0.1"})
//	chassis := res.GetValue("OutputChassisList").String()
func (r CommandResult) GetValue(path string) gjson.Result {
	jsonStr := r.JSON()
	if jsonStr == "" {
		return gjson.Result{}
	}
	return gjson.Get(jsonStr, path)
}
