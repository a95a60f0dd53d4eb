// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractType(t *testing.T) {
	tests := []struct {
		handle string
		want   string
	}{
		{"port1", "port"},
		{"emulateddevice7", "emulateddevice"},
		{"streamblock42", "streamblock"},
		{"ipv4if3", "ipv4if"},
		{"ospfv2routerconfig12", "ospfv2routerconfig"},
		{"Dhcpv4BlockConfig1", "dhcpv4blockconfig"},
		{"automationoptions", "automationoptions"},
		{"system1", "system"},
	}

	for _, tt := range tests {
		t.Run(tt.handle, func(t *testing.T) {
			if got := ExtractType(tt.handle); got != tt.want {
				t.Errorf("ExtractType(%q) = %q, want %q", tt.handle, got, tt.want)
			}
		})
	}
}

func TestSplitHandles(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"port1", []string{"port1"}},
		{" port1  port2\tport3 ", []string{"port1", "port2", "port3"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, splitHandles(tt.in)); diff != "" {
			t.Errorf("splitHandles(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestIsLocalLocation(t *testing.T) {
	tests := []struct {
		location string
		want     bool
	}{
		{"localhost/1/1", true},
		{"127.0.0.1/1/2", true},
		{"LOCALHOST/1/1", true},
		{"10.0.0.1/1/1", false},
		{"chassis-a/2/4", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isLocalLocation(tt.location); got != tt.want {
			t.Errorf("isLocalLocation(%q) = %v, want %v", tt.location, got, tt.want)
		}
	}
}
