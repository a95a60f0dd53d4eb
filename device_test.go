// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.chromium.org/luci/common/clock"
)

func TestDeviceStart(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr bool
	}{
		{name: "passed", status: "Passed"},
		{name: "no status"},
		{name: "failed", status: "FAILED", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, f := newTestSession(t)
			port := mustCreate[*Port](t, s, s.Project(), "port", nil)
			device := mustCreate[*Device](t, s, port, "emulateddevice", nil)
			f.calls = nil
			f.queue("DeviceStart", CommandResult{"Status": tt.status})
			ctx, tc := testContext(t)
			start := tc.Now()

			err := device.Start(ctx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Start() error = %v, wantErr %v", err, tt.wantErr)
			}
			performs := f.performs()
			if len(performs) != 1 || performs[0].Args["DeviceList"] != "emulateddevice1" {
				t.Errorf("performs = %v", performs)
			}
			if got := clock.Since(ctx, start); got != DefaultDeviceSettle {
				t.Errorf("slept %v", got)
			}
		})
	}
}

func TestDevicePing(t *testing.T) {
	s, f := newTestSession(t)
	port := mustCreate[*Port](t, s, s.Project(), "port", nil)
	device := mustCreate[*Device](t, s, port, "emulateddevice", nil)
	f.queue("PingVerifyConnectivity",
		CommandResult{"PassFailState": "PASSED"},
		CommandResult{"PassFailState": "FAILED"})
	ctx, tc := testContext(t)
	start := tc.Now()

	if err := device.Ping(ctx, "10.0.0.1"); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if got := f.performs()[0].Args["PingAddress"]; got != "10.0.0.1" {
		t.Errorf("PingAddress = %q", got)
	}
	var failed *CommandFailedError
	if err := device.Ping(ctx, "10.0.0.2"); !errors.As(err, &failed) || failed.Key != "PassFailState" {
		t.Errorf("Ping() error = %v, want PassFailState failure", err)
	}
	if got := clock.Since(ctx, start); got != 2*DefaultDeviceCommandSettle {
		t.Errorf("slept %v", got)
	}
}

func TestDeviceStop(t *testing.T) {
	s, f := newTestSession(t)
	port := mustCreate[*Port](t, s, s.Project(), "port", nil)
	device := mustCreate[*Device](t, s, port, "emulateddevice", nil)
	f.calls = nil
	ctx, _ := testContext(t)

	if err := device.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"DeviceStop"}, performNames(f.performs())); diff != "" {
		t.Errorf("performs mismatch (-want +got):\n%s", diff)
	}
	if device.Port() != port {
		t.Errorf("Port() = %v", device.Port())
	}
}

// newStackFixture returns a device whose interfaces are stacked
// ipv4if1 on vlanif2 on vlanif1 on ethiiif1
func newStackFixture(t *testing.T) (*fakeTransport, *Device) {
	t.Helper()
	s, f := newTestSession(t)
	f.add("port1", "project1")
	f.add("emulateddevice1", "project1", "AffiliatedPort", "port1")
	f.add("ipv4if1", "emulateddevice1")
	f.add("vlanif2", "emulateddevice1", "StackedOnEndpoint-sources", "ipv4if1")
	f.add("vlanif1", "emulateddevice1", "StackedOnEndpoint-sources", "vlanif2")
	f.add("ethiiif1", "emulateddevice1", "StackedOnEndpoint-sources", "vlanif1")
	ctx, _ := testContext(t)
	p, err := s.Adopt(ctx, "emulateddevice1", nil)
	if err != nil {
		t.Fatal(err)
	}
	return f, p.(*Device)
}

func TestOrderedVlans(t *testing.T) {
	_, device := newStackFixture(t)
	ctx, _ := testContext(t)

	vlans, err := device.OrderedVlans(ctx)
	if err != nil {
		t.Fatalf("OrderedVlans() error = %v", err)
	}
	if diff := cmp.Diff([]string{"vlanif1", "vlanif2"}, handlesOf(vlans)); diff != "" {
		t.Errorf("OrderedVlans() mismatch (-want +got):\n%s", diff)
	}
	if device.Port() == nil || device.Port().Handle() != "port1" {
		t.Errorf("Port() = %v", device.Port())
	}
}

func TestOrderedVlansEdgeCases(t *testing.T) {
	s, f := newTestSession(t)
	port := mustCreate[*Port](t, s, s.Project(), "port", nil)
	plain := mustCreate[*Device](t, s, port, "emulateddevice", nil)
	broken := mustCreate[*Device](t, s, port, "emulateddevice", nil)
	f.add("vlanif1", broken.Handle())
	ctx, _ := testContext(t)

	vlans, err := plain.OrderedVlans(ctx)
	if err != nil || vlans != nil {
		t.Errorf("OrderedVlans() without VLANs = %v, %v", vlans, err)
	}
	if _, err := broken.OrderedVlans(ctx); err == nil {
		t.Error("OrderedVlans() without Ethernet interface: expected error")
	}
}

func TestDeviceHasIP(t *testing.T) {
	_, device := newStackFixture(t)
	ctx, _ := testContext(t)

	v4, err := device.HasIPv4(ctx)
	if err != nil || !v4 {
		t.Errorf("HasIPv4() = %v, %v", v4, err)
	}
	v6, err := device.HasIPv6(ctx)
	if err != nil || v6 {
		t.Errorf("HasIPv6() = %v, %v", v6, err)
	}
}
