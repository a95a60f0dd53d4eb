// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.chromium.org/luci/common/clock"
)

// serverTransport adds the server session and upload capabilities to the
// fake transport
type serverTransport struct {
	*fakeTransport

	ended    []bool
	uploaded []string
}

func (t *serverTransport) EndSession(_ context.Context, terminate bool) error {
	t.ended = append(t.ended, terminate)
	return nil
}

func (t *serverTransport) Upload(_ context.Context, path string) (string, error) {
	t.uploaded = append(t.uploaded, path)
	return filepath.Base(path), nil
}

func performNames(calls []call) []string {
	var names []string
	for _, c := range calls {
		names = append(names, c.Command)
	}
	return names
}

func TestNewSession(t *testing.T) {
	tests := []struct {
		name      string
		transport Transport
		opts      []func(*Session)
		wantErr   bool
	}{
		{name: "defaults", transport: newFakeTransport()},
		{name: "nil transport", transport: nil, wantErr: true},
		{name: "negative device settle", transport: newFakeTransport(), opts: []func(*Session){WithDeviceSettle(-time.Second)}, wantErr: true},
		{name: "negative port settle", transport: newFakeTransport(), opts: []func(*Session){WithPortSettle(-time.Second)}, wantErr: true},
		{name: "negative results settle", transport: newFakeTransport(), opts: []func(*Session){WithResultsSettle(-time.Second)}, wantErr: true},
		{name: "zero poll interval", transport: newFakeTransport(), opts: []func(*Session){WithPollInterval(0)}, wantErr: true},
		{name: "zero settle", transport: newFakeTransport(), opts: []func(*Session){WithDeviceSettle(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSession(tt.transport, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSession() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if s.System().Handle() != SystemHandle || s.ObjectByHandle(SystemHandle) != Proxy(s.System()) {
				t.Errorf("system not registered: %v", s.System())
			}
			if s.Project() != nil {
				t.Errorf("Project() before Connect = %v", s.Project())
			}
		})
	}
}

func TestConnectAdoptsProject(t *testing.T) {
	f := newFakeTransport()
	f.add("project1", SystemHandle, "Name", "Lab Project")
	s, err := NewSession(f)
	if err != nil {
		t.Fatal(err)
	}
	ctx, _ := testContext(t)

	if err := s.Connect(ctx, ""); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if s.Project() == nil || s.Project().Handle() != "project1" {
		t.Fatalf("Project() = %v", s.Project())
	}
	if s.Project().LocalName() != "Lab Project" {
		t.Errorf("LocalName() = %q", s.Project().LocalName())
	}
	if n := f.count("create"); n != 0 {
		t.Errorf("create calls = %d, want 0", n)
	}
	if n := len(f.performs()); n != 0 {
		t.Errorf("perform calls = %d, want 0", n)
	}
}

func TestConnectCreatesProject(t *testing.T) {
	f := newFakeTransport()
	s, err := NewSession(f)
	if err != nil {
		t.Fatal(err)
	}
	ctx, _ := testContext(t)

	if err := s.Connect(ctx, "lab.example.com"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if s.Project() == nil || s.Project().Parent() != Proxy(s.System()) {
		t.Fatalf("Project() = %v", s.Project())
	}

	performs := f.performs()
	if len(performs) != 1 || performs[0].Command != "CSTestSessionConnect" {
		t.Fatalf("performs = %v", performs)
	}
	want := map[string]string{"Host": "lab.example.com", "CreateNewTestSession": "true"}
	if diff := cmp.Diff(want, performs[0].Args); diff != "" {
		t.Errorf("CSTestSessionConnect args mismatch (-want +got):\n%s", diff)
	}
	if n := f.count("create"); n != 1 {
		t.Errorf("create calls = %d, want 1", n)
	}
}

func TestDisconnect(t *testing.T) {
	f := newFakeTransport()
	tr := &serverTransport{fakeTransport: f}
	s, err := NewSession(tr)
	if err != nil {
		t.Fatal(err)
	}
	ctx, _ := testContext(t)
	if err := s.Connect(ctx, "lab"); err != nil {
		t.Fatal(err)
	}
	f.calls = nil

	if err := s.Disconnect(ctx, true); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if diff := cmp.Diff([]string{"ResetConfig", "CSTestSessionDisconnect"}, performNames(f.performs())); diff != "" {
		t.Errorf("performs mismatch (-want +got):\n%s", diff)
	}
	if got := f.performs()[0].Args["config"]; got != SystemHandle {
		t.Errorf("ResetConfig config = %q", got)
	}
	if got := f.performs()[1].Args["Terminate"]; got != "true" {
		t.Errorf("CSTestSessionDisconnect Terminate = %q", got)
	}
	if diff := cmp.Diff([]bool{true}, tr.ended); diff != "" {
		t.Errorf("EndSession mismatch (-want +got):\n%s", diff)
	}
}

func TestDisconnectWithoutLabServer(t *testing.T) {
	s, f := newTestSession(t)
	ctx, _ := testContext(t)

	if err := s.Disconnect(ctx, false); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if diff := cmp.Diff([]string{"ResetConfig"}, performNames(f.performs())); diff != "" {
		t.Errorf("performs mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		command string
		param   string
		wantErr error
	}{
		{name: "tcc", path: "/configs/bgp.tcc", command: "LoadFromDatabase", param: "DatabaseConnectionString"},
		{name: "xml", path: "/configs/bgp.XML", command: "LoadFromXml", param: "FileName"},
		{name: "unsupported", path: "/configs/bgp.json", wantErr: ErrUnsupportedConfigFile},
		{name: "no extension", path: "/configs/bgp", wantErr: ErrUnsupportedConfigFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, f := newTestSession(t)
			ctx, _ := testContext(t)

			err := s.LoadConfig(ctx, tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("LoadConfig() error = %v, want %v", err, tt.wantErr)
				}
				if len(f.performs()) != 0 {
					t.Errorf("performs = %v, want none", f.performs())
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			performs := f.performs()
			if len(performs) != 1 || performs[0].Command != tt.command {
				t.Fatalf("performs = %v", performs)
			}
			if got := performs[0].Args[tt.param]; got != filepath.Clean(tt.path) {
				t.Errorf("%s = %q, want %q", tt.param, got, tt.path)
			}
		})
	}
}

func TestLoadConfigUploadsAndResets(t *testing.T) {
	f := newFakeTransport()
	f.add("project1", SystemHandle, "Name", "Lab Project")
	tr := &serverTransport{fakeTransport: f}
	s, err := NewSession(tr)
	if err != nil {
		t.Fatal(err)
	}
	ctx, _ := testContext(t)
	if err := s.Connect(ctx, ""); err != nil {
		t.Fatal(err)
	}
	port := mustCreate[*Port](t, s, s.Project(), "port", Attrs{"Name": "Port 1"})
	device := mustCreate[*Device](t, s, port, "emulateddevice", nil)
	f.calls = nil

	if err := s.LoadConfig(ctx, "/tmp/configs/ospf.tcc"); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if diff := cmp.Diff([]string{"/tmp/configs/ospf.tcc"}, tr.uploaded); diff != "" {
		t.Errorf("uploads mismatch (-want +got):\n%s", diff)
	}
	if got := f.performs()[0].Args["DatabaseConnectionString"]; got != "ospf.tcc" {
		t.Errorf("DatabaseConnectionString = %q, want uploaded name", got)
	}

	for _, p := range []Proxy{port, device} {
		if p.Base().State() != StateDetached {
			t.Errorf("%s state = %v, want DETACHED", p.Handle(), p.Base().State())
		}
		if s.ObjectByHandle(p.Handle()) != nil {
			t.Errorf("%s still in identity map", p.Handle())
		}
	}
	if s.Project().State() != StateBound || s.ObjectByHandle("project1") != Proxy(s.Project()) {
		t.Error("project was dropped by LoadConfig")
	}
	if got := s.Project().ObjectsByType(); len(got) != 0 {
		t.Errorf("project still knows %v", got)
	}
	if got := s.System().ObjectsByType(); len(got) != 1 || got[0] != Proxy(s.Project()) {
		t.Errorf("system children = %v, want only the project", got)
	}
}

func TestSaveConfig(t *testing.T) {
	tests := []struct {
		path    string
		command string
	}{
		{path: "out.tcc", command: "SaveToTcc"},
		{path: "out.xml", command: "SaveAsXml"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			s, f := newTestSession(t)
			ctx, _ := testContext(t)

			if err := s.SaveConfig(ctx, tt.path); err != nil {
				t.Fatalf("SaveConfig() error = %v", err)
			}
			performs := f.performs()
			if len(performs) != 1 || performs[0].Command != tt.command || performs[0].Args["FileName"] != tt.path {
				t.Errorf("performs = %v", performs)
			}
		})
	}

	s, _ := newTestSession(t)
	ctx, _ := testContext(t)
	if err := s.SaveConfig(ctx, "out.txt"); !errors.Is(err, ErrUnsupportedConfigFile) {
		t.Errorf("SaveConfig(out.txt) error = %v", err)
	}
}

func TestStartDevices(t *testing.T) {
	s, f := newTestSession(t)
	port := mustCreate[*Port](t, s, s.Project(), "port", Attrs{"Name": "Port 1"})
	mustCreate[*Device](t, s, port, "emulateddevice", nil)
	mustCreate[*Device](t, s, port, "emulateddevice", nil)
	f.calls = nil
	f.queue("DeviceStart", CommandResult{"Status": "Passed"})
	ctx, tc := testContext(t)
	start := tc.Now()

	if err := s.StartDevices(ctx); err != nil {
		t.Fatalf("StartDevices() error = %v", err)
	}
	performs := f.performs()
	if len(performs) != 1 {
		t.Fatalf("performs = %v, want one bulk command", performs)
	}
	if got := performs[0].Args["DeviceList"]; got != "emulateddevice1 emulateddevice2" {
		t.Errorf("DeviceList = %q", got)
	}
	if got := clock.Since(ctx, start); got != 2*DefaultDeviceSettle {
		t.Errorf("slept %v, want %v", got, 2*DefaultDeviceSettle)
	}
}

func TestStartDevicesFailure(t *testing.T) {
	s, f := newTestSession(t)
	port := mustCreate[*Port](t, s, s.Project(), "port", nil)
	mustCreate[*Device](t, s, port, "emulateddevice", nil)
	f.queue("DeviceStart", CommandResult{"Status": "Failed: port offline"})
	ctx, _ := testContext(t)

	err := s.StartDevices(ctx)
	var failed *CommandFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("StartDevices() error = %v, want *CommandFailedError", err)
	}
	if failed.Status != "Failed: port offline" {
		t.Errorf("Status = %q", failed.Status)
	}
}

func TestStopDevicesWithoutDevices(t *testing.T) {
	s, f := newTestSession(t)
	mustCreate[*Port](t, s, s.Project(), "port", nil)
	f.calls = nil
	ctx, _ := testContext(t)

	if err := s.StopDevices(ctx); !errors.Is(err, ErrNoObjects) {
		t.Errorf("StopDevices() error = %v, want ErrNoObjects", err)
	}
	if len(f.performs()) != 0 {
		t.Errorf("performs = %v, want none", f.performs())
	}
}

func TestSessionNotConnected(t *testing.T) {
	s, err := NewSession(newFakeTransport())
	if err != nil {
		t.Fatal(err)
	}
	ctx, _ := testContext(t)

	ops := map[string]func() error{
		"StartDevices": func() error { return s.StartDevices(ctx) },
		"StopTraffic":  func() error { return s.StopTraffic(ctx) },
		"WaitTraffic":  func() error { return s.WaitTraffic(ctx) },
		"ClearResults": func() error { return s.ClearResults(ctx) },
		"SendArpNs":    func() error { return s.SendArpNs(ctx) },
		"StartTraffic": func() error { return s.StartTraffic(ctx, false) },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, ErrNotConnected) {
			t.Errorf("%s() error = %v, want ErrNotConnected", name, err)
		}
	}
}

func TestSessionPerform(t *testing.T) {
	s, f := newTestSession(t)
	f.queue("GetObjects", CommandResult{"ObjectList": "port1 port2", "State": "COMPLETED"})
	ctx, tc := testContext(t)
	start := tc.Now()

	res, err := s.Perform(ctx, "GetObjects", Attrs{"ClassName": "Port"}, WaitAfter(2*time.Second))
	if err != nil {
		t.Fatalf("Perform() error = %v", err)
	}
	if res.Get("objectlist") != "port1 port2" {
		t.Errorf("ObjectList = %q", res.Get("objectlist"))
	}
	if diff := cmp.Diff(res, s.LastResult()); diff != "" {
		t.Errorf("LastResult() mismatch (-want +got):\n%s", diff)
	}
	if got := clock.Since(ctx, start); got != 2*time.Second {
		t.Errorf("slept %v", got)
	}

	f.errs["perform"] = &Error{Operation: "perform", Message: "boom"}
	if _, err := s.Perform(ctx, "GetObjects", nil); err == nil {
		t.Error("Perform() expected transport error")
	}
	if diff := cmp.Diff(res, s.LastResult()); diff != "" {
		t.Errorf("failed perform replaced LastResult (-want +got):\n%s", diff)
	}
}

func TestSleepCancelled(t *testing.T) {
	s, _ := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.sleep(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("sleep() error = %v, want context.Canceled", err)
	}
	if err := s.sleep(ctx, 0); err != nil {
		t.Errorf("sleep(0) error = %v", err)
	}
}
