// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"net/http"
	"testing"
	"time"
)

// TestSessionOptions tests the session functional options
func TestSessionOptions(t *testing.T) {
	logger := NewDefaultLogger(LogLevelDebug)
	s, err := NewSession(newFakeTransport(),
		WithLogger(logger),
		WithDeviceSettle(time.Second),
		WithPortSettle(2*time.Second),
		WithResultsSettle(0),
		WithPollInterval(100*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if s.Logger() != logger {
		t.Error("WithLogger() did not set custom logger")
	}
	if s.DeviceSettle != time.Second {
		t.Errorf("DeviceSettle = %v, want 1s", s.DeviceSettle)
	}
	if s.PortSettle != 2*time.Second {
		t.Errorf("PortSettle = %v, want 2s", s.PortSettle)
	}
	if s.ResultsSettle != 0 {
		t.Errorf("ResultsSettle = %v, want 0", s.ResultsSettle)
	}
	if s.PollInterval != 100*time.Millisecond {
		t.Errorf("PollInterval = %v, want 100ms", s.PollInterval)
	}
}

// TestWithLoggerNil keeps the default logger
func TestWithLoggerNil(t *testing.T) {
	s := &Session{logger: &NoOpLogger{}}
	WithLogger(nil)(s)
	if _, ok := s.logger.(*NoOpLogger); !ok {
		t.Errorf("WithLogger(nil) replaced logger with %T", s.logger)
	}
}

// TestRESTOptions tests the REST transport functional options
func TestRESTOptions(t *testing.T) {
	client := &http.Client{Timeout: time.Minute}
	tr := &RESTTransport{}

	for _, opt := range []func(*RESTTransport){
		ServerPort(8888),
		User("tester"),
		SessionName("regression"),
		JoinSession(true),
		KillExisting(true),
		TLS(true),
		HTTPClient(client),
		OperationTimeout(5 * time.Minute),
		WithPrettyPrintLogs(false),
	} {
		opt(tr)
	}

	if tr.Port != 8888 {
		t.Errorf("ServerPort() set Port to %d, want 8888", tr.Port)
	}
	if tr.User != "tester" {
		t.Errorf("User() set User to %q, want tester", tr.User)
	}
	if tr.SessionName != "regression" {
		t.Errorf("SessionName() set SessionName to %q, want regression", tr.SessionName)
	}
	if !tr.Join || !tr.KillExisting || !tr.UseTLS {
		t.Errorf("bool options = join %v kill %v tls %v, want all true", tr.Join, tr.KillExisting, tr.UseTLS)
	}
	if tr.httpClient != client {
		t.Error("HTTPClient() did not set client")
	}
	if tr.OperationTimeout != 5*time.Minute {
		t.Errorf("OperationTimeout() set %v, want 5m", tr.OperationTimeout)
	}
	if tr.prettyPrintLogs {
		t.Error("WithPrettyPrintLogs(false) left pretty printing enabled")
	}

	HTTPClient(nil)(tr)
	if tr.httpClient != client {
		t.Error("HTTPClient(nil) replaced client")
	}
}

// TestRequestModifiers tests Apply and WaitAfter
func TestRequestModifiers(t *testing.T) {
	tests := []struct {
		name      string
		mods      []func(*Req)
		wantApply bool
		wantWait  time.Duration
	}{
		{name: "none"},
		{name: "apply", mods: []func(*Req){Apply()}, wantApply: true},
		{name: "wait", mods: []func(*Req){WaitAfter(4 * time.Second)}, wantWait: 4 * time.Second},
		{name: "both", mods: []func(*Req){Apply(), WaitAfter(time.Second)}, wantApply: true, wantWait: time.Second},
		{name: "last wins", mods: []func(*Req){WaitAfter(time.Second), WaitAfter(2 * time.Second)}, wantWait: 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newReq(tt.mods)
			if req.Apply != tt.wantApply {
				t.Errorf("Apply = %v, want %v", req.Apply, tt.wantApply)
			}
			if req.WaitAfter != tt.wantWait {
				t.Errorf("WaitAfter = %v, want %v", req.WaitAfter, tt.wantWait)
			}
		})
	}
}

func TestAttrsClone(t *testing.T) {
	orig := Attrs{"Location": "10.0.0.1/1/1"}
	clone := orig.Clone()
	clone["Name"] = "Port 1"
	if _, ok := orig["Name"]; ok {
		t.Error("Clone() shares storage with the original")
	}

	var nilAttrs Attrs
	if c := nilAttrs.Clone(); c == nil {
		t.Error("Clone() of nil returned nil map")
	}
}
