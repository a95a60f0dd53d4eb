// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"net/http"
	"time"
)

// Session configuration options using the functional options pattern

// WithLogger configures a custom logger for the session
//
// By default, the session uses NoOpLogger which discards all log messages.
// The session logger is handed to the transport so that every remote call is
// logged through the same Logger.
//
// REST bodies logged at Debug level are redacted to remove sensitive data
// (passwords, secrets, keys, tokens).
//
// Example (DefaultLogger):
//
//	logger := testcenter.NewDefaultLogger(testcenter.LogLevelInfo)
//	session, _ := testcenter.NewSession(transport, testcenter.WithLogger(logger))
//
// Example (Custom Logger):
//
//	type SlogAdapter struct {
//	    logger *slog.Logger
//	}
//
//	func (s *SlogAdapter) Debug(ctx context.Context, msg string, keysAndValues ...any) {
//	    s.logger.DebugContext(ctx, msg, keysAndValues...)
//	}
//	// ... implement Info, Warn, Error (all with ctx context.Context as first parameter)
//
//	session, _ := testcenter.NewSession(transport,
//	    testcenter.WithLogger(&SlogAdapter{logger: slog.Default()}))
func WithLogger(logger Logger) func(*Session) {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDeviceSettle sets the time slept after device commands (default: 4s)
func WithDeviceSettle(d time.Duration) func(*Session) {
	return func(s *Session) {
		s.DeviceSettle = d
	}
}

// WithPortSettle sets the time slept after generator commands (default: 4s)
func WithPortSettle(d time.Duration) func(*Session) {
	return func(s *Session) {
		s.PortSettle = d
	}
}

// WithResultsSettle sets the time slept after clearing results (default: 1s)
func WithResultsSettle(d time.Duration) func(*Session) {
	return func(s *Session) {
		s.ResultsSettle = d
	}
}

// WithPollInterval sets the interval between state polls (default: 1s)
func WithPollInterval(d time.Duration) func(*Session) {
	return func(s *Session) {
		s.PollInterval = d
	}
}

// REST transport options

// ServerPort sets the REST server port (default: 80)
func ServerPort(port int) func(*RESTTransport) {
	return func(t *RESTTransport) {
		t.Port = port
	}
}

// User sets the user id of the server session (default: the OS user)
func User(user string) func(*RESTTransport) {
	return func(t *RESTTransport) {
		t.User = user
	}
}

// SessionName sets the server session name (default: "session-" plus a
// random suffix)
func SessionName(name string) func(*RESTTransport) {
	return func(t *RESTTransport) {
		t.SessionName = name
	}
}

// JoinSession joins an existing server session with the configured name
// instead of creating a new one
func JoinSession(join bool) func(*RESTTransport) {
	return func(t *RESTTransport) {
		t.Join = join
	}
}

// KillExisting deletes an existing server session with the same name before
// creating a new one
func KillExisting(kill bool) func(*RESTTransport) {
	return func(t *RESTTransport) {
		t.KillExisting = kill
	}
}

// TLS enables or disables HTTPS (default: false)
func TLS(enabled bool) func(*RESTTransport) {
	return func(t *RESTTransport) {
		t.UseTLS = enabled
	}
}

// HTTPClient sets the HTTP client used for every request
//
// Example:
//
//	transport, _ := testcenter.NewRESTTransport("10.0.0.10",
//	    testcenter.HTTPClient(&http.Client{Transport: customRoundTripper}))
func HTTPClient(client *http.Client) func(*RESTTransport) {
	return func(t *RESTTransport) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// OperationTimeout sets the per-request timeout (default: 120s)
//
// Long commands such as loading a large configuration run inside one
// request, so keep this generous.
func OperationTimeout(duration time.Duration) func(*RESTTransport) {
	return func(t *RESTTransport) {
		t.OperationTimeout = duration
	}
}

// WithPrettyPrintLogs enables/disables JSON pretty printing in logs
//
// When enabled, request and response bodies in debug logs are formatted for
// better readability. This only affects Debug-level log output.
//
// Default: enabled (true)
func WithPrettyPrintLogs(enabled bool) func(*RESTTransport) {
	return func(t *RESTTransport) {
		t.prettyPrintLogs = enabled
	}
}

// Request modifiers for individual operations

// Apply returns a request modifier that commits buffered configuration right
// after an attribute write.
//
// Example:
//
//	err := port.SetAttributes(ctx, testcenter.Attrs{"Location": "10.0.0.1/1/1"},
//	    testcenter.Apply())
func Apply() func(*Req) {
	return func(req *Req) {
		req.Apply = true
	}
}

// WaitAfter returns a request modifier that sleeps for d after a command so
// the chassis can settle.
//
// Example:
//
//	res, err := device.Command(ctx, "ArpNdStart", args,
//	    testcenter.WaitAfter(2*time.Second))
func WaitAfter(d time.Duration) func(*Req) {
	return func(req *Req) {
		req.WaitAfter = d
	}
}
