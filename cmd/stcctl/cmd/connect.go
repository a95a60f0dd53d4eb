// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/netascode/go-testcenter"
)

// newTransport builds the backend selected by s.API. The returned close
// function releases backend resources and is never nil.
func newTransport(ctx context.Context, s Settings) (testcenter.Transport, func() error, error) {
	noop := func() error { return nil }
	api, err := testcenter.ParseAPIType(s.API)
	if err != nil {
		return nil, noop, err
	}

	switch api {
	case testcenter.APIRest:
		opts := []func(*testcenter.RESTTransport){
			testcenter.ServerPort(s.Port),
			testcenter.JoinSession(s.Join),
			testcenter.KillExisting(s.KillExisting),
		}
		if s.Session != "" {
			opts = append(opts, testcenter.SessionName(s.Session))
		}
		if s.User != "" {
			opts = append(opts, testcenter.User(s.User))
		}
		t, err := testcenter.NewRESTTransport(s.Server, opts...)
		return t, noop, err
	case testcenter.APITcl:
		if s.InstallDir == "" {
			return nil, noop, fmt.Errorf("--install-dir is required for the tcl api")
		}
		shell, err := testcenter.NewTclShell(ctx, s.Tclsh)
		if err != nil {
			return nil, noop, err
		}
		t, err := testcenter.NewTclTransport(ctx, shell, s.InstallDir)
		if err != nil {
			_ = shell.Close()
			return nil, noop, err
		}
		return t, shell.Close, nil
	default:
		if s.InstallDir == "" {
			return nil, noop, fmt.Errorf("--install-dir is required for the native api")
		}
		binding, err := testcenter.OpenNativeBinding(s.InstallDir)
		if err != nil {
			return nil, noop, err
		}
		t, err := testcenter.NewNativeTransport(binding)
		return t, noop, err
	}
}

// withSession connects with the current settings, runs fn and disconnects
func withSession(ctx context.Context, fn func(ctx context.Context, session *testcenter.Session) error) error {
	s, err := loadSettings(viper.GetViper())
	if err != nil {
		return err
	}
	transport, closeTransport, err := newTransport(ctx, s)
	if err != nil {
		return err
	}
	defer closeTransport() //nolint:errcheck

	session, err := testcenter.NewSession(transport, testcenter.WithLogger(&glogLogger{debug: s.Debug}))
	if err != nil {
		return err
	}
	if err := session.Connect(ctx, s.LabServer); err != nil {
		return err
	}

	runErr := fn(ctx, session)
	if err := session.Disconnect(ctx, s.Terminate); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
