// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package testcenter is a client library for the Spirent TestCenter
// automation API. It models the configuration tree (ports, emulated devices,
// protocol emulations, stream blocks, statistics views) as Go proxies backed
// by a remote automation server.
//
// Three transports implement the same operation set: the REST server, the
// vendor Tcl package driven through an interpreter, and an in-process
// binding. Everything above the Transport interface is backend-agnostic.
//
// # Quick Start
//
//	transport, err := testcenter.NewRESTTransport("10.0.0.10",
//	    testcenter.ServerPort(8888))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	session, err := testcenter.NewSession(transport)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	if err := session.Connect(ctx, ""); err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Disconnect(ctx, true)
//
//	project := session.Project()
//	p, err := session.Create(ctx, project, "port", testcenter.Attrs{"name": "Port 1"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	port := p.(*testcenter.Port)
//	if err := port.Reserve(ctx, "10.0.0.1/1/1", true); err != nil {
//	    log.Fatal(err)
//	}
//
// # Object Identity
//
// Each remote handle maps to exactly one proxy per Session. Create and
// Adopt resolve the proxy type from the object type before allocation, so a
// proxy is never re-typed after construction. Use Register to add
// specialized proxies for further object types.
//
// Devices live under the project remotely but are presented under their
// port: Port.Devices and Port.Children("emulateddevice") return them, while
// Parent() always returns the remote parent.
//
// # Commands
//
// Commands that act on several objects are sent once with all handles:
//
//	err := project.CommandDevices(ctx, "DeviceStart", 4*time.Second, nil, nil)
//	if err := project.TestCommandRC("Status"); err != nil {
//	    var failed *testcenter.CommandFailedError
//	    if errors.As(err, &failed) {
//	        log.Printf("device start failed: %s", failed.Status)
//	    }
//	}
//
// # Error Handling
//
// Transport failures are returned as *Error and never retried. Command
// outcomes are checked explicitly with TestCommandRC, which returns a
// *CommandFailedError for any status other than passed or successful.
// Operations on deleted proxies return ErrDetached.
//
// # Thread Safety
//
// A Session and its proxies are not safe for concurrent use. The REST
// transport and TclShell serialize their own requests.
package testcenter
