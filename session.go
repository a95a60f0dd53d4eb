// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.chromium.org/luci/common/clock"
)

// Default session configuration values
const (
	DefaultDeviceSettle  = 4 * time.Second
	DefaultPortSettle    = 4 * time.Second
	DefaultResultsSettle = 1 * time.Second
	DefaultPollInterval  = 1 * time.Second
)

// SystemHandle is the handle of the remote system root
const SystemHandle = "system1"

// Session is the application context for one connection to an automation
// server. It owns the transport, the logger and the identity map that
// guarantees one proxy per remote handle.
//
// A Session and the proxies it creates are not safe for concurrent use.
type Session struct {
	transport Transport
	logger    Logger

	// objects is the identity map: handle -> proxy
	objects map[string]Proxy

	system     *Object
	project    *Project
	labServer  string
	lastResult CommandResult

	// Settle times slept after device, generator and clear-results commands
	DeviceSettle  time.Duration
	PortSettle    time.Duration
	ResultsSettle time.Duration

	// PollInterval is the sleep between state polls
	PollInterval time.Duration
}

// NewSession creates a session over the given transport.
//
// No remote call is made: the system root is registered locally and the
// project is created or adopted by Connect.
//
// Example:
//
//	transport, err := testcenter.NewRESTTransport("10.0.0.10",
//	    testcenter.ServerPort(8888),
//	    testcenter.SessionName("regression"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	session, err := testcenter.NewSession(transport,
//	    testcenter.WithLogger(testcenter.NewDefaultLogger(testcenter.LogLevelInfo)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := session.Connect(ctx, ""); err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Disconnect(ctx, true)
func NewSession(transport Transport, opts ...func(*Session)) (*Session, error) {
	s := &Session{
		transport:     transport,
		logger:        &NoOpLogger{},
		objects:       map[string]Proxy{},
		DeviceSettle:  DefaultDeviceSettle,
		PortSettle:    DefaultPortSettle,
		ResultsSettle: DefaultResultsSettle,
		PollInterval:  DefaultPollInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.validateConfig(); err != nil {
		return nil, err
	}
	if la, ok := transport.(loggerAware); ok {
		la.setLogger(s.logger)
	}

	s.system = &Object{
		session:  s,
		objType:  "system",
		handle:   SystemHandle,
		name:     SystemHandle,
		state:    StateBound,
		children: newChildSet(),
		attached: map[string]*childSet{},
	}
	s.system.self = s.system
	s.objects[SystemHandle] = s.system

	return s, nil
}

func (s *Session) validateConfig() error {
	if s.transport == nil {
		return fmt.Errorf("transport cannot be nil")
	}
	if s.logger == nil {
		return fmt.Errorf("logger cannot be nil")
	}
	if s.DeviceSettle < 0 {
		return fmt.Errorf("device settle time must be non-negative, got: %v", s.DeviceSettle)
	}
	if s.PortSettle < 0 {
		return fmt.Errorf("port settle time must be non-negative, got: %v", s.PortSettle)
	}
	if s.ResultsSettle < 0 {
		return fmt.Errorf("results settle time must be non-negative, got: %v", s.ResultsSettle)
	}
	if s.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got: %v", s.PollInterval)
	}
	return nil
}

// Transport returns the session transport
func (s *Session) Transport() Transport {
	return s.transport
}

// Logger returns the session logger
func (s *Session) Logger() Logger {
	return s.logger
}

// System returns the proxy for the remote system root
func (s *Session) System() *Object {
	return s.system
}

// Project returns the project proxy, or nil before Connect
func (s *Session) Project() *Project {
	return s.project
}

// LastResult returns the result of the most recent remote command
func (s *Session) LastResult() CommandResult {
	return s.lastResult
}

// Connect attaches to the lab server (when given) and binds the project.
//
// The project is adopted if the system already has one, created otherwise.
// Every object creation or discovery must come after Connect.
func (s *Session) Connect(ctx context.Context, labServer string) error {
	s.labServer = labServer
	if labServer != "" {
		if _, err := s.perform(ctx, "CSTestSessionConnect", Attrs{
			"Host":                 labServer,
			"CreateNewTestSession": true,
		}); err != nil {
			return err
		}
	}

	handles, err := s.transport.GetList(ctx, SystemHandle, "children-project")
	if err != nil {
		return err
	}
	var p Proxy
	if len(handles) > 0 {
		p, err = s.AdoptAs(ctx, handles[0], "project", s.system)
	} else {
		p, err = s.Create(ctx, s.system, "project", nil)
	}
	if err != nil {
		return err
	}
	project, ok := p.(*Project)
	if !ok {
		return fmt.Errorf("connect: unexpected proxy %T for project", p)
	}
	s.project = project

	s.logger.Info(ctx, "Session connected",
		"project", project.Handle(),
		"lab_server", labServer)
	return nil
}

// Disconnect resets the configuration and leaves the server.
//
// For server-backed transports the server session is destroyed when
// terminate is true and left running otherwise. When a lab server was used
// the test session is disconnected as well.
func (s *Session) Disconnect(ctx context.Context, terminate bool) error {
	if err := s.ResetConfig(ctx); err != nil {
		return err
	}
	if closer, ok := s.transport.(SessionCloser); ok {
		if err := closer.EndSession(ctx, terminate); err != nil {
			return err
		}
	}
	if s.labServer != "" {
		if _, err := s.perform(ctx, "CSTestSessionDisconnect", Attrs{"Terminate": terminate}); err != nil {
			return err
		}
	}
	s.logger.Info(ctx, "Session disconnected",
		"terminate", terminate)
	return nil
}

// ResetConfig resets the remote configuration to an empty project
func (s *Session) ResetConfig(ctx context.Context) error {
	_, err := s.perform(ctx, "ResetConfig", Attrs{"config": SystemHandle})
	return err
}

// LoadConfig loads a .tcc or .xml configuration file.
//
// The file type comes from the extension; any other extension returns
// ErrUnsupportedConfigFile before anything is sent. Transports whose server
// cannot read the local file system upload the file first. All discovered
// proxies except the system and the project are forgotten afterwards.
func (s *Session) LoadConfig(ctx context.Context, path string) error {
	command, param, err := configCommand(path, "LoadFromDatabase", "DatabaseConnectionString", "LoadFromXml")
	if err != nil {
		return err
	}
	name := filepath.Clean(path)
	if uploader, ok := s.transport.(FileUploader); ok {
		if name, err = uploader.Upload(ctx, path); err != nil {
			return err
		}
	}
	if _, err := s.perform(ctx, command, Attrs{param: name}); err != nil {
		return err
	}
	s.resetObjects()
	s.logger.Info(ctx, "Configuration loaded",
		"file", filepath.Base(path))
	return nil
}

// SaveConfig saves the configuration as .tcc or .xml
func (s *Session) SaveConfig(ctx context.Context, path string) error {
	command, param, err := configCommand(path, "SaveToTcc", "FileName", "SaveAsXml")
	if err != nil {
		return err
	}
	_, err = s.perform(ctx, command, Attrs{param: filepath.Clean(path)})
	return err
}

func configCommand(path, tccCommand, tccParam, xmlCommand string) (string, string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".tcc":
		return tccCommand, tccParam, nil
	case ".xml":
		return xmlCommand, "FileName", nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedConfigFile, ext)
	}
}

// resetObjects drops every proxy except the system and the project
func (s *Session) resetObjects() {
	for h, p := range s.objects {
		if p.Base() == s.system || (s.project != nil && p == Proxy(s.project)) {
			continue
		}
		p.Base().state = StateDetached
		delete(s.objects, h)
	}
	s.system.children.reset()
	if s.project != nil {
		s.system.children.add(s.project)
		s.project.children.reset()
		s.project.attached = map[string]*childSet{}
	}
}

// perform runs a remote command and records its result
func (s *Session) perform(ctx context.Context, command string, args Attrs) (CommandResult, error) {
	s.logger.Debug(ctx, "Performing command",
		"command", command,
		"args", len(args))
	res, err := s.transport.Perform(ctx, command, args)
	if err != nil {
		s.logger.Error(ctx, "Command failed",
			"command", command,
			"error", err.Error())
		return nil, err
	}
	if res != nil {
		s.lastResult = res
	}
	return res, nil
}

// Perform runs a remote command that is not tied to a particular object
func (s *Session) Perform(ctx context.Context, command string, args Attrs, mods ...func(*Req)) (CommandResult, error) {
	req := newReq(mods)
	res, err := s.perform(ctx, command, args)
	if err != nil {
		return nil, err
	}
	return res, s.sleep(ctx, req.WaitAfter)
}

// TestCommandRC checks a field of the last command result.
//
// Absent or empty fields pass. A value containing "passed" or "successful"
// passes. Anything else returns a *CommandFailedError.
func (s *Session) TestCommandRC(key string) error {
	if err := s.lastResult.Check(key); err != nil {
		s.logger.Warn(context.Background(), "Command status is not successful",
			"key", key,
			"status", s.lastResult.Get(key))
		return err
	}
	return nil
}

// sleep waits for d using the context clock. Returns the context error if
// the wait was cut short.
func (s *Session) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if tr := clock.Sleep(ctx, d); tr.Incomplete() {
		return tr.Err
	}
	return nil
}

// requireProject returns the project or ErrNotConnected
func (s *Session) requireProject() (*Project, error) {
	if s.project == nil {
		return nil, ErrNotConnected
	}
	return s.project, nil
}

// StartDevices starts every device and verifies the command status.
// It is the caller's responsibility to wait for devices to reach the
// required protocol state.
func (s *Session) StartDevices(ctx context.Context) error {
	return s.commandAllDevices(ctx, "DeviceStart")
}

// StopDevices stops every device
func (s *Session) StopDevices(ctx context.Context) error {
	return s.commandAllDevices(ctx, "DeviceStop")
}

func (s *Session) commandAllDevices(ctx context.Context, command string) error {
	project, err := s.requireProject()
	if err != nil {
		return err
	}
	devices, err := project.Devices(ctx)
	if err != nil {
		return err
	}
	if err := project.CommandDevices(ctx, command, s.DeviceSettle, devices, nil); err != nil {
		return err
	}
	if err := s.TestCommandRC("Status"); err != nil {
		return err
	}
	return s.sleep(ctx, s.DeviceSettle)
}

// StartTraffic starts the generators of every port. When blocking is true
// it returns once traffic stops.
func (s *Session) StartTraffic(ctx context.Context, blocking bool) error {
	project, err := s.requireProject()
	if err != nil {
		return err
	}
	return project.StartPorts(ctx, blocking)
}

// StopTraffic stops the generators of every port
func (s *Session) StopTraffic(ctx context.Context) error {
	project, err := s.requireProject()
	if err != nil {
		return err
	}
	return project.StopPorts(ctx)
}

// WaitTraffic blocks until every port stopped transmitting
func (s *Session) WaitTraffic(ctx context.Context) error {
	project, err := s.requireProject()
	if err != nil {
		return err
	}
	return project.WaitTraffic(ctx)
}

// ClearResults clears port and protocol statistics
func (s *Session) ClearResults(ctx context.Context) error {
	project, err := s.requireProject()
	if err != nil {
		return err
	}
	return project.ClearResults(ctx)
}

// SendArpNs sends ARP/ND from every port
func (s *Session) SendArpNs(ctx context.Context) error {
	ports, err := s.ports(ctx)
	if err != nil {
		return err
	}
	return SendArpNs(ctx, ports...)
}

// ArpCache returns the ARP cache entries of every port
func (s *Session) ArpCache(ctx context.Context) ([]string, error) {
	ports, err := s.ports(ctx)
	if err != nil {
		return nil, err
	}
	return ArpCache(ctx, ports...)
}

func (s *Session) ports(ctx context.Context) ([]Proxy, error) {
	project, err := s.requireProject()
	if err != nil {
		return nil, err
	}
	return project.ObjectsOrChildrenByType(ctx, "port")
}
