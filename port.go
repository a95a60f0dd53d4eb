// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.chromium.org/luci/common/clock"
)

// RoleDevices is the navigation role under which devices are attached to
// their port
const RoleDevices = "emulateddevice"

// MediaType selects the active PHY of a dual-media port
type MediaType string

const (
	MediaCopper MediaType = "EthernetCopper"
	MediaFiber  MediaType = "EthernetFiber"
)

// Port is a test port under the project.
//
// Emulated devices live under the project remotely but are presented under
// the port they are affiliated with.
type Port struct {
	*Object

	location string
}

func newPort(o *Object) Proxy {
	return &Port{Object: o}
}

// Name returns the port name without the " (offline)" suffix the server
// appends to ports that are not reserved
func (p *Port) Name(ctx context.Context) (string, error) {
	name, err := p.Object.Name(ctx)
	if err != nil {
		return "", err
	}
	p.name = strings.TrimSuffix(name, " (offline)")
	return p.name, nil
}

// Children discovers port children. Devices are served from the
// navigation index; when none are known yet the project's devices are
// discovered first so that each one attaches to its port.
func (p *Port) Children(ctx context.Context, types ...string) ([]Proxy, error) {
	if err := p.checkBound(); err != nil {
		return nil, err
	}
	if len(types) == 0 {
		var err error
		if types, err = p.ChildTypes(ctx); err != nil {
			return nil, err
		}
		types = append(types, RoleDevices)
	}

	var children []Proxy
	var remote []string
	for _, t := range types {
		if strings.EqualFold(t, RoleDevices) {
			devices, err := p.discoverDevices(ctx)
			if err != nil {
				return nil, err
			}
			children = append(children, devices...)
			continue
		}
		remote = append(remote, t)
	}
	if len(remote) > 0 {
		objects, err := p.Object.Children(ctx, remote...)
		if err != nil {
			return nil, err
		}
		children = append(children, objects...)
	}
	return children, nil
}

func (p *Port) discoverDevices(ctx context.Context) ([]Proxy, error) {
	project := p.session.project
	if project != nil && len(project.ObjectsByType(RoleDevices)) == 0 {
		if _, err := project.Children(ctx, RoleDevices); err != nil {
			return nil, err
		}
	}
	return p.Attached(RoleDevices), nil
}

// Devices returns the devices affiliated with the port
func (p *Port) Devices(ctx context.Context) ([]*Device, error) {
	objects, err := p.ObjectsOrChildrenByType(ctx, RoleDevices)
	if err != nil {
		return nil, err
	}
	return proxiesAs[*Device](objects), nil
}

// StreamBlocks returns the stream blocks of the port
func (p *Port) StreamBlocks(ctx context.Context) ([]*StreamBlock, error) {
	objects, err := p.ObjectsOrChildrenByType(ctx, "streamblock")
	if err != nil {
		return nil, err
	}
	return proxiesAs[*StreamBlock](objects), nil
}

// Generator returns the port generator
func (p *Port) Generator(ctx context.Context) (*Generator, error) {
	objects, err := p.ObjectsOrChildrenByType(ctx, "generator")
	if err != nil {
		return nil, err
	}
	if gens := proxiesAs[*Generator](objects); len(gens) > 0 {
		return gens[0], nil
	}
	return nil, nil
}

// Reserve assigns a physical location (chassis/slot/port) to the port.
//
// Unless the location is local, the port is attached (revoking an existing
// owner when force is true) and the configuration is applied.
func (p *Port) Reserve(ctx context.Context, location string, force bool) error {
	p.location = location
	if err := p.SetAttributes(ctx, Attrs{"Location": location}); err != nil {
		return err
	}
	if !isLocalLocation(location) {
		if _, err := p.session.perform(ctx, "AttachPorts", Attrs{
			"portList":    p.handle,
			"autoConnect": true,
			"RevokeOwner": force,
		}); err != nil {
			return err
		}
		if err := p.session.transport.Apply(ctx); err != nil {
			return err
		}
	}
	p.session.logger.Info(ctx, "Port reserved",
		"port", p.handle,
		"location", location,
		"force", force)
	return nil
}

// Release releases the physical port. Local locations are never reserved.
func (p *Port) Release(ctx context.Context) error {
	if isLocalLocation(p.location) {
		return nil
	}
	_, err := p.session.perform(ctx, "ReleasePort", Attrs{"portList": p.handle})
	return err
}

// Location returns the location given to Reserve
func (p *Port) Location() string {
	return p.location
}

// ActivePhy returns the active PHY object of the port
func (p *Port) ActivePhy(ctx context.Context) (Proxy, error) {
	return p.ObjectFromAttribute(ctx, "activephy-Targets")
}

// IsOnline reports whether the active PHY link is up
func (p *Port) IsOnline(ctx context.Context) (bool, error) {
	state, err := p.linkState(ctx)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(state, "up"), nil
}

func (p *Port) linkState(ctx context.Context) (string, error) {
	phy, err := p.ActivePhy(ctx)
	if err != nil || phy == nil {
		return "", err
	}
	return phy.Base().GetAttribute(ctx, "LinkStatus")
}

// IsRunning reports whether the port generator is transmitting
func (p *Port) IsRunning(ctx context.Context) (bool, error) {
	gen, err := p.Generator(ctx)
	if err != nil || gen == nil {
		return false, err
	}
	state, err := gen.GetAttribute(ctx, "State")
	if err != nil {
		return false, err
	}
	return state == "RUNNING", nil
}

// WaitForLinkState polls the link status until it is one of states
// (case-insensitive) or timeout elapses. On timeout a *TimeoutError carries
// the last observed state.
//
// Example:
//
//	err := port.WaitForLinkState(ctx, 60*time.Second, "UP")
func (p *Port) WaitForLinkState(ctx context.Context, timeout time.Duration, states ...string) error {
	start := clock.Now(ctx)
	for {
		state, err := p.linkState(ctx)
		if err != nil {
			return err
		}
		if slices.ContainsFunc(states, func(s string) bool { return strings.EqualFold(s, state) }) {
			return nil
		}
		elapsed := clock.Since(ctx, start)
		if elapsed >= timeout {
			return &TimeoutError{
				Operation: "wait for link state",
				Handle:    p.handle,
				State:     state,
				Expected:  states,
				Elapsed:   elapsed,
			}
		}
		if err := p.session.sleep(ctx, p.session.PollInterval); err != nil {
			return err
		}
	}
}

// Start starts traffic on the port
func (p *Port) Start(ctx context.Context, blocking bool) error {
	project, err := p.session.requireProject()
	if err != nil {
		return err
	}
	return project.StartPorts(ctx, blocking, p)
}

// Stop stops traffic on the port
func (p *Port) Stop(ctx context.Context) error {
	project, err := p.session.requireProject()
	if err != nil {
		return err
	}
	return project.StopPorts(ctx, p)
}

// WaitTraffic blocks until the port stopped transmitting
func (p *Port) WaitTraffic(ctx context.Context) error {
	project, err := p.session.requireProject()
	if err != nil {
		return err
	}
	return project.WaitTraffic(ctx, p)
}

// ClearResults clears the port results
func (p *Port) ClearResults(ctx context.Context) error {
	project, err := p.session.requireProject()
	if err != nil {
		return err
	}
	return project.ClearResults(ctx, p)
}

// SendArpNs sends ARP/ND from the port
func (p *Port) SendArpNs(ctx context.Context) error {
	return SendArpNs(ctx, p)
}

// SetMediaType switches the active PHY of a dual-media port. Nothing is
// sent when the requested media is already active.
func (p *Port) SetMediaType(ctx context.Context, media MediaType) error {
	phy, err := p.ActivePhy(ctx)
	if err != nil {
		return err
	}
	if phy != nil && strings.EqualFold(phy.Type(), string(media)) {
		return nil
	}
	newPhy, err := p.session.Create(ctx, p, string(media), nil)
	if err != nil {
		return err
	}
	return p.SetTargets(ctx, Attrs{"ActivePhy": newPhy}, Apply())
}

// Generator is the traffic generator of a port. Its attributes live on the
// GeneratorConfig child and are read and written there.
type Generator struct {
	*Object
}

func newGenerator(o *Object) Proxy {
	return &Generator{Object: o}
}

// Config returns the GeneratorConfig child
func (g *Generator) Config(ctx context.Context) (Proxy, error) {
	cfg, err := g.Child(ctx, "generatorconfig")
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, &Error{Operation: "get", Handle: g.handle, Message: "generator has no GeneratorConfig child"}
	}
	return cfg, nil
}

// GetAttributes reads attributes from the GeneratorConfig child
func (g *Generator) GetAttributes(ctx context.Context, names ...string) (map[string]string, error) {
	cfg, err := g.Config(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.Base().GetAttributes(ctx, names...)
}

// SetAttributes writes attributes to the GeneratorConfig child
func (g *Generator) SetAttributes(ctx context.Context, attrs Attrs, mods ...func(*Req)) error {
	cfg, err := g.Config(ctx)
	if err != nil {
		return err
	}
	return cfg.Base().SetAttributes(ctx, attrs, mods...)
}
