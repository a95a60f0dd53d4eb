// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// deviceEmulationTypes maps device-level emulation commands to the
// configuration object type they act on
var deviceEmulationTypes = map[string]string{
	"Dhcpv4Bind":        "dhcpv4blockconfig",
	"Dhcpv4Release":     "dhcpv4blockconfig",
	"Dhcpv4StartServer": "dhcpv4serverconfig",
	"Dhcpv4StopServer":  "dhcpv4serverconfig",
	"Dhcpv6Bind":        "dhcpv6blockconfig",
	"Dhcpv6Release":     "dhcpv6blockconfig",
	"Dhcpv6StartServer": "dhcpv6serverconfig",
	"Dhcpv6StopServer":  "dhcpv6serverconfig",
}

// Project is the configuration root below the system object.
//
// Every command that acts on a list of objects (ports, devices, emulations)
// is issued by the project as one remote call carrying all handles.
// Helpers that take optional objects act on all discovered objects when
// none are given.
type Project struct {
	*Object
}

func newProject(o *Object) Proxy {
	return &Project{Object: o}
}

// Ports returns all ports, discovering them on first use
func (p *Project) Ports(ctx context.Context) ([]*Port, error) {
	objects, err := p.ObjectsOrChildrenByType(ctx, "port")
	if err != nil {
		return nil, err
	}
	return proxiesAs[*Port](objects), nil
}

// PortByName returns the port with the given name, or nil
func (p *Project) PortByName(ctx context.Context, name string) (*Port, error) {
	ports, err := p.Ports(ctx)
	if err != nil {
		return nil, err
	}
	for _, port := range ports {
		if port.LocalName() == name {
			return port, nil
		}
	}
	return nil, nil
}

func (p *Project) portsOrAll(ctx context.Context, ports []*Port) ([]*Port, error) {
	if len(ports) > 0 {
		return ports, nil
	}
	return p.Ports(ctx)
}

// StartPorts starts traffic on the given ports (all ports when none are
// given) and verifies the command status. When blocking is true it waits
// until traffic ends.
func (p *Project) StartPorts(ctx context.Context, blocking bool, ports ...*Port) error {
	if err := p.commandGenerators(ctx, "GeneratorStart", ports); err != nil {
		return err
	}
	if err := p.TestCommandRC("Status"); err != nil {
		return err
	}
	if blocking {
		return p.WaitTraffic(ctx, ports...)
	}
	return nil
}

// StopPorts stops traffic on the given ports (all ports when none are given)
func (p *Project) StopPorts(ctx context.Context, ports ...*Port) error {
	return p.commandGenerators(ctx, "GeneratorStop", ports)
}

// WaitTraffic polls the generators of the given ports until none is running
func (p *Project) WaitTraffic(ctx context.Context, ports ...*Port) error {
	ports, err := p.portsOrAll(ctx, ports)
	if err != nil {
		return err
	}
	for _, port := range ports {
		for {
			running, err := port.IsRunning(ctx)
			if err != nil {
				return err
			}
			if !running {
				break
			}
			if err := p.session.sleep(ctx, p.session.PollInterval); err != nil {
				return err
			}
		}
	}
	return nil
}

// ClearResults clears traffic and emulation results on the given ports
// (all ports when none are given)
func (p *Project) ClearResults(ctx context.Context, ports ...*Port) error {
	ports, err := p.portsOrAll(ctx, ports)
	if err != nil {
		return err
	}
	if _, err := p.session.perform(ctx, "ResultsClearAllCommand", Attrs{"PortList": handlesOf(ports)}); err != nil {
		return err
	}
	if _, err := p.session.perform(ctx, "ResultsClearAllProtocolCommand", nil); err != nil {
		return err
	}
	return p.session.sleep(ctx, p.session.ResultsSettle)
}

func (p *Project) commandGenerators(ctx context.Context, command string, ports []*Port) error {
	ports, err := p.portsOrAll(ctx, ports)
	if err != nil {
		return err
	}
	var generators []Proxy
	for _, port := range ports {
		gen, err := port.Generator(ctx)
		if err != nil {
			return err
		}
		if gen != nil {
			generators = append(generators, gen)
		}
	}
	if _, err := p.session.perform(ctx, command, Attrs{"GeneratorList": handlesOf(generators)}); err != nil {
		return err
	}
	return p.session.sleep(ctx, p.session.PortSettle)
}

// Devices returns the devices of the given ports (all ports when none are
// given), in port order
func (p *Project) Devices(ctx context.Context, ports ...*Port) ([]*Device, error) {
	ports, err := p.portsOrAll(ctx, ports)
	if err != nil {
		return nil, err
	}
	var devices []*Device
	for _, port := range ports {
		portDevices, err := port.Devices(ctx)
		if err != nil {
			return nil, err
		}
		devices = append(devices, portDevices...)
	}
	return devices, nil
}

func (p *Project) devicesOrAll(ctx context.Context, devices []*Device) ([]*Device, error) {
	if len(devices) > 0 {
		return devices, nil
	}
	return p.Devices(ctx)
}

// Emulations returns the emulations of the given type on the devices of
// the given ports (all ports when none are given)
func (p *Project) Emulations(ctx context.Context, emulationType string, ports ...*Port) ([]Proxy, error) {
	devices, err := p.Devices(ctx, ports...)
	if err != nil {
		return nil, err
	}
	var emulations []Proxy
	for _, d := range devices {
		objects, err := d.ObjectsOrChildrenByType(ctx, emulationType)
		if err != nil {
			return nil, err
		}
		emulations = append(emulations, objects...)
	}
	return emulations, nil
}

// CommandDevices runs a device command on the given devices (all devices
// when empty) as one remote call with DeviceList, then sleeps for wait.
func (p *Project) CommandDevices(ctx context.Context, command string, wait time.Duration, devices []*Device, args Attrs) error {
	devices, err := p.devicesOrAll(ctx, devices)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return fmt.Errorf("%s: %w", command, ErrNoObjects)
	}
	args = args.Clone()
	args["DeviceList"] = handlesOf(devices)
	_, err = p.Command(ctx, command, args, WaitAfter(wait))
	return err
}

// CommandDeviceEmulations runs an emulation command on the matching
// emulation of each given device (all devices when empty).
//
// The emulation type comes from the command (Dhcpv4Bind acts on
// dhcpv4blockconfig, and so on). Devices without that emulation are skipped;
// when none has it nothing is sent.
func (p *Project) CommandDeviceEmulations(ctx context.Context, command string, wait time.Duration, devices []*Device, args Attrs) error {
	emulationType, ok := deviceEmulationTypes[command]
	if !ok {
		return fmt.Errorf("unknown device emulation command: %s", command)
	}
	devices, err := p.devicesOrAll(ctx, devices)
	if err != nil {
		return err
	}
	var emulations []Proxy
	for _, d := range devices {
		e, err := d.Child(ctx, emulationType)
		if err != nil {
			return err
		}
		if e != nil {
			emulations = append(emulations, e)
		}
	}
	if len(emulations) == 0 {
		return nil
	}
	return p.CommandEmulations(ctx, command, wait, emulations, args)
}

// CommandEmulations runs an emulation command on the given emulations as
// one remote call. The list parameter name (RouterList, BlockList,
// ServerList, HandleList) comes from the first emulation's kind.
func (p *Project) CommandEmulations(ctx context.Context, command string, wait time.Duration, emulations []Proxy, args Attrs) error {
	if len(emulations) == 0 {
		return fmt.Errorf("%s: %w", command, ErrNoObjects)
	}
	param := ListHandles
	if e, ok := emulations[0].(*Emulation); ok {
		param = e.ListParameter()
	}
	args = args.Clone()
	args[param] = handlesOf(emulations)
	return p.commandEmulations(ctx, command, wait, args)
}

// StartEmulations starts the given emulations with ProtocolStart
func (p *Project) StartEmulations(ctx context.Context, wait time.Duration, emulations ...Proxy) error {
	return p.commandEmulations(ctx, "ProtocolStart", wait, Attrs{"ProtocolList": handlesOf(emulations)})
}

// StopEmulations stops the given emulations with ProtocolStop
func (p *Project) StopEmulations(ctx context.Context, wait time.Duration, emulations ...Proxy) error {
	return p.commandEmulations(ctx, "ProtocolStop", wait, Attrs{"ProtocolList": handlesOf(emulations)})
}

func (p *Project) commandEmulations(ctx context.Context, command string, wait time.Duration, args Attrs) error {
	if _, err := p.session.perform(ctx, command, args); err != nil {
		return err
	}
	return p.session.sleep(ctx, wait)
}

// StreamBlocks returns the stream blocks of every port
func (p *Project) StreamBlocks(ctx context.Context) ([]*StreamBlock, error) {
	ports, err := p.Ports(ctx)
	if err != nil {
		return nil, err
	}
	var blocks []*StreamBlock
	for _, port := range ports {
		portBlocks, err := port.StreamBlocks(ctx)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, portBlocks...)
	}
	return blocks, nil
}

// Subscribe subscribes to a statistics view.
//
// Views with a known configuration type (see ViewConfigType) use a result
// data set subscription; an empty configType picks the default. Any other
// view is taken as the name of a dynamic result view under the project.
// Reading the view is left to the caller.
func (p *Project) Subscribe(ctx context.Context, view, configType string) (*ResultView, error) {
	if defaultType, ok := ViewConfigType(view); ok {
		if configType == "" {
			configType = defaultType
		}
		handle, err := p.session.transport.Subscribe(ctx, Attrs{
			"Parent":       p.handle,
			"ResultParent": p.handle,
			"ConfigType":   configType,
			"ResultType":   view,
		})
		if err != nil {
			return nil, err
		}
		return p.resultView(ctx, handle, "resultdataset", view)
	}

	if _, err := p.Children(ctx, "dynamicresultview"); err != nil {
		return nil, err
	}
	drv := p.ObjectByName(view)
	if drv == nil {
		return nil, fmt.Errorf("subscribe: dynamic result view %q not found", view)
	}
	res, err := p.Command(ctx, "SubscribeDynamicResultView", Attrs{"DynamicResultView": drv})
	if err != nil {
		return nil, err
	}
	handle := res.Get("DynamicResultView")
	if handle == "" {
		handle = drv.Handle()
	}
	return p.resultView(ctx, handle, "dynamicresultview", view)
}

func (p *Project) resultView(ctx context.Context, handle, objType, view string) (*ResultView, error) {
	obj, err := p.session.AdoptAs(ctx, handle, objType, p)
	if err != nil {
		return nil, err
	}
	rv, ok := obj.(*ResultView)
	if !ok {
		return nil, fmt.Errorf("subscribe: unexpected proxy %T for %s", obj, handle)
	}
	rv.view = strings.ToLower(view)
	return rv, nil
}

// SendArpNs sends ARP/ND for the given objects (ports, devices or stream
// blocks) in one ArpNdStart command
func SendArpNs(ctx context.Context, objects ...Proxy) error {
	if len(objects) == 0 {
		return fmt.Errorf("ArpNdStart: %w", ErrNoObjects)
	}
	s := objects[0].Base().session
	_, err := s.perform(ctx, "ArpNdStart", Attrs{"HandleList": handlesOf(objects)})
	return err
}

// ArpCache refreshes and returns the ARP cache entries of the given
// objects, in object order
func ArpCache(ctx context.Context, objects ...Proxy) ([]string, error) {
	var entries []string
	for _, obj := range objects {
		o := obj.Base()
		if _, err := o.Command(ctx, "ArpNdUpdateArpCache", Attrs{"HandleList": o.handle}); err != nil {
			return nil, err
		}
		cache, err := o.Child(ctx, "arpcache")
		if err != nil {
			return nil, err
		}
		if cache == nil {
			continue
		}
		data, err := cache.Base().GetListAttribute(ctx, "ArpCacheData")
		if err != nil {
			return nil, err
		}
		entries = append(entries, data...)
	}
	return entries, nil
}

// proxiesAs filters proxies down to one concrete proxy type
func proxiesAs[T Proxy](objects []Proxy) []T {
	out := make([]T, 0, len(objects))
	for _, o := range objects {
		if t, ok := o.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
