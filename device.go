// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"context"
	"fmt"
	"time"
)

// Default settle time after a device command issued from a device proxy
const DefaultDeviceCommandSettle = 2 * time.Second

// Device is an emulated device.
//
// Remotely every device is a child of the project and points at its port
// through the AffiliatedPort relation. Locally the device is also attached
// to that port so that navigation from a port finds its devices.
type Device struct {
	*Object

	port *Port
}

func newDevice(o *Object) Proxy {
	return &Device{Object: o}
}

// remoteParent places new devices under the project
func (d *Device) remoteParent(Proxy) Proxy {
	if d.session.project == nil {
		return nil
	}
	return d.session.project
}

// afterCreate affiliates a new device with the port it was created from
func (d *Device) afterCreate(ctx context.Context, requested Proxy) error {
	port, ok := requested.(*Port)
	if !ok {
		return nil
	}
	if err := d.session.transport.Config(ctx, d.handle, Attrs{"AffiliatedPort": port}); err != nil {
		return err
	}
	d.attachTo(port)
	return nil
}

// afterAdopt resolves the affiliated port of an existing device
func (d *Device) afterAdopt(ctx context.Context) error {
	h, err := d.GetAttribute(ctx, "AffiliatedPort")
	if err != nil || h == "" {
		return err
	}
	p, err := d.session.AdoptAs(ctx, h, "port", d.session.project)
	if err != nil {
		return err
	}
	if port, ok := p.(*Port); ok {
		d.attachTo(port)
	}
	return nil
}

func (d *Device) attachTo(port *Port) {
	d.port = port
	port.attach(RoleDevices, d)
}

// Port returns the port the device is affiliated with, or nil
func (d *Device) Port() *Port {
	return d.port
}

// Command runs a device command for this device through the project's
// DeviceList command and returns the command result
func (d *Device) Command(ctx context.Context, command string, args Attrs, mods ...func(*Req)) (CommandResult, error) {
	project, err := d.session.requireProject()
	if err != nil {
		return nil, err
	}
	req := &Req{WaitAfter: DefaultDeviceCommandSettle}
	for _, mod := range mods {
		mod(req)
	}
	if err := project.CommandDevices(ctx, command, req.WaitAfter, []*Device{d}, args); err != nil {
		return nil, err
	}
	return d.session.lastResult, nil
}

// Start starts the device and verifies the command status
func (d *Device) Start(ctx context.Context) error {
	if _, err := d.Command(ctx, "DeviceStart", nil, WaitAfter(d.session.DeviceSettle)); err != nil {
		return err
	}
	return d.TestCommandRC("Status")
}

// Stop stops the device and verifies the command status
func (d *Device) Stop(ctx context.Context) error {
	if _, err := d.Command(ctx, "DeviceStop", nil, WaitAfter(d.session.DeviceSettle)); err != nil {
		return err
	}
	return d.TestCommandRC("Status")
}

// Ping pings address from the device and fails unless the verification
// passed
func (d *Device) Ping(ctx context.Context, address string) error {
	if _, err := d.Command(ctx, "PingVerifyConnectivity", Attrs{"PingAddress": address}); err != nil {
		return err
	}
	return d.TestCommandRC("PassFailState")
}

// CommandEmulations runs a device-level emulation command (Dhcpv4Bind and
// the like) for this device
func (d *Device) CommandEmulations(ctx context.Context, command string, wait time.Duration, args Attrs) error {
	project, err := d.session.requireProject()
	if err != nil {
		return err
	}
	return project.CommandDeviceEmulations(ctx, command, wait, []*Device{d}, args)
}

// SendArpNs sends ARP/ND from the device
func (d *Device) SendArpNs(ctx context.Context) error {
	return SendArpNs(ctx, d)
}

// ArpCache returns the ARP cache entries of the device
func (d *Device) ArpCache(ctx context.Context) ([]string, error) {
	return ArpCache(ctx, d)
}

// OrderedVlans returns the VLAN interfaces of the device from the Ethernet
// interface upwards, following the StackedOnEndpoint relation
func (d *Device) OrderedVlans(ctx context.Context) ([]Proxy, error) {
	vlans, err := d.ObjectsOrChildrenByType(ctx, "vlanif")
	if err != nil || len(vlans) == 0 {
		return nil, err
	}
	eths, err := d.ObjectsOrChildrenByType(ctx, "ethiiif")
	if err != nil {
		return nil, err
	}
	if len(eths) == 0 {
		return nil, fmt.Errorf("device %s has VLANs but no Ethernet interface", d.handle)
	}

	var ordered []Proxy
	next, err := d.stackedOn(ctx, eths[0])
	for err == nil && next != nil && next.Type() == "vlanif" {
		ordered = append(ordered, next)
		next, err = d.stackedOn(ctx, next)
	}
	return ordered, err
}

func (d *Device) stackedOn(ctx context.Context, iface Proxy) (Proxy, error) {
	h, err := iface.Base().GetAttribute(ctx, "StackedOnEndpoint-sources")
	if err != nil || h == "" {
		return nil, err
	}
	return d.session.Adopt(ctx, h, d)
}

// HasIPv4 reports whether the device has an IPv4 interface
func (d *Device) HasIPv4(ctx context.Context) (bool, error) {
	objects, err := d.ObjectsOrChildrenByType(ctx, "ipv4if")
	return len(objects) > 0, err
}

// HasIPv6 reports whether the device has an IPv6 interface
func (d *Device) HasIPv6(ctx context.Context) (bool, error) {
	objects, err := d.ObjectsOrChildrenByType(ctx, "ipv6if")
	return len(objects) > 0, err
}
