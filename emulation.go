// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"context"
	"time"
)

// Emulation command list parameters, one per emulation kind
const (
	ListRouters = "RouterList"
	ListBlocks  = "BlockList"
	ListServers = "ServerList"
	ListHandles = "HandleList"
)

// DefaultEmulationSettle is the settle time after an emulation command
const DefaultEmulationSettle = 4 * time.Second

// Emulation is a protocol emulation configured on a device (router, client
// block, server or switch). Emulation commands are issued through the
// project with the emulation's list parameter.
type Emulation struct {
	*Object

	listParam string
}

// emulationConstructor returns a constructor for emulations whose commands
// take their handles in listParam
func emulationConstructor(listParam string) Constructor {
	return func(o *Object) Proxy {
		return &Emulation{Object: o, listParam: listParam}
	}
}

// ListParameter returns the command argument that carries emulation handles
func (e *Emulation) ListParameter() string {
	return e.listParam
}

// Command runs an emulation command for this emulation
func (e *Emulation) Command(ctx context.Context, command string, args Attrs, mods ...func(*Req)) (CommandResult, error) {
	project, err := e.session.requireProject()
	if err != nil {
		return nil, err
	}
	req := &Req{WaitAfter: DefaultEmulationSettle}
	for _, mod := range mods {
		mod(req)
	}
	if err := project.CommandEmulations(ctx, command, req.WaitAfter, []Proxy{e}, args); err != nil {
		return nil, err
	}
	return e.session.lastResult, nil
}

// Start starts the emulation with ProtocolStart
func (e *Emulation) Start(ctx context.Context) error {
	project, err := e.session.requireProject()
	if err != nil {
		return err
	}
	return project.StartEmulations(ctx, DefaultEmulationSettle, e)
}

// Stop stops the emulation with ProtocolStop
func (e *Emulation) Stop(ctx context.Context) error {
	project, err := e.session.requireProject()
	if err != nil {
		return err
	}
	return project.StopEmulations(ctx, DefaultEmulationSettle, e)
}

// NetworkBlockHolder is an object that owns an IPv4 or IPv6 network block,
// either in its own subtree (routes, LSAs, sessions) or behind a relation
// (multicast group memberships).
type NetworkBlockHolder struct {
	*Object

	viaAttr string
}

// networkBlockConstructor returns a constructor for holders whose network
// block hangs off the group referenced by viaAttr, or from their own
// subtree when viaAttr is empty
func networkBlockConstructor(viaAttr string) Constructor {
	return func(o *Object) Proxy {
		return &NetworkBlockHolder{Object: o, viaAttr: viaAttr}
	}
}

// NetworkBlock returns the network block of the holder, or nil
func (n *NetworkBlockHolder) NetworkBlock(ctx context.Context) (Proxy, error) {
	if n.viaAttr != "" {
		group, err := n.ObjectFromAttribute(ctx, n.viaAttr)
		if err != nil || group == nil {
			return nil, err
		}
		return group.Base().Child(ctx, "ipv4networkblock")
	}
	if blocks := n.ObjectsByTypeInSubtree("ipv4networkblock", "ipv6networkblock"); len(blocks) > 0 {
		return blocks[0], nil
	}
	blocks, err := n.Children(ctx, "ipv4networkblock", "ipv6networkblock")
	if err != nil || len(blocks) == 0 {
		return nil, err
	}
	return blocks[0], nil
}
