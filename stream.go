// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import "context"

// StreamBlock is a traffic stream defined on a port
type StreamBlock struct {
	*Object
}

func newStreamBlock(o *Object) Proxy {
	return &StreamBlock{Object: o}
}

// afterCreate removes the Ethernet and IPv4 headers the server adds to new
// stream blocks, leaving an empty frame to be built by the caller
func (s *StreamBlock) afterCreate(ctx context.Context, _ Proxy) error {
	return s.session.transport.Config(ctx, s.handle, Attrs{"FrameConfig": ""})
}

// SendArpNs sends ARP/ND for the stream block
func (s *StreamBlock) SendArpNs(ctx context.Context) error {
	return SendArpNs(ctx, s)
}

// ArpCache returns the ARP cache entries of the stream block
func (s *StreamBlock) ArpCache(ctx context.Context) ([]string, error) {
	return ArpCache(ctx, s)
}

// GroupCollection groups traffic groups. Its name is the GroupName attribute.
type GroupCollection struct {
	*Object
}

func newGroupCollection(o *Object) Proxy {
	return &GroupCollection{Object: o}
}

func (g *GroupCollection) afterCreate(ctx context.Context, _ Proxy) error {
	return writeGroupName(ctx, g.Object)
}

// Name returns the GroupName attribute
func (g *GroupCollection) Name(ctx context.Context) (string, error) {
	return readGroupName(ctx, g.Object)
}

// TrafficGroup is a named set of stream blocks. Attribute writes fan out to
// every stream block in the group.
type TrafficGroup struct {
	*Object
}

func newTrafficGroup(o *Object) Proxy {
	return &TrafficGroup{Object: o}
}

func (t *TrafficGroup) afterCreate(ctx context.Context, _ Proxy) error {
	return writeGroupName(ctx, t.Object)
}

// Name returns the GroupName attribute
func (t *TrafficGroup) Name(ctx context.Context) (string, error) {
	return readGroupName(ctx, t.Object)
}

// StreamBlocks returns the stream blocks affiliated with the group
func (t *TrafficGroup) StreamBlocks(ctx context.Context) ([]*StreamBlock, error) {
	handles, err := t.GetListAttribute(ctx, "AffiliationTrafficGroup-Targets")
	if err != nil {
		return nil, err
	}
	blocks := make([]*StreamBlock, 0, len(handles))
	for _, h := range handles {
		obj, err := t.session.AdoptAs(ctx, h, "streamblock", nil)
		if err != nil {
			return nil, err
		}
		if sb, ok := obj.(*StreamBlock); ok {
			blocks = append(blocks, sb)
		}
	}
	return blocks, nil
}

// SetAttributes writes the attributes to every stream block of the group
func (t *TrafficGroup) SetAttributes(ctx context.Context, attrs Attrs, mods ...func(*Req)) error {
	blocks, err := t.StreamBlocks(ctx)
	if err != nil {
		return err
	}
	for _, sb := range blocks {
		if err := sb.SetAttributes(ctx, attrs, mods...); err != nil {
			return err
		}
	}
	return nil
}

func writeGroupName(ctx context.Context, o *Object) error {
	return o.session.transport.Config(ctx, o.handle, Attrs{"GroupName": o.name})
}

func readGroupName(ctx context.Context, o *Object) (string, error) {
	name, err := o.GetAttribute(ctx, "GroupName")
	if err != nil {
		return "", err
	}
	o.name = name
	return name, nil
}

// IPGroup is an IPv4 or IPv6 multicast group under the project. Its
// addresses live in the network block child.
type IPGroup struct {
	*Object
}

func newIPGroup(o *Object) Proxy {
	return &IPGroup{Object: o}
}

// NetworkBlock returns the group's network block
func (g *IPGroup) NetworkBlock(ctx context.Context) (Proxy, error) {
	if g.objType == "ipv6group" {
		return g.Child(ctx, "ipv6networkblock")
	}
	return g.Child(ctx, "ipv4networkblock")
}

// SetJoinedGroup links the group to the group it joins
func (g *IPGroup) SetJoinedGroup(ctx context.Context, joined Proxy) error {
	return g.SetSources(ctx, Attrs{"JoinedGroup": joined})
}
