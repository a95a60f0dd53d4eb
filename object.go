// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"context"
	"fmt"
	"strings"
)

// State is the lifecycle state of a proxy object
type State int

const (
	// StateUnbound means the proxy was allocated but has no remote handle
	StateUnbound State = iota

	// StateBound means the proxy wraps a remote handle
	StateBound

	// StateDetached means the remote object was deleted through this proxy
	StateDetached
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateUnbound:
		return "UNBOUND"
	case StateBound:
		return "BOUND"
	case StateDetached:
		return "DETACHED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// Proxy is a local stand-in for one remote object.
//
// Every specialized proxy embeds *Object and may override Name and
// Children. Proxies are created only by the Session factory (Create, Adopt)
// so that each remote handle maps to exactly one proxy.
type Proxy interface {
	// Base returns the embedded base object
	Base() *Object

	// Handle returns the remote handle
	Handle() string

	// Type returns the lowercased remote object type
	Type() string

	// Parent returns the authoritative remote parent (nil for the system root)
	Parent() Proxy

	// Name reads the object name from the remote system
	Name(ctx context.Context) (string, error)

	// Children discovers child objects of the given types (all types when empty)
	Children(ctx context.Context, types ...string) ([]Proxy, error)
}

// Object is the base of every proxy. It mediates all attribute reads and
// writes through the session transport and holds the local view of the
// object tree.
//
// Attribute values are never cached: every read is a remote round trip.
// Only structure is memoized: the handle, the parent link, discovered
// children and the last known name.
//
// Objects are not safe for concurrent use.
type Object struct {
	session *Session
	self    Proxy
	objType string
	handle  string
	parent  Proxy
	name    string
	state   State

	// children mirrors the remote parent/child relation
	children *childSet

	// attached is the navigation index: objects presented under this one
	// although their remote parent is elsewhere, keyed by role
	attached map[string]*childSet

	// owners records the objects whose navigation index holds this one
	owners map[*Object]string
}

// childSet is an insertion-ordered set of proxies keyed by handle
type childSet struct {
	order []string
	items map[string]Proxy
}

func newChildSet() *childSet {
	return &childSet{items: map[string]Proxy{}}
}

func (c *childSet) add(p Proxy) {
	if _, ok := c.items[p.Handle()]; ok {
		return
	}
	c.order = append(c.order, p.Handle())
	c.items[p.Handle()] = p
}

func (c *childSet) remove(handle string) {
	if _, ok := c.items[handle]; !ok {
		return
	}
	delete(c.items, handle)
	for i, h := range c.order {
		if h == handle {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *childSet) list() []Proxy {
	out := make([]Proxy, 0, len(c.order))
	for _, h := range c.order {
		out = append(out, c.items[h])
	}
	return out
}

func (c *childSet) reset() {
	c.order = nil
	c.items = map[string]Proxy{}
}

// Base returns the receiver
func (o *Object) Base() *Object {
	return o
}

// Handle returns the remote handle (empty while unbound)
func (o *Object) Handle() string {
	return o.handle
}

// Type returns the lowercased remote object type
func (o *Object) Type() string {
	return o.objType
}

// Parent returns the authoritative remote parent
func (o *Object) Parent() Proxy {
	return o.parent
}

// State returns the lifecycle state
func (o *Object) State() State {
	return o.state
}

// Session returns the session the object belongs to
func (o *Object) Session() *Session {
	return o.session
}

// LocalName returns the last known name without a remote call
func (o *Object) LocalName() string {
	return o.name
}

// String implements fmt.Stringer
func (o *Object) String() string {
	if o.name != "" {
		return fmt.Sprintf("%s(%s)", o.handle, o.name)
	}
	return o.handle
}

// checkBound returns an error unless the object wraps a live remote handle
func (o *Object) checkBound() error {
	switch o.state {
	case StateUnbound:
		return fmt.Errorf("%s: %w", o.objType, ErrUnbound)
	case StateDetached:
		return fmt.Errorf("%s: %w", o.handle, ErrDetached)
	}
	return nil
}

// Name reads the object name from the remote system and remembers it.
//
// When the remote name is just the handle (the default for unnamed objects)
// the name is synthesized as "<parent name>/<type>".
func (o *Object) Name(ctx context.Context) (string, error) {
	read, err := o.GetAttribute(ctx, "Name")
	if err != nil {
		return "", err
	}
	o.name = o.synthesizeName(read)
	return o.name, nil
}

func (o *Object) synthesizeName(read string) string {
	if o.parent != nil && strings.EqualFold(strings.ReplaceAll(read, " ", ""), o.handle) {
		return o.parent.Base().name + "/" + o.objType
	}
	return read
}

// GetAttribute returns a single attribute value as a string
func (o *Object) GetAttribute(ctx context.Context, name string) (string, error) {
	if err := o.checkBound(); err != nil {
		return "", err
	}
	return o.session.transport.Get(ctx, o.handle, name)
}

// GetAttributes returns the requested attribute values. With no names all
// attributes are read in one bulk call; otherwise each attribute is read
// separately, which keeps every reply short on length-limited backends.
func (o *Object) GetAttributes(ctx context.Context, names ...string) (map[string]string, error) {
	if err := o.checkBound(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return o.session.transport.GetAll(ctx, o.handle)
	}
	values := make(map[string]string, len(names))
	for _, name := range names {
		v, err := o.session.transport.Get(ctx, o.handle, name)
		if err != nil {
			return nil, err
		}
		values[name] = v
	}
	return values, nil
}

// GetListAttribute returns a whitespace-delimited attribute value as tokens
func (o *Object) GetListAttribute(ctx context.Context, name string) ([]string, error) {
	if err := o.checkBound(); err != nil {
		return nil, err
	}
	return o.session.transport.GetList(ctx, o.handle, name)
}

// SetAttributes writes attributes in one remote call. Changes stay buffered
// remotely until the next apply unless the Apply() modifier is given.
//
// Example:
//
//	err := ip.SetAttributes(ctx, testcenter.Attrs{"Address": "1.2.3.4", "PrefixLength": 16},
//	    testcenter.Apply())
func (o *Object) SetAttributes(ctx context.Context, attrs Attrs, mods ...func(*Req)) error {
	if err := o.checkBound(); err != nil {
		return err
	}
	req := newReq(mods)
	if len(attrs) > 0 {
		if err := o.session.transport.Config(ctx, o.handle, attrs); err != nil {
			return err
		}
	}
	if req.Apply {
		return o.session.transport.Apply(ctx)
	}
	return nil
}

// attributeSetter lets base helpers honor specialized SetAttributes
type attributeSetter interface {
	SetAttributes(ctx context.Context, attrs Attrs, mods ...func(*Req)) error
}

func (o *Object) setter() attributeSetter {
	if s, ok := o.self.(attributeSetter); ok {
		return s
	}
	return o
}

// AppendAttribute appends a token to a space-delimited attribute value.
//
// This is a read-modify-write sequence of two remote calls and is not
// atomic: a concurrent writer between the read and the write is lost.
func (o *Object) AppendAttribute(ctx context.Context, name string, value any, mods ...func(*Req)) error {
	cur, err := o.GetAttribute(ctx, name)
	if err != nil {
		return err
	}
	token := formatValue(value, spaceList)
	next := token
	if strings.TrimSpace(cur) != "" {
		next = cur + " " + token
	}
	return o.setter().SetAttributes(ctx, Attrs{name: next}, mods...)
}

// SetTargets writes relation attributes, adding the "-targets" suffix to each name
func (o *Object) SetTargets(ctx context.Context, attrs Attrs, mods ...func(*Req)) error {
	return o.setter().SetAttributes(ctx, suffixed(attrs, "-targets"), mods...)
}

// SetSources writes relation attributes, adding the "-sources" suffix to each name
func (o *Object) SetSources(ctx context.Context, attrs Attrs, mods ...func(*Req)) error {
	return o.setter().SetAttributes(ctx, suffixed(attrs, "-sources"), mods...)
}

func suffixed(attrs Attrs, suffix string) Attrs {
	out := make(Attrs, len(attrs))
	for k, v := range attrs {
		out[k+suffix] = v
	}
	return out
}

// SetActive enables or disables the object
func (o *Object) SetActive(ctx context.Context, active bool, mods ...func(*Req)) error {
	return o.setter().SetAttributes(ctx, Attrs{"Active": active}, mods...)
}

// Active reports whether the object is enabled
func (o *Object) Active(ctx context.Context) (bool, error) {
	v, err := o.GetAttribute(ctx, "Active")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(v), "true"), nil
}

// ObjectsFromAttribute resolves a handle-list attribute to proxies.
//
// Handles without a local proxy are adopted under this object; handles of
// unknown types get a generic proxy rather than an error.
func (o *Object) ObjectsFromAttribute(ctx context.Context, name string) ([]Proxy, error) {
	handles, err := o.GetListAttribute(ctx, name)
	if err != nil {
		return nil, err
	}
	objects := make([]Proxy, 0, len(handles))
	for _, h := range handles {
		obj, err := o.session.Adopt(ctx, h, o.self)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// ObjectFromAttribute resolves a single-handle attribute. Returns nil when
// the attribute is empty.
func (o *Object) ObjectFromAttribute(ctx context.Context, name string) (Proxy, error) {
	objects, err := o.ObjectsFromAttribute(ctx, name)
	if err != nil || len(objects) == 0 {
		return nil, err
	}
	return objects[0], nil
}

// Command runs a remote command and sleeps for the WaitAfter settle time.
// The raw result is returned; use TestCommandRC to verify it.
func (o *Object) Command(ctx context.Context, command string, args Attrs, mods ...func(*Req)) (CommandResult, error) {
	req := newReq(mods)
	res, err := o.session.perform(ctx, command, args)
	if err != nil {
		return nil, err
	}
	if err := o.session.sleep(ctx, req.WaitAfter); err != nil {
		return res, err
	}
	return res, nil
}

// TestCommandRC checks a field of the last command result and returns a
// *CommandFailedError unless it is absent, empty or successful.
func (o *Object) TestCommandRC(key string) error {
	return o.session.TestCommandRC(key)
}

// Wait blocks until the remote command sequencer is idle
func (o *Object) Wait(ctx context.Context) error {
	return o.session.transport.Wait(ctx)
}

// Delete removes the remote object and detaches the proxy (and its
// discovered subtree) from the local tree.
func (o *Object) Delete(ctx context.Context) error {
	if err := o.checkBound(); err != nil {
		return err
	}
	if err := o.session.transport.Delete(ctx, o.handle); err != nil {
		return err
	}
	o.session.logger.Debug(ctx, "Object deleted",
		"handle", o.handle,
		"type", o.objType)
	o.detach()
	return nil
}

func (o *Object) detach() {
	if o.parent != nil {
		o.parent.Base().children.remove(o.handle)
	}
	for owner := range o.owners {
		for _, set := range owner.attached {
			set.remove(o.handle)
		}
	}
	o.owners = nil
	for _, child := range o.children.list() {
		child.Base().detach()
	}
	o.children.reset()
	o.session.forget(o.handle)
	o.state = StateDetached
}

// attach adds obj to this object's navigation index under role
func (o *Object) attach(role string, obj Proxy) {
	set, ok := o.attached[role]
	if !ok {
		set = newChildSet()
		o.attached[role] = set
	}
	set.add(obj)
	target := obj.Base()
	if target.owners == nil {
		target.owners = map[*Object]string{}
	}
	target.owners[o] = role
}

// Attached returns the objects presented under this one for navigation
// although their remote parent is elsewhere (e.g. devices under a port).
func (o *Object) Attached(role string) []Proxy {
	set, ok := o.attached[strings.ToLower(role)]
	if !ok {
		return nil
	}
	return set.list()
}
