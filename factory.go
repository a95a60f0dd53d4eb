// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"context"
	"fmt"
	"strings"
)

// remoteParenter is implemented by proxies whose remote owner differs from
// the parent the caller navigates from (devices live under the project but
// are created from a port).
type remoteParenter interface {
	remoteParent(requested Proxy) Proxy
}

// creationHook runs after a new remote object is bound. requested is the
// parent the caller asked for, which may differ from the remote parent.
type creationHook interface {
	afterCreate(ctx context.Context, requested Proxy) error
}

// adoptionHook runs after an existing remote object is bound
type adoptionHook interface {
	afterAdopt(ctx context.Context) error
}

// allocate builds an unbound proxy of the resolved type
func (s *Session) allocate(objType string) Proxy {
	obj := &Object{
		session:  s,
		objType:  strings.ToLower(objType),
		state:    StateUnbound,
		children: newChildSet(),
		attached: map[string]*childSet{},
	}
	p := Resolve(objType)(obj)
	obj.self = p
	return p
}

// bind assigns the handle, links the parent and registers the proxy in the
// identity map
func (s *Session) bind(p Proxy, handle string, parent Proxy) {
	obj := p.Base()
	obj.handle = handle
	obj.parent = parent
	obj.state = StateBound
	s.objects[handle] = p
	if parent != nil {
		parent.Base().children.add(p)
	}
}

// forget removes a handle from the identity map
func (s *Session) forget(handle string) {
	delete(s.objects, handle)
}

// ObjectByHandle returns the proxy already registered for a handle, or nil
func (s *Session) ObjectByHandle(handle string) Proxy {
	return s.objects[handle]
}

// Create creates a new remote object of objType under parent and returns its
// fully typed proxy.
//
// The proxy type is resolved from objType before allocation. If attrs has
// no "name" the remote default is read back and, when it is just the
// handle, replaced locally by "<parent name>/<type>".
//
// Example:
//
//	eth, err := session.Create(ctx, device, "EthIIIf", testcenter.Attrs{"SourceMac": "00:11:22:33:44:55"})
func (s *Session) Create(ctx context.Context, parent Proxy, objType string, attrs Attrs) (Proxy, error) {
	if parent == nil {
		return nil, fmt.Errorf("create %s: parent cannot be nil", objType)
	}
	if strings.TrimSpace(objType) == "" {
		return nil, fmt.Errorf("create: object type cannot be empty")
	}
	if err := parent.Base().checkBound(); err != nil {
		return nil, fmt.Errorf("create %s: %w", objType, err)
	}

	p := s.allocate(objType)
	remote := parent
	if rp, ok := p.(remoteParenter); ok {
		if remote = rp.remoteParent(parent); remote == nil {
			return nil, fmt.Errorf("create %s: %w", objType, ErrNotConnected)
		}
	}

	handle, err := s.transport.Create(ctx, objType, remote.Handle(), attrs)
	if err != nil {
		s.logger.Error(ctx, "Object creation failed",
			"type", objType,
			"parent", remote.Handle(),
			"error", err.Error())
		return nil, err
	}
	s.bind(p, handle, remote)

	if name, ok := lookupFold(attrs, "name"); ok {
		p.Base().name = formatValue(name, spaceList)
	} else {
		read, err := s.transport.Get(ctx, handle, "Name")
		if err != nil {
			return nil, err
		}
		p.Base().name = p.Base().synthesizeName(read)
	}

	if hook, ok := p.(creationHook); ok {
		if err := hook.afterCreate(ctx, parent); err != nil {
			return nil, err
		}
	}

	s.logger.Debug(ctx, "Object created",
		"type", p.Type(),
		"handle", handle,
		"parent", remote.Handle())
	return p, nil
}

// Adopt returns the proxy for an existing remote handle.
//
// A handle that is already known returns the same proxy. Otherwise the
// type is taken from the transport when it can report it, else parsed from
// the handle; when parent is nil the remote "parent" attribute is read and
// the parent is adopted first.
func (s *Session) Adopt(ctx context.Context, handle string, parent Proxy) (Proxy, error) {
	return s.AdoptAs(ctx, handle, "", parent)
}

// AdoptAs is Adopt with an explicit object type
func (s *Session) AdoptAs(ctx context.Context, handle, objType string, parent Proxy) (Proxy, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, fmt.Errorf("adopt: handle cannot be empty")
	}
	if p, ok := s.objects[handle]; ok {
		return p, nil
	}

	if objType == "" {
		var err error
		if objType, err = s.handleType(ctx, handle); err != nil {
			return nil, err
		}
	}

	if parent == nil {
		parentHandle, err := s.transport.Get(ctx, handle, "parent")
		if err != nil {
			return nil, err
		}
		if parentHandle = strings.TrimSpace(parentHandle); parentHandle == "" {
			parent = s.system
		} else if parent, err = s.Adopt(ctx, parentHandle, nil); err != nil {
			return nil, err
		}
	}

	p := s.allocate(objType)
	s.bind(p, handle, parent)

	if _, err := p.Name(ctx); err != nil {
		return nil, err
	}
	if hook, ok := p.(adoptionHook); ok {
		if err := hook.afterAdopt(ctx); err != nil {
			return nil, err
		}
	}

	s.logger.Debug(ctx, "Object adopted",
		"type", p.Type(),
		"handle", handle,
		"parent", parent.Handle())
	return p, nil
}

// handleType asks the transport for the type when it can tell, otherwise
// parses it from the handle
func (s *Session) handleType(ctx context.Context, handle string) (string, error) {
	if tr, ok := s.transport.(TypeReporter); ok {
		t, ok, err := tr.HandleType(ctx, handle)
		if err != nil {
			return "", err
		}
		if ok && t != "" {
			return strings.ToLower(t), nil
		}
	}
	return ExtractType(handle), nil
}
