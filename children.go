// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"context"
	"strings"
)

// Children discovers child objects of the given types.
//
// With no types, the child types are first discovered from the "children"
// attribute; then each "children-<type>" attribute is read and every handle
// is resolved through the session identity map, adopting new ones. The
// result is ordered by type then by remote order, without duplicates.
func (o *Object) Children(ctx context.Context, types ...string) ([]Proxy, error) {
	if err := o.checkBound(); err != nil {
		return nil, err
	}
	if len(types) == 0 {
		var err error
		if types, err = o.ChildTypes(ctx); err != nil {
			return nil, err
		}
	}

	seen := map[string]bool{}
	var children []Proxy
	for _, t := range types {
		t = strings.ToLower(t)
		handles, err := o.session.transport.GetList(ctx, o.handle, "children-"+t)
		if err != nil {
			return nil, err
		}
		for _, h := range handles {
			if seen[h] {
				continue
			}
			seen[h] = true
			child, err := o.session.AdoptAs(ctx, h, t, o.self)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
	}
	return children, nil
}

// ChildTypes returns the distinct types present in the "children" attribute
// in order of first appearance
func (o *Object) ChildTypes(ctx context.Context) ([]string, error) {
	handles, err := o.GetListAttribute(ctx, "children")
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var types []string
	for _, h := range handles {
		t := ExtractType(h)
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	return types, nil
}

// Child returns the first child of the given type, or nil if there is none
func (o *Object) Child(ctx context.Context, objType string) (Proxy, error) {
	children, err := o.self.Children(ctx, objType)
	if err != nil || len(children) == 0 {
		return nil, err
	}
	return children[0], nil
}

// ObjectsByType returns already discovered objects of the given types
// without remote calls. Both remote children and attached objects are
// searched. With no types every known object is returned.
func (o *Object) ObjectsByType(types ...string) []Proxy {
	var out []Proxy
	seen := map[string]bool{}
	collect := func(set *childSet) {
		for _, p := range set.list() {
			if seen[p.Handle()] || !matchesType(p, types) {
				continue
			}
			seen[p.Handle()] = true
			out = append(out, p)
		}
	}
	collect(o.children)
	for _, set := range o.attached {
		collect(set)
	}
	return out
}

// ObjectsOrChildrenByType returns discovered objects of the given types,
// falling back to remote discovery when none are known yet.
func (o *Object) ObjectsOrChildrenByType(ctx context.Context, types ...string) ([]Proxy, error) {
	if objects := o.ObjectsByType(types...); len(objects) > 0 {
		return objects, nil
	}
	return o.self.Children(ctx, types...)
}

// ObjectByName returns the discovered child with the given local name
func (o *Object) ObjectByName(name string) Proxy {
	for _, p := range o.ObjectsByType() {
		if p.Base().name == name {
			return p
		}
	}
	return nil
}

// ObjectsByTypeInSubtree walks the discovered subtree (remote children only)
// and returns every object of the given types
func (o *Object) ObjectsByTypeInSubtree(types ...string) []Proxy {
	var out []Proxy
	for _, child := range o.children.list() {
		if matchesType(child, types) {
			out = append(out, child)
		}
		out = append(out, child.Base().ObjectsByTypeInSubtree(types...)...)
	}
	return out
}

func matchesType(p Proxy, types []string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if strings.EqualFold(p.Type(), t) {
			return true
		}
	}
	return false
}
