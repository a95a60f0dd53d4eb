// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// newChildrenFixture builds port1 with two stream blocks, a generator and
// an analyzer already present remotely
func newChildrenFixture(t *testing.T) (*Session, *fakeTransport, *Port) {
	t.Helper()
	s, f := newTestSession(t)
	f.add("port1", "project1", "Name", "West Port")
	f.add("generator1", "port1")
	f.add("streamblock1", "port1", "Name", "sb-a")
	f.add("analyzer1", "port1")
	f.add("streamblock2", "port1", "Name", "sb-b")
	ctx, _ := testContext(t)
	p, err := s.Adopt(ctx, "port1", nil)
	if err != nil {
		t.Fatalf("Adopt() error = %v", err)
	}
	f.calls = nil
	return s, f, p.(*Port)
}

func TestChildTypes(t *testing.T) {
	_, _, port := newChildrenFixture(t)
	ctx, _ := testContext(t)

	types, err := port.ChildTypes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"generator", "streamblock", "analyzer"}, types); diff != "" {
		t.Errorf("ChildTypes() mismatch (-want +got):\n%s", diff)
	}
}

func TestChildren(t *testing.T) {
	s, f, port := newChildrenFixture(t)
	ctx, _ := testContext(t)

	children, err := port.Children(ctx, "streamblock", "StreamBlock", "generator")
	if err != nil {
		t.Fatalf("Children() error = %v", err)
	}
	if diff := cmp.Diff([]string{"streamblock1", "streamblock2", "generator1"}, handlesOf(children)); diff != "" {
		t.Errorf("Children() mismatch (-want +got):\n%s", diff)
	}
	if _, ok := children[0].(*StreamBlock); !ok {
		t.Errorf("Children()[0] = %T, want *StreamBlock", children[0])
	}

	again, err := port.Children(ctx, "streamblock")
	if err != nil {
		t.Fatal(err)
	}
	if again[0] != children[0] {
		t.Error("second discovery returned a different proxy")
	}

	// ObjectsOrChildrenByType serves known objects without remote calls
	f.calls = nil
	known, err := port.ObjectsOrChildrenByType(ctx, "streamblock")
	if err != nil {
		t.Fatal(err)
	}
	if len(known) != 2 || len(f.calls) != 0 {
		t.Errorf("ObjectsOrChildrenByType() = %v with %d calls", known, len(f.calls))
	}

	if got := port.ObjectByName("sb-b"); got == nil || got.Handle() != "streamblock2" {
		t.Errorf("ObjectByName(sb-b) = %v", got)
	}
	if got := port.ObjectByName("missing"); got != nil {
		t.Errorf("ObjectByName(missing) = %v", got)
	}

	subtree := s.Project().ObjectsByTypeInSubtree("streamblock")
	if diff := cmp.Diff([]string{"streamblock1", "streamblock2"}, handlesOf(subtree)); diff != "" {
		t.Errorf("ObjectsByTypeInSubtree() mismatch (-want +got):\n%s", diff)
	}
}

func TestChildrenAllTypes(t *testing.T) {
	_, _, port := newChildrenFixture(t)
	ctx, _ := testContext(t)

	children, err := port.Children(ctx)
	if err != nil {
		t.Fatalf("Children() error = %v", err)
	}
	want := []string{"generator1", "streamblock1", "streamblock2", "analyzer1"}
	if diff := cmp.Diff(want, handlesOf(children)); diff != "" {
		t.Errorf("Children() mismatch (-want +got):\n%s", diff)
	}
}

func TestChild(t *testing.T) {
	_, _, port := newChildrenFixture(t)
	ctx, _ := testContext(t)

	gen, err := port.Child(ctx, "generator")
	if err != nil || gen == nil || gen.Handle() != "generator1" {
		t.Errorf("Child(generator) = %v, %v", gen, err)
	}
	none, err := port.Child(ctx, "capture")
	if err != nil || none != nil {
		t.Errorf("Child(capture) = %v, %v", none, err)
	}
}

func TestPortChildrenIncludesDevices(t *testing.T) {
	s, f := newTestSession(t)
	ctx, _ := testContext(t)
	f.add("port1", "project1", "Name", "West Port")
	f.add("port2", "project1", "Name", "East Port")
	f.add("emulateddevice1", "project1", "AffiliatedPort", "port1")
	f.add("emulateddevice2", "project1", "AffiliatedPort", "port2")
	f.add("emulateddevice3", "project1", "AffiliatedPort", "port1")

	ports, err := s.Project().Ports(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ports) != 2 {
		t.Fatalf("Ports() = %v", ports)
	}

	devices, err := ports[0].Children(ctx, RoleDevices)
	if err != nil {
		t.Fatalf("Children(emulateddevice) error = %v", err)
	}
	if diff := cmp.Diff([]string{"emulateddevice1", "emulateddevice3"}, handlesOf(devices)); diff != "" {
		t.Errorf("port1 devices mismatch (-want +got):\n%s", diff)
	}

	port2Devices, err := ports[1].Devices(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"emulateddevice2"}, handlesOf(port2Devices)); diff != "" {
		t.Errorf("port2 devices mismatch (-want +got):\n%s", diff)
	}
	for _, d := range devices {
		if d.Parent() != Proxy(s.Project()) {
			t.Errorf("%s parent = %v, want project1", d.Handle(), d.Parent())
		}
	}
}
