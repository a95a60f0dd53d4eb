// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/clock/testclock"
)

// call records one transport invocation
type call struct {
	Op      string
	Handle  string
	Command string
	Args    map[string]string
}

// fakeTransport is an in-memory object store implementing Transport.
// Attribute names are case-insensitive. Created objects get handles
// "<type><n>" and are linked into their parent's children attributes.
type fakeTransport struct {
	objects  map[string]map[string]string
	counters map[string]int
	results  map[string][]CommandResult
	errs     map[string]error
	calls    []call
}

func newFakeTransport() *fakeTransport {
	f := &fakeTransport{
		objects:  map[string]map[string]string{},
		counters: map[string]int{},
		results:  map[string][]CommandResult{},
		errs:     map[string]error{},
	}
	f.add(SystemHandle, "")
	return f
}

// add registers an existing remote object under parent
func (f *fakeTransport) add(handle, parent string, kv ...string) {
	attrs := map[string]string{"name": handle, "parent": parent}
	for i := 0; i+1 < len(kv); i += 2 {
		attrs[strings.ToLower(kv[i])] = kv[i+1]
	}
	f.objects[handle] = attrs
	if parent != "" {
		p := f.objects[parent]
		t := ExtractType(handle)
		p["children"] = strings.TrimSpace(p["children"] + " " + handle)
		p["children-"+t] = strings.TrimSpace(p["children-"+t] + " " + handle)
	}
}

// set writes remote attribute values directly
func (f *fakeTransport) set(handle string, kv ...string) {
	for i := 0; i+1 < len(kv); i += 2 {
		f.objects[handle][strings.ToLower(kv[i])] = kv[i+1]
	}
}

// queue appends results returned by successive performs of command
func (f *fakeTransport) queue(command string, results ...CommandResult) {
	f.results[command] = append(f.results[command], results...)
}

// performs returns the recorded perform calls
func (f *fakeTransport) performs() []call {
	var out []call
	for _, c := range f.calls {
		if c.Op == "perform" {
			out = append(out, c)
		}
	}
	return out
}

// count returns the number of recorded calls of op
func (f *fakeTransport) count(op string) int {
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (f *fakeTransport) record(op, handle, command string, attrs Attrs) error {
	args := map[string]string{}
	for k, v := range attrs {
		args[k] = formatValue(v, spaceList)
	}
	f.calls = append(f.calls, call{Op: op, Handle: handle, Command: command, Args: args})
	if err, ok := f.errs[op]; ok {
		return err
	}
	if err, ok := f.errs[op+" "+command]; ok && command != "" {
		return err
	}
	return nil
}

func (f *fakeTransport) object(handle string) (map[string]string, error) {
	obj, ok := f.objects[handle]
	if !ok {
		return nil, &Error{Operation: "get", Handle: handle, Message: "no such object"}
	}
	return obj, nil
}

func (f *fakeTransport) Create(_ context.Context, objType, parent string, attrs Attrs) (string, error) {
	if err := f.record("create", parent, objType, attrs); err != nil {
		return "", err
	}
	t := strings.ToLower(objType)
	f.counters[t]++
	handle := fmt.Sprintf("%s%d", t, f.counters[t])
	for {
		if _, taken := f.objects[handle]; !taken {
			break
		}
		f.counters[t]++
		handle = fmt.Sprintf("%s%d", t, f.counters[t])
	}
	f.add(handle, parent)
	for k, v := range attrs {
		f.objects[handle][strings.ToLower(k)] = formatValue(v, spaceList)
	}
	return handle, nil
}

func (f *fakeTransport) Delete(_ context.Context, handle string) error {
	if err := f.record("delete", handle, "", nil); err != nil {
		return err
	}
	delete(f.objects, handle)
	return nil
}

func (f *fakeTransport) Get(_ context.Context, handle, attr string) (string, error) {
	if err := f.record("get", handle, attr, nil); err != nil {
		return "", err
	}
	obj, err := f.object(handle)
	if err != nil {
		return "", err
	}
	return obj[strings.ToLower(attr)], nil
}

func (f *fakeTransport) GetAll(_ context.Context, handle string) (map[string]string, error) {
	if err := f.record("getall", handle, "", nil); err != nil {
		return nil, err
	}
	obj, err := f.object(handle)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out, nil
}

func (f *fakeTransport) GetList(ctx context.Context, handle, attr string) ([]string, error) {
	v, err := f.Get(ctx, handle, attr)
	if err != nil {
		return nil, err
	}
	return splitHandles(v), nil
}

func (f *fakeTransport) Config(_ context.Context, handle string, attrs Attrs) error {
	if err := f.record("config", handle, "", attrs); err != nil {
		return err
	}
	obj, err := f.object(handle)
	if err != nil {
		return err
	}
	for k, v := range attrs {
		obj[strings.ToLower(k)] = formatValue(v, spaceList)
	}
	return nil
}

func (f *fakeTransport) Perform(_ context.Context, command string, args Attrs) (CommandResult, error) {
	if err := f.record("perform", "", command, args); err != nil {
		return nil, err
	}
	if q := f.results[command]; len(q) > 0 {
		res := q[0]
		if len(q) > 1 {
			f.results[command] = q[1:]
		}
		return res, nil
	}
	return CommandResult{}, nil
}

func (f *fakeTransport) Subscribe(_ context.Context, args Attrs) (string, error) {
	if err := f.record("subscribe", "", "", args); err != nil {
		return "", err
	}
	f.counters["resultdataset"]++
	handle := fmt.Sprintf("resultdataset%d", f.counters["resultdataset"])
	f.add(handle, formatValue(args["Parent"], spaceList))
	return handle, nil
}

func (f *fakeTransport) Unsubscribe(_ context.Context, handle string) error {
	return f.record("unsubscribe", handle, "", nil)
}

func (f *fakeTransport) Apply(context.Context) error {
	return f.record("apply", "", "", nil)
}

func (f *fakeTransport) Wait(context.Context) error {
	return f.record("wait", "", "", nil)
}

// testContext returns a context whose clock advances instantly through
// every sleep
func testContext(t *testing.T) (context.Context, testclock.TestClock) {
	t.Helper()
	ctx, tc := testclock.UseTime(context.Background(), testclock.TestTimeUTC)
	tc.SetTimerCallback(func(d time.Duration, _ clock.Timer) {
		tc.Add(d)
	})
	return ctx, tc
}

// newTestSession returns a connected session over a fake transport whose
// system has project1
func newTestSession(t *testing.T) (*Session, *fakeTransport) {
	t.Helper()
	f := newFakeTransport()
	f.add("project1", SystemHandle, "Name", "Lab Project")
	s, err := NewSession(f)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	ctx, _ := testContext(t)
	if err := s.Connect(ctx, ""); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	f.calls = nil
	return s, f
}

// mustCreate creates an object or fails the test
func mustCreate[T Proxy](t *testing.T, s *Session, parent Proxy, objType string, attrs Attrs) T {
	t.Helper()
	ctx, _ := testContext(t)
	p, err := s.Create(ctx, parent, objType, attrs)
	if err != nil {
		t.Fatalf("Create(%s) error = %v", objType, err)
	}
	typed, ok := p.(T)
	if !ok {
		t.Fatalf("Create(%s) = %T", objType, p)
	}
	return typed
}
