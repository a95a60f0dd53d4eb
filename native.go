// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"context"
	"fmt"
	"os"
	"path"
	"plugin"
	"strings"
)

// Binding is the in-process vendor API. Values returned as any may be a
// string, a []string, a fmt.Stringer or a []any of those; the transport
// normalizes them to strings.
type Binding interface {
	Create(objType, under string, attrs map[string]any) (any, error)
	Delete(handle string) error
	Get(handle, attr string) (any, error)
	GetAll(handle string) (map[string]any, error)
	Config(handle string, attrs map[string]any) error
	Perform(command string, args map[string]any) (map[string]any, error)
	Subscribe(args map[string]any) (any, error)
	Unsubscribe(handle string) error
	Apply() error
	WaitUntilComplete() error
}

// BindingSymbol is the symbol a binding plugin exports
const BindingSymbol = "Binding"

// OpenNativeBinding loads the vendor binding plugin from the install
// directory (<install>/<app dir>/API/Go/stc.so) and points the vendor
// library at its private install directory.
//
// The plugin must export BindingSymbol as a Binding value, a pointer to
// one, or a func() (Binding, error).
func OpenNativeBinding(installDir string) (Binding, error) {
	appDir := path.Join(filepathToSlash(installDir), AppDir())
	if err := os.Setenv("STC_PRIVATE_INSTALL_DIR", appDir); err != nil {
		return nil, err
	}
	p, err := plugin.Open(path.Join(appDir, "API", "Go", "stc.so"))
	if err != nil {
		return nil, fmt.Errorf("failed to open native binding: %w", err)
	}
	sym, err := p.Lookup(BindingSymbol)
	if err != nil {
		return nil, fmt.Errorf("failed to open native binding: %w", err)
	}
	switch b := sym.(type) {
	case *Binding:
		return *b, nil
	case func() (Binding, error):
		return b()
	case Binding:
		return b, nil
	default:
		return nil, fmt.Errorf("native binding symbol %s has unsupported type %T", BindingSymbol, sym)
	}
}

// NativeTransport calls an in-process Binding.
//
// List values are passed through as []string; everything else is
// serialized to a string.
type NativeTransport struct {
	binding Binding
	logger  Logger
}

// NewNativeTransport returns a transport over binding
func NewNativeTransport(binding Binding) (*NativeTransport, error) {
	if binding == nil {
		return nil, fmt.Errorf("binding cannot be nil")
	}
	return &NativeTransport{binding: binding, logger: &NoOpLogger{}}, nil
}

func (t *NativeTransport) setLogger(l Logger) {
	t.logger = l
}

// nativeArgs converts attributes for the binding, keeping lists as slices
func nativeArgs(attrs Attrs) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case []string:
			out[k] = val
		case []Proxy:
			out[k] = handlesOf(val)
		default:
			out[k] = formatValue(v, spaceList)
		}
	}
	return out
}

// nativeString normalizes a binding value to a string
func nativeString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, " ")
	case []any:
		tokens := make([]string, 0, len(val))
		for _, item := range val {
			tokens = append(tokens, nativeString(item))
		}
		return strings.Join(tokens, " ")
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func nativeMap(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = nativeString(v)
	}
	return out
}

func (t *NativeTransport) wrap(ctx context.Context, op, handle string, err error) error {
	if err == nil {
		return nil
	}
	t.logger.Error(ctx, "Native call failed",
		"operation", op,
		"handle", handle,
		"error", err.Error())
	return &Error{Operation: op, Handle: handle, Message: err.Error(), Err: err}
}

func (t *NativeTransport) trace(ctx context.Context, op, handle string, n int) {
	t.logger.Debug(ctx, "Native call",
		"operation", op,
		"handle", handle,
		"attributes", n)
}

// Create implements Transport
func (t *NativeTransport) Create(ctx context.Context, objType, parent string, attrs Attrs) (string, error) {
	t.trace(ctx, "create", parent, len(attrs))
	h, err := t.binding.Create(objType, parent, nativeArgs(attrs))
	if err != nil {
		return "", t.wrap(ctx, "create", parent, err)
	}
	return strings.TrimSpace(nativeString(h)), nil
}

// Delete implements Transport
func (t *NativeTransport) Delete(ctx context.Context, handle string) error {
	t.trace(ctx, "delete", handle, 0)
	return t.wrap(ctx, "delete", handle, t.binding.Delete(handle))
}

// Get implements Transport
func (t *NativeTransport) Get(ctx context.Context, handle, attr string) (string, error) {
	t.trace(ctx, "get", handle, 1)
	v, err := t.binding.Get(handle, attr)
	if err != nil {
		return "", t.wrap(ctx, "get", handle, err)
	}
	return nativeString(v), nil
}

// GetAll implements Transport
func (t *NativeTransport) GetAll(ctx context.Context, handle string) (map[string]string, error) {
	t.trace(ctx, "get", handle, 0)
	m, err := t.binding.GetAll(handle)
	if err != nil {
		return nil, t.wrap(ctx, "get", handle, err)
	}
	return nativeMap(m), nil
}

// GetList implements Transport
func (t *NativeTransport) GetList(ctx context.Context, handle, attr string) ([]string, error) {
	t.trace(ctx, "get", handle, 1)
	v, err := t.binding.Get(handle, attr)
	if err != nil {
		return nil, t.wrap(ctx, "get", handle, err)
	}
	if list, ok := v.([]string); ok {
		return list, nil
	}
	return splitHandles(nativeString(v)), nil
}

// Config implements Transport
func (t *NativeTransport) Config(ctx context.Context, handle string, attrs Attrs) error {
	t.trace(ctx, "config", handle, len(attrs))
	return t.wrap(ctx, "config", handle, t.binding.Config(handle, nativeArgs(attrs)))
}

// Perform implements Transport
func (t *NativeTransport) Perform(ctx context.Context, command string, args Attrs) (CommandResult, error) {
	t.trace(ctx, "perform "+command, "", len(args))
	m, err := t.binding.Perform(command, nativeArgs(args))
	if err != nil {
		return nil, t.wrap(ctx, "perform "+command, "", err)
	}
	return CommandResult(nativeMap(m)), nil
}

// Subscribe implements Transport
func (t *NativeTransport) Subscribe(ctx context.Context, args Attrs) (string, error) {
	t.trace(ctx, "subscribe", "", len(args))
	h, err := t.binding.Subscribe(nativeArgs(args))
	if err != nil {
		return "", t.wrap(ctx, "subscribe", "", err)
	}
	return strings.TrimSpace(nativeString(h)), nil
}

// Unsubscribe implements Transport
func (t *NativeTransport) Unsubscribe(ctx context.Context, handle string) error {
	t.trace(ctx, "unsubscribe", handle, 0)
	return t.wrap(ctx, "unsubscribe", handle, t.binding.Unsubscribe(handle))
}

// Apply implements Transport
func (t *NativeTransport) Apply(ctx context.Context) error {
	t.trace(ctx, "apply", "", 0)
	return t.wrap(ctx, "apply", "", t.binding.Apply())
}

// Wait implements Transport
func (t *NativeTransport) Wait(ctx context.Context) error {
	t.trace(ctx, "wait", "", 0)
	return t.wrap(ctx, "wait", "", t.binding.WaitUntilComplete())
}
