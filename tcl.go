// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"context"
	"path"
	"runtime"
	"strings"
)

// Interp evaluates Tcl scripts. The result of the last command is returned;
// a Tcl error is returned as a Go error carrying the Tcl error message.
type Interp interface {
	Eval(ctx context.Context, script string) (string, error)
}

// AppDir returns the application directory name inside the install
// directory for the current platform
func AppDir() string {
	if runtime.GOOS == "windows" {
		return "Spirent TestCenter Application"
	}
	return "Spirent_TestCenter_Application_Linux"
}

// TclTransport drives the vendor Tcl package through an interpreter.
//
// Every operation is one stc:: command. Attribute values are passed as
// "-name value" words, lists as Tcl lists.
type TclTransport struct {
	interp     Interp
	installDir string
	version    string
	logger     Logger
}

// NewTclTransport loads the vendor package into interp and returns a
// transport over it.
//
// Example:
//
//	shell, err := testcenter.NewTclShell(ctx, "tclsh")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer shell.Close()
//	transport, err := testcenter.NewTclTransport(ctx, shell, "/opt/stc")
func NewTclTransport(ctx context.Context, interp Interp, installDir string) (*TclTransport, error) {
	t := &TclTransport{
		interp:     interp,
		installDir: installDir,
		logger:     &NoOpLogger{},
	}
	appDir := path.Join(filepathToSlash(installDir), AppDir())
	if _, err := t.eval(ctx, "bootstrap", "", "set dir "+tclQuote(appDir)); err != nil {
		return nil, err
	}
	if _, err := t.eval(ctx, "bootstrap", "", "source "+tclQuote(path.Join(appDir, "pkgIndex.tcl"))); err != nil {
		return nil, err
	}
	version, err := t.eval(ctx, "bootstrap", "", "package require SpirentTestCenter")
	if err != nil {
		return nil, err
	}
	t.version = strings.TrimSpace(version)
	return t, nil
}

// filepathToSlash converts Windows separators; Tcl accepts forward slashes
// on every platform
func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

func (t *TclTransport) setLogger(l Logger) {
	t.logger = l
}

// Version returns the loaded package version
func (t *TclTransport) Version() string {
	return t.version
}

// Interp returns the underlying interpreter
func (t *TclTransport) Interp() Interp {
	return t.interp
}

func (t *TclTransport) eval(ctx context.Context, op, handle, script string) (string, error) {
	t.logger.Debug(ctx, "Tcl command",
		"script", script)
	res, err := t.interp.Eval(ctx, script)
	if err != nil {
		t.logger.Error(ctx, "Tcl command failed",
			"script", script,
			"error", err.Error())
		return "", &Error{Operation: op, Handle: handle, Message: err.Error(), Err: err}
	}
	return res, nil
}

// stc builds and evaluates "stc::<verb> <words...> -k v ..."
func (t *TclTransport) stc(ctx context.Context, verb, handle string, words []string, attrs Attrs) (string, error) {
	parts := []string{"stc::" + verb}
	for _, w := range words {
		parts = append(parts, tclQuote(w))
	}
	parts = append(parts, tclArgs(attrs)...)
	return t.eval(ctx, verb, handle, strings.Join(parts, " "))
}

// tclArgs encodes attributes as "-name value" words in sorted order
func tclArgs(attrs Attrs) []string {
	words := make([]string, 0, 2*len(attrs))
	for _, k := range sortedKeys(attrs) {
		words = append(words, "-"+k, tclQuote(formatValue(attrs[k], tclList)))
	}
	return words
}

// Create implements Transport
func (t *TclTransport) Create(ctx context.Context, objType, parent string, attrs Attrs) (string, error) {
	res, err := t.stc(ctx, "create", "", []string{objType, "-under", parent}, attrs)
	return strings.TrimSpace(res), err
}

// Delete implements Transport
func (t *TclTransport) Delete(ctx context.Context, handle string) error {
	_, err := t.stc(ctx, "delete", handle, []string{handle}, nil)
	return err
}

// Get implements Transport
func (t *TclTransport) Get(ctx context.Context, handle, attr string) (string, error) {
	return t.stc(ctx, "get", handle, []string{handle, "-" + attr}, nil)
}

// GetAll implements Transport
func (t *TclTransport) GetAll(ctx context.Context, handle string) (map[string]string, error) {
	res, err := t.stc(ctx, "get", handle, []string{handle}, nil)
	if err != nil {
		return nil, err
	}
	return parseTclPairs(res)
}

// GetList implements Transport
func (t *TclTransport) GetList(ctx context.Context, handle, attr string) ([]string, error) {
	res, err := t.Get(ctx, handle, attr)
	if err != nil {
		return nil, err
	}
	return parseTclList(res)
}

// Config implements Transport
func (t *TclTransport) Config(ctx context.Context, handle string, attrs Attrs) error {
	_, err := t.stc(ctx, "config", handle, []string{handle}, attrs)
	return err
}

// Perform implements Transport
func (t *TclTransport) Perform(ctx context.Context, command string, args Attrs) (CommandResult, error) {
	res, err := t.stc(ctx, "perform", "", []string{command}, args)
	if err != nil {
		return nil, err
	}
	pairs, err := parseTclPairs(res)
	if err != nil {
		return nil, err
	}
	return CommandResult(pairs), nil
}

// Subscribe implements Transport
func (t *TclTransport) Subscribe(ctx context.Context, args Attrs) (string, error) {
	res, err := t.stc(ctx, "subscribe", "", nil, args)
	return strings.TrimSpace(res), err
}

// Unsubscribe implements Transport
func (t *TclTransport) Unsubscribe(ctx context.Context, handle string) error {
	_, err := t.stc(ctx, "unsubscribe", handle, []string{handle}, nil)
	return err
}

// Apply implements Transport
func (t *TclTransport) Apply(ctx context.Context) error {
	_, err := t.stc(ctx, "apply", "", nil, nil)
	return err
}

// Wait implements Transport
func (t *TclTransport) Wait(ctx context.Context) error {
	_, err := t.stc(ctx, "waituntilcomplete", "", nil, nil)
	return err
}
