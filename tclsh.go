// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// tclDriver turns tclsh into a request/response server on stdin/stdout.
// Requests are "<byte length>\n<script>"; replies are
// "<return code> <byte length>\n<result>".
//
// The loop must be the last command: tclsh shares the stdin buffer with it,
// so any text after the loop would be read as a request. On EOF the loop
// ends and tclsh exits by itself.
const tclDriver = `fconfigure stdout -translation binary -buffering full
fconfigure stdin -translation binary
while {[gets stdin len] >= 0} {
    if {$len eq ""} continue
    set script [encoding convertfrom utf-8 [read stdin $len]]
    set code [catch {uplevel #0 $script} result]
    set data [encoding convertto utf-8 $result]
    puts -nonewline stdout "$code [string length $data]\n"
    puts -nonewline stdout $data
    flush stdout
}
`

// ErrShellClosed is returned by Eval after the shell exited
var ErrShellClosed = errors.New("tcl shell is closed")

// TclShell is an Interp backed by a long-lived tclsh process.
//
// Safe for concurrent use: scripts are evaluated one at a time.
type TclShell struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	closed bool
}

// NewTclShell starts the tclsh executable at path (looked up in PATH when
// it has no separator) and installs the request loop.
func NewTclShell(ctx context.Context, path string) (*TclShell, error) {
	cmd := exec.Command(path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", path, err)
	}
	s := &TclShell{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}
	if _, err := io.WriteString(stdin, tclDriver); err != nil {
		_ = s.Close()
		return nil, err
	}
	if _, err := s.Eval(ctx, "info patchlevel"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("tcl shell did not start: %w", err)
	}
	return s, nil
}

// Eval implements Interp. If ctx ends before the reply arrives the shell
// is killed, since the interpreter cannot be interrupted mid-command.
func (s *TclShell) Eval(ctx context.Context, script string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrShellClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type reply struct {
		res string
		err error
	}
	done := make(chan reply, 1)
	go func() {
		res, err := s.exchange(script)
		done <- reply{res, err}
	}()

	select {
	case r := <-done:
		return r.res, r.err
	case <-ctx.Done():
		s.kill()
		<-done
		return "", ctx.Err()
	}
}

func (s *TclShell) exchange(script string) (string, error) {
	if _, err := fmt.Fprintf(s.stdin, "%d\n%s", len(script), script); err != nil {
		return "", err
	}
	header, err := s.stdout.ReadString('\n')
	if err != nil {
		return "", err
	}
	fields := strings.Fields(header)
	if len(fields) != 2 {
		return "", fmt.Errorf("malformed tcl reply header %q", header)
	}
	code, err := strconv.Atoi(fields[0])
	if err != nil {
		return "", fmt.Errorf("malformed tcl reply code %q", fields[0])
	}
	size, err := strconv.Atoi(fields[1])
	if err != nil {
		return "", fmt.Errorf("malformed tcl reply length %q", fields[1])
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(s.stdout, data); err != nil {
		return "", err
	}
	if code == 1 {
		return "", errors.New(string(data))
	}
	return string(data), nil
}

func (s *TclShell) kill() {
	s.closed = true
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}

// Close ends the request loop and waits for tclsh to exit
func (s *TclShell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = s.cmd.Wait()
		return nil
	}
	s.closed = true
	if err := s.stdin.Close(); err != nil {
		return err
	}
	return s.cmd.Wait()
}
