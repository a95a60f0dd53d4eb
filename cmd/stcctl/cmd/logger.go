// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cmd

import (
	"context"
	"fmt"
	"strings"

	log "github.com/golang/glog"
)

// glogLogger adapts glog to testcenter.Logger. Debug messages are logged at
// verbosity 1 unless debug is set.
type glogLogger struct {
	debug bool
}

func (l *glogLogger) Debug(_ context.Context, msg string, keysAndValues ...any) {
	if l.debug {
		log.InfoDepth(1, format(msg, keysAndValues))
		return
	}
	if log.V(1) {
		log.InfoDepth(1, format(msg, keysAndValues))
	}
}

func (l *glogLogger) Info(_ context.Context, msg string, keysAndValues ...any) {
	log.InfoDepth(1, format(msg, keysAndValues))
}

func (l *glogLogger) Warn(_ context.Context, msg string, keysAndValues ...any) {
	log.WarningDepth(1, format(msg, keysAndValues))
}

func (l *glogLogger) Error(_ context.Context, msg string, keysAndValues ...any) {
	log.ErrorDepth(1, format(msg, keysAndValues))
}

// format renders msg followed by key=value pairs
func format(msg string, keysAndValues []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&b, " %v=(MISSING)", keysAndValues[i])
		}
	}
	return b.String()
}
