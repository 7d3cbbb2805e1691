// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package logger provides the facility-scoped leveled logger used across
// falcon, in the shape of the teacher's package-level "l" logger
// (l.Debugf, l.Warnln, ...). Debug output is gated per facility by the
// FALCON_DEBUG environment variable: a comma separated list of facility
// names, or "*" for all of them.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

var (
	debugOnce  sync.Once
	debugSet   map[string]bool
	debugAll   bool
	stdlog     = log.New(os.Stderr, "", log.LstdFlags)
	outputLock sync.Mutex
)

func loadDebugEnv() {
	debugOnce.Do(func() {
		debugSet = make(map[string]bool)
		v := os.Getenv("FALCON_DEBUG")
		for _, f := range strings.Split(v, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			if f == "*" {
				debugAll = true
			}
			debugSet[f] = true
		}
	})
}

// Logger is a facility-scoped leveled logger.
type Logger struct {
	facility string
}

// New returns a Logger for the given facility name, used as a log line
// prefix and as the key checked against FALCON_DEBUG.
func New(facility string) *Logger {
	loadDebugEnv()
	return &Logger{facility: facility}
}

func (l *Logger) debugEnabled() bool {
	return debugAll || debugSet[l.facility]
}

func (l *Logger) prefixed(level, msg string) string {
	return fmt.Sprintf("%s(%s): %s", level, l.facility, msg)
}

// Debugf logs at debug level, only when the facility is enabled.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if !l.debugEnabled() {
		return
	}
	outputLock.Lock()
	defer outputLock.Unlock()
	stdlog.Output(2, l.prefixed("DEBUG", fmt.Sprintf(format, args...))) //nolint:errcheck
}

// Infoln logs at info level unconditionally.
func (l *Logger) Infoln(args ...interface{}) {
	outputLock.Lock()
	defer outputLock.Unlock()
	stdlog.Output(2, l.prefixed("INFO", fmt.Sprintln(args...))) //nolint:errcheck
}

// Warnln logs at warning level unconditionally.
func (l *Logger) Warnln(args ...interface{}) {
	outputLock.Lock()
	defer outputLock.Unlock()
	stdlog.Output(2, l.prefixed("WARN", fmt.Sprintln(args...))) //nolint:errcheck
}

// Criticalf logs at critical level unconditionally. Critical never aborts
// the process on its own; callers decide whether a critical condition is
// also fatal.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	outputLock.Lock()
	defer outputLock.Unlock()
	stdlog.Output(2, l.prefixed("CRIT", fmt.Sprintf(format, args...))) //nolint:errcheck
}
