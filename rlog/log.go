/*
 * MIT License
 *
 * Copyright (c) 2026 netreactor contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package rlog is the reactor's internal diagnostic logger, not an
// application-facing logging framework. It is the structured logging
// every component uses to report accept errors, poller errors,
// retry/backoff decisions and assertion failures.
package rlog

import (
	"os"
	"sync"

	hclog "github.com/hashicorp/go-hclog"
)

// Fields are free-form structured attributes attached to a log entry.
// hclog consumes them as alternating key/value pairs.
type Fields map[string]interface{}

func (f Fields) pairs() []interface{} {
	out := make([]interface{}, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}

// Logger is the minimal structured-logging surface the reactor depends
// on internally. Debug/Info carry operational detail; Warn marks a
// recovered/retried condition; Error marks a condition the caller gave
// up on.
type Logger interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, fields Fields)
	Named(name string) Logger
}

type hcLogger struct {
	l hclog.Logger
}

// New returns the default process logger: level controlled by the
// RNETREACTOR_LOG_LEVEL environment variable (trace/debug/info/warn/error),
// defaulting to info, writing to stderr.
func New(name string) Logger {
	lvl := hclog.LevelFromString(os.Getenv("RNETREACTOR_LOG_LEVEL"))
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	return &hcLogger{l: hclog.New(&hclog.LoggerOptions{
		Name:  name,
		Level: lvl,
	})}
}

func (h *hcLogger) Debug(msg string, fields Fields) { h.l.Debug(msg, fields.pairs()...) }
func (h *hcLogger) Info(msg string, fields Fields)  { h.l.Info(msg, fields.pairs()...) }
func (h *hcLogger) Warn(msg string, fields Fields)  { h.l.Warn(msg, fields.pairs()...) }
func (h *hcLogger) Error(msg string, fields Fields) { h.l.Error(msg, fields.pairs()...) }
func (h *hcLogger) Named(name string) Logger {
	return &hcLogger{l: h.l.Named(name)}
}

var (
	defaultOnce sync.Once
	defaultLog  Logger
)

// Default returns a process-wide named "reactor" logger, built once.
func Default() Logger {
	defaultOnce.Do(func() { defaultLog = New("reactor") })
	return defaultLog
}
