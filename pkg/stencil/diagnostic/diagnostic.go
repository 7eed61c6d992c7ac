// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package diagnostic collects the non-fatal messages (warnings) produced alongside a successful
// result, e.g. a field with a layout that performs badly on the selected backend.
package diagnostic

import (
	"fmt"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

// Severity of a Diagnostic.
type Severity int

const (
	Warning Severity = iota
	Info
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Info:
		return "info"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Diagnostic is one message.
type Diagnostic struct {
	Severity Severity

	// Subject the message refers to (e.g. a field name), if any.
	Subject string

	Message string
}

// String implements fmt.Stringer.
func (d Diagnostic) String() string {
	if d.Subject == "" {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s[%s]: %s", d.Severity, d.Subject, d.Message)
}

// Diagnostics is a collection of messages, safe for concurrent use. The zero value is ready to use.
//
// Warnings are also logged with klog as they are added.
type Diagnostics struct {
	mu    sync.Mutex
	items []Diagnostic
}

// New creates a new empty collection.
func New() *Diagnostics {
	return &Diagnostics{}
}

func (d *Diagnostics) add(item Diagnostic) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, item)
}

// Warningf adds a warning about subject.
func (d *Diagnostics) Warningf(subject, format string, args ...any) {
	item := Diagnostic{Severity: Warning, Subject: subject, Message: fmt.Sprintf(format, args...)}
	klog.Warning(item.Message)
	d.add(item)
}

// Infof adds an informational message about subject.
func (d *Diagnostics) Infof(subject, format string, args ...any) {
	item := Diagnostic{Severity: Info, Subject: subject, Message: fmt.Sprintf(format, args...)}
	klog.V(1).Info(item.Message)
	d.add(item)
}

// All returns a copy of all diagnostics, in the order they were added.
func (d *Diagnostics) All() []Diagnostic {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Diagnostic(nil), d.items...)
}

// Warnings returns the warning-level diagnostics.
func (d *Diagnostics) Warnings() []Diagnostic {
	var warnings []Diagnostic
	for _, item := range d.All() {
		if item.Severity == Warning {
			warnings = append(warnings, item)
		}
	}
	return warnings
}

// WarningCount returns the number of warning-level diagnostics.
func (d *Diagnostics) WarningCount() int {
	return len(d.Warnings())
}

// Count returns the total number of diagnostics.
func (d *Diagnostics) Count() int {
	return len(d.All())
}

// String lists the diagnostics, one per line.
func (d *Diagnostics) String() string {
	var sb strings.Builder
	for i, item := range d.All() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(item.String())
	}
	return sb.String()
}
