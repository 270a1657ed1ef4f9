// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package message defines diagnostics and the append-only message log.
package message

import (
	"fmt"
	"sort"
	"strings"
)

// Severity of a diagnostic.
type Severity int

const (
	Information Severity = iota
	Warning
	Error
)

// String returns the lower-case name used in rendered output.
func (s Severity) String() string {
	switch s {
	case Information:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Class records which path produced a diagnostic.
type Class int

const (
	ClassGeneric Class = iota
	ClassParse
	ClassDirect
	ClassUnresolved
	ClassInternal
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassGeneric:
		return "generic"
	case ClassParse:
		return "parse"
	case ClassDirect:
		return "direct"
	case ClassUnresolved:
		return "unresolved"
	case ClassInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Position is a 1-based line and 0-based column.
type Position struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Diagnostic is one reported issue.
type Diagnostic struct {
	FileName string   `json:"file" yaml:"file"`
	Offset   int      `json:"offset" yaml:"offset"`
	Pos      Position `json:"pos" yaml:"pos"`
	Severity Severity `json:"-" yaml:"-"`
	Class    Class    `json:"-" yaml:"-"`
	Data     string   `json:"message" yaml:"message"`
}

// String renders the diagnostic as file:line:col: severity: data.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%s: %s: %s", d.FileName, d.Pos, d.Severity, d.Data)
}

// FileMap converts byte offsets into line/column positions.
type FileMap struct {
	lineStarts []int
}

// NewFileMap indexes the line starts of input.
func NewFileMap(input string) *FileMap {
	starts := []int{0}
	for i := 0; i < len(input); i++ {
		if input[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &FileMap{lineStarts: starts}
}

// ToPosition returns the position of a byte offset.
func (m *FileMap) ToPosition(offset int) Position {
	line := sort.Search(len(m.lineStarts), func(i int) bool {
		return m.lineStarts[i] > offset
	}) - 1
	if line < 0 {
		line = 0
	}
	return Position{Line: line + 1, Column: offset - m.lineStarts[line]}
}

// Log is an ordered, append-only sequence of diagnostics. The zero value
// is an empty log. Add never writes into a backing array another Log can
// see, so copies of a Log are independent values.
type Log struct {
	entries []Diagnostic
}

// Add returns a new log with d appended.
func (l Log) Add(d Diagnostic) Log {
	n := len(l.entries)
	return Log{entries: append(l.entries[:n:n], d)}
}

// Len returns the number of diagnostics.
func (l Log) Len() int { return len(l.entries) }

// Entries returns a copy of the diagnostics in order.
func (l Log) Entries() []Diagnostic {
	out := make([]Diagnostic, len(l.entries))
	copy(out, l.entries)
	return out
}

// Since returns the diagnostics appended after the first n.
func (l Log) Since(n int) []Diagnostic {
	if n >= len(l.entries) {
		return nil
	}
	out := make([]Diagnostic, len(l.entries)-n)
	copy(out, l.entries[n:])
	return out
}

// HasErrors reports whether any diagnostic has Error severity.
func (l Log) HasErrors() bool {
	for _, d := range l.entries {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// String joins all diagnostics, one per line.
func (l Log) String() string {
	var sb strings.Builder
	for _, d := range l.entries {
		sb.WriteString(d.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
