// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package render formats elaboration results for the terminal or for tools.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"nickandperla.net/elab/internal/message"
)

// Report is the outcome of elaborating one input.
type Report struct {
	Module       string
	RunID        string
	Output       []string
	Declarations []string
	Diagnostics  message.Log
}

// Renderer writes a report.
type Renderer interface {
	Render(w io.Writer, r Report) error
}

// New returns the renderer for a format: text, json or yaml.
func New(format string, color bool) (Renderer, error) {
	switch format {
	case "", "text":
		return &Text{Color: color}, nil
	case "json":
		return jsonRenderer{}, nil
	case "yaml":
		return yamlRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

var (
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#06B6D4"))

	locationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B"))
)

// Text renders program output followed by one line per diagnostic.
type Text struct {
	Color bool
}

func (t *Text) Render(w io.Writer, r Report) error {
	var sb strings.Builder
	for _, out := range r.Output {
		sb.WriteString(out)
		if !strings.HasSuffix(out, "\n") {
			sb.WriteString("\n")
		}
	}
	for _, d := range r.Diagnostics.Entries() {
		sb.WriteString(t.Diagnostic(d))
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Diagnostic formats a single diagnostic as file:line:col: severity: message.
func (t *Text) Diagnostic(d message.Diagnostic) string {
	loc := fmt.Sprintf("%s:%s:", d.FileName, d.Pos)
	sev := d.Severity.String() + ":"
	if t.Color {
		loc = locationStyle.Render(loc)
		sev = severityStyle(d.Severity).Render(sev)
	}
	return loc + " " + sev + " " + d.Data
}

func severityStyle(s message.Severity) lipgloss.Style {
	switch s {
	case message.Error:
		return errorStyle
	case message.Warning:
		return warningStyle
	default:
		return infoStyle
	}
}

type diagnosticView struct {
	File     string `json:"file" yaml:"file"`
	Line     int    `json:"line" yaml:"line"`
	Column   int    `json:"column" yaml:"column"`
	Severity string `json:"severity" yaml:"severity"`
	Class    string `json:"class" yaml:"class"`
	Message  string `json:"message" yaml:"message"`
}

type reportView struct {
	Module       string           `json:"module" yaml:"module"`
	RunID        string           `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	OK           bool             `json:"ok" yaml:"ok"`
	Output       []string         `json:"output" yaml:"output"`
	Declarations []string         `json:"declarations" yaml:"declarations"`
	Diagnostics  []diagnosticView `json:"diagnostics" yaml:"diagnostics"`
}

func view(r Report) reportView {
	v := reportView{
		Module:       r.Module,
		RunID:        r.RunID,
		OK:           !r.Diagnostics.HasErrors(),
		Output:       append([]string{}, r.Output...),
		Declarations: append([]string{}, r.Declarations...),
		Diagnostics:  []diagnosticView{},
	}
	for _, d := range r.Diagnostics.Entries() {
		v.Diagnostics = append(v.Diagnostics, diagnosticView{
			File:     d.FileName,
			Line:     d.Pos.Line,
			Column:   d.Pos.Column,
			Severity: d.Severity.String(),
			Class:    d.Class.String(),
			Message:  d.Data,
		})
	}
	return v
}

type jsonRenderer struct{}

func (jsonRenderer) Render(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view(r))
}

type yamlRenderer struct{}

func (yamlRenderer) Render(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(view(r)); err != nil {
		return err
	}
	return enc.Close()
}
