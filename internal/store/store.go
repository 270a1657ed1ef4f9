// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package store provides persistence for compiled elab modules.
package store

import (
	"errors"
	"strings"
)

// ErrModuleNotFound is returned when a module has never been stored.
var ErrModuleNotFound = errors.New("module not found")

// Record is one persisted declaration. Value is the elaborated body in
// source form, re-parsed on import.
type Record struct {
	Name  string
	Type  string
	Value string
}

// String renders the record as a def command.
func (r Record) String() string {
	return "def " + r.Name + " : " + r.Type + " := " + r.Value
}

// Store is the interface for module persistence.
type Store interface {
	// GetModule returns a module's declarations in declaration order.
	// Returns ErrModuleNotFound if the module does not exist.
	GetModule(name string) ([]Record, error)
	// PutModule replaces a module's declarations.
	PutModule(name string, records []Record) error
	// DeleteModule removes a module and its history.
	DeleteModule(name string) error
	// ListModules returns the stored module names, sorted.
	ListModules() ([]string, error)
	// Close releases resources.
	Close() error
}

// VersionEntry represents a single version of a persisted module.
type VersionEntry struct {
	Version int
	Value   string // the module rendered as source
	Ts      string
}

// HistoryStore extends Store with version history queries.
type HistoryStore interface {
	GetHistory(name string, limit int) ([]VersionEntry, error)
}

// MetadataStore extends Store with key/value metadata.
type MetadataStore interface {
	GetMetadata(key string) (string, error)
	SetMetadata(key, value string) error
}

// Render joins records into module source, one def per line.
func Render(records []Record) string {
	var sb strings.Builder
	for _, r := range records {
		sb.WriteString(r.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

func equalRecords(a, b []Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
