// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"fmt"

	"nickandperla.net/elab/internal/env"
	"nickandperla.net/elab/internal/parser"
)

// Importer resolves header imports against a Store.
type Importer struct {
	store Store
}

// NewImporter creates an importer reading from s.
func NewImporter(s Store) *Importer {
	return &Importer{store: s}
}

// Import loads a module's declarations, re-parsing each stored body.
func (i *Importer) Import(module string) ([]env.Declaration, error) {
	records, err := i.store.GetModule(module)
	if err != nil {
		return nil, err
	}
	decls := make([]env.Declaration, 0, len(records))
	for _, r := range records {
		typ, ok := env.ParseType(r.Type)
		if !ok {
			return nil, fmt.Errorf("declaration '%s' has unknown type '%s'", r.Name, r.Type)
		}
		value, err := parser.ParseExpr(r.Value)
		if err != nil {
			return nil, fmt.Errorf("declaration '%s': %w", r.Name, err)
		}
		decls = append(decls, env.Declaration{
			Name:   r.Name,
			Type:   typ,
			Value:  value,
			Module: module,
		})
	}
	return decls, nil
}

// Records converts declarations into their persisted form.
func Records(decls []env.Declaration) []Record {
	records := make([]Record, 0, len(decls))
	for _, d := range decls {
		records = append(records, Record{
			Name:  d.Name,
			Type:  d.Type.String(),
			Value: d.Value.String(),
		})
	}
	return records
}
