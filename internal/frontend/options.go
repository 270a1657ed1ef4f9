// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package frontend

import (
	"log/slog"

	"nickandperla.net/elab/internal/elab"
	"nickandperla.net/elab/internal/env"
	"nickandperla.net/elab/internal/parser"
)

// EnvironmentFactory creates the empty environment a run starts from.
type EnvironmentFactory func(trustLevel uint32) (*env.Environment, error)

// Option configures Run and NewDriver.
type Option func(*options)

type options struct {
	importer   Importer
	output     elab.OutputWriter
	logger     *slog.Logger
	newEnv     EnvironmentFactory
	parser     Parser
	elaborator Elaborator
	classifier Classifier
}

func buildOptions(opts []Option) *options {
	o := &options{
		newEnv:     env.New,
		parser:     ParserFunc(parser.ParseCommand),
		elaborator: elab.New(),
		classifier: elab.LogException,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// WithImporter sets how header imports are resolved.
func WithImporter(imp Importer) Option {
	return func(o *options) { o.importer = imp }
}

// WithOutputWriter sets where #check, #eval and #print write.
func WithOutputWriter(w elab.OutputWriter) Option {
	return func(o *options) { o.output = w }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEnvironmentFactory replaces env.New.
func WithEnvironmentFactory(f EnvironmentFactory) Option {
	return func(o *options) { o.newEnv = f }
}

// WithParser replaces the command parser.
func WithParser(p Parser) Option {
	return func(o *options) { o.parser = p }
}

// WithElaborator replaces the command elaborator.
func WithElaborator(e Elaborator) Option {
	return func(o *options) { o.elaborator = e }
}

// WithClassifier replaces elab.LogException.
func WithClassifier(c Classifier) Option {
	return func(o *options) { o.classifier = c }
}
