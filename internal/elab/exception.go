// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package elab

import (
	"errors"
	"fmt"

	"nickandperla.net/elab/internal/message"
	"nickandperla.net/elab/internal/syntax"
)

// Exception is a recoverable elaboration failure. The variants are
// DirectMessage, UnresolvedReference, InternalFailure, Silent and
// Unclassified.
type Exception interface {
	error
	exception()
}

// DirectMessage carries ready-made message content.
type DirectMessage struct {
	Ref syntax.Node // may be nil
	Msg string
}

func (e *DirectMessage) Error() string { return e.Msg }
func (*DirectMessage) exception()      {}

// UnresolvedReference reports a name that could not be resolved.
type UnresolvedReference struct {
	Node syntax.Node
}

func (e *UnresolvedReference) Error() string {
	if e.Node == nil {
		return "unresolved reference"
	}
	return "unresolved reference " + e.Node.String()
}
func (*UnresolvedReference) exception() {}

// InternalFailure wraps an error raised while running elaboration.
type InternalFailure struct {
	Err error
}

func (e *InternalFailure) Error() string { return e.Err.Error() }
func (e *InternalFailure) Unwrap() error { return e.Err }
func (*InternalFailure) exception()      {}

// Silent aborts the command without a diagnostic, typically because one
// has already been reported.
type Silent struct{}

func (Silent) Error() string { return "elaboration aborted" }
func (Silent) exception()    {}

// Unclassified is any failure without a more specific variant.
type Unclassified struct {
	Ref syntax.Node // may be nil
}

func (e *Unclassified) Error() string { return defaultMessage(e.Ref) }
func (*Unclassified) exception()      {}

// ToMessageData converts an arbitrary error into message content.
func ToMessageData(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// MkMessage appends one diagnostic to the state's log. The position is
// ref's position when ref is set, otherwise the command position.
func MkMessage(ctx *Context, st State, sev message.Severity, class message.Class, data string, ref syntax.Node) State {
	offset := ctx.CmdPos
	if ref != nil && ref.Pos() >= 0 {
		offset = ref.Pos()
	}
	pos := message.Position{Line: 1}
	if ctx.FileMap != nil {
		pos = ctx.FileMap.ToPosition(offset)
	}
	st.Messages = st.Messages.Add(message.Diagnostic{
		FileName: ctx.FileName,
		Offset:   offset,
		Pos:      pos,
		Severity: sev,
		Class:    class,
		Data:     data,
	})
	return st
}

// LogException appends at most one diagnostic describing err. Errors that
// are not an Exception are treated as internal failures.
func LogException(ctx *Context, st State, err error) State {
	var ex Exception
	if !errors.As(err, &ex) {
		ex = &InternalFailure{Err: err}
	}

	before := st.Messages.Len()
	st = classify(ctx, st, ex)
	if ctx.Logger != nil {
		attrs := []any{"pos", ctx.CmdPos, "variant", variantName(ex)}
		if st.Messages.Len() > before {
			attrs = append(attrs, "class", st.Messages.Entries()[before].Class)
		}
		ctx.Logger.Debug("exception classified", attrs...)
	}
	return st
}

func classify(ctx *Context, st State, ex Exception) State {
	switch e := ex.(type) {
	case *DirectMessage:
		return MkMessage(ctx, st, message.Error, message.ClassDirect, e.Msg, e.Ref)
	case *UnresolvedReference:
		if id, ok := e.Node.(*syntax.Ident); ok {
			return MkMessage(ctx, st, message.Error, message.ClassUnresolved,
				fmt.Sprintf("unknown identifier '%s'", id.Name), id)
		}
		return MkMessage(ctx, st, message.Error, message.ClassGeneric, defaultMessage(e.Node), e.Node)
	case *InternalFailure:
		return MkMessage(ctx, st, message.Error, message.ClassInternal, ToMessageData(e.Err), nil)
	case Silent, *Silent:
		return st
	case *Unclassified:
		return MkMessage(ctx, st, message.Error, message.ClassGeneric, defaultMessage(e.Ref), e.Ref)
	}
	return MkMessage(ctx, st, message.Error, message.ClassGeneric, defaultMessage(nil), nil)
}

func variantName(ex Exception) string {
	switch ex.(type) {
	case *DirectMessage:
		return "direct"
	case *UnresolvedReference:
		return "unresolved"
	case *InternalFailure:
		return "internal"
	case Silent, *Silent:
		return "silent"
	}
	return "unclassified"
}

// defaultMessage is the template for failures with no specific message.
func defaultMessage(ref syntax.Node) string {
	if ref == nil {
		return "unexpected error during elaboration"
	}
	return fmt.Sprintf("unexpected syntax '%s'", ref)
}
