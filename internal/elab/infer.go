// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package elab

import (
	"errors"
	"fmt"
	"math"

	"nickandperla.net/elab/internal/env"
	"nickandperla.net/elab/internal/syntax"
	"nickandperla.net/elab/internal/token"
)

// Evaluation errors, reported as internal failures by #eval.
var (
	ErrDivisionByZero  = errors.New("division by zero")
	ErrNatOverflow     = errors.New("natural number overflow")
	ErrUnknownConstant = errors.New("unknown constant")
)

// infer type checks e and returns a copy whose identifiers carry their
// fully qualified names.
func (el *Elaborator) infer(e syntax.Expr, st State) (syntax.Expr, env.Type, error) {
	switch n := e.(type) {
	case *syntax.NatLit:
		return n, env.Nat, nil
	case *syntax.StrLit:
		return n, env.String, nil
	case *syntax.BoolLit:
		return n, env.Bool, nil
	case *syntax.Missing:
		return nil, env.Unknown, Silent{}
	case *syntax.Ident:
		full, ok := resolveName(st, n.Name)
		if !ok {
			return nil, env.Unknown, &UnresolvedReference{Node: n}
		}
		d, _ := st.Env.Find(full)
		return &syntax.Ident{At: n.At, Name: full}, d.Type, nil
	case *syntax.Paren:
		inner, typ, err := el.infer(n.Inner, st)
		if err != nil {
			return nil, env.Unknown, err
		}
		return &syntax.Paren{At: n.At, Inner: inner}, typ, nil
	case *syntax.Binary:
		left, lt, err := el.infer(n.Left, st)
		if err != nil {
			return nil, env.Unknown, err
		}
		right, rt, err := el.infer(n.Right, st)
		if err != nil {
			return nil, env.Unknown, err
		}
		typ, ok := binaryType(n.Op, lt, rt)
		if !ok {
			return nil, env.Unknown, &DirectMessage{Ref: n, Msg: fmt.Sprintf(
				"operator '%s' cannot be applied to %s and %s", n.Op, lt, rt)}
		}
		return &syntax.Binary{Op: n.Op, Left: left, Right: right}, typ, nil
	}
	return nil, env.Unknown, &Unclassified{Ref: e}
}

func binaryType(op token.Token, lt, rt env.Type) (env.Type, bool) {
	switch op {
	case token.PLUS, token.MINUS, token.STAR, token.SLASH:
		return env.Nat, lt == env.Nat && rt == env.Nat
	case token.APPEND:
		return env.String, lt == env.String && rt == env.String
	case token.EQ:
		return env.Bool, lt == rt
	case token.AND, token.OR:
		return env.Bool, lt == env.Bool && rt == env.Bool
	}
	return env.Unknown, false
}

// Evaluate reduces an elaborated expression to a literal.
func Evaluate(e syntax.Expr, environment *env.Environment) (syntax.Expr, error) {
	switch n := e.(type) {
	case *syntax.NatLit, *syntax.StrLit, *syntax.BoolLit:
		return n, nil
	case *syntax.Paren:
		return Evaluate(n.Inner, environment)
	case *syntax.Ident:
		d, ok := environment.Find(n.Name)
		if !ok {
			return nil, fmt.Errorf("%w '%s'", ErrUnknownConstant, n.Name)
		}
		return Evaluate(d.Value, environment)
	case *syntax.Binary:
		left, err := Evaluate(n.Left, environment)
		if err != nil {
			return nil, err
		}
		right, err := Evaluate(n.Right, environment)
		if err != nil {
			return nil, err
		}
		return applyBinary(n.Op, left, right)
	}
	return nil, fmt.Errorf("cannot evaluate '%s'", e)
}

func applyBinary(op token.Token, left, right syntax.Expr) (syntax.Expr, error) {
	at := left.Pos()
	switch op {
	case token.EQ:
		return &syntax.BoolLit{At: at, Value: left.String() == right.String()}, nil
	case token.APPEND:
		l, lok := left.(*syntax.StrLit)
		r, rok := right.(*syntax.StrLit)
		if !lok || !rok {
			break
		}
		return &syntax.StrLit{At: at, Value: l.Value + r.Value}, nil
	case token.AND, token.OR:
		l, lok := left.(*syntax.BoolLit)
		r, rok := right.(*syntax.BoolLit)
		if !lok || !rok {
			break
		}
		if op == token.AND {
			return &syntax.BoolLit{At: at, Value: l.Value && r.Value}, nil
		}
		return &syntax.BoolLit{At: at, Value: l.Value || r.Value}, nil
	default:
		l, lok := left.(*syntax.NatLit)
		r, rok := right.(*syntax.NatLit)
		if !lok || !rok {
			break
		}
		v, err := natArith(op, l.Value, r.Value)
		if err != nil {
			return nil, err
		}
		return &syntax.NatLit{At: at, Value: v}, nil
	}
	return nil, fmt.Errorf("ill-typed operands for '%s'", op)
}

// natArith implements Nat arithmetic: subtraction truncates at zero.
func natArith(op token.Token, a, b uint64) (uint64, error) {
	switch op {
	case token.PLUS:
		if a > math.MaxUint64-b {
			return 0, ErrNatOverflow
		}
		return a + b, nil
	case token.MINUS:
		if b > a {
			return 0, nil
		}
		return a - b, nil
	case token.STAR:
		if a != 0 && b > math.MaxUint64/a {
			return 0, ErrNatOverflow
		}
		return a * b, nil
	case token.SLASH:
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil
	}
	return 0, fmt.Errorf("unsupported operator '%s'", op)
}
