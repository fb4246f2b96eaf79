// Package program holds the compiled postfix form of a filter
// expression and the stack-based evaluator that runs it against one
// record at a time (spec.md §4.4). A Program is produced once by
// package compiler and then reused across every record in a run.
package program

import (
	"fmt"

	"github.com/skx/vcffilter/stack"
	"github.com/skx/vcffilter/token"
	"github.com/skx/vcffilter/value"
	"github.com/skx/vcffilter/vcf"
)

// ProgramToken is one entry of a compiled, postfix-ordered program.
// VAL carries a Setter that reads the bound field off each record in
// turn; the function tokens carry which reduction to apply; every
// other Kind is an operator consumed directly off the value stack.
type ProgramToken struct {
	Kind   token.Kind
	Setter value.Setter
	Func   token.FuncKind

	// Literal is the source text of a VAL token, kept only for
	// diagnostics; Evaluate does not read it.
	Literal string
}

// Program is a compiled filter expression: a flat postfix token
// stream plus the sample count it was bound against.
type Program struct {
	Tokens     []ProgramToken
	NumSamples int
}

// Result is the outcome of evaluating a Program against one record: a
// single site-level pass bit, plus a per-sample mask that is either
// the genuine result of per-sample sub-expressions or, if the whole
// expression never touched a per-sample field, the site bit broadcast
// to every sample.
type Result struct {
	Pass       bool
	SampleMask []bool
}

// EvalError reports a malformed program (a compiler bug, since
// Compile is expected to always hand Evaluate a well-formed stream).
type EvalError struct {
	Reason string
	At     int
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("program evaluation error at token %d: %s", e.At, e.Reason)
}

// Evaluate runs the program against a single record, producing the
// site-level pass bit and per-sample mask.
func (p *Program) Evaluate(r vcf.Record) (Result, error) {
	st := stack.New[value.Value](len(p.Tokens))

	pop := func(i int) (value.Value, error) {
		v, ok := st.Pop()
		if !ok {
			return value.Value{}, &EvalError{Reason: "stack underflow", At: i}
		}
		return v, nil
	}

	for i, tok := range p.Tokens {
		switch {
		case tok.Kind == token.VAL:
			st.Push(tok.Setter(r))

		case tok.Kind == token.FUNC:
			operand, err := pop(i)
			if err != nil {
				return Result{}, err
			}
			st.Push(value.ReduceFunc(operand, tok.Func))

		case tok.Kind.IsArithmetic():
			b, err := pop(i)
			if err != nil {
				return Result{}, err
			}
			a, err := pop(i)
			if err != nil {
				return Result{}, err
			}
			st.Push(value.Arith(a, b, tok.Kind, p.NumSamples))

		case tok.Kind.IsComparison():
			b, err := pop(i)
			if err != nil {
				return Result{}, err
			}
			a, err := pop(i)
			if err != nil {
				return Result{}, err
			}
			st.Push(value.Compare(a, b, tok.Kind, p.NumSamples))

		case tok.Kind.IsLogical():
			b, err := pop(i)
			if err != nil {
				return Result{}, err
			}
			a, err := pop(i)
			if err != nil {
				return Result{}, err
			}
			vec := tok.Kind == token.OR_VEC || tok.Kind == token.AND_VEC
			and := tok.Kind == token.AND || tok.Kind == token.AND_VEC
			st.Push(value.CombineLogical(a, b, vec, and, p.NumSamples))

		default:
			return Result{}, &EvalError{Reason: fmt.Sprintf("unexpected token kind %s", tok.Kind), At: i}
		}
	}

	top, ok := st.Pop()
	if !ok {
		return Result{}, &EvalError{Reason: "empty result", At: len(p.Tokens)}
	}
	if !st.Empty() {
		return Result{}, &EvalError{Reason: "unconsumed operands remain", At: len(p.Tokens)}
	}

	pass := top.PassSite == value.Pass
	mask := top.PassSamples
	if mask == nil {
		mask = make([]bool, p.NumSamples)
		for i := range mask {
			mask[i] = pass
		}
	}
	return Result{Pass: pass, SampleMask: mask}, nil
}
