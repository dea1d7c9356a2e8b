package logic

import (
	"sort"
	"strings"
)

// Formula is a propositional formula over named variables.
type Formula interface {
	isFormula()
	String() string
}

// Var is a propositional variable.
type Var struct {
	Name string
}

func (Var) isFormula() {}
func (f Var) String() string {
	return f.Name
}

// Const is a truth constant.
type Const bool

const (
	True  = Const(true)
	False = Const(false)
)

func (Const) isFormula() {}
func (f Const) String() string {
	if f {
		return "1"
	}
	return "0"
}

type Not struct {
	X Formula
}

func (Not) isFormula() {}
func (f Not) String() string {
	return "!" + f.X.String()
}

type And struct {
	Xs []Formula
}

func (And) isFormula() {}
func (f And) String() string {
	return join(f.Xs, " && ")
}

type Or struct {
	Xs []Formula
}

func (Or) isFormula() {}
func (f Or) String() string {
	return join(f.Xs, " || ")
}

type Iff struct {
	X, Y Formula
}

func (Iff) isFormula() {}
func (f Iff) String() string {
	return "(" + f.X.String() + " <-> " + f.Y.String() + ")"
}

func join(xs []Formula, sep string) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = x.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// NewNot negates f, folding constants and double negation.
func NewNot(f Formula) Formula {
	switch x := f.(type) {
	case Const:
		return !x
	case Not:
		return x.X
	}
	return Not{X: f}
}

// NewAnd builds a conjunction, flattening nested conjunctions and folding
// constants.
func NewAnd(xs ...Formula) Formula {
	var out []Formula
	for _, x := range xs {
		switch v := x.(type) {
		case Const:
			if !v {
				return False
			}
		case And:
			out = append(out, v.Xs...)
		default:
			out = append(out, x)
		}
	}
	switch len(out) {
	case 0:
		return True
	case 1:
		return out[0]
	}
	return And{Xs: out}
}

// NewOr builds a disjunction, flattening nested disjunctions and folding
// constants.
func NewOr(xs ...Formula) Formula {
	var out []Formula
	for _, x := range xs {
		switch v := x.(type) {
		case Const:
			if v {
				return True
			}
		case Or:
			out = append(out, v.Xs...)
		default:
			out = append(out, x)
		}
	}
	switch len(out) {
	case 0:
		return False
	case 1:
		return out[0]
	}
	return Or{Xs: out}
}

// NewIff builds x <-> y.
func NewIff(x, y Formula) Formula {
	if c, ok := x.(Const); ok {
		if c {
			return y
		}
		return NewNot(y)
	}
	if c, ok := y.(Const); ok {
		if c {
			return x
		}
		return NewNot(x)
	}
	return Iff{X: x, Y: y}
}

// Implies builds x -> y.
func Implies(x, y Formula) Formula {
	return NewOr(NewNot(x), y)
}

// Vars returns the sorted names of the variables occurring in f.
func Vars(f Formula) []string {
	seen := make(map[string]struct{})
	collectVars(f, seen)
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func collectVars(f Formula, seen map[string]struct{}) {
	switch x := f.(type) {
	case Var:
		seen[x.Name] = struct{}{}
	case Not:
		collectVars(x.X, seen)
	case And:
		for _, y := range x.Xs {
			collectVars(y, seen)
		}
	case Or:
		for _, y := range x.Xs {
			collectVars(y, seen)
		}
	case Iff:
		collectVars(x.X, seen)
		collectVars(x.Y, seen)
	}
}

// Eval evaluates f under assignment; missing variables are false.
func Eval(f Formula, assignment map[string]bool) bool {
	switch x := f.(type) {
	case Const:
		return bool(x)
	case Var:
		return assignment[x.Name]
	case Not:
		return !Eval(x.X, assignment)
	case And:
		for _, y := range x.Xs {
			if !Eval(y, assignment) {
				return false
			}
		}
		return true
	case Or:
		for _, y := range x.Xs {
			if Eval(y, assignment) {
				return true
			}
		}
		return false
	case Iff:
		return Eval(x.X, assignment) == Eval(x.Y, assignment)
	}
	return false
}
