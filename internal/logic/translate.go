package logic

import (
	"strconv"
	"strings"
)

// OpaquePrefix starts the names of atoms standing for sub-expressions whose
// truth value cannot be expressed propositionally.
const OpaquePrefix = "__OPAQUE_"

// Resolver maps a preprocessor symbol to the formula of "symbol is defined"
// at the point the condition is evaluated.
type Resolver interface {
	Symbol(name string) Formula
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) Formula

func (f ResolverFunc) Symbol(name string) Formula {
	return f(name)
}

// Translator turns parsed conditions into formulas. Opaque atoms are shared
// between all conditions translated by the same Translator whose text and
// resolved identifiers agree.
type Translator struct {
	resolver Resolver
	// atoms maps an atom key to its name, texts the name to its text.
	atoms map[string]string
	texts map[string]string
}

func NewTranslator(r Resolver) *Translator {
	return &Translator{
		resolver: r,
		atoms:    make(map[string]string),
		texts:    make(map[string]string),
	}
}

// Translate converts n with a fresh Translator.
func Translate(n Node, r Resolver) Formula {
	return NewTranslator(r).Translate(n)
}

// Translate returns the formula that is true iff n evaluates to non-zero.
func (t *Translator) Translate(n Node) Formula {
	return t.eval(n).formula()
}

// Opaque returns the canonical text behind every opaque atom created so far.
func (t *Translator) Opaque() map[string]string {
	out := make(map[string]string, len(t.texts))
	for name, text := range t.texts {
		out[name] = text
	}
	return out
}

// value is either a known integer or a formula for "non-zero".
type value struct {
	known bool
	n     int64
	f     Formula
}

func konst(n int64) value {
	return value{known: true, n: n}
}

func truth(b bool) value {
	if b {
		return konst(1)
	}
	return konst(0)
}

func (v value) formula() Formula {
	if v.known {
		return Const(v.n != 0)
	}
	return v.f
}

// atom names n. The key carries what every identifier of n resolves to, so
// the same text under different definitions gets different atoms.
func (t *Translator) atom(n Node) value {
	text := n.String()
	var key strings.Builder
	key.WriteString(text)
	for _, name := range identifiers(n, nil) {
		key.WriteByte(0)
		key.WriteString(t.resolver.Symbol(name).String())
	}
	name, ok := t.atoms[key.String()]
	if !ok {
		name = OpaquePrefix + strconv.Itoa(len(t.atoms))
		t.atoms[key.String()] = name
		t.texts[name] = text
	}
	return value{f: Var{Name: name}}
}

// identifiers appends the symbols n refers to, callee names excluded.
func identifiers(n Node, out []string) []string {
	switch x := n.(type) {
	case Ident:
		out = append(out, x.Name)
	case DefinedExpr:
		out = append(out, x.Name)
	case UnaryExpr:
		out = identifiers(x.Operand, out)
	case BinaryExpr:
		out = identifiers(x.Right, identifiers(x.Left, out))
	case CondExpr:
		out = identifiers(x.Else, identifiers(x.Then, identifiers(x.Cond, out)))
	case CallExpr:
		for _, a := range x.Args {
			out = identifiers(a, out)
		}
	}
	return out
}

func (t *Translator) eval(n Node) value {
	switch x := n.(type) {
	case Number:
		return konst(x.Value)
	case Ident:
		return value{f: t.resolver.Symbol(x.Name)}
	case DefinedExpr:
		return value{f: t.resolver.Symbol(x.Name)}
	case CallExpr:
		return t.atom(x)
	case UnaryExpr:
		return t.unary(x)
	case BinaryExpr:
		return t.binary(x)
	case CondExpr:
		c := t.eval(x.Cond)
		if c.known {
			if c.n != 0 {
				return t.eval(x.Then)
			}
			return t.eval(x.Else)
		}
		a, b := t.eval(x.Then), t.eval(x.Else)
		if a.known && b.known {
			if ok, v := sameTruth(a, b); ok {
				return truth(v)
			}
		}
		cf := c.formula()
		return value{f: NewOr(NewAnd(cf, a.formula()), NewAnd(NewNot(cf), b.formula()))}
	}
	return t.atom(n)
}

func sameTruth(a, b value) (bool, bool) {
	return (a.n != 0) == (b.n != 0), a.n != 0
}

func (t *Translator) unary(x UnaryExpr) value {
	v := t.eval(x.Operand)
	if v.known {
		switch x.Op {
		case OpNot:
			return truth(v.n == 0)
		case OpNeg:
			return konst(-v.n)
		case OpPlus:
			return v
		case OpCompl:
			return konst(^v.n)
		}
	}
	switch x.Op {
	case OpNot:
		return value{f: NewNot(v.f)}
	case OpNeg, OpPlus:
		// negation keeps zero-ness
		return v
	}
	return t.atom(x)
}

func (t *Translator) binary(x BinaryExpr) value {
	l := t.eval(x.Left)

	// short circuit before looking at the right operand
	switch x.Op {
	case OpAnd:
		if l.known && l.n == 0 {
			return konst(0)
		}
		r := t.eval(x.Right)
		if r.known && r.n == 0 {
			return konst(0)
		}
		return value{f: NewAnd(l.formula(), r.formula())}.fold()
	case OpOr:
		if l.known && l.n != 0 {
			return konst(1)
		}
		r := t.eval(x.Right)
		if r.known && r.n != 0 {
			return konst(1)
		}
		return value{f: NewOr(l.formula(), r.formula())}.fold()
	}

	r := t.eval(x.Right)
	if l.known && r.known {
		if v, ok := arith(x.Op, l.n, r.n); ok {
			return konst(v)
		}
		return t.atom(x)
	}

	switch x.Op {
	case OpEq, OpNeq:
		// comparison against zero is a truth test
		var other value
		switch {
		case l.known && l.n == 0:
			other = r
		case r.known && r.n == 0:
			other = l
		default:
			return t.atom(x)
		}
		if x.Op == OpEq {
			return value{f: NewNot(other.f)}
		}
		return other
	case OpBitOr:
		return value{f: NewOr(l.formula(), r.formula())}.fold()
	}
	return t.atom(x)
}

// fold turns constant formulas back into known values.
func (v value) fold() value {
	if c, ok := v.f.(Const); ok {
		return truth(bool(c))
	}
	return v
}

func arith(op BinaryOp, a, b int64) (int64, bool) {
	switch op {
	case OpMul:
		return a * b, true
	case OpDiv:
		if b == 0 {
			return 0, false
		}
		return a / b, true
	case OpMod:
		if b == 0 {
			return 0, false
		}
		return a % b, true
	case OpAdd:
		return a + b, true
	case OpSub:
		return a - b, true
	case OpShl:
		if b < 0 || b > 63 {
			return 0, false
		}
		return a << uint(b), true
	case OpShr:
		if b < 0 || b > 63 {
			return 0, false
		}
		return a >> uint(b), true
	case OpLt:
		return b2i(a < b), true
	case OpLte:
		return b2i(a <= b), true
	case OpGt:
		return b2i(a > b), true
	case OpGte:
		return b2i(a >= b), true
	case OpEq:
		return b2i(a == b), true
	case OpNeq:
		return b2i(a != b), true
	case OpBitAnd:
		return a & b, true
	case OpXor:
		return a ^ b, true
	case OpBitOr:
		return a | b, true
	}
	return 0, false
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
