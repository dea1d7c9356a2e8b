package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var plain = ResolverFunc(func(name string) Formula {
	return Var{Name: name}
})

func translate(t *testing.T, tr *Translator, expr string) Formula {
	t.Helper()
	n, err := Parse(expr)
	require.NoError(t, err)
	return tr.Translate(n)
}

func TestTranslate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"defined(A)", "A"},
		{"A", "A"},
		{"!defined(A)", "!A"},
		{"!!A", "A"},
		{"defined(A) && (B || !C)", "(A && (B || !C))"},
		{"A && 0", "0"},
		{"0 && A", "0"},
		{"A || 1", "1"},
		{"A && 1", "A"},
		{"1 + 1 == 2", "1"},
		{"(1 << 3) > 7 && 10 / 3 == 3", "1"},
		{"A == 0", "!A"},
		{"0 != A", "A"},
		{"-A", "A"},
		{"A | B", "(A || B)"},
		{"1 ? A : B", "A"},
		{"0 ? A : B", "B"},
		{"A ? 1 : 0", "A"},
		{"A ? B : C", "((A && B) || (!A && C))"},
		{"A ? 2 : 3", "1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := translate(t, NewTranslator(plain), tt.in)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestTranslateOpaque(t *testing.T) {
	t.Parallel()
	tr := NewTranslator(plain)

	f := translate(t, tr, "NR_CPUS > 4 && defined(SMP)")
	assert.Equal(t, "(__OPAQUE_0 && SMP)", f.String())

	g := translate(t, tr, "!(NR_CPUS > 4) || FOO(1)")
	assert.Equal(t, "(!__OPAQUE_0 || __OPAQUE_1)", g.String(), "same text shares an atom")

	h := translate(t, tr, "1 / 0")
	assert.Equal(t, "__OPAQUE_2", h.String())

	assert.Equal(t, map[string]string{
		"__OPAQUE_0": "(NR_CPUS > 4)",
		"__OPAQUE_1": "FOO(1)",
		"__OPAQUE_2": "(1 / 0)",
	}, tr.Opaque())
}

func TestTranslateOpaqueFollowsDefinitions(t *testing.T) {
	t.Parallel()
	version := "NR"
	tr := NewTranslator(ResolverFunc(func(name string) Formula {
		if name == "NR" {
			return Var{Name: version}
		}
		return Var{Name: name}
	}))

	before := translate(t, tr, "NR > 4")
	again := translate(t, tr, "NR > 4")
	version = "NR.1"
	after := translate(t, tr, "NR > 4")

	assert.Equal(t, before, again)
	assert.NotEqual(t, before, after, "a redefinition gets a new atom")
	assert.Equal(t, map[string]string{
		"__OPAQUE_0": "(NR > 4)",
		"__OPAQUE_1": "(NR > 4)",
	}, tr.Opaque())
}

func TestTranslateResolver(t *testing.T) {
	t.Parallel()
	versioned := ResolverFunc(func(name string) Formula {
		if name == "LOCAL" {
			return Var{Name: "LOCAL.2"}
		}
		return Var{Name: name}
	})
	f := Translate(mustParse(t, "defined(LOCAL) && CONFIG_X"), versioned)
	assert.Equal(t, "(LOCAL.2 && CONFIG_X)", f.String())
	assert.Equal(t, []string{"CONFIG_X", "LOCAL.2"}, Vars(f))
}

func TestFormulaConstructors(t *testing.T) {
	t.Parallel()
	a, b := Var{Name: "a"}, Var{Name: "b"}

	assert.Equal(t, True, NewAnd())
	assert.Equal(t, False, NewOr())
	assert.Equal(t, Formula(a), NewAnd(True, a))
	assert.Equal(t, "(a && b && a)", NewAnd(a, NewAnd(b, a)).String())
	assert.Equal(t, False, NewAnd(a, False))
	assert.Equal(t, True, NewOr(a, True))
	assert.Equal(t, Formula(a), NewNot(NewNot(a)))
	assert.Equal(t, Formula(a), NewIff(True, a))
	assert.Equal(t, "!a", NewIff(a, False).String())
	assert.Equal(t, "(a <-> b)", NewIff(a, b).String())
	assert.Equal(t, "(!a || b)", Implies(a, b).String())

	assert.True(t, Eval(NewIff(a, b), map[string]bool{}))
	assert.False(t, Eval(NewIff(a, b), map[string]bool{"a": true}))
	assert.True(t, Eval(Implies(a, b), map[string]bool{"b": true}))
}

func mustParse(t *testing.T, expr string) Node {
	t.Helper()
	n, err := Parse(expr)
	require.NoError(t, err)
	return n
}
