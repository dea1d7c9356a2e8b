package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"defined(A)", "defined(A)"},
		{"defined A", "defined(A)"},
		{"!defined(A) && B || C", "(((!defined(A)) && B) || C)"},
		{"A || B && C", "(A || (B && C))"},
		{"A | B ^ C & D", "(A | (B ^ (C & D)))"},
		{"1 + 2 * 3 == 7", "((1 + (2 * 3)) == 7)"},
		{"A << 2 < B", "((A << 2) < B)"},
		{"A - B - C", "((A - B) - C)"},
		{"A ? B : C ? D : E", "(A ? B : (C ? D : E))"},
		{"-~+A", "(-(~(+A)))"},
		{"0x10 + 010 + 1UL + 'a'", "(((16 + 8) + 1) + 97)"},
		{"'\\0' == 0", "(0 == 0)"},
		{"F(A, B + 1) && G()", "(F(A, (B + 1)) && G())"},
		{"((A))", "A"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			n, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	for _, in := range []string{
		"",
		"A &&",
		"(A",
		"A)",
		"defined",
		"defined(1)",
		"defined(A",
		"A ? B",
		"1.5",
		"A @ B",
		"'ab'",
		"'",
		"F(A,",
	} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrSyntax, "%q", in)
	}
}
