package nolint

import (
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/undertaker/internal/directive"
)

func scan(t *testing.T, src string) *directive.Unit {
	t.Helper()
	unit, err := directive.Scan("test.c", strings.NewReader(src), directive.DefaultOptions())
	require.NoError(t, err)
	return unit
}

func TestParseNolintRules(t *testing.T) {
	t.Parallel()
	result := parseIgnoreRuleNames("rule1, rule2,rule3,")
	assert.Len(t, result, 3)
	for _, rule := range []string{"rule1", "rule2", "rule3"} {
		assert.Contains(t, result, rule)
	}
}

func TestCommentBody(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"// nolint", "nolint", true},
		{"//nolint:code-dead", "nolint:code-dead", true},
		{"/* nolint:missing */", "nolint:missing", true},
		{"/*nolint*/", "nolint", true},
		{"nolint", "", false},
	}
	for _, tt := range tests {
		got, ok := commentBody(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestIsNolint(t *testing.T) {
	t.Parallel()
	src := `int a;
#ifdef A /* nolint:code-dead */
int b;
#ifdef B
#endif
#else
int c;
#endif
// nolint
#if 0
#elif X
#endif
#if Y // nolint:rule1,rule2
#endif
// nolint:other
int d;
#if Z
#endif
`
	manager := ParseComments(scan(t, src))

	tests := []struct {
		name     string
		rule     string
		line     int
		expected bool
	}{
		{"inline covers own alternative", "code-dead", 2, true},
		{"inline covers nested blocks", "code-dead", 4, true},
		{"inline stops at else", "code-dead", 7, false},
		{"inline is rule specific", "missing", 2, false},
		{"standalone above directive", "anyrule", 10, true},
		{"standalone stops at elif", "anyrule", 11, false},
		{"inline rule list", "rule2", 13, true},
		{"inline rule list other rule", "rule3", 13, false},
		{"standalone not above directive", "other", 15, true},
		{"line scope only", "other", 16, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := token.Position{Filename: "test.c", Line: tt.line, Column: 1}
			assert.Equal(t, tt.expected, manager.IsNolint(pos, tt.rule))
		})
	}
}

func TestFileLevelNolint(t *testing.T) {
	t.Parallel()
	src := `/*
 * nolint:kconfig-dead
 */
int x;
#if A
#endif
#if B
#endif
`
	manager := ParseComments(scan(t, src))

	// a multi-line body does not start with the marker
	assert.False(t, manager.IsNolint(token.Position{Filename: "test.c", Line: 7}, "kconfig-dead"))

	src = "/* nolint:kconfig-dead */\nint x;\n#if A\n#endif\n#if B\n#endif\n"
	manager = ParseComments(scan(t, src))
	assert.True(t, manager.IsNolint(token.Position{Filename: "test.c", Line: 5}, "kconfig-dead"))
	assert.False(t, manager.IsNolint(token.Position{Filename: "test.c", Line: 5}, "code-dead"))
	assert.False(t, manager.IsNolint(token.Position{Filename: "other.c", Line: 5}, "kconfig-dead"))
}

func TestInvalidNolintIgnored(t *testing.T) {
	t.Parallel()
	src := "#if A\n#endif\n// nolintx\n#if B\n#endif\n// nolint:\n#if C\n#endif\n"
	manager := ParseComments(scan(t, src))
	assert.False(t, manager.IsNolint(token.Position{Filename: "test.c", Line: 4}, "r"))
	assert.False(t, manager.IsNolint(token.Position{Filename: "test.c", Line: 7}, "r"))
}
