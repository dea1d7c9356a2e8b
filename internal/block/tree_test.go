package block

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/undertaker/internal/directive"
)

type mockExpander struct {
	mock.Mock
}

func (m *mockExpander) Expand(expr string, ordinal int) (string, error) {
	args := m.Called(expr, ordinal)
	return args.String(0), args.Error(1)
}

func TestExpandedExpressionIsMemoized(t *testing.T) {
	t.Parallel()
	unit, err := directive.Scan("m.c", strings.NewReader("#if FOO\n#endif\n"), directive.Options{})
	require.NoError(t, err)

	exp := new(mockExpander)
	exp.On("Expand", "FOO", 0).Return("BAR", nil).Once()

	tree, err := Build(unit, WithExpander(exp))
	require.NoError(t, err)

	blk := tree.Block(1)
	first, err := tree.ExpandedExpression(blk)
	require.NoError(t, err)
	second, err := tree.ExpandedExpression(blk)
	require.NoError(t, err)

	assert.Equal(t, "BAR", first)
	assert.Equal(t, first, second)
	exp.AssertExpectations(t)
	exp.AssertNumberOfCalls(t, "Expand", 1)
}

func TestExpandedExpressionKinds(t *testing.T) {
	t.Parallel()
	src := `#define ALIAS CONFIG_REAL
#define FLAG 1
#ifdef ALIAS
#elif ALIAS && FLAG
#else
#endif
#ifndef FLAG
#endif
`
	tree := build(t, src)

	tests := []struct {
		id   ID
		want string
	}{
		{id: RootID, want: ""},
		{id: 1, want: "ALIAS"},
		{id: 2, want: "CONFIG_REAL && 1"},
		{id: 3, want: ""},
		{id: 4, want: "FLAG"},
	}
	for _, tt := range tests {
		got, err := tree.ExpandedExpression(tree.Block(tt.id))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "block %d", tt.id)
	}
}

func TestExpandedExpressionUsesDefinitionsInScope(t *testing.T) {
	t.Parallel()
	src := `#if LEVEL > 1
#endif
#define LEVEL 3
#if LEVEL > 1
#endif
#ifdef X
#define LEVEL 4
#endif
#if LEVEL > 1
#endif
#undef LEVEL
#define FN(x) ((x) + 1)
#if FN(LEVEL) > 2
#endif
`
	tree := build(t, src)

	want := []string{"LEVEL > 1", "3 > 1", "X", "LEVEL > 1", "((LEVEL) + 1) > 2"}
	for i, b := range tree.Blocks() {
		got, err := tree.ExpandedExpression(b)
		require.NoError(t, err)
		assert.Equal(t, want[i], got, tree.Name(b))
	}
}

func TestExpandedExpressionNormalizesHelpers(t *testing.T) {
	t.Parallel()
	src := `#define HAVE_X IS_MODULE(CONFIG_X)
#if IS_ENABLED(CONFIG_X) && !IS_BUILTIN(CONFIG_Y)
#elif HAVE_X
#endif
`
	tree := build(t, src)

	got, err := tree.ExpandedExpression(tree.Block(1))
	require.NoError(t, err)
	assert.Equal(t, "(defined(CONFIG_X) || defined(CONFIG_X_MODULE)) && !defined(CONFIG_Y)", got)

	got, err = tree.ExpandedExpression(tree.Block(2))
	require.NoError(t, err)
	assert.Equal(t, "defined(CONFIG_X_MODULE)", got)
}

func TestNormalizeHelpers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"IS_ENABLED(CONFIG_X)", "(defined(CONFIG_X) || defined(CONFIG_X_MODULE))"},
		{"IS_BUILTIN(CONFIG_X)", "defined(CONFIG_X)"},
		{"IS_MODULE( CONFIG_X )", "defined(CONFIG_X_MODULE)"},
		{"MY_IS_ENABLED(CONFIG_X)", "MY_IS_ENABLED(CONFIG_X)"},
		{"defined(A) || IS_MODULE(B)", "defined(A) || defined(B_MODULE)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeHelpers(tt.in), tt.in)
	}
}

func TestBlockNames(t *testing.T) {
	t.Parallel()
	unit, err := directive.Scan("arch/x86/foo.c", strings.NewReader("#if A\n#endif\n"), directive.Options{})
	require.NoError(t, err)
	tree, err := Build(unit)
	require.NoError(t, err)

	assert.Equal(t, "B00", tree.Name(tree.Root()))
	assert.Equal(t, "B1", tree.Name(tree.Block(1)))
	assert.Equal(t, "B00", tree.QualifiedName(tree.Root()))
	assert.Equal(t, "B1_arch_x86_foo_c", tree.QualifiedName(tree.Block(1)))
	assert.Equal(t, "FILE_arch_x86_foo_c", FileVar("arch/x86/foo.c"))
	assert.Nil(t, tree.Block(NoBlock))
	assert.Nil(t, tree.Block(5))
}

func TestWalkSkipsChildren(t *testing.T) {
	t.Parallel()
	tree := build(t, "#if A\n#if B\n#endif\n#endif\n#if C\n#endif\n")

	var seen []string
	tree.Walk(func(b *Block) bool {
		seen = append(seen, tree.Name(b))
		return b.ID != 1
	})
	assert.Equal(t, []string{"B00", "B1", "B3"}, seen)
}
