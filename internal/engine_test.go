package internal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/undertaker/internal/block"
	"github.com/gnolang/undertaker/internal/directive"
	"github.com/gnolang/undertaker/internal/model"
	tt "github.com/gnolang/undertaker/internal/types"
)

const codeSource = `#if 0
#else
#endif
#ifdef A
#ifdef A
#endif
#ifndef A
#endif
#endif
#if defined(X) && !defined(X)
#endif
#define Y
#ifndef Y
#endif
`

const modelSource = `c var CONFIG_A 1
c var CONFIG_B 2
c var CONFIG_C 3
c var CONFIG_C_MODULE 4
p cnf 4 1
-1 2 0
`

const kconfigSource = `#ifdef CONFIG_A
#ifndef CONFIG_B
#endif
#ifdef CONFIG_B
#endif
#endif
#ifdef CONFIG_NOPE
#endif
#if defined(CONFIG_C) && defined(CONFIG_C_MODULE)
#endif
#if IS_ENABLED(CONFIG_C)
#endif
`

func loadModel(t *testing.T, content string, meta string) *model.CnfModel {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "x86.cnf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	if meta != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "x86.meta"), []byte(meta), 0o644))
	}
	m, err := model.LoadCnf(path)
	require.NoError(t, err)
	return m
}

func scanSource(t *testing.T, src string) *directive.Unit {
	t.Helper()
	unit, err := directive.Scan("test.c", strings.NewReader(src), directive.DefaultOptions())
	require.NoError(t, err)
	return unit
}

func rulesByBlock(defects []tt.Defect) map[string]string {
	out := make(map[string]string)
	for _, d := range defects {
		out[d.Block] = d.Rule
	}
	return out
}

func TestEngineCodeDefects(t *testing.T) {
	t.Parallel()
	engine, err := NewEngine(nil, nil)
	require.NoError(t, err)

	defects, err := engine.RunSource(context.Background(), "test.c", []byte(codeSource))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"B1": tt.RuleCodeDead,
		"B2": tt.RuleCodeUndead,
		"B4": tt.RuleCodeUndead,
		"B5": tt.RuleCodeDead,
		"B6": tt.RuleCodeDead,
		"B7": tt.RuleCodeDead,
	}, rulesByBlock(defects))

	for _, d := range defects {
		assert.Equal(t, "test.c", d.Filename)
		assert.Equal(t, "test.c", d.Start.Filename)
		assert.Empty(t, d.Model)
		assert.Nil(t, d.Witness)
		assert.NotEmpty(t, d.Message)
	}

	first := defects[0]
	assert.Equal(t, "B1", first.Block)
	assert.Equal(t, "#if", first.Directive)
	assert.Equal(t, "0", first.Expression)
	assert.Equal(t, 1, first.Start.Line)
	assert.Equal(t, 2, first.End.Line)
	assert.Equal(t, tt.SeverityError, first.Severity)
	assert.Equal(t, tt.SeverityWarning, defects[1].Severity)
}

func TestEngineKconfigDefects(t *testing.T) {
	t.Parallel()
	engine, err := NewEngine(loadModel(t, modelSource, ""), nil, WithWitness(true))
	require.NoError(t, err)

	defects, err := engine.RunSource(context.Background(), "kconfig.c", []byte(kconfigSource))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"B2": tt.RuleKconfigDead,
		"B3": tt.RuleKconfigUndead,
		"B4": tt.RuleMissing,
		"B5": tt.RuleKconfigDead,
	}, rulesByBlock(defects))

	for _, d := range defects {
		assert.Equal(t, "x86", d.Model)
		switch d.Block {
		case "B2":
			require.NotNil(t, d.Witness)
			assert.True(t, d.Witness["CONFIG_A"])
			assert.False(t, d.Witness["CONFIG_B"])
			assert.NotContains(t, d.Witness, "B1")
		case "B4":
			assert.Contains(t, d.Message, "CONFIG_NOPE is not in the x86 configuration")
		}
	}
}

func TestEngineIncompleteModel(t *testing.T) {
	t.Parallel()
	m := loadModel(t, modelSource, "CONFIGURATION_SPACE_INCOMPLETE: 1\n")
	engine, err := NewEngine(m, nil)
	require.NoError(t, err)

	defects, err := engine.RunSource(context.Background(), "kconfig.c", []byte(kconfigSource))
	require.NoError(t, err)
	assert.NotContains(t, rulesByBlock(defects), "B4")
}

func TestEngineConfigurationSpaceRegexp(t *testing.T) {
	t.Parallel()
	// only CONFIG_A* symbols belong to the configuration
	m := loadModel(t, modelSource, "CONFIGURATION_SPACE_REGEX: ^CONFIG_A\n")
	engine, err := NewEngine(m, nil)
	require.NoError(t, err)

	defects, err := engine.RunSource(context.Background(), "kconfig.c", []byte(kconfigSource))
	require.NoError(t, err)
	assert.NotContains(t, rulesByBlock(defects), "B4")

	_, err = NewEngine(loadModel(t, modelSource, "CONFIGURATION_SPACE_REGEX: ([\n"), nil)
	assert.Error(t, err)
}

func TestEngineAlwaysOff(t *testing.T) {
	t.Parallel()
	m := loadModel(t, modelSource, "ALWAYS_OFF: CONFIG_C\n")
	engine, err := NewEngine(m, nil)
	require.NoError(t, err)

	src := "#ifdef CONFIG_C\n#endif\n#ifdef CONFIG_C_MODULE\n#endif\n"
	defects, err := engine.RunSource(context.Background(), "off.c", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"B1": tt.RuleKconfigDead}, rulesByBlock(defects))
}

func TestEngineModelWithoutPrefix(t *testing.T) {
	t.Parallel()
	src := "#ifdef CONFIG_FOO\n#endif\n#if !defined(CONFIG_FOO)\n#endif\n"
	tests := []struct {
		name   string
		clause string
		want   map[string]string
	}{
		{"forced off", "-1 0", map[string]string{"B1": tt.RuleKconfigDead, "B2": tt.RuleKconfigUndead}},
		{"forced on", "1 0", map[string]string{"B1": tt.RuleKconfigUndead, "B2": tt.RuleKconfigDead}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := loadModel(t, "c var FOO 1\np cnf 1 1\n"+tc.clause+"\n", "")
			require.True(t, m.ContainsSymbol("CONFIG_FOO"))
			engine, err := NewEngine(m, nil)
			require.NoError(t, err)

			defects, err := engine.RunSource(context.Background(), "foo.c", []byte(src))
			require.NoError(t, err)
			assert.Equal(t, tc.want, rulesByBlock(defects))
		})
	}
}

func TestEngineRuleConfiguration(t *testing.T) {
	t.Parallel()
	engine, err := NewEngine(nil, map[string]tt.ConfigRule{
		tt.RuleCodeUndead: {Severity: tt.SeverityOff},
		tt.RuleCodeDead:   {Severity: tt.SeverityInfo},
		"no-such-rule":    {Severity: tt.SeverityError},
	})
	require.NoError(t, err)

	defects, err := engine.RunSource(context.Background(), "test.c", []byte(codeSource))
	require.NoError(t, err)
	require.Len(t, defects, 4)
	for _, d := range defects {
		assert.Equal(t, tt.RuleCodeDead, d.Rule)
		assert.Equal(t, tt.SeverityInfo, d.Severity)
	}

	engine.IgnoreRule(tt.RuleCodeDead)
	defects, err = engine.RunSource(context.Background(), "test.c", []byte(codeSource))
	require.NoError(t, err)
	assert.Empty(t, defects)
}

func TestEngineNolint(t *testing.T) {
	t.Parallel()
	engine, err := NewEngine(nil, nil)
	require.NoError(t, err)

	src := `#if 0 /* nolint:code-dead */
#endif
// nolint
#if 0
#endif
#if 0 // nolint:code-undead
#endif
`
	defects, err := engine.RunSource(context.Background(), "test.c", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"B3": tt.RuleCodeDead}, rulesByBlock(defects))
}

func TestEngineExpiredContext(t *testing.T) {
	t.Parallel()
	engine, err := NewEngine(nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	unit := scanSource(t, codeSource)
	res, err := engine.Analyze(ctx, unit)
	require.NoError(t, err)
	assert.Equal(t, len(res.Blocks), res.Count(tt.StatusUnknown))
	assert.Empty(t, engine.defects(unit, res))
}

func TestEngineQueryTimeout(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		opts []Option
		want time.Duration
	}{
		{"unbounded by default", nil, 0},
		{"configured", []Option{WithQueryTimeout(3 * time.Second)}, 3 * time.Second},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			engine, err := NewEngine(nil, nil, tc.opts...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, engine.QueryTimeout())

			tree, err := block.Build(scanSource(t, codeSource))
			require.NoError(t, err)
			empty, ok := newClassifier(engine, tree).empty.(*model.EmptyModel)
			require.True(t, ok)
			assert.Equal(t, tc.want, empty.Timeout())

			res, err := engine.Analyze(context.Background(), scanSource(t, codeSource))
			require.NoError(t, err)
			assert.Equal(t, 4, res.Count(tt.StatusCodeDead))
		})
	}
}

func TestEngineAnalyzeStatuses(t *testing.T) {
	t.Parallel()
	engine, err := NewEngine(nil, nil)
	require.NoError(t, err)

	res, err := engine.Analyze(context.Background(), scanSource(t, codeSource))
	require.NoError(t, err)
	require.Len(t, res.Blocks, 7)
	assert.Equal(t, tt.StatusAlive, res.Blocks[2].Status)
	assert.Equal(t, "B3", res.Blocks[2].Name)
	assert.Equal(t, 4, res.Count(tt.StatusCodeDead))
	assert.Equal(t, 2, res.Count(tt.StatusCodeUndead))
}

func TestEngineUnparsableCondition(t *testing.T) {
	t.Parallel()
	engine, err := NewEngine(nil, nil)
	require.NoError(t, err)

	src := "#if A +\n#elif 1\n#endif\n#if A +\n#endif\n"
	defects, err := engine.RunSource(context.Background(), "test.c", []byte(src))
	require.NoError(t, err)
	// the broken condition is free, so the #elif can go either way
	assert.Empty(t, defects)

	// the two broken conditions share one cache entry
	assert.Equal(t, 2, engine.conditions.Len())
	_, err = engine.parse("A +")
	assert.Error(t, err)
}

func TestEngineNestingError(t *testing.T) {
	t.Parallel()
	engine, err := NewEngine(nil, nil)
	require.NoError(t, err)

	_, err = engine.RunSource(context.Background(), "test.c", []byte("#if A\n"))
	assert.ErrorIs(t, err, block.ErrUnterminatedBlock)
}

func TestEngineRunFile(t *testing.T) {
	t.Parallel()
	engine, err := NewEngine(nil, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "test.c")
	require.NoError(t, os.WriteFile(path, []byte(codeSource), 0o644))

	defects, err := engine.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, defects, 6)

	unit, tree, err := engine.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, path, unit.Filename)
	assert.Equal(t, 8, tree.Len())

	_, err = engine.Run(context.Background(), filepath.Join(t.TempDir(), "absent.c"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
