package model

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/undertaker/internal/logic"
)

func TestEmptyModel(t *testing.T) {
	t.Parallel()
	m := Empty("x86")

	assert.Equal(t, "x86", m.Name())
	assert.Equal(t, "none", m.VersionIdentifier())
	assert.False(t, m.ContainsSymbol("CONFIG_A"))
	assert.False(t, m.IsBoolean("CONFIG_A"))
	assert.Equal(t, Missing, m.Type("CONFIG_A"))
	assert.Empty(t, m.Symbols())

	a := logic.Var{Name: "A"}
	ans, err := m.Satisfiable(context.Background(), logic.NewAnd(a, logic.NewNot(a)))
	require.NoError(t, err)
	assert.Equal(t, Unsat, ans.Verdict)

	ans, err = m.Satisfiable(context.Background(), logic.NewIff(a, logic.Var{Name: "B"}))
	require.NoError(t, err)
	require.Equal(t, Sat, ans.Verdict)
	assert.Equal(t, ans.Assignment["A"], ans.Assignment["B"])
}

func TestOracleExpiredContextIsUnknown(t *testing.T) {
	t.Parallel()
	m := Empty("x86")

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	ans, err := m.Satisfiable(ctx, logic.Var{Name: "A"})
	require.NoError(t, err)
	assert.Equal(t, Unknown, ans.Verdict)
	assert.Nil(t, ans.Assignment)

	// the oracle is still usable afterwards
	ans, err = m.Satisfiable(context.Background(), logic.Var{Name: "A"})
	require.NoError(t, err)
	assert.Equal(t, Sat, ans.Verdict)
}

func TestOracleWithTimeout(t *testing.T) {
	t.Parallel()
	m := Empty("x86", WithTimeout(time.Minute))
	assert.Equal(t, time.Minute, m.Timeout())
	assert.Zero(t, Empty("x86").Timeout())

	a, b := logic.Var{Name: "A"}, logic.Var{Name: "B"}
	ans, err := m.Satisfiable(context.Background(), logic.NewAnd(logic.NewOr(a, b), logic.NewNot(a)))
	require.NoError(t, err)
	require.Equal(t, Sat, ans.Verdict)
	assert.False(t, ans.Assignment["A"])
	assert.True(t, ans.Assignment["B"])
}

func TestOracleConcurrentQueries(t *testing.T) {
	t.Parallel()
	vars := logic.NewVarMap()
	vars.Set("X", 1)
	vars.Set("Y", 2)
	o := NewOracle(vars, []logic.Clause{{-1, 2}})

	x, y := logic.Var{Name: "X"}, logic.Var{Name: "Y"}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f := logic.Formula(logic.NewAnd(x, logic.NewNot(y)))
			want := Unsat
			if i%2 == 0 {
				f = logic.NewAnd(x, y)
				want = Sat
			}
			ans, err := o.Satisfiable(context.Background(), f)
			assert.NoError(t, err)
			assert.Equal(t, want, ans.Verdict)
		}(i)
	}
	wg.Wait()
}
