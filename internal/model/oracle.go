package model

import (
	"context"
	"sync"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"
	"go.uber.org/zap"

	"github.com/gnolang/undertaker/internal/logic"
)

// Oracle decides formulas against a fixed clause set using gini.
//
// The clause set is added once. Each query is encoded over fresh variables
// and its clauses are guarded by an activation literal that is assumed for
// the query and falsified afterwards, so queries never leak into each other.
type Oracle struct {
	mu      sync.Mutex
	g       *gini.Gini
	vars    *logic.VarMap
	timeout time.Duration
	logger  *zap.Logger
}

// NewOracle loads clauses, whose variables are named by vars, into a new
// solver.
func NewOracle(vars *logic.VarMap, clauses []logic.Clause, opts ...Option) *Oracle {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	g := gini.New()
	for _, c := range clauses {
		for _, lit := range c {
			g.Add(z.Dimacs2Lit(lit))
		}
		g.Add(z.LitNull)
	}

	return &Oracle{
		g:       g,
		vars:    vars,
		timeout: o.timeout,
		logger:  o.logger,
	}
}

// Timeout returns the per-query time limit, zero when unbounded.
func (o *Oracle) Timeout() time.Duration { return o.timeout }

// Satisfiable reports whether f is satisfiable together with the loaded
// clauses. A query that runs out of time yields Unknown.
func (o *Oracle) Satisfiable(ctx context.Context, f logic.Formula) (Answer, error) {
	if ctx.Err() != nil {
		return Answer{Verdict: Unknown}, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	vm := o.vars.Child()
	enc := logic.NewEncoder(vm)
	enc.Assert(f)
	act := vm.Fresh()

	for _, c := range enc.Clauses() {
		o.g.Add(z.Dimacs2Lit(-act))
		for _, lit := range c {
			o.g.Add(z.Dimacs2Lit(lit))
		}
		o.g.Add(z.LitNull)
	}
	o.g.Assume(z.Dimacs2Lit(act))

	var ans Answer
	switch o.solve(ctx) {
	case 1:
		ans.Verdict = Sat
		ans.Assignment = make(map[string]bool)
		for _, name := range logic.Vars(f) {
			if id, ok := vm.Lookup(name); ok {
				ans.Assignment[name] = o.g.Value(z.Dimacs2Lit(id))
			}
		}
	case -1:
		ans.Verdict = Unsat
	default:
		o.logger.Debug("satisfiability query gave up", zap.Int("clauses", len(enc.Clauses())))
	}

	// retire the query
	o.g.Add(z.Dimacs2Lit(-act))
	o.g.Add(z.LitNull)
	o.vars.Reserve(vm.Max())

	return ans, nil
}

func (o *Oracle) solve(ctx context.Context) int {
	budget := o.timeout
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return 0
		}
		if budget == 0 || left < budget {
			budget = left
		}
	}
	if budget == 0 {
		return o.g.Solve()
	}
	return o.g.GoSolve().Try(budget)
}
