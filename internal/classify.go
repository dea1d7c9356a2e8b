package internal

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/gnolang/undertaker/internal/block"
	"github.com/gnolang/undertaker/internal/logic"
	"github.com/gnolang/undertaker/internal/model"
	tt "github.com/gnolang/undertaker/internal/types"
)

// Result is the classification of one file.
type Result struct {
	Tree *block.Tree
	// Model is the architecture checked against, "" without a model.
	Model string
	// Blocks follows the arena order of the tree, root excluded.
	Blocks []BlockResult
}

// BlockResult is the verdict on a single block.
type BlockResult struct {
	Block  *block.Block
	Name   string
	Status tt.Status
	// Missing lists the configuration symbols absent from the model that
	// make the block dead.
	Missing []string
	Witness map[string]bool
}

// Count returns how many blocks have status s.
func (r *Result) Count(s tt.Status) int {
	n := 0
	for _, br := range r.Blocks {
		if br.Status == s {
			n++
		}
	}
	return n
}

type classifier struct {
	e     *Engine
	tree  *block.Tree
	empty model.Satisfier
	tr    *logic.Translator

	// ordinal is the position conditions are currently resolved at.
	ordinal    int
	referenced map[string]struct{}

	code   logic.Formula
	forced logic.Formula
	// missing holds configuration symbols unknown to the model; they are
	// forced off unless the model says its space is incomplete.
	missing []string
	status  []tt.Status
}

func newClassifier(e *Engine, tree *block.Tree) *classifier {
	c := &classifier{
		e:          e,
		tree:       tree,
		empty:      model.Empty(tree.Filename, model.WithLogger(e.logger), model.WithTimeout(e.queryTimeout)),
		referenced: make(map[string]struct{}),
		status:     make([]tt.Status, tree.Len()),
	}
	c.tr = logic.NewTranslator(logic.ResolverFunc(c.symbol))
	return c
}

func versioned(symbol string, version int) string {
	if version == 0 {
		return symbol
	}
	return symbol + "." + strconv.Itoa(version)
}

// symbol resolves "symbol is defined" at the current ordinal. Symbols the
// file never defines and uses before their first definition keep their
// plain name and are left to the configuration.
func (c *classifier) symbol(name string) logic.Formula {
	v := 0
	if _, ok := c.tree.Defines().Lookup(name); ok {
		v = c.tree.Defines().VersionAt(name, c.ordinal)
	}
	if v == 0 {
		c.referenced[name] = struct{}{}
	}
	return logic.Var{Name: versioned(name, v)}
}

func (c *classifier) blockVar(b *block.Block) logic.Formula {
	return logic.Var{Name: c.tree.Name(b)}
}

func (c *classifier) condition(b *block.Block) logic.Formula {
	c.ordinal = b.Ordinal
	switch b.Kind {
	case block.Else:
		return logic.Const(true)
	case block.Ifdef:
		return c.symbol(b.Source)
	case block.Ifndef:
		return logic.NewNot(c.symbol(b.Source))
	}

	expr, err := c.tree.ExpandedExpression(b)
	var node logic.Node
	if err == nil {
		node, err = c.e.parse(expr)
	}
	if err != nil {
		c.e.logger.Debug("condition left unconstrained",
			zap.String("file", c.tree.Filename),
			zap.String("block", c.tree.Name(b)),
			zap.Error(err),
		)
		return logic.Var{Name: logic.OpaquePrefix + c.tree.Name(b)}
	}
	return c.tr.Translate(node)
}

// constraints builds the code formula: the root is selected, every block
// is selected iff its parent is, its condition holds and no earlier
// alternative was taken, and every define event produces a new version of
// its symbol.
func (c *classifier) constraints() logic.Formula {
	parts := []logic.Formula{c.blockVar(c.tree.Root())}

	for _, b := range c.tree.Blocks() {
		sel := []logic.Formula{c.blockVar(c.tree.Parent(b)), c.condition(b)}
		chain := c.tree.Chain(b)
		for _, alt := range chain[:len(chain)-1] {
			sel = append(sel, logic.NewNot(c.blockVar(alt)))
		}
		parts = append(parts, logic.NewIff(c.blockVar(b), logic.NewAnd(sel...)))
	}

	defines := c.tree.Defines()
	for _, symbol := range defines.Symbols() {
		d, _ := defines.Lookup(symbol)
		prev := logic.Formula(logic.Var{Name: symbol})
		for k, ev := range d.History {
			cur := logic.Var{Name: versioned(symbol, k+1)}
			in := c.blockVar(c.tree.Block(block.ID(ev.Block)))
			if ev.IsDefine {
				parts = append(parts, logic.NewIff(cur, logic.NewOr(in, prev)))
			} else {
				parts = append(parts, logic.NewIff(cur, logic.NewAnd(logic.NewNot(in), prev)))
			}
			prev = cur
		}
	}
	return logic.NewAnd(parts...)
}

// modelConstraints collects the values the model metadata forces and the
// referenced configuration symbols the model does not know. A referenced
// symbol the model spells differently is tied to the model's variable.
func (c *classifier) modelConstraints() {
	m := c.e.model
	vars, _ := m.(model.Variables)
	variable := func(name string) logic.Var {
		if vars != nil {
			if v, ok := vars.Variable(name); ok {
				return logic.Var{Name: v}
			}
		}
		return logic.Var{Name: name}
	}

	var forced []logic.Formula
	if on, ok := m.MetaValue(model.MetaAlwaysOn); ok {
		for _, s := range on {
			forced = append(forced, variable(s))
		}
	}
	if off, ok := m.MetaValue(model.MetaAlwaysOff); ok {
		for _, s := range off {
			forced = append(forced, logic.NewNot(variable(s)))
		}
	}

	referenced := make([]string, 0, len(c.referenced))
	for name := range c.referenced {
		referenced = append(referenced, name)
	}
	sort.Strings(referenced)
	for _, name := range referenced {
		if v := variable(name); v.Name != name {
			forced = append(forced, logic.NewIff(logic.Var{Name: name}, v))
		}
	}

	if _, incomplete := m.MetaValue(model.MetaIncomplete); !incomplete {
		for _, name := range referenced {
			if c.e.configSpace.MatchString(name) && !m.ContainsSymbol(name) {
				c.missing = append(c.missing, name)
			}
		}
	}
	c.forced = logic.NewAnd(forced...)
}

func (c *classifier) missingOff() logic.Formula {
	off := make([]logic.Formula, len(c.missing))
	for i, s := range c.missing {
		off[i] = logic.NewNot(logic.Var{Name: s})
	}
	return logic.NewAnd(off...)
}

// witness keeps the configuration symbols of an assignment.
func (c *classifier) witness(assignment map[string]bool) map[string]bool {
	if !c.e.witness || assignment == nil {
		return nil
	}
	out := make(map[string]bool)
	for name, v := range assignment {
		if _, ok := c.referenced[name]; ok {
			out[name] = v
		}
	}
	return out
}

func (c *classifier) run(ctx context.Context) (*Result, error) {
	c.code = c.constraints()

	res := &Result{Tree: c.tree}
	withModel := c.code
	if c.e.model != nil {
		res.Model = c.e.model.Name()
		c.modelConstraints()
		withModel = logic.NewAnd(c.code, c.forced, c.missingOff())
	}

	for _, b := range c.tree.Blocks() {
		br, err := c.classify(ctx, b, withModel)
		if err != nil {
			return nil, err
		}
		c.status[b.ID] = br.Status
		if br.Status == tt.StatusUnknown {
			c.e.logger.Debug("block undecided",
				zap.String("file", c.tree.Filename),
				zap.String("block", br.Name),
			)
		}
		res.Blocks = append(res.Blocks, br)
	}
	return res, nil
}

func (c *classifier) classify(ctx context.Context, b *block.Block, withModel logic.Formula) (BlockResult, error) {
	br := BlockResult{Block: b, Name: c.tree.Name(b)}
	on := c.blockVar(b)
	parent := c.tree.Parent(b)
	parentStatus := c.status[parent.ID]

	// dead
	ans, err := c.empty.Satisfiable(ctx, logic.NewAnd(c.code, on))
	if err != nil {
		return br, err
	}
	switch ans.Verdict {
	case model.Unsat:
		br.Status = tt.StatusCodeDead
		return br, nil
	case model.Unknown:
		br.Status = tt.StatusUnknown
		return br, nil
	}
	codeWitness := ans.Assignment

	m := c.e.model
	if m != nil {
		ans, err = m.Satisfiable(ctx, logic.NewAnd(withModel, on))
		if err != nil {
			return br, err
		}
		switch ans.Verdict {
		case model.Unknown:
			br.Status = tt.StatusUnknown
			return br, nil
		case model.Unsat:
			br.Status = tt.StatusKconfigDead
			br.Witness = c.witness(codeWitness)
			if len(c.missing) > 0 {
				relaxed, err := m.Satisfiable(ctx, logic.NewAnd(c.code, c.forced, on))
				if err != nil {
					return br, err
				}
				switch relaxed.Verdict {
				case model.Sat:
					br.Status = tt.StatusMissing
					br.Missing = c.missingIn(relaxed.Assignment)
				case model.Unknown:
					br.Status = tt.StatusUnknown
				}
			}
			return br, nil
		}
	}

	// undead, only meaningful while the parent can be selected
	if parentStatus.IsDead() || parentStatus == tt.StatusUnknown {
		return br, nil
	}
	off := logic.NewAnd(c.blockVar(parent), logic.NewNot(on))
	ans, err = c.empty.Satisfiable(ctx, logic.NewAnd(c.code, off))
	if err != nil {
		return br, err
	}
	switch ans.Verdict {
	case model.Unsat:
		br.Status = tt.StatusCodeUndead
		return br, nil
	case model.Unknown:
		return br, nil
	}
	codeWitness = ans.Assignment

	if m != nil {
		ans, err = m.Satisfiable(ctx, logic.NewAnd(withModel, off))
		if err != nil {
			return br, err
		}
		if ans.Verdict == model.Unsat {
			br.Status = tt.StatusKconfigUndead
			br.Witness = c.witness(codeWitness)
		}
	}
	return br, nil
}

// missingIn returns the missing symbols an assignment needs switched on,
// or all of them when none is set.
func (c *classifier) missingIn(assignment map[string]bool) []string {
	var on []string
	for _, s := range c.missing {
		if assignment[s] {
			on = append(on, s)
		}
	}
	if len(on) == 0 {
		return c.missing
	}
	return on
}

func joinSymbols(symbols []string) string {
	return strings.Join(symbols, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
