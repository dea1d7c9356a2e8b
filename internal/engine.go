package internal

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/gnolang/undertaker/internal/block"
	"github.com/gnolang/undertaker/internal/directive"
	"github.com/gnolang/undertaker/internal/logic"
	"github.com/gnolang/undertaker/internal/model"
	"github.com/gnolang/undertaker/internal/nolint"
	tt "github.com/gnolang/undertaker/internal/types"
)

const defaultCacheSize = 4096

// Engine classifies the conditional blocks of C sources.
type Engine struct {
	model  model.Model
	logger *zap.Logger

	scan        directive.Options
	prefix      string
	witness     bool
	configSpace *regexp.Regexp

	// queryTimeout bounds each code-only satisfiability query.
	queryTimeout time.Duration

	severities   map[string]tt.Severity
	ignoredRules map[string]bool

	// conditions caches parsed conditions by their expanded text. Values
	// are either a parse tree or the parse error.
	conditions *lru.Cache[string, parsedCondition]
}

type parsedCondition struct {
	node logic.Node
	err  error
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithWitness attaches symbol assignments to reported defects.
func WithWitness(on bool) Option {
	return func(e *Engine) { e.witness = on }
}

func WithScanOptions(o directive.Options) Option {
	return func(e *Engine) { e.scan = o }
}

// WithPrefix sets the prefix of configuration symbols, CONFIG_ by default.
func WithPrefix(prefix string) Option {
	return func(e *Engine) { e.prefix = prefix }
}

// WithQueryTimeout bounds each satisfiability query that does not involve
// the model. Zero means unbounded.
func WithQueryTimeout(d time.Duration) Option {
	return func(e *Engine) { e.queryTimeout = d }
}

// WithCacheSize bounds the number of parsed conditions kept in memory.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.conditions, _ = lru.New[string, parsedCondition](n)
		}
	}
}

// NewEngine creates an engine checking against m. A nil model restricts
// the analysis to code-dead and code-undead blocks.
func NewEngine(m model.Model, rules map[string]tt.ConfigRule, opts ...Option) (*Engine, error) {
	conditions, err := lru.New[string, parsedCondition](defaultCacheSize)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		model:      m,
		logger:     zap.NewNop(),
		scan:       directive.DefaultOptions(),
		prefix:     model.DefaultPrefix,
		conditions: conditions,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.compileConfigSpace(); err != nil {
		return nil, err
	}
	e.applyRules(rules)
	return e, nil
}

func (e *Engine) compileConfigSpace() error {
	expr := "^" + regexp.QuoteMeta(e.prefix) + "[A-Za-z0-9_]+$"
	if e.model != nil {
		if v, ok := e.model.MetaValue(model.MetaConfigRegexp); ok && len(v) > 0 {
			expr = v[0]
		}
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("configuration space %q: %w", expr, err)
	}
	e.configSpace = re
	return nil
}

func (e *Engine) applyRules(rules map[string]tt.ConfigRule) {
	e.severities = make(map[string]tt.Severity, len(tt.Rules))
	for _, name := range tt.Rules {
		e.severities[name] = tt.DefaultSeverity(name)
	}
	for name, rule := range rules {
		if _, known := e.severities[name]; !known {
			// Unknown rule, continue to the next one
			e.logger.Warn("unknown rule in configuration", zap.String("rule", name))
			continue
		}
		e.severities[name] = rule.Severity
	}
}

// Model returns the configuration model, nil when running without one.
func (e *Engine) Model() model.Model {
	return e.model
}

// QueryTimeout returns the bound on code-only satisfiability queries.
func (e *Engine) QueryTimeout() time.Duration {
	return e.queryTimeout
}

func (e *Engine) IgnoreRule(rule string) {
	if e.ignoredRules == nil {
		e.ignoredRules = make(map[string]bool)
	}
	e.ignoredRules[rule] = true
}

func (e *Engine) enabled(rule string) bool {
	return !e.ignoredRules[rule] && e.severities[rule] != tt.SeverityOff
}

// Parse scans filename and builds its block tree.
func (e *Engine) Parse(filename string) (*directive.Unit, *block.Tree, error) {
	unit, err := directive.ScanFile(filename, e.scan)
	if err != nil {
		return nil, nil, err
	}
	tree, err := block.Build(unit)
	if err != nil {
		return unit, nil, err
	}
	return unit, tree, nil
}

// Run classifies every block of filename and returns the defects.
func (e *Engine) Run(ctx context.Context, filename string) ([]tt.Defect, error) {
	unit, err := directive.ScanFile(filename, e.scan)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, unit)
}

// RunSource is Run on in-memory source named filename.
func (e *Engine) RunSource(ctx context.Context, filename string, source []byte) ([]tt.Defect, error) {
	unit, err := directive.Scan(filename, bytes.NewReader(source), e.scan)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, unit)
}

func (e *Engine) run(ctx context.Context, unit *directive.Unit) ([]tt.Defect, error) {
	res, err := e.Analyze(ctx, unit)
	if err != nil {
		return nil, err
	}
	return e.defects(unit, res), nil
}

// Analyze builds the tree of unit and classifies each of its blocks.
func (e *Engine) Analyze(ctx context.Context, unit *directive.Unit) (*Result, error) {
	tree, err := block.Build(unit)
	if err != nil {
		return nil, err
	}
	return newClassifier(e, tree).run(ctx)
}

// defects turns classified blocks into filtered defects.
func (e *Engine) defects(unit *directive.Unit, res *Result) []tt.Defect {
	nolintMgr := nolint.ParseComments(unit)

	var out []tt.Defect
	for _, br := range res.Blocks {
		rule := br.Status.Rule()
		if rule == "" || !e.enabled(rule) {
			continue
		}
		start := br.Block.Start
		start.Filename = unit.Filename
		if nolintMgr.IsNolint(start, rule) {
			continue
		}
		end := br.Block.End
		end.Filename = unit.Filename

		d := tt.Defect{
			Rule:       rule,
			Severity:   e.severities[rule],
			Filename:   unit.Filename,
			Block:      br.Name,
			Directive:  directiveText(br.Block.Kind),
			Expression: br.Block.Source,
			Model:      res.Model,
			Message:    e.message(br, res.Model),
			Start:      start,
			End:        end,
		}
		if e.witness {
			d.Witness = br.Witness
		}
		out = append(out, d)
	}
	return out
}

func (e *Engine) message(br BlockResult, arch string) string {
	switch br.Status {
	case tt.StatusCodeDead:
		return fmt.Sprintf("block %s can never be selected: its condition contradicts the surrounding code", br.Name)
	case tt.StatusKconfigDead:
		return fmt.Sprintf("block %s can never be selected in the %s configuration", br.Name, arch)
	case tt.StatusMissing:
		return fmt.Sprintf("block %s is dead because %s %s not in the %s configuration",
			br.Name, joinSymbols(br.Missing), plural(len(br.Missing), "is", "are"), arch)
	case tt.StatusCodeUndead:
		return fmt.Sprintf("block %s is always selected together with its parent", br.Name)
	case tt.StatusKconfigUndead:
		return fmt.Sprintf("block %s is always selected together with its parent in the %s configuration", br.Name, arch)
	}
	return ""
}

func directiveText(k block.Kind) string {
	switch k {
	case block.If:
		return directive.If.String()
	case block.Ifdef:
		return directive.Ifdef.String()
	case block.Ifndef:
		return directive.Ifndef.String()
	case block.Elif:
		return directive.Elif.String()
	case block.Else:
		return directive.Else.String()
	}
	return ""
}

// parse returns the cached parse of expr.
func (e *Engine) parse(expr string) (logic.Node, error) {
	if v, ok := e.conditions.Get(expr); ok {
		return v.node, v.err
	}
	n, err := logic.Parse(expr)
	e.conditions.Add(expr, parsedCondition{node: n, err: err})
	return n, err
}
