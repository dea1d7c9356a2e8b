package model

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/gnolang/undertaker/internal/logic"
)

const moduleSuffix = "_MODULE"

// CnfModel is a configuration model backed by a formula in conjunctive
// normal form.
type CnfModel struct {
	arch   string
	path   string
	prefix string

	vars    *logic.VarMap
	numVars int
	clauses []logic.Clause
	types   map[string]SymbolType
	meta    map[string][]string

	oracle *Oracle
}

var (
	_ Model     = (*CnfModel)(nil)
	_ Variables = (*CnfModel)(nil)
)

// LoadCnf reads a DIMACS model annotated with `c var NAME N`, `c sym NAME
// TYPE` and `c meta_value KEY V...` comments. Files ending in .gz, .zst or
// .xz are decompressed. Metadata is also read from a sidecar file next to
// path with the extensions replaced by ".meta".
func LoadCnf(path string, opts ...Option) (*CnfModel, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	arch := stem(filepath.Base(path))
	if arch == "" || arch == "." || arch == string(filepath.Separator) {
		return nil, fmt.Errorf("%s: %w: no architecture in file name", path, ErrModelLoad)
	}

	f, err := openModel(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrModelLoad, err)
	}
	defer f.Close()

	m := &CnfModel{
		arch:   arch,
		path:   path,
		prefix: o.prefix,
		vars:   logic.NewVarMap(),
		types:  make(map[string]SymbolType),
		meta:   make(map[string][]string),
	}

	declared, err := m.read(f)
	if err != nil {
		return nil, err
	}

	sidecar := stem(path) + ".meta"
	if sidecar != path {
		if err := m.readSidecar(sidecar); err != nil {
			return nil, err
		}
	}

	m.classify(declared)
	m.vars.Reserve(m.numVars)
	m.oracle = NewOracle(m.vars, m.clauses, opts...)

	o.logger.Debug("configuration model loaded",
		zap.String("arch", m.arch),
		zap.Int("variables", m.numVars),
		zap.Int("clauses", len(m.clauses)),
		zap.Int("symbols", len(m.types)),
	)
	return m, nil
}

func (m *CnfModel) loadErr(line int, format string, args ...any) error {
	return fmt.Errorf("%s:%d: %w: %s", m.path, line, ErrModelLoad, fmt.Sprintf(format, args...))
}

// read parses the DIMACS body and returns the declared symbol types.
func (m *CnfModel) read(r io.Reader) (map[string]SymbolType, error) {
	declared := make(map[string]SymbolType)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		lineNo    int
		header    bool
		clause    logic.Clause
		clauseEnd int
	)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		switch {
		case fields[0] == "c":
			if err := m.comment(fields[1:], lineNo, declared); err != nil {
				return nil, err
			}
			continue

		case fields[0] == "p":
			if header {
				return nil, m.loadErr(lineNo, "duplicate problem line")
			}
			if len(fields) != 4 || fields[1] != "cnf" {
				return nil, m.loadErr(lineNo, "malformed problem line %q", line)
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil || n < 0 {
				return nil, m.loadErr(lineNo, "bad variable count %q", fields[2])
			}
			if _, err := strconv.Atoi(fields[3]); err != nil {
				return nil, m.loadErr(lineNo, "bad clause count %q", fields[3])
			}
			m.numVars = n
			header = true
			continue
		}

		if !header {
			return nil, m.loadErr(lineNo, "clause before problem line")
		}
		for _, tok := range fields {
			lit, err := strconv.Atoi(tok)
			if err != nil {
				return nil, m.loadErr(lineNo, "bad literal %q", tok)
			}
			if lit == 0 {
				m.clauses = append(m.clauses, clause)
				clause = nil
				continue
			}
			if abs(lit) > m.numVars {
				return nil, m.loadErr(lineNo, "literal %d out of range", lit)
			}
			clause = append(clause, lit)
			clauseEnd = lineNo
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", m.path, ErrModelLoad, err)
	}
	if !header {
		return nil, m.loadErr(lineNo, "missing problem line")
	}
	if len(clause) > 0 {
		return nil, m.loadErr(clauseEnd, "unterminated clause")
	}

	if top := m.vars.Max(); top > m.numVars {
		name, _ := m.vars.Name(top)
		return nil, fmt.Errorf("%s: %w: variable %s numbered %d beyond %d", m.path, ErrModelLoad, name, top, m.numVars)
	}
	return declared, nil
}

func (m *CnfModel) comment(fields []string, lineNo int, declared map[string]SymbolType) error {
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "var":
		if len(fields) != 3 {
			return m.loadErr(lineNo, "malformed variable line")
		}
		id, err := strconv.Atoi(fields[2])
		if err != nil || id <= 0 {
			return m.loadErr(lineNo, "bad variable number %q", fields[2])
		}
		if _, dup := m.vars.Lookup(fields[1]); dup {
			return m.loadErr(lineNo, "duplicate variable %s", fields[1])
		}
		if other, taken := m.vars.Name(id); taken {
			return m.loadErr(lineNo, "variable %d named both %s and %s", id, other, fields[1])
		}
		m.vars.Set(fields[1], id)

	case "sym":
		if len(fields) != 3 {
			return m.loadErr(lineNo, "malformed symbol line")
		}
		t, ok := ParseSymbolType(fields[2])
		if !ok {
			return m.loadErr(lineNo, "unknown symbol type %q", fields[2])
		}
		declared[fields[1]] = t

	case "meta_value":
		if len(fields) < 2 {
			return m.loadErr(lineNo, "malformed meta_value line")
		}
		for _, v := range fields[2:] {
			m.addMetaValue(fields[1], v)
		}
	}
	return nil
}

func (m *CnfModel) readSidecar(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w: %w", path, ErrModelLoad, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, rest, ok := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("%s:%d: %w: expected 'key: value'", path, lineNo, ErrModelLoad)
		}
		for _, v := range strings.Split(rest, ",") {
			if v = strings.TrimSpace(v); v != "" {
				m.addMetaValue(key, v)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", path, ErrModelLoad, err)
	}
	return nil
}

// addMetaValue is only used while loading.
func (m *CnfModel) addMetaValue(key, value string) {
	m.meta[key] = append(m.meta[key], value)
}

// classify derives the symbol types from the variable names: FOO is
// tristate when FOO and FOO_MODULE are both variables.
func (m *CnfModel) classify(declared map[string]SymbolType) {
	names := m.names()
	for _, name := range names {
		if base, ok := strings.CutSuffix(name, moduleSuffix); ok {
			if _, paired := m.vars.Lookup(base); paired {
				continue
			}
		}
		if _, paired := m.vars.Lookup(name + moduleSuffix); paired {
			m.types[name] = Tristate
			m.excludeModule(name)
			continue
		}
		m.types[name] = Boolean
	}

	for name, t := range declared {
		if t == Tristate {
			_, y := m.vars.Lookup(name)
			_, mod := m.vars.Lookup(name + moduleSuffix)
			if y && mod {
				m.excludeModule(name)
			}
		}
		m.types[name] = t
	}
}

// excludeModule adds !FOO || !FOO_MODULE unless the formula has it already.
func (m *CnfModel) excludeModule(name string) {
	y, _ := m.vars.Lookup(name)
	mod, _ := m.vars.Lookup(name + moduleSuffix)
	for _, c := range m.clauses {
		if len(c) == 2 && ((c[0] == -y && c[1] == -mod) || (c[0] == -mod && c[1] == -y)) {
			return
		}
	}
	m.clauses = append(m.clauses, logic.Clause{-y, -mod})
}

// names returns the variable names in numbering order.
func (m *CnfModel) names() []string {
	var names []string
	for id := 1; id <= m.vars.Max(); id++ {
		if name, ok := m.vars.Name(id); ok {
			names = append(names, name)
		}
	}
	return names
}

func (m *CnfModel) lookup(symbol string) (string, SymbolType) {
	for _, s := range candidates(symbol, m.prefix) {
		if t, ok := m.types[s]; ok {
			return s, t
		}
	}
	return "", Missing
}

func (m *CnfModel) Name() string {
	return m.arch
}

// Path returns the file the model was loaded from.
func (m *CnfModel) Path() string {
	return m.path
}

func (m *CnfModel) VersionIdentifier() string {
	return "cnf"
}

func (m *CnfModel) Type(symbol string) SymbolType {
	_, t := m.lookup(symbol)
	return t
}

func (m *CnfModel) IsBoolean(symbol string) bool {
	return m.Type(symbol) == Boolean
}

func (m *CnfModel) IsTristate(symbol string) bool {
	return m.Type(symbol) == Tristate
}

// ContainsSymbol reports whether symbol is a symbol or a variable of the
// formula.
func (m *CnfModel) ContainsSymbol(symbol string) bool {
	if m.Type(symbol) != Missing {
		return true
	}
	for _, s := range candidates(symbol, m.prefix) {
		if _, ok := m.vars.Lookup(s); ok {
			return true
		}
	}
	return false
}

func (m *CnfModel) MetaValue(key string) ([]string, bool) {
	v, ok := m.meta[key]
	if !ok {
		return nil, false
	}
	out := make([]string, len(v))
	copy(out, v)
	return out, true
}

// Symbols returns the known symbols in lexical order.
func (m *CnfModel) Symbols() []string {
	out := make([]string, 0, len(m.types))
	for name := range m.types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Variable returns the formula variable of symbol, trying both prefix
// spellings.
func (m *CnfModel) Variable(symbol string) (string, bool) {
	for _, s := range candidates(symbol, m.prefix) {
		if _, ok := m.vars.Lookup(s); ok {
			return s, true
		}
	}
	return "", false
}

func (m *CnfModel) Satisfiable(ctx context.Context, f logic.Formula) (Answer, error) {
	return m.oracle.Satisfiable(ctx, f)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
