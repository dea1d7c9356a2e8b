package macro

import (
	"errors"
	"regexp"
	"sort"
	"strings"
)

// ErrRecursiveExpansion is returned when expanding a single text performs
// more than maxExpansions substitutions.
var ErrRecursiveExpansion = errors.New("recursive macro expansion")

const maxExpansions = 1000

// Macro is an expandable definition.
type Macro struct {
	Name     string
	Params   []string
	Body     string
	Function bool
	Ordinal  int
}

// entry is a change of a name's visibility; a nil macro removes the name.
type entry struct {
	ordinal int
	macro   *Macro
}

// Table tracks which macros are expandable at every point of a file. A
// lookup at ordinal o observes all additions and removals made before o.
type Table struct {
	entries map[string][]entry
}

func NewTable() *Table {
	return &Table{entries: make(map[string][]entry)}
}

// Add makes m visible to lookups after ordinal.
func (t *Table) Add(m Macro, ordinal int) {
	m.Ordinal = ordinal
	t.entries[m.Name] = append(t.entries[m.Name], entry{ordinal: ordinal, macro: &m})
}

// Remove hides name from lookups after ordinal.
func (t *Table) Remove(name string, ordinal int) {
	if _, ok := t.entries[name]; !ok {
		return
	}
	t.entries[name] = append(t.entries[name], entry{ordinal: ordinal})
}

// Observe applies a #define seen at m.Ordinal. Only definitions at file top
// level are expandable; a nested one makes the name unexpandable from then
// on, as does an empty object-like body.
func (t *Table) Observe(m Macro, topLevel bool) {
	if !topLevel || (!m.Function && m.Body == "") {
		t.Remove(m.Name, m.Ordinal)
		return
	}
	t.Add(m, m.Ordinal)
}

// Visible returns the definition of name in effect before ordinal.
func (t *Table) Visible(name string, ordinal int) (*Macro, bool) {
	es := t.entries[name]
	i := sort.Search(len(es), func(i int) bool {
		return es[i].ordinal >= ordinal
	})
	if i == 0 || es[i-1].macro == nil {
		return nil, false
	}
	return es[i-1].macro, true
}

// Expand substitutes every macro visible before ordinal in text. Operands
// of the defined operator are left alone.
func (t *Table) Expand(text string, ordinal int) (string, error) {
	if len(t.entries) == 0 {
		return text, nil
	}
	e := expander{table: t, ordinal: ordinal}
	return e.expand(text)
}

type expander struct {
	table   *Table
	ordinal int
	stack   []inputChunk
	// hide holds the macros being expanded around an argument.
	hide       []string
	expansions int
}

// inputChunk is pending input; macro names the expansion it came from.
type inputChunk struct {
	s     string
	i     int
	macro string
}

func (e *expander) expand(text string) (string, error) {
	e.stack = []inputChunk{{s: text}}
	var b strings.Builder
	for {
		ch, ok := e.next()
		if !ok {
			break
		}
		if ch == '"' || ch == '\'' {
			b.WriteByte(ch)
			e.copyQuoted(&b, ch)
			continue
		}
		if ch >= '0' && ch <= '9' {
			// pp-number, suffixes are not identifiers
			b.WriteString(e.readIdent(ch))
			continue
		}
		if !isIdentStart(ch) {
			b.WriteByte(ch)
			continue
		}

		name := e.readIdent(ch)
		if name == "defined" {
			b.WriteString(name)
			e.copyDefinedOperand(&b)
			continue
		}

		m, ok := e.table.Visible(name, e.ordinal)
		if !ok || e.hidden(name) {
			b.WriteString(name)
			continue
		}

		if !m.Function {
			if err := e.push(m.Body, name); err != nil {
				return "", err
			}
			continue
		}

		if !e.skipBlanksTo('(') {
			b.WriteString(name)
			continue
		}
		e.next()
		args, raw, ok := e.readArgs()
		if !ok {
			// unbalanced call, keep what was consumed
			b.WriteString(name)
			b.WriteByte('(')
			b.WriteString(raw)
			continue
		}
		expanded, err := e.expandArgs(args)
		if err != nil {
			return "", err
		}
		if err := e.push(applyArgs(m, args, expanded), name); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func (e *expander) push(s, macro string) error {
	e.expansions++
	if e.expansions > maxExpansions {
		return ErrRecursiveExpansion
	}
	e.stack = append(e.stack, inputChunk{s: s, macro: macro})
	return nil
}

// expandArgs fully expands each argument before substitution, in the
// context of the macros being expanded at the call.
func (e *expander) expandArgs(args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, arg := range args {
		sub := expander{
			table:      e.table,
			ordinal:    e.ordinal,
			hide:       e.active(),
			expansions: e.expansions,
		}
		x, err := sub.expand(arg)
		e.expansions = sub.expansions
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

// active lists the macros being expanded.
func (e *expander) active() []string {
	names := append([]string(nil), e.hide...)
	for _, c := range e.stack {
		if c.macro != "" {
			names = append(names, c.macro)
		}
	}
	return names
}

// hidden reports whether name is being expanded already.
func (e *expander) hidden(name string) bool {
	for _, c := range e.stack {
		if c.macro == name {
			return true
		}
	}
	for _, h := range e.hide {
		if h == name {
			return true
		}
	}
	return false
}

func (e *expander) next() (byte, bool) {
	for len(e.stack) > 0 {
		top := &e.stack[len(e.stack)-1]
		if top.i >= len(top.s) {
			e.stack = e.stack[:len(e.stack)-1]
			continue
		}
		ch := top.s[top.i]
		top.i++
		return ch, true
	}
	return 0, false
}

func (e *expander) peek(offset int) (byte, bool) {
	off := offset
	for i := len(e.stack) - 1; i >= 0; i-- {
		chunk := e.stack[i]
		remain := len(chunk.s) - chunk.i
		if remain <= 0 {
			continue
		}
		if off < remain {
			return chunk.s[chunk.i+off], true
		}
		off -= remain
	}
	return 0, false
}

// readIdent reads the rest of an identifier from the current chunk only, so
// an expansion never glues onto the text that follows it.
func (e *expander) readIdent(first byte) string {
	var b strings.Builder
	b.WriteByte(first)
	top := &e.stack[len(e.stack)-1]
	for top.i < len(top.s) && isIdentPart(top.s[top.i]) {
		b.WriteByte(top.s[top.i])
		top.i++
	}
	return b.String()
}

// skipBlanksTo consumes blanks when they are followed by want.
func (e *expander) skipBlanksTo(want byte) bool {
	for off := 0; ; off++ {
		ch, ok := e.peek(off)
		if !ok {
			return false
		}
		if ch == ' ' || ch == '\t' {
			continue
		}
		if ch != want {
			return false
		}
		for ; off > 0; off-- {
			e.next()
		}
		return true
	}
}

func (e *expander) copyDefinedOperand(b *strings.Builder) {
	for {
		ch, ok := e.peek(0)
		if !ok || (ch != ' ' && ch != '\t') {
			break
		}
		b.WriteByte(ch)
		e.next()
	}
	ch, ok := e.peek(0)
	if !ok {
		return
	}
	if isIdentStart(ch) {
		e.next()
		b.WriteString(e.readIdent(ch))
		return
	}
	if ch != '(' {
		return
	}
	for {
		ch, ok := e.next()
		if !ok {
			return
		}
		b.WriteByte(ch)
		if ch == ')' {
			return
		}
	}
}

// readArgs reads the arguments of a call up to the closing parenthesis.
// raw is the text consumed, returned as is when the call is unbalanced.
func (e *expander) readArgs() (args []string, raw string, ok bool) {
	var cur, consumed strings.Builder
	depth := 1
	for {
		ch, ok := e.next()
		if !ok {
			return nil, consumed.String(), false
		}
		consumed.WriteByte(ch)
		switch {
		case ch == '"' || ch == '\'':
			var quoted strings.Builder
			e.copyQuoted(&quoted, ch)
			consumed.WriteString(quoted.String())
			cur.WriteByte(ch)
			cur.WriteString(quoted.String())
			continue
		case ch == '(':
			depth++
		case ch == ')':
			depth--
			if depth == 0 {
				args = append(args, strings.TrimSpace(cur.String()))
				return args, consumed.String(), true
			}
		case ch == ',' && depth == 1:
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteByte(ch)
	}
}

func (e *expander) copyQuoted(b *strings.Builder, quote byte) {
	for {
		ch, ok := e.next()
		if !ok {
			return
		}
		b.WriteByte(ch)
		if ch == '\\' {
			if next, ok := e.next(); ok {
				b.WriteByte(next)
			}
			continue
		}
		if ch == quote {
			return
		}
	}
}

var pasteRe = regexp.MustCompile(`\s*##\s*`)

// applyArgs substitutes the parameters of m. Operands of #, ## and defined
// take the argument as written, every other use the expanded one.
func applyArgs(m *Macro, raw, expanded []string) string {
	params := make(map[string]int, len(m.Params))
	for i, p := range m.Params {
		params[p] = i
	}
	arg := func(name string, literal bool) (string, bool) {
		i, ok := params[name]
		switch {
		case !ok:
			return "", false
		case i >= len(raw):
			return "", true
		case literal:
			return raw[i], true
		}
		return expanded[i], true
	}
	return pasteRe.ReplaceAllString(replaceIdents(m.Body, arg), "")
}

// literalOperand reports whether the parameter at s[i:j] is an operand of
// #, ## or defined, which take the argument unexpanded.
func literalOperand(s string, i, j int) bool {
	k := skipBlanksBack(s, i-1)
	if k >= 0 && s[k] == '#' {
		return true
	}
	if k >= 0 && s[k] == '(' {
		k = skipBlanksBack(s, k-1)
	}
	if k >= 0 && strings.HasSuffix(s[:k+1], "defined") &&
		(k < len("defined") || !isIdentPart(s[k-len("defined")])) {
		return true
	}

	for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
		j++
	}
	return strings.HasPrefix(s[j:], "##")
}

func skipBlanksBack(s string, k int) int {
	for k >= 0 && (s[k] == ' ' || s[k] == '\t') {
		k--
	}
	return k
}

func replaceIdents(s string, repl func(name string, literal bool) (string, bool)) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		ch := s[i]
		if ch == '"' || ch == '\'' {
			j := i + 1
			for j < len(s) && s[j] != ch {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			if j < len(s) {
				j++
			}
			b.WriteString(s[i:min(j, len(s))])
			i = j
			continue
		}
		if isIdentStart(ch) {
			j := i + 1
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			name := s[i:j]
			if val, ok := repl(name, literalOperand(s, i, j)); ok {
				b.WriteString(val)
			} else {
				b.WriteString(name)
			}
			i = j
			continue
		}
		b.WriteByte(ch)
		i++
	}
	return b.String()
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}
