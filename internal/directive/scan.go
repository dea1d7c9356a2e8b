package directive

import (
	"bufio"
	"errors"
	"fmt"
	"go/token"
	"io"
	"os"
	"strings"
)

// Options control the normalizations applied while scanning.
type Options struct {
	// DefineNullAsUndef rewrites `#define X 0` into `#undef X`.
	DefineNullAsUndef bool

	// StripIncludeGuard drops an include guard that wraps the whole file.
	StripIncludeGuard bool
}

// DefaultOptions returns the normalizations applied by the command line tool.
func DefaultOptions() Options {
	return Options{
		DefineNullAsUndef: true,
		StripIncludeGuard: true,
	}
}

// ScanFile reads filename and returns its directive stream.
func ScanFile(filename string, opts Options) (*Unit, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", filename, ErrParseInput, err)
	}
	defer f.Close()

	return Scan(filename, f, opts)
}

// Scan reads C source text from r and returns its directive stream.
func Scan(filename string, r io.Reader, opts Options) (*Unit, error) {
	s := &scanner{
		filename: filename,
		lr:       newLineReader(r),
		opts:     opts,
		unit:     &Unit{Filename: filename},
	}
	if err := s.run(); err != nil {
		return nil, err
	}
	if opts.StripIncludeGuard {
		s.stripIncludeGuard()
	}
	return s.unit, nil
}

type scanner struct {
	filename string
	lr       *lineReader
	opts     Options
	unit     *Unit

	lineNo int

	inComment  bool
	comment    strings.Builder
	commentPos token.Position

	// first and last line holding something other than a directive,
	// zero when there is none.
	firstCode int
	lastCode  int
}

func (s *scanner) run() error {
	for {
		line, start, ok, err := s.logicalLine()
		if err != nil {
			return s.errorf(s.lineNo, "%v", err)
		}
		if !ok {
			break
		}

		code := s.stripComments(line, start)
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		if trimmed[0] != '#' {
			s.markCode(start)
			continue
		}

		pos := s.pos(start, strings.IndexByte(code, '#')+1)
		if err := s.directive(trimmed[1:], pos); err != nil {
			return err
		}
	}

	if s.inComment {
		return s.errorf(s.commentPos.Line, "unterminated comment")
	}
	return nil
}

// logicalLine returns the next line with backslash continuations joined.
func (s *scanner) logicalLine() (string, int, bool, error) {
	line, ok, err := s.lr.next()
	if err != nil || !ok {
		return "", 0, false, err
	}
	s.lineNo++
	start := s.lineNo

	var b strings.Builder
	for lineContinues(line) {
		b.WriteString(stripLineContinuation(line))
		next, ok, err := s.lr.next()
		if err != nil {
			return "", 0, false, err
		}
		if !ok {
			return b.String(), start, true, nil
		}
		s.lineNo++
		line = next
	}
	b.WriteString(line)
	return b.String(), start, true, nil
}

// stripComments removes comments from line, replacing each block comment
// with a single blank, and records the comment text.
func (s *scanner) stripComments(line string, lineNo int) string {
	var out strings.Builder
	i := 0
	for i < len(line) {
		if s.inComment {
			end := strings.Index(line[i:], "*/")
			if end < 0 {
				s.comment.WriteString(line[i:])
				s.comment.WriteByte('\n')
				return out.String()
			}
			s.comment.WriteString(line[i : i+end+2])
			s.unit.Comments = append(s.unit.Comments, Comment{Pos: s.commentPos, Text: s.comment.String()})
			s.inComment = false
			i += end + 2
			out.WriteByte(' ')
			continue
		}

		ch := line[i]
		switch {
		case ch == '"' || ch == '\'':
			j := skipQuoted(line, i)
			out.WriteString(line[i:j])
			i = j
		case ch == '/' && i+1 < len(line) && line[i+1] == '/':
			s.unit.Comments = append(s.unit.Comments, Comment{Pos: s.pos(lineNo, i+1), Text: line[i:]})
			return out.String()
		case ch == '/' && i+1 < len(line) && line[i+1] == '*':
			s.inComment = true
			s.commentPos = s.pos(lineNo, i+1)
			s.comment.Reset()
			s.comment.WriteString("/*")
			i += 2
		default:
			out.WriteByte(ch)
			i++
		}
	}
	return out.String()
}

func (s *scanner) directive(text string, pos token.Position) error {
	keyword, rest := splitKeyword(strings.TrimLeft(text, " \t"))
	rest = strings.TrimSpace(rest)

	switch keyword {
	case "if", "elif":
		if rest == "" {
			return s.errorf(pos.Line, "#%s with no expression", keyword)
		}
		kind := If
		if keyword == "elif" {
			kind = Elif
		}
		s.emit(Directive{Kind: kind, Pos: pos, Expr: rest})

	case "ifdef", "ifndef":
		name := leadingIdent(rest)
		if name == "" {
			return s.errorf(pos.Line, "no macro name given in #%s directive", keyword)
		}
		kind := Ifdef
		if keyword == "ifndef" {
			kind = Ifndef
		}
		s.emit(Directive{Kind: kind, Pos: pos, Name: name})

	case "elifdef", "elifndef":
		name := leadingIdent(rest)
		if name == "" {
			return s.errorf(pos.Line, "no macro name given in #%s directive", keyword)
		}
		expr := "defined(" + name + ")"
		if keyword == "elifndef" {
			expr = "!" + expr
		}
		s.emit(Directive{Kind: Elif, Pos: pos, Expr: expr})

	case "else":
		s.emit(Directive{Kind: Else, Pos: pos})

	case "endif":
		s.emit(Directive{Kind: Endif, Pos: pos})

	case "define":
		return s.define(rest, pos)

	case "undef":
		name := leadingIdent(rest)
		if name == "" {
			return s.errorf(pos.Line, "no macro name given in #undef directive")
		}
		s.emit(Directive{Kind: Undef, Pos: pos, Name: name})

	default:
		// #include, #error, #warning, #pragma, #line, line markers and
		// the null directive do not influence block structure.
	}
	return nil
}

func (s *scanner) define(rest string, pos token.Position) error {
	name := leadingIdent(rest)
	if name == "" {
		return s.errorf(pos.Line, "no macro name given in #define directive")
	}
	after := rest[len(name):]

	d := Directive{Kind: Define, Pos: pos, Name: name}
	if strings.HasPrefix(after, "(") {
		end := strings.IndexByte(after, ')')
		if end < 0 {
			return s.errorf(pos.Line, "missing ')' in parameter list of macro %s", name)
		}
		d.IsFunction = true
		d.Params = splitParams(after[1:end])
		d.Body = strings.TrimSpace(after[end+1:])
		s.emit(d)
		return nil
	}

	d.Body = strings.TrimSpace(after)
	if s.opts.DefineNullAsUndef && d.Body == "0" {
		d = Directive{Kind: Undef, Pos: pos, Name: name}
	}
	s.emit(d)
	return nil
}

func (s *scanner) emit(d Directive) {
	s.unit.Directives = append(s.unit.Directives, d)
}

func (s *scanner) markCode(line int) {
	if s.firstCode == 0 {
		s.firstCode = line
	}
	s.lastCode = line
}

// stripIncludeGuard removes `#ifndef G` / `#define G` ... `#endif` when the
// guard encloses every other directive and all code of the file.
func (s *scanner) stripIncludeGuard() {
	ds := s.unit.Directives
	if len(ds) < 3 {
		return
	}
	guard, def := ds[0], ds[1]
	if guard.Kind != Ifndef || def.Kind != Define || def.IsFunction || def.Name != guard.Name {
		return
	}
	if s.firstCode != 0 && s.firstCode < guard.Pos.Line {
		return
	}

	end := matchingEndif(ds, 0)
	if end != len(ds)-1 {
		return
	}
	if s.lastCode > ds[end].Pos.Line {
		return
	}
	s.unit.Directives = append([]Directive(nil), ds[2:end]...)
}

func (s *scanner) pos(line, column int) token.Position {
	return token.Position{Filename: s.filename, Line: line, Column: column}
}

func (s *scanner) errorf(line int, format string, args ...any) error {
	return fmt.Errorf("%s:%d: %w: %s", s.filename, line, ErrParseInput, fmt.Sprintf(format, args...))
}

// matchingEndif returns the index of the #endif closing the chain opened at
// ds[open], or -1.
func matchingEndif(ds []Directive, open int) int {
	depth := 0
	for i := open; i < len(ds); i++ {
		switch {
		case ds[i].Kind.Opens():
			depth++
		case ds[i].Kind == Endif:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

func (lr *lineReader) next() (string, bool, error) {
	s, err := lr.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, err
	}
	if s == "" && err != nil {
		return "", false, nil
	}
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s, true, nil
}

func lineContinues(s string) bool {
	i := strings.LastIndexFunc(s, func(r rune) bool {
		return r != ' ' && r != '\t'
	})
	return i >= 0 && s[i] == '\\'
}

// stripLineContinuation drops the trailing backslash and anything after it.
// Blanks before the backslash are kept so tokens are not glued together.
func stripLineContinuation(s string) string {
	i := strings.LastIndexByte(s, '\\')
	if i < 0 {
		return s
	}
	return s[:i]
}

func skipQuoted(line string, i int) int {
	quote := line[i]
	j := i + 1
	for j < len(line) {
		switch line[j] {
		case '\\':
			j += 2
			continue
		case quote:
			return j + 1
		}
		j++
	}
	return len(line)
}

func splitKeyword(s string) (string, string) {
	i := 0
	for i < len(s) && isIdentPart(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func leadingIdent(s string) string {
	if s == "" || !isIdentStart(s[0]) {
		return ""
	}
	i := 1
	for i < len(s) && isIdentPart(s[i]) {
		i++
	}
	return s[:i]
}

func splitParams(s string) []string {
	var params []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			params = append(params, p)
		}
	}
	return params
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}
