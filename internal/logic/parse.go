package logic

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax is returned for conditions that are not valid C constant
// expressions.
var ErrSyntax = errors.New("invalid conditional expression")

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokNumber
	tokPunct
)

type token struct {
	kind tokKind
	text string
	val  int64
	pos  int
}

var punct2 = []string{"||", "&&", "==", "!=", "<=", ">=", "<<", ">>"}

const punct1 = "!~-+*/%<>&|^?:(),"

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		ch := src[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v':
			i++

		case isIdentStart(ch):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: src[i:j], pos: i})
			i = j

		case ch >= '0' && ch <= '9':
			j := i + 1
			for j < len(src) && (isIdentPart(src[j]) || src[j] == '.') {
				j++
			}
			v, err := parseInt(src[i:j])
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q at offset %d", ErrSyntax, src[i:j], i)
			}
			toks = append(toks, token{kind: tokNumber, text: src[i:j], val: v, pos: i})
			i = j

		case ch == '\'':
			v, n, err := parseChar(src[i:])
			if err != nil {
				return nil, fmt.Errorf("%w: %v at offset %d", ErrSyntax, err, i)
			}
			toks = append(toks, token{kind: tokNumber, text: src[i : i+n], val: v, pos: i})
			i += n

		default:
			matched := false
			for _, p := range punct2 {
				if strings.HasPrefix(src[i:], p) {
					toks = append(toks, token{kind: tokPunct, text: p, pos: i})
					i += len(p)
					matched = true
					break
				}
			}
			if matched {
				continue
			}
			if strings.IndexByte(punct1, ch) < 0 {
				return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, ch, i)
			}
			toks = append(toks, token{kind: tokPunct, text: string(ch), pos: i})
			i++
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

// parseInt converts a C integer constant, ignoring u/U/l/L suffixes.
func parseInt(s string) (int64, error) {
	s = strings.TrimRight(s, "uUlL")
	if len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '7' {
		s = "0o" + s[1:]
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// parseChar converts a character constant at the start of s and returns
// its value and length.
func parseChar(s string) (int64, int, error) {
	end := 1
	for end < len(s) && s[end] != '\'' {
		if s[end] == '\\' {
			end++
		}
		end++
	}
	if end >= len(s) {
		return 0, 0, errors.New("unterminated character constant")
	}
	body := s[1:end]
	if body == "" {
		return 0, 0, errors.New("empty character constant")
	}
	v, _, tail, err := strconv.UnquoteChar(body, '\'')
	if err != nil {
		// octal escapes shorter than three digits
		if body[0] == '\\' {
			n, perr := strconv.ParseInt(body[1:], 8, 64)
			if perr == nil {
				return n, end + 1, nil
			}
		}
		return 0, 0, err
	}
	if tail != "" {
		return 0, 0, errors.New("multi-character constant")
	}
	return int64(v), end + 1, nil
}

// Parse parses the text of an #if or #elif condition.
func Parse(expr string) (Node, error) {
	toks, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
	return n, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) is(text string) bool {
	tok := p.peek()
	return tok.kind == tokPunct && tok.text == text
}

func (p *parser) expect(text string) error {
	if !p.is(text) {
		tok := p.peek()
		if tok.kind == tokEOF {
			return p.errorf(tok, "missing %q", text)
		}
		return p.errorf(tok, "expected %q, found %q", text, tok.text)
	}
	p.next()
	return nil
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d", ErrSyntax, fmt.Sprintf(format, args...), tok.pos)
}

func (p *parser) parseExpr() (Node, error) {
	cond, err := p.parseBinary(1)
	if err != nil {
		return nil, err
	}
	if !p.is("?") {
		return cond, nil
	}
	p.next()
	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	els, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return CondExpr{Cond: cond, Then: then, Else: els}, nil
}

var binaryOps = map[string]struct {
	op   BinaryOp
	prec int
}{
	"||": {OpOr, 1},
	"&&": {OpAnd, 2},
	"|":  {OpBitOr, 3},
	"^":  {OpXor, 4},
	"&":  {OpBitAnd, 5},
	"==": {OpEq, 6},
	"!=": {OpNeq, 6},
	"<":  {OpLt, 7},
	"<=": {OpLte, 7},
	">":  {OpGt, 7},
	">=": {OpGte, 7},
	"<<": {OpShl, 8},
	">>": {OpShr, 8},
	"+":  {OpAdd, 9},
	"-":  {OpSub, 9},
	"*":  {OpMul, 10},
	"/":  {OpDiv, 10},
	"%":  {OpMod, 10},
}

func (p *parser) parseBinary(minPrec int) (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokPunct {
			return left, nil
		}
		bop, ok := binaryOps[tok.text]
		if !ok || bop.prec < minPrec {
			return left, nil
		}
		p.next()
		right, err := p.parseBinary(bop.prec + 1)
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: bop.op, Left: left, Right: right}
	}
}

var unaryOps = map[string]UnaryOp{
	"!": OpNot,
	"-": OpNeg,
	"+": OpPlus,
	"~": OpCompl,
}

func (p *parser) parseUnary() (Node, error) {
	tok := p.peek()
	if tok.kind == tokPunct {
		if op, ok := unaryOps[tok.text]; ok {
			p.next()
			x, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return UnaryExpr{Op: op, Operand: x}, nil
		}
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return Number{Value: tok.val}, nil

	case tokIdent:
		if tok.text == "defined" {
			return p.parseDefined()
		}
		if p.is("(") {
			return p.parseCall(tok.text)
		}
		return Ident{Name: tok.text}, nil

	case tokPunct:
		if tok.text == "(" {
			n, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return n, nil
		}
		return nil, p.errorf(tok, "unexpected %q", tok.text)

	default:
		return nil, p.errorf(tok, "unexpected end of expression")
	}
}

func (p *parser) parseDefined() (Node, error) {
	paren := p.is("(")
	if paren {
		p.next()
	}
	tok := p.next()
	if tok.kind != tokIdent {
		return nil, p.errorf(tok, "operator defined requires an identifier")
	}
	if paren {
		if err := p.expect(")"); err != nil {
			return nil, err
		}
	}
	return DefinedExpr{Name: tok.text}, nil
}

func (p *parser) parseCall(name string) (Node, error) {
	p.next()
	call := CallExpr{Func: name}
	if p.is(")") {
		p.next()
		return call, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if p.is(",") {
			p.next()
			continue
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return call, nil
	}
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}
