// Package directive models the linear stream of preprocessor events that
// drives conditional block construction, and provides a line oriented
// scanner that produces such a stream from C source text.
//
// The scanner is deliberately not a C preprocessor: it does not expand
// macros, resolve includes or evaluate conditions. It only recognizes the
// directives that shape the conditional block structure (#if, #ifdef,
// #ifndef, #elif, #else, #endif) and those that change macro state
// (#define, #undef).
package directive

import (
	"errors"
	"fmt"
	"go/token"
	"strings"
)

// ErrParseInput reports that the upstream input could not be turned into a
// usable directive stream. No tree is built from such input.
var ErrParseInput = errors.New("unusable directive stream")

// Kind identifies a preprocessor directive.
type Kind int

const (
	_ Kind = iota
	If
	Ifdef
	Ifndef
	Elif
	Else
	Endif
	Define
	Undef
)

func (k Kind) String() string {
	switch k {
	case If:
		return "#if"
	case Ifdef:
		return "#ifdef"
	case Ifndef:
		return "#ifndef"
	case Elif:
		return "#elif"
	case Else:
		return "#else"
	case Endif:
		return "#endif"
	case Define:
		return "#define"
	case Undef:
		return "#undef"
	default:
		return "#?"
	}
}

// Opens reports whether the directive starts a new conditional chain.
func (k Kind) Opens() bool {
	return k == If || k == Ifdef || k == Ifndef
}

// Continues reports whether the directive adds an alternative to an open chain.
func (k Kind) Continues() bool {
	return k == Elif || k == Else
}

// Directive is a single event of the stream.
type Directive struct {
	Kind Kind
	Pos  token.Position

	// Expr is the condition text of #if and #elif, joined into a single
	// logical line with trailing blanks removed.
	Expr string

	// Name is the identifier of #ifdef, #ifndef, #define and #undef.
	Name string

	// Params and Body describe a #define. Params is only meaningful
	// when IsFunction is set.
	Params     []string
	Body       string
	IsFunction bool
}

func (d Directive) String() string {
	switch d.Kind {
	case If, Elif:
		return fmt.Sprintf("%s %s", d.Kind, d.Expr)
	case Ifdef, Ifndef, Undef:
		return fmt.Sprintf("%s %s", d.Kind, d.Name)
	case Define:
		if d.IsFunction {
			return fmt.Sprintf("%s %s(%s) %s", d.Kind, d.Name, strings.Join(d.Params, ", "), d.Body)
		}
		if d.Body == "" {
			return fmt.Sprintf("%s %s", d.Kind, d.Name)
		}
		return fmt.Sprintf("%s %s %s", d.Kind, d.Name, d.Body)
	default:
		return d.Kind.String()
	}
}

// Comment is a source comment seen while scanning. Comments are kept so
// that suppression markers can be attached to nearby blocks.
type Comment struct {
	Pos  token.Position
	Text string
}

// Unit is the directive stream of one compilation unit.
type Unit struct {
	Filename   string
	Directives []Directive
	Comments   []Comment
}
