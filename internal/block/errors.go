package block

import (
	"errors"
	"fmt"
	"go/token"

	"github.com/gnolang/undertaker/internal/directive"
)

var (
	// ErrMalformedNesting reports an #elif, #else or #endif without a
	// matching opener.
	ErrMalformedNesting = errors.New("malformed nesting")

	// ErrUnterminatedBlock reports a stream that ends with open blocks.
	ErrUnterminatedBlock = errors.New("unterminated conditional block")
)

// NestingError locates a structural defect of a directive stream.
type NestingError struct {
	Filename  string
	Pos       token.Position
	Directive directive.Kind
	Err       error
}

func (e *NestingError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s: %v", e.Filename, e.Pos.Line, e.Pos.Column, e.Directive, e.Err)
}

func (e *NestingError) Unwrap() error {
	return e.Err
}
