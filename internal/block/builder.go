package block

import (
	"fmt"
	"go/token"

	"github.com/gnolang/undertaker/internal/directive"
	"github.com/gnolang/undertaker/internal/macro"
)

// Option configures Build.
type Option func(*builder)

// WithExpander replaces the file's own macro table as expansion service.
func WithExpander(e Expander) Option {
	return func(b *builder) {
		b.tree.expander = e
	}
}

type builder struct {
	tree  *Tree
	stack []ID
	last  token.Position
}

// Build folds the directive stream of unit into a block tree. On error no
// tree is returned.
func Build(unit *directive.Unit, opts ...Option) (*Tree, error) {
	t := &Tree{
		Filename: unit.Filename,
		defines:  macro.NewTracker(),
		macros:   macro.NewTable(),
	}
	t.expander = t.macros

	b := &builder{tree: t}
	for _, opt := range opts {
		opt(b)
	}

	root := &Block{
		ID:      RootID,
		Kind:    Root,
		Parent:  NoBlock,
		Prev:    NoBlock,
		Start:   token.Position{Filename: unit.Filename, Line: 1, Column: 1},
		Ordinal: -1,
	}
	t.blocks = append(t.blocks, root)
	b.stack = append(b.stack, RootID)
	b.last = root.Start

	for i, d := range unit.Directives {
		if err := b.step(d, i); err != nil {
			return nil, err
		}
		b.last = d.Pos
	}

	if len(b.stack) > 1 {
		open := t.blocks[b.stack[len(b.stack)-1]]
		return nil, &NestingError{
			Filename:  unit.Filename,
			Pos:       open.Start,
			Directive: unit.Directives[open.Ordinal].Kind,
			Err:       ErrUnterminatedBlock,
		}
	}

	root.End = b.last
	t.defines.Freeze()
	return t, nil
}

func (b *builder) step(d directive.Directive, ordinal int) error {
	switch d.Kind {
	case directive.If, directive.Ifdef, directive.Ifndef:
		b.open(blockKind(d.Kind), d, ordinal, NoBlock)

	case directive.Elif, directive.Else:
		if len(b.stack) == 1 {
			return b.nestingError(d, ErrMalformedNesting)
		}
		prev := b.pop(d.Pos)
		if prev.Kind == Else {
			return b.nestingError(d, fmt.Errorf("%w: %s after #else", ErrMalformedNesting, d.Kind))
		}
		b.open(blockKind(d.Kind), d, ordinal, prev.ID)

	case directive.Endif:
		if len(b.stack) == 1 {
			return b.nestingError(d, ErrMalformedNesting)
		}
		b.pop(d.Pos)

	case directive.Define, directive.Undef:
		return b.define(d, ordinal)
	}
	return nil
}

func (b *builder) open(kind Kind, d directive.Directive, ordinal int, prev ID) {
	t := b.tree
	parent := t.blocks[b.top()]

	blk := &Block{
		ID:      ID(len(t.blocks)),
		Kind:    kind,
		Parent:  parent.ID,
		Prev:    prev,
		Start:   d.Pos,
		Ordinal: ordinal,
	}
	switch kind {
	case If, Elif:
		blk.Source = d.Expr
	case Ifdef, Ifndef:
		blk.Source = d.Name
	}

	t.blocks = append(t.blocks, blk)
	parent.Children = append(parent.Children, blk.ID)
	b.stack = append(b.stack, blk.ID)
}

func (b *builder) pop(end token.Position) *Block {
	id := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	blk := b.tree.blocks[id]
	blk.End = end
	return blk
}

func (b *builder) top() ID {
	return b.stack[len(b.stack)-1]
}

func (b *builder) define(d directive.Directive, ordinal int) error {
	t := b.tree
	scope := t.blocks[b.top()]

	var (
		rec *macro.Define
		err error
	)
	if d.Kind == directive.Define {
		rec, err = t.defines.RecordDefine(d.Name, int(scope.ID), ordinal, d.IsFunction)
		t.macros.Observe(macro.Macro{
			Name:     d.Name,
			Params:   d.Params,
			Body:     d.Body,
			Function: d.IsFunction,
			Ordinal:  ordinal,
		}, scope.ID == RootID)
	} else {
		rec, err = t.defines.RecordUndefine(d.Name, int(scope.ID), ordinal)
		t.macros.Remove(d.Name, ordinal)
	}
	if err != nil {
		return fmt.Errorf("%s:%d: %w", t.Filename, d.Pos.Line, err)
	}
	scope.addDefine(rec)
	return nil
}

func (b *builder) nestingError(d directive.Directive, err error) error {
	return &NestingError{
		Filename:  b.tree.Filename,
		Pos:       d.Pos,
		Directive: d.Kind,
		Err:       err,
	}
}

func blockKind(k directive.Kind) Kind {
	switch k {
	case directive.If:
		return If
	case directive.Ifdef:
		return Ifdef
	case directive.Ifndef:
		return Ifndef
	case directive.Elif:
		return Elif
	default:
		return Else
	}
}
