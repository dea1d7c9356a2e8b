// Package block builds the conditional block tree of a C compilation unit.
//
// A tree is an arena: blocks live in a slice indexed by their ID, and the
// parent and previous-alternative links are IDs rather than pointers. Block
// 0 is the root and stands for the whole file.
package block

import (
	"go/token"
	"sync"

	"github.com/gnolang/undertaker/internal/macro"
)

// ID identifies a block within its tree.
type ID int

const (
	RootID  ID = 0
	NoBlock ID = -1
)

// Kind is the directive that opened a block.
type Kind int

const (
	Root Kind = iota
	If
	Ifdef
	Ifndef
	Elif
	Else
)

func (k Kind) String() string {
	switch k {
	case Root:
		return "root"
	case If:
		return "if"
	case Ifdef:
		return "ifdef"
	case Ifndef:
		return "ifndef"
	case Elif:
		return "elif"
	case Else:
		return "else"
	default:
		return "unknown"
	}
}

// Block is a region of source guarded by one alternative of a conditional.
type Block struct {
	ID       ID
	Kind     Kind
	Parent   ID
	Prev     ID
	Children []ID

	// Source is the condition as written: the expression of #if and
	// #elif, the macro name of #ifdef and #ifndef, empty otherwise.
	Source string

	Start token.Position
	End   token.Position

	// Defines holds the symbols defined or undefined directly inside
	// this block, in order of first appearance.
	Defines []*macro.Define

	// Ordinal is the index of the opening directive in the stream; -1
	// for the root.
	Ordinal int

	once      sync.Once
	expanded  string
	expandErr error
}

// IsChainHead reports whether b starts an alternative chain.
func (b *Block) IsChainHead() bool {
	return b.Kind == If || b.Kind == Ifdef || b.Kind == Ifndef
}

func (b *Block) addDefine(d *macro.Define) {
	for _, have := range b.Defines {
		if have == d {
			return
		}
	}
	b.Defines = append(b.Defines, d)
}
