package block

import (
	"strconv"
	"strings"

	"github.com/gnolang/undertaker/internal/macro"
)

// Expander expands the macros of a condition as they are visible at the
// directive with the given ordinal.
type Expander interface {
	Expand(expr string, ordinal int) (string, error)
}

// Tree is the conditional block tree of one file. It is read-only once
// Build returns.
type Tree struct {
	Filename string

	blocks   []*Block
	defines  *macro.Tracker
	macros   *macro.Table
	expander Expander
}

func (t *Tree) Root() *Block {
	return t.blocks[RootID]
}

// Block returns the block with the given id, or nil.
func (t *Tree) Block(id ID) *Block {
	if id < 0 || int(id) >= len(t.blocks) {
		return nil
	}
	return t.blocks[id]
}

// Blocks returns every block except the root in visitation order.
func (t *Tree) Blocks() []*Block {
	return t.blocks[1:]
}

// Len returns the number of blocks, root included.
func (t *Tree) Len() int {
	return len(t.blocks)
}

func (t *Tree) Parent(b *Block) *Block {
	return t.Block(b.Parent)
}

func (t *Tree) Prev(b *Block) *Block {
	return t.Block(b.Prev)
}

func (t *Tree) Children(b *Block) []*Block {
	out := make([]*Block, len(b.Children))
	for i, id := range b.Children {
		out[i] = t.blocks[id]
	}
	return out
}

// Chain returns the alternatives of b's chain up to and including b, head
// first.
func (t *Tree) Chain(b *Block) []*Block {
	var rev []*Block
	for cur := b; cur != nil; cur = t.Prev(cur) {
		rev = append(rev, cur)
	}
	out := make([]*Block, len(rev))
	for i, blk := range rev {
		out[len(rev)-1-i] = blk
	}
	return out
}

// Defines returns the define history of the file.
func (t *Tree) Defines() *macro.Tracker {
	return t.defines
}

// Macros returns the expansion table built while reading the file.
func (t *Tree) Macros() *macro.Table {
	return t.macros
}

// Name returns B00 for the root and B<id> for every other block.
func (t *Tree) Name(b *Block) string {
	if b.ID == RootID {
		return "B00"
	}
	return "B" + strconv.Itoa(int(b.ID))
}

// QualifiedName appends the file discriminator to the block name so that
// blocks of different files can share one formula.
func (t *Tree) QualifiedName(b *Block) string {
	if b.ID == RootID {
		return t.Name(b)
	}
	return t.Name(b) + strings.TrimPrefix(FileVar(t.Filename), "FILE")
}

// FileVar returns the variable naming a source file in formulas.
func FileVar(filename string) string {
	var sb strings.Builder
	sb.WriteString("FILE_")
	for _, r := range filename {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// ExpandedExpression returns the condition of b with all macros visible at
// its directive expanded. It is computed once; later calls return the
// stored result.
func (t *Tree) ExpandedExpression(b *Block) (string, error) {
	b.once.Do(func() {
		switch b.Kind {
		case Root, Else:
		case Ifdef, Ifndef:
			b.expanded = b.Source
		default:
			expr, err := t.expander.Expand(NormalizeHelpers(b.Source), b.Ordinal)
			if err != nil {
				b.expandErr = err
				return
			}
			b.expanded = NormalizeHelpers(expr)
		}
	})
	return b.expanded, b.expandErr
}

// Walk visits the tree depth-first in pre-order. Children of a block are
// skipped when fn returns false for it.
func (t *Tree) Walk(fn func(*Block) bool) {
	t.walk(t.Root(), fn)
}

func (t *Tree) walk(b *Block, fn func(*Block) bool) {
	if !fn(b) {
		return
	}
	for _, id := range b.Children {
		t.walk(t.blocks[id], fn)
	}
}
