// Package macro keeps the per-file macro state needed while building
// conditional block trees: the define/undefine history of every symbol and
// an ordinal-scoped table of expandable macros.
package macro

import (
	"errors"
	"sort"
)

// ErrFrozen is returned when a history is modified after the file has been
// fully built.
var ErrFrozen = errors.New("macro tracker is frozen")

// Event is one #define or #undef of a symbol.
type Event struct {
	// Block is the id of the innermost block enclosing the directive.
	Block int
	// IsDefine is false for #undef.
	IsDefine bool
	// Ordinal is the index of the directive in the file's stream.
	Ordinal int
	// Function marks function-like macro definitions.
	Function bool
}

// Define collects every event of a single symbol. Block and IsDefine mirror
// the most recent event.
type Define struct {
	Symbol   string
	Block    int
	IsDefine bool
	History  []Event
}

// Last returns the most recent event.
func (d *Define) Last() Event {
	return d.History[len(d.History)-1]
}

// Tracker records the define history of one file.
type Tracker struct {
	defines map[string]*Define
	order   []string
	frozen  bool
}

func NewTracker() *Tracker {
	return &Tracker{defines: make(map[string]*Define)}
}

// RecordDefine appends a #define of symbol made inside block.
func (t *Tracker) RecordDefine(symbol string, block, ordinal int, function bool) (*Define, error) {
	return t.record(symbol, Event{Block: block, IsDefine: true, Ordinal: ordinal, Function: function})
}

// RecordUndefine appends an #undef of symbol made inside block.
func (t *Tracker) RecordUndefine(symbol string, block, ordinal int) (*Define, error) {
	return t.record(symbol, Event{Block: block, Ordinal: ordinal})
}

func (t *Tracker) record(symbol string, ev Event) (*Define, error) {
	if t.frozen {
		return nil, ErrFrozen
	}
	d, ok := t.defines[symbol]
	if !ok {
		d = &Define{Symbol: symbol}
		t.defines[symbol] = d
		t.order = append(t.order, symbol)
	}
	d.History = append(d.History, ev)
	d.Block = ev.Block
	d.IsDefine = ev.IsDefine
	return d, nil
}

func (t *Tracker) Lookup(symbol string) (*Define, bool) {
	d, ok := t.defines[symbol]
	return d, ok
}

// IsObjectMacro reports whether the latest event of symbol defines an
// object-like macro.
func (t *Tracker) IsObjectMacro(symbol string) bool {
	d, ok := t.defines[symbol]
	if !ok {
		return false
	}
	last := d.Last()
	return last.IsDefine && !last.Function
}

// StateAt returns the latest event of symbol that precedes ordinal.
func (t *Tracker) StateAt(symbol string, ordinal int) (Event, bool) {
	d, ok := t.defines[symbol]
	if !ok {
		return Event{}, false
	}
	n := t.VersionAt(symbol, ordinal)
	if n == 0 {
		return Event{}, false
	}
	return d.History[n-1], true
}

// VersionAt returns how many events of symbol precede ordinal. Version 0
// is the value the symbol has on entry to the file.
func (t *Tracker) VersionAt(symbol string, ordinal int) int {
	d, ok := t.defines[symbol]
	if !ok {
		return 0
	}
	return sort.Search(len(d.History), func(i int) bool {
		return d.History[i].Ordinal >= ordinal
	})
}

// Symbols returns every tracked symbol in order of first appearance.
func (t *Tracker) Symbols() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Freeze makes every history immutable.
func (t *Tracker) Freeze() {
	t.frozen = true
}

func (t *Tracker) Frozen() bool {
	return t.frozen
}
