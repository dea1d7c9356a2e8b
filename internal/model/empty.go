package model

import (
	"context"
	"time"

	"github.com/gnolang/undertaker/internal/logic"
)

// EmptyModel knows no symbols and imposes no constraints. Queries are
// decided on the formula alone.
type EmptyModel struct {
	arch   string
	oracle *Oracle
}

var _ Model = (*EmptyModel)(nil)

// Empty returns a model for arch without any symbol.
func Empty(arch string, opts ...Option) *EmptyModel {
	return &EmptyModel{
		arch:   arch,
		oracle: NewOracle(logic.NewVarMap(), nil, opts...),
	}
}

func (m *EmptyModel) Name() string { return m.arch }
func (m *EmptyModel) IsBoolean(string) bool { return false }
func (m *EmptyModel) IsTristate(string) bool { return false }
func (m *EmptyModel) Type(string) SymbolType { return Missing }
func (m *EmptyModel) ContainsSymbol(string) bool { return false }
func (m *EmptyModel) MetaValue(string) ([]string, bool) { return nil, false }
func (m *EmptyModel) VersionIdentifier() string { return "none" }
func (m *EmptyModel) Symbols() []string { return nil }

// Timeout returns the per-query time limit of the model's oracle.
func (m *EmptyModel) Timeout() time.Duration { return m.oracle.Timeout() }

func (m *EmptyModel) Satisfiable(ctx context.Context, f logic.Formula) (Answer, error) {
	return m.oracle.Satisfiable(ctx, f)
}
