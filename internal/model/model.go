// Package model provides configuration models: the universe of feature
// symbols of a build target together with the constraints between them.
package model

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gnolang/undertaker/internal/logic"
)

// ErrModelLoad reports a model file that is missing, corrupt or whose
// architecture cannot be determined.
var ErrModelLoad = errors.New("cannot load configuration model")

// DefaultPrefix is prepended to Kconfig symbol names in C sources.
const DefaultPrefix = "CONFIG_"

// Metadata keys with a meaning to the analysis.
const (
	MetaAlwaysOn     = "ALWAYS_ON"
	MetaAlwaysOff    = "ALWAYS_OFF"
	MetaIncomplete   = "CONFIGURATION_SPACE_INCOMPLETE"
	MetaConfigRegexp = "CONFIGURATION_SPACE_REGEX"
)

// SymbolType is the Kconfig type of a symbol.
type SymbolType int

const (
	Missing SymbolType = iota
	Boolean
	Tristate
	String
	Hex
	Integer
)

func (t SymbolType) String() string {
	switch t {
	case Boolean:
		return "boolean"
	case Tristate:
		return "tristate"
	case String:
		return "string"
	case Hex:
		return "hex"
	case Integer:
		return "integer"
	default:
		return "missing"
	}
}

// ParseSymbolType accepts a type name or the numeric Kconfig type code.
func ParseSymbolType(s string) (SymbolType, bool) {
	switch strings.ToLower(s) {
	case "boolean", "bool", "1":
		return Boolean, true
	case "tristate", "2":
		return Tristate, true
	case "integer", "int", "3":
		return Integer, true
	case "hex", "4":
		return Hex, true
	case "string", "5":
		return String, true
	}
	return Missing, false
}

// ConfigurationModel answers questions about the symbols of one target.
// Symbols may be given with or without the prefix.
type ConfigurationModel interface {
	// Name returns the architecture the model describes.
	Name() string
	IsBoolean(symbol string) bool
	IsTristate(symbol string) bool
	Type(symbol string) SymbolType
	ContainsSymbol(symbol string) bool
	MetaValue(key string) ([]string, bool)
	// VersionIdentifier names the backing format.
	VersionIdentifier() string
}

// Verdict is the outcome of a satisfiability query.
type Verdict int

const (
	Unknown Verdict = iota
	Sat
	Unsat
)

func (v Verdict) String() string {
	switch v {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Answer is the result of a query. Assignment holds a witness over the
// variables of the query when the verdict is Sat.
type Answer struct {
	Verdict    Verdict
	Assignment map[string]bool
}

// Satisfier decides formulas together with the constraints of a model.
type Satisfier interface {
	Satisfiable(ctx context.Context, f logic.Formula) (Answer, error)
}

// Model is a configuration model that can also decide formulas.
type Model interface {
	ConfigurationModel
	Satisfier
	// Symbols lists every symbol the model knows, without helper
	// variables.
	Symbols() []string
}

// Variables is implemented by models whose formula variables may be spelled
// differently from the symbols in the source.
type Variables interface {
	// Variable returns the formula variable of symbol.
	Variable(symbol string) (string, bool)
}

// Option configures model loading.
type Option func(*options)

type options struct {
	timeout time.Duration
	prefix  string
	logger  *zap.Logger
}

func defaultOptions() options {
	return options{
		prefix: DefaultPrefix,
		logger: zap.NewNop(),
	}
}

// WithTimeout bounds every satisfiability query. Zero means no bound
// besides the context deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithPrefix sets the prefix normalized by symbol lookups.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// candidates returns the spellings of symbol to try, the given one first.
func candidates(symbol, prefix string) []string {
	if prefix == "" {
		return []string{symbol}
	}
	if rest, ok := strings.CutPrefix(symbol, prefix); ok {
		return []string{symbol, rest}
	}
	return []string{symbol, prefix + symbol}
}
