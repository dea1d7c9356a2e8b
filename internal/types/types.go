package types

import (
	"fmt"
	"go/token"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule names reported by the engine.
const (
	RuleCodeDead      = "code-dead"
	RuleKconfigDead   = "kconfig-dead"
	RuleMissing       = "missing"
	RuleCodeUndead    = "code-undead"
	RuleKconfigUndead = "kconfig-undead"
)

// Rules lists every rule in reporting order.
var Rules = []string{RuleCodeDead, RuleKconfigDead, RuleMissing, RuleCodeUndead, RuleKconfigUndead}

// Status is the classification of one conditional block.
type Status int

const (
	StatusAlive Status = iota
	StatusCodeDead
	StatusKconfigDead
	StatusMissing
	StatusCodeUndead
	StatusKconfigUndead
	// StatusUnknown marks blocks whose queries ran out of time.
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusAlive:
		return "alive"
	case StatusUnknown:
		return "unknown"
	}
	return s.Rule()
}

// Rule returns the rule reporting s, or "" when s is not a defect.
func (s Status) Rule() string {
	switch s {
	case StatusCodeDead:
		return RuleCodeDead
	case StatusKconfigDead:
		return RuleKconfigDead
	case StatusMissing:
		return RuleMissing
	case StatusCodeUndead:
		return RuleCodeUndead
	case StatusKconfigUndead:
		return RuleKconfigUndead
	}
	return ""
}

// IsDefect reports whether s is reported as a defect.
func (s Status) IsDefect() bool {
	return s.Rule() != ""
}

// IsDead reports whether the block can never be selected.
func (s Status) IsDead() bool {
	return s == StatusCodeDead || s == StatusKconfigDead || s == StatusMissing
}

// Severity orders defects for reporting. SeverityOff disables a rule.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
	SeverityOff
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "ERROR"
	case SeverityWarning:
		return "WARNING"
	case SeverityInfo:
		return "INFO"
	case SeverityOff:
		return "OFF"
	}
	return "UNKNOWN"
}

// ParseSeverity accepts the names printed by String in any case.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return SeverityError, nil
	case "WARNING":
		return SeverityWarning, nil
	case "INFO":
		return SeverityInfo, nil
	case "OFF":
		return SeverityOff, nil
	}
	return SeverityError, fmt.Errorf("unknown severity %q", s)
}

func (s Severity) MarshalYAML() (any, error) {
	return s.String(), nil
}

func (s *Severity) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParseSeverity(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*s = v
	return nil
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ConfigRule is the per-rule section of the configuration file.
type ConfigRule struct {
	Severity Severity `yaml:"severity"`
}

// DefaultSeverity is used for rules the configuration does not mention.
func DefaultSeverity(rule string) Severity {
	switch rule {
	case RuleCodeUndead, RuleKconfigUndead:
		return SeverityWarning
	}
	return SeverityError
}

// Defect is a dead or undead block found in a source file.
type Defect struct {
	Rule     string
	Severity Severity
	Filename string
	// Block is the block name, B<id>.
	Block string
	// Directive is the keyword opening the block, e.g. "#ifdef".
	Directive  string
	Expression string
	Model      string
	Message    string
	Start      token.Position
	End        token.Position
	// Witness assigns the referenced symbols so that the code alone lets
	// the block go the other way. Only set for model defects on request.
	Witness map[string]bool `json:",omitempty"`
}
