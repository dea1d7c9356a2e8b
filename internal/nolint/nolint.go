package nolint

import (
	"fmt"
	"go/token"
	"strings"

	"github.com/gnolang/undertaker/internal/directive"
)

const nolintPrefix = "nolint"

// Manager manages nolint scopes and checks if a position is nolinted.
type Manager struct {
	// scopes maps filename to a slice of nolint scopes.
	scopes map[string][]nolintScope
}

// nolintScope represents a range of lines where nolint applies.
type nolintScope struct {
	rules map[string]struct{}
	start token.Position
	end   token.Position
}

// ParseComments collects the nolint comments of a scanned unit.
func ParseComments(unit *directive.Unit) *Manager {
	manager := Manager{
		scopes: make(map[string][]nolintScope),
	}
	byLine := indexDirectivesByLine(unit.Directives)

	firstLine := 0
	if len(unit.Directives) > 0 {
		firstLine = unit.Directives[0].Pos.Line
	}

	for _, c := range unit.Comments {
		ns, err := parseComment(c, unit, byLine, firstLine)
		if err != nil {
			// ignore invalid nolint comments
			continue
		}
		manager.scopes[unit.Filename] = append(manager.scopes[unit.Filename], ns)
	}
	return &manager
}

// parseComment parses a single nolint comment and determines its scope.
func parseComment(c directive.Comment, unit *directive.Unit, byLine map[int]int, firstLine int) (nolintScope, error) {
	var ns nolintScope

	text, ok := commentBody(c.Text)
	if !ok || !strings.HasPrefix(text, nolintPrefix) {
		return ns, fmt.Errorf("invalid nolint comment")
	}
	rest := text[len(nolintPrefix):]

	// A nolint comment can either have a list of rules after a colon (:)
	// or if no rules are specified, it applies to all rules
	if len(rest) > 0 && rest[0] != ':' {
		return ns, fmt.Errorf("invalid nolint comment format")
	}
	if len(rest) > 0 {
		rest = strings.TrimSpace(rest[1:])
		if rest == "" {
			return ns, fmt.Errorf("invalid nolint comment: no rules specified after colon")
		}
	}
	ns.rules = parseIgnoreRuleNames(rest)

	pos := c.Pos
	pos.Filename = unit.Filename

	// before the first directive the comment covers the whole file
	if firstLine == 0 || pos.Line < firstLine {
		ns.start = token.Position{Filename: unit.Filename, Line: 1}
		ns.end = token.Position{Filename: unit.Filename, Line: maxLine(unit)}
		return ns, nil
	}

	// inline with a conditional: the alternative it opens
	if i, ok := byLine[pos.Line]; ok && unit.Directives[i].Pos.Column < pos.Column {
		if end, ok := alternativeEnd(unit.Directives, i); ok {
			ns.start = unit.Directives[i].Pos
			ns.end = end
			return ns, nil
		}
	}

	// standalone, directly above a conditional
	if i, ok := byLine[pos.Line+1]; ok {
		if end, ok := alternativeEnd(unit.Directives, i); ok {
			ns.start = pos
			ns.end = end
			return ns, nil
		}
	}

	ns.start = pos
	ns.end = pos
	return ns, nil
}

// commentBody strips the comment markers and surrounding blanks.
func commentBody(text string) (string, bool) {
	switch {
	case strings.HasPrefix(text, "//"):
		return strings.TrimSpace(text[2:]), true
	case strings.HasPrefix(text, "/*"):
		text = strings.TrimSuffix(text[2:], "*/")
		return strings.TrimSpace(text), true
	}
	return "", false
}

// parseIgnoreRuleNames parses the rule list from the nolint comment.
func parseIgnoreRuleNames(text string) map[string]struct{} {
	rulesMap := make(map[string]struct{})
	if text == "" {
		return rulesMap
	}
	rules := strings.Split(text, ",")
	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		if rule != "" {
			rulesMap[rule] = struct{}{}
		}
	}
	return rulesMap
}

// indexDirectivesByLine maps each line to the first conditional directive
// on it.
func indexDirectivesByLine(ds []directive.Directive) map[int]int {
	byLine := make(map[int]int)
	for i, d := range ds {
		if !d.Kind.Opens() && !d.Kind.Continues() {
			continue
		}
		if _, exists := byLine[d.Pos.Line]; !exists {
			byLine[d.Pos.Line] = i
		}
	}
	return byLine
}

// alternativeEnd returns the last line of the alternative started by
// ds[open], the line before the directive closing it.
func alternativeEnd(ds []directive.Directive, open int) (token.Position, bool) {
	depth := 0
	for i := open + 1; i < len(ds); i++ {
		switch k := ds[i].Kind; {
		case k.Opens():
			depth++
		case k == directive.Endif:
			if depth == 0 {
				return lineBefore(ds[i].Pos), true
			}
			depth--
		case k.Continues():
			if depth == 0 {
				return lineBefore(ds[i].Pos), true
			}
		}
	}
	return token.Position{}, false
}

func lineBefore(pos token.Position) token.Position {
	return token.Position{Filename: pos.Filename, Line: pos.Line - 1}
}

func maxLine(unit *directive.Unit) int {
	line := 1
	for _, d := range unit.Directives {
		line = max(line, d.Pos.Line)
	}
	for _, c := range unit.Comments {
		line = max(line, c.Pos.Line+strings.Count(c.Text, "\n"))
	}
	return line
}

// IsNolint checks if a given position and rule are nolinted.
func (m *Manager) IsNolint(pos token.Position, ruleName string) bool {
	scopes, exists := m.scopes[pos.Filename]
	if !exists {
		return false
	}
	for _, ns := range scopes {
		if pos.Line < ns.start.Line || pos.Line > ns.end.Line {
			continue
		}
		// If the rules list is empty, nolint applies to all rules
		if len(ns.rules) == 0 {
			return true
		}
		if _, exists := ns.rules[ruleName]; exists {
			return true
		}
	}
	return false
}
