package formatter

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"unicode"

	"github.com/fatih/color"

	"github.com/gnolang/undertaker/internal"
	tt "github.com/gnolang/undertaker/internal/types"
)

const (
	tabWidth = 8
	// maxSnippetLines bounds the lines shown for one block; longer blocks
	// are elided in the middle.
	maxSnippetLines = 6
)

var (
	errorStyle      = color.New(color.FgRed, color.Bold)
	warningStyle    = color.New(color.FgHiYellow, color.Bold)
	infoStyle       = color.New(color.FgHiCyan, color.Bold)
	ruleStyle       = color.New(color.FgYellow, color.Bold)
	fileStyle       = color.New(color.FgCyan, color.Bold)
	lineStyle       = color.New(color.FgHiBlue, color.Bold)
	messageStyle    = color.New(color.FgRed, color.Bold)
	suggestionStyle = color.New(color.FgGreen, color.Bold)
)

// defectFormatter is the interface that wraps the DefectTemplate method.
type defectFormatter interface {
	DefectTemplate() string
}

// getDefectFormatter returns the formatter for rule, the general one when
// the rule has no dedicated formatter.
func getDefectFormatter(rule string) defectFormatter {
	switch rule {
	case tt.RuleMissing:
		return &MissingSymbolFormatter{}
	default:
		return &GeneralDefectFormatter{}
	}
}

// GenerateFormattedDefects renders the defects of one source file.
func GenerateFormattedDefects(defects []tt.Defect, snippet *internal.SourceCode) string {
	var builder strings.Builder
	for _, d := range defects {
		builder.WriteString(buildDefect(d, snippet, getDefectFormatter(d.Rule)))
	}
	return builder.String()
}

type DefectData struct {
	Severity        string
	Rule            string
	Filename        string
	Block           string
	Model           string
	Padding         string
	StartLine       int
	StartColumn     int
	EndLine         int
	MaxLineNumWidth int
	Message         string
	Witness         map[string]bool
	SnippetLines    []string
	CommonIndent    string
}

func buildDefect(d tt.Defect, snippet *internal.SourceCode, formatter defectFormatter) string {
	startLine := d.Start.Line
	endLine := d.End.Line
	maxLineNumWidth := calculateMaxLineNumWidth(endLine)
	padding := strings.Repeat(" ", maxLineNumWidth+1)

	var commonIndent string
	if isValidLineRange(startLine, endLine, snippet.Lines) {
		commonIndent = findCommonIndent(snippet.Lines[startLine-1 : endLine])
	}

	data := DefectData{
		Severity:        d.Severity.String(),
		Rule:            d.Rule,
		Filename:        d.Filename,
		Block:           d.Block,
		Model:           d.Model,
		StartLine:       startLine,
		StartColumn:     d.Start.Column,
		EndLine:         endLine,
		Message:         d.Message,
		Witness:         d.Witness,
		MaxLineNumWidth: maxLineNumWidth,
		Padding:         padding,
		CommonIndent:    commonIndent,
		SnippetLines:    snippet.Lines,
	}

	funcMap := template.FuncMap{
		"header":              header,
		"snippet":             codeSnippet,
		"underlineAndMessage": underlineAndMessage,
		"witness":             witness,
		"help":                help,
	}

	tmpl := template.Must(template.New("defect").Funcs(funcMap).Parse(formatter.DefectTemplate()))

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting defect: %v", err)
	}
	return buf.String()
}

// utils functions used in the text templates

func header(rule string, severity string, maxLineNumWidth int, filename string, startLine int, startColumn int) string {
	var endString string
	switch severity {
	case "ERROR":
		endString = errorStyle.Sprint("error: ")
	case "WARNING":
		endString = warningStyle.Sprint("warning: ")
	case "INFO":
		endString = infoStyle.Sprint("info: ")
	}

	endString += ruleStyle.Sprintf("%s\n", rule)

	padding := strings.Repeat(" ", maxLineNumWidth)
	endString += lineStyle.Sprintf("%s--> ", padding)
	endString += fileStyle.Sprintf("%s:%d:%d\n", filename, startLine, startColumn)

	return endString
}

func codeSnippet(snippetLines []string, startLine int, endLine int, maxLineNumWidth int, commonIndent string, padding string) string {
	endString := lineStyle.Sprintf("%s|\n", padding)

	printLine := func(i int) {
		if i-1 < 0 || i-1 >= len(snippetLines) {
			return
		}
		line := strings.TrimPrefix(snippetLines[i-1], commonIndent)
		endString += lineStyle.Sprintf("%*d | ", maxLineNumWidth, i) + line + "\n"
	}

	if endLine-startLine+1 <= maxSnippetLines {
		for i := startLine; i <= endLine; i++ {
			printLine(i)
		}
		return endString
	}

	for i := startLine; i < startLine+maxSnippetLines-1; i++ {
		printLine(i)
	}
	endString += lineStyle.Sprintf("%s| ...\n", padding)
	printLine(endLine)
	return endString
}

// underlineAndMessage marks the directive opening the block.
func underlineAndMessage(message string, padding string, startLine int, startColumn int, snippetLines []string, commonIndent string) string {
	if startLine <= 0 || startLine > len(snippetLines) {
		return lineStyle.Sprintf("%s= ", padding) + messageStyle.Sprintf("%s\n", message)
	}
	endString := lineStyle.Sprintf("%s| ", padding)

	line := strings.TrimRightFunc(snippetLines[startLine-1], unicode.IsSpace)
	commonIndentWidth := calculateVisualColumn(commonIndent, len(commonIndent)+1)

	underlineStart := max(calculateVisualColumn(line, startColumn)-commonIndentWidth, 0)
	underlineEnd := calculateVisualColumn(line, len(line)+1) - commonIndentWidth
	underlineLength := max(underlineEnd-underlineStart, 1)

	endString += strings.Repeat(" ", underlineStart)
	endString += messageStyle.Sprintf("%s\n", strings.Repeat("~", underlineLength))

	endString += lineStyle.Sprintf("%s= ", padding)
	endString += messageStyle.Sprintf("%s\n", message)

	return endString
}

// witness renders a symbol assignment as name=y / name=n pairs.
func witness(values map[string]bool, padding string) string {
	if len(values) == 0 {
		return ""
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, len(names))
	for i, name := range names {
		v := "n"
		if values[name] {
			v = "y"
		}
		pairs[i] = name + "=" + v
	}
	return lineStyle.Sprintf("%s= ", padding) + suggestionStyle.Sprint("witness: ") + strings.Join(pairs, " ") + "\n"
}

func help(text string, padding string) string {
	return lineStyle.Sprintf("%s= ", padding) + suggestionStyle.Sprint("help: ") + text + "\n"
}

func isValidLineRange(startLine int, endLine int, snippetLines []string) bool {
	return startLine > 0 &&
		endLine > 0 &&
		startLine <= endLine &&
		startLine <= len(snippetLines) &&
		endLine <= len(snippetLines)
}

func calculateMaxLineNumWidth(endLine int) int {
	return len(fmt.Sprintf("%d", endLine))
}

// calculateVisualColumn calculates the visual column position
// in a string. taking into account tab characters.
func calculateVisualColumn(line string, column int) int {
	if column < 0 {
		return 0
	}
	visualColumn := 0
	for i, ch := range line {
		if i+1 == column {
			break
		}
		if ch == '\t' {
			visualColumn += tabWidth - (visualColumn % tabWidth)
		} else {
			visualColumn++
		}
	}
	return visualColumn
}

// findCommonIndent finds the common indent in the code snippet.
func findCommonIndent(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	// find first non-empty line's indent
	var firstIndent []rune
	for _, line := range lines {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed != "" {
			firstIndent = []rune(line[:len(line)-len(trimmed)])
			break
		}
	}

	if len(firstIndent) == 0 {
		return ""
	}

	for _, line := range lines {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed == "" {
			continue
		}

		currentIndent := []rune(line[:len(line)-len(trimmed)])
		firstIndent = commonPrefix(firstIndent, currentIndent)

		if len(firstIndent) == 0 {
			break
		}
	}

	return string(firstIndent)
}

func commonPrefix(a, b []rune) []rune {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}
