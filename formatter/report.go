package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"

	"github.com/gnolang/undertaker/internal"
	"github.com/gnolang/undertaker/internal/block"
	tt "github.com/gnolang/undertaker/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WriteJSON writes defects as an indented JSON array.
func WriteJSON(w io.Writer, defects []tt.Defect) error {
	if defects == nil {
		defects = []tt.Defect{}
	}
	d, err := json.MarshalIndent(defects, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(d, '\n'))
	return err
}

// Summary counts defects per severity and the files they occur in, e.g.
// "3 errors, 1 warning in 2 files".
func Summary(defects []tt.Defect) string {
	if len(defects) == 0 {
		return "no defects found"
	}
	var errs, warnings, infos int
	files := make(map[string]struct{})
	for _, d := range defects {
		files[d.Filename] = struct{}{}
		switch d.Severity {
		case tt.SeverityError:
			errs++
		case tt.SeverityWarning:
			warnings++
		case tt.SeverityInfo:
			infos++
		}
	}

	var parts []string
	if errs > 0 {
		parts = append(parts, count(errs, "error"))
	}
	if warnings > 0 {
		parts = append(parts, count(warnings, "warning"))
	}
	if infos > 0 {
		parts = append(parts, count(infos, "note"))
	}
	return fmt.Sprintf("%s in %s", strings.Join(parts, ", "), count(len(files), "file"))
}

func count(n int, word string) string {
	return humanize.Comma(int64(n)) + " " + english.PluralWord(n, word, "")
}

// BlockRecord is the JSON form of a classified block.
type BlockRecord struct {
	Name       string   `json:"name"`
	Parent     string   `json:"parent"`
	Kind       string   `json:"kind"`
	Expression string   `json:"expression,omitempty"`
	Expanded   string   `json:"expanded,omitempty"`
	StartLine  int      `json:"start_line"`
	EndLine    int      `json:"end_line"`
	Status     string   `json:"status"`
	Missing    []string `json:"missing,omitempty"`
}

// BlockRecords flattens a classification in tree order.
func BlockRecords(res *internal.Result, expand bool) []BlockRecord {
	status := make(map[block.ID]internal.BlockResult, len(res.Blocks))
	for _, br := range res.Blocks {
		status[br.Block.ID] = br
	}

	var out []BlockRecord
	tree := res.Tree
	tree.Walk(func(b *block.Block) bool {
		if b.ID == block.RootID {
			return true
		}
		br := status[b.ID]
		rec := BlockRecord{
			Name:       tree.Name(b),
			Parent:     tree.Name(tree.Parent(b)),
			Kind:       b.Kind.String(),
			Expression: b.Source,
			StartLine:  b.Start.Line,
			EndLine:    b.End.Line,
			Status:     br.Status.String(),
			Missing:    br.Missing,
		}
		if expand {
			if expr, err := tree.ExpandedExpression(b); err == nil && expr != b.Source {
				rec.Expanded = expr
			}
		}
		out = append(out, rec)
		return true
	})
	return out
}

// GenerateBlockListing prints the block tree, one indented line per block.
func GenerateBlockListing(res *internal.Result, expand bool) string {
	depth := map[string]int{"B00": -1}
	var sb strings.Builder
	for _, rec := range BlockRecords(res, expand) {
		d := depth[rec.Parent] + 1
		depth[rec.Name] = d

		expr := rec.Expression
		if rec.Expanded != "" {
			expr += " => " + rec.Expanded
		}
		line := fmt.Sprintf("%s%-4s %-6s %d-%d", strings.Repeat("  ", d), rec.Name, rec.Kind, rec.StartLine, rec.EndLine)
		if expr != "" {
			line += " " + expr
		}
		sb.WriteString(line)
		if rec.Status != tt.StatusAlive.String() {
			sb.WriteString(" ")
			sb.WriteString(statusStyle(rec.Status).Sprintf("[%s]", rec.Status))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func statusStyle(status string) *color.Color {
	switch {
	case status == tt.StatusUnknown.String():
		return infoStyle
	case strings.HasSuffix(status, "undead"):
		return warningStyle
	}
	return errorStyle
}

// WriteBlocksJSON writes the block records of res.
func WriteBlocksJSON(w io.Writer, res *internal.Result, expand bool) error {
	records := BlockRecords(res, expand)
	if records == nil {
		records = []BlockRecord{}
	}
	d, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(d, '\n'))
	return err
}
