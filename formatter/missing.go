package formatter

// MissingSymbolFormatter adds a hint to blocks that only die because the
// model lacks some of their symbols.
type MissingSymbolFormatter struct{}

func (f *MissingSymbolFormatter) DefectTemplate() string {
	return `{{header .Rule .Severity .MaxLineNumWidth .Filename .StartLine .StartColumn -}}
{{snippet .SnippetLines .StartLine .EndLine .MaxLineNumWidth .CommonIndent .Padding -}}
{{underlineAndMessage .Message .Padding .StartLine .StartColumn .SnippetLines .CommonIndent -}}
{{help "declare the symbols in Kconfig or drop the references" .Padding -}}
{{witness .Witness .Padding}}
`
}
