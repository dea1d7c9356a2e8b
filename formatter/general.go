package formatter

type GeneralDefectFormatter struct{}

func (f *GeneralDefectFormatter) DefectTemplate() string {
	return `{{header .Rule .Severity .MaxLineNumWidth .Filename .StartLine .StartColumn -}}
{{snippet .SnippetLines .StartLine .EndLine .MaxLineNumWidth .CommonIndent .Padding -}}
{{underlineAndMessage .Message .Padding .StartLine .StartColumn .SnippetLines .CommonIndent -}}
{{witness .Witness .Padding}}
`
}
