package report

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Raw HTML in model output is escaped, not passed through.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// RenderHTML converts the markdown report into a standalone HTML page.
func RenderHTML(r *Result, title string) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(r.ReportText), &body); err != nil {
		return "", fmt.Errorf("rendering report markdown: %w", err)
	}

	var footer string
	if r.Metadata.UsingDSM5 && r.Metadata.DSM5FileDetails != nil {
		footer = fmt.Sprintf("<footer>Fuente de referencia: DSM-5 (%s)</footer>\n",
			html.EscapeString(r.Metadata.DSM5FileDetails.FileName))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="%s">
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
<article>
%s</article>
%s</body>
</html>
`, html.EscapeString(lang(r.Metadata.Options.Language)), html.EscapeString(title), body.String(), footer), nil
}

func lang(l string) string {
	if l == "" {
		return "es"
	}
	return l
}
