package email

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// mdRenderer turns notification bodies into HTML. Tables are needed for the
// admin digest; raw HTML in the source is never passed through.
var mdRenderer = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

const layout = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>%s</title></head>
<body style="font-family:Arial,sans-serif;line-height:1.5;color:#222">
%s</body></html>
`

// RenderHTML converts a markdown notification body into a complete HTML email.
// PRE: markdown is UTF-8
// POST: Returns an HTML document; the title is escaped
func RenderHTML(subject, markdown string) (string, error) {
	var body bytes.Buffer
	if err := mdRenderer.Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return fmt.Sprintf(layout, html.EscapeString(subject), body.String()), nil
}
