package web

import (
	"bytes"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithUnsafe(),
		),
	)

	answerPolicy = newAnswerPolicy()
)

// newAnswerPolicy is the UGC policy plus fenced-code language classes, which
// goldmark emits as class="language-xxx".
func newAnswerPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w+-]+$`)).OnElements("code")
	return p
}

// RenderAnswer converts a model reply written in markdown to sanitized HTML.
// Raw HTML in the reply passes through goldmark and is then filtered by the
// sanitizer, so script tags and event handlers never reach the page.
// Returns empty string for empty input.
func RenderAnswer(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return answerPolicy.Sanitize(src)
	}

	return answerPolicy.Sanitize(buf.String())
}
