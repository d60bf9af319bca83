package main

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

const markdownCacheSize = 32

// markdownRenderer renders review summaries with glamour and caches the
// output, since the result view is redrawn on every animation frame.
type markdownRenderer struct {
	r     *glamour.TermRenderer
	cache map[string]string
}

func newMarkdownRenderer(style string, wordWrap int) *markdownRenderer {
	if wordWrap <= 0 {
		wordWrap = 80
	}
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(wordWrap)}
	switch strings.ToLower(strings.TrimSpace(style)) {
	case "", "auto":
		opts = append(opts, glamour.WithAutoStyle())
	default:
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		r = nil
	}
	return &markdownRenderer{r: r, cache: map[string]string{}}
}

// Render returns text as terminal markdown, or text unchanged when it
// cannot be rendered.
func (mr *markdownRenderer) Render(text string) string {
	if mr == nil || mr.r == nil || strings.TrimSpace(text) == "" {
		return text
	}
	if out, ok := mr.cache[text]; ok {
		return out
	}
	out, err := mr.r.Render(text)
	if err != nil {
		return text
	}
	out = strings.Trim(out, "\n")
	if len(mr.cache) >= markdownCacheSize {
		mr.cache = map[string]string{}
	}
	mr.cache[text] = out
	return out
}
