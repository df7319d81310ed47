// Package ingest turns a raw manuscript into pipeline segments:
// markdown is flattened to plain text, then split into paragraph
// segments with stable IDs and document order indices.
package ingest

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/google/uuid"

	"github.com/litera-ai/litera/internal/segment"
)

// PlainText renders markdown and strips the resulting tags, leaving
// readable prose.
func PlainText(md []byte) string {
	opts := html.RendererOptions{Flags: html.CommonFlags}
	renderer := html.NewRenderer(opts)
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse(md)
	return stripTags(string(markdown.Render(doc, renderer)))
}

func stripTags(htmlContent string) string {
	var b strings.Builder
	inTag := false
	for _, ch := range htmlContent {
		switch ch {
		case '<':
			inTag = true
		case '>':
			inTag = false
		default:
			if !inTag {
				b.WriteRune(ch)
			}
		}
	}
	return b.String()
}

// Segments splits a manuscript into paragraph segments. When markdownIn
// is set the input is flattened first. Blank paragraphs are dropped;
// indices follow document order.
func Segments(raw []byte, markdownIn bool) []*segment.Segment {
	text := string(raw)
	if markdownIn {
		text = PlainText(raw)
	}

	var segs []*segment.Segment
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		segs = append(segs, &segment.Segment{
			ID:         uuid.NewString(),
			Index:      len(segs),
			SourceText: para,
		})
	}
	return segs
}
