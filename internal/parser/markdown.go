package parser

import (
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

func parseMarkdownFile(filePath string) (document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return document{}, err
	}
	return parseMarkdown(data), nil
}

// parseMarkdown keeps the markdown source as chunk text. The first heading
// becomes the title and the first paragraph the summary.
func parseMarkdown(src []byte) document {
	doc := document{text: string(src)}
	root := markdown.Parser().Parse(text.NewReader(src))

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading:
			if doc.title == "" {
				doc.title = inlineText(n, src)
			}
			return ast.WalkSkipChildren, nil
		case ast.KindParagraph:
			if doc.summary == "" {
				doc.summary = truncate(inlineText(n, src), maxSummaryLen)
			}
			return ast.WalkSkipChildren, nil
		}
		if doc.title != "" && doc.summary != "" {
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	return doc
}

// inlineText concatenates the literal text under n.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
