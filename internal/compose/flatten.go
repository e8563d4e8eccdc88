// ABOUTME: Flattens engine markdown output into LINE-friendly plain text.
// ABOUTME: Walks the goldmark AST, keeping text and turning list items into bullets.

package compose

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Flatten converts markdown to plain text. Emphasis and heading markers
// are dropped, list items become bullet lines, and code blocks keep their
// content verbatim. LINE text messages render no markup, so answers are
// flattened before chunking.
func Flatten(markdown string) string {
	source := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
		case *ast.ListItem:
			if entering {
				b.WriteString("• ")
			}
		case *ast.TextBlock:
			if !entering {
				b.WriteByte('\n')
			}
		case *ast.Paragraph:
			if !entering {
				b.WriteString("\n\n")
			}
		case *ast.Heading:
			if !entering {
				b.WriteString("\n\n")
			}
		case *ast.FencedCodeBlock:
			if entering {
				writeLines(&b, source, node)
				b.WriteByte('\n')
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock:
			if entering {
				writeLines(&b, source, node)
				b.WriteByte('\n')
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}

// writeLines copies a code block's raw lines into the builder.
func writeLines(b *strings.Builder, source []byte, node ast.Node) {
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
}
