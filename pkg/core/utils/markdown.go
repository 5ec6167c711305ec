package utils

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// ValidateMarkdown parses the input and reports whether it produced at
// least one block node.
func ValidateMarkdown(input string) bool {
	if strings.TrimSpace(input) == "" {
		return false
	}
	doc := markdown.Parser().Parse(text.NewReader([]byte(input)))
	return doc != nil && doc.HasChildren()
}

// CountTables returns the number of GFM tables in the document.
func CountTables(input string) int {
	doc := markdown.Parser().Parse(text.NewReader([]byte(input)))
	n := 0
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && node.Kind().String() == "Table" {
			n++
		}
		return ast.WalkContinue, nil
	})
	return n
}

// MarkdownToHTML renders markdown with GFM tables enabled.
func MarkdownToHTML(input string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(input), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
