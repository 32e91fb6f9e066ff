// SPDX-License-Identifier: MIT

// Package render turns markdown page bodies into HTML and extracts the
// structural facts (headings, links, code blocks) the lint and site
// stages work from.
package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	"github.com/md2site/md2site/internal/content"
)

// Version identifies the renderer output format. Cache entries are keyed
// by (page checksum, Version), so bumping it invalidates every cached
// render after an output-affecting change.
const Version = "2"

// Heading is one heading with its assigned anchor.
type Heading struct {
	Level  int    `json:"level"`
	Text   string `json:"text"`
	Anchor string `json:"anchor"`
	Line   int    `json:"line"`
}

// Link is one outgoing link or image reference.
type Link struct {
	Destination string `json:"destination"`
	Text        string `json:"text,omitempty"`
	Line        int    `json:"line"`
	IsImage     bool   `json:"is_image,omitempty"`
}

// CodeBlock is one fenced code block.
type CodeBlock struct {
	Language string `json:"language,omitempty"`
	Body     string `json:"body"`
	Line     int    `json:"line"`
}

// Doc is the rendered form of a page body.
type Doc struct {
	HTML       string      `json:"html"`
	Headings   []Heading   `json:"headings,omitempty"`
	Links      []Link      `json:"links,omitempty"`
	CodeBlocks []CodeBlock `json:"code_blocks,omitempty"`
}

// Renderer renders markdown with GFM extensions. Raw HTML is passed
// through: pages are trusted, authored content.
type Renderer struct {
	md goldmark.Markdown
}

// New creates a renderer.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAttribute()),
			goldmark.WithRendererOptions(htmlrenderer.WithUnsafe()),
		),
	}
}

// Render converts the page body to HTML. Heading anchors are assigned
// deterministically (GitHub-style, duplicate-suffixed) before rendering so
// the emitted id attributes match the anchors reported in the Doc.
func (r *Renderer) Render(page *content.Page) (*Doc, error) {
	source := []byte(page.Body)
	root := r.md.Parser().Parse(text.NewReader(source))

	doc := &Doc{}
	anchors := content.NewAnchorSet()
	lineOffset := page.BodyLine - 1

	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			textContent := string(node.Text(source))
			anchor := anchors.Anchor(textContent)
			node.SetAttributeString("id", []byte(anchor))
			doc.Headings = append(doc.Headings, Heading{
				Level:  node.Level,
				Text:   textContent,
				Anchor: anchor,
				Line:   blockLine(node, source, lineOffset),
			})
		case *ast.Link:
			doc.Links = append(doc.Links, Link{
				Destination: string(node.Destination),
				Text:        string(node.Text(source)),
				Line:        inlineLine(node, source, lineOffset),
			})
		case *ast.Image:
			doc.Links = append(doc.Links, Link{
				Destination: string(node.Destination),
				Text:        string(node.Text(source)),
				Line:        inlineLine(node, source, lineOffset),
				IsImage:     true,
			})
		case *ast.AutoLink:
			doc.Links = append(doc.Links, Link{
				Destination: string(node.URL(source)),
				Line:        inlineLine(node, source, lineOffset),
			})
		case *ast.FencedCodeBlock:
			var lang string
			if node.Info != nil {
				lang = string(node.Language(source))
			}
			doc.CodeBlocks = append(doc.CodeBlocks, CodeBlock{
				Language: lang,
				Body:     blockText(node, source),
				Line:     blockLine(node, source, lineOffset),
			})
		case *ast.HTMLBlock:
			raw := blockText(node, source)
			line := blockLine(node, source, lineOffset)
			doc.Links = append(doc.Links, htmlLinks(raw, line)...)
		case *ast.RawHTML:
			raw := rawHTMLText(node, source)
			doc.Links = append(doc.Links, htmlLinks(raw, inlineLine(node, source, lineOffset))...)
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk markdown ast: %w", err)
	}

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, source, root); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	doc.HTML = buf.String()

	return doc, nil
}

// blockLine reports the 1-based source-file line where a block node starts.
func blockLine(n ast.Node, source []byte, offset int) int {
	lines := n.Lines()
	if lines.Len() > 0 {
		return lineAt(source, lines.At(0).Start) + offset
	}
	// Empty fenced blocks have no content lines; fall back to a child or 1.
	return 1 + offset
}

// inlineLine reports the line of an inline node via its first text segment.
func inlineLine(n ast.Node, source []byte, offset int) int {
	if t, ok := n.(*ast.Text); ok {
		return lineAt(source, t.Segment.Start) + offset
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			return lineAt(source, t.Segment.Start) + offset
		}
		if l := inlineLine(c, source, 0); l > 1 {
			return l + offset
		}
	}
	// No text child (e.g. image-only link): use the parent block.
	if parent := n.Parent(); parent != nil && parent.Type() == ast.TypeBlock {
		return blockLine(parent, source, offset)
	}
	return 1 + offset
}

func lineAt(source []byte, byteOffset int) int {
	if byteOffset > len(source) {
		byteOffset = len(source)
	}
	return 1 + bytes.Count(source[:byteOffset], []byte("\n"))
}

func blockText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

func rawHTMLText(n *ast.RawHTML, source []byte) string {
	var buf bytes.Buffer
	for i := 0; i < n.Segments.Len(); i++ {
		seg := n.Segments.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}
