// Package ingest builds the document index offline from a folder of
// reference documents and optional seed URLs.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

// Document is loaded source text before splitting.
type Document struct {
	Source string
	Text   string
}

// Supported reports whether path has an extension LoadFile understands.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".md", ".markdown", ".html", ".htm", ".txt":
		return true
	}
	return false
}

// LoadFile reads one source document. PDFs yield one Document per page.
func LoadFile(ctx context.Context, path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var body string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		pages, err := pdfPages(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("failed to load pdf %s: %w", path, err)
		}
		docs := make([]Document, 0, len(pages))
		for _, p := range pages {
			if strings.TrimSpace(p) != "" {
				docs = append(docs, Document{Source: path, Text: p})
			}
		}
		return docs, nil
	case ".md", ".markdown":
		body = MarkdownText(data)
	case ".html", ".htm":
		page, err := parseHTML(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse html %s: %w", path, err)
		}
		body = page.Text
	case ".txt":
		body = string(data)
	default:
		return nil, fmt.Errorf("unsupported document type: %s", path)
	}

	if strings.TrimSpace(body) == "" {
		return nil, nil
	}
	return []Document{{Source: path, Text: body}}, nil
}

// ExtractPDFText returns the text of every page of a PDF, in order.
func ExtractPDFText(ctx context.Context, data []byte) (string, error) {
	pages, err := pdfPages(ctx, data)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n"), nil
}

func pdfPages(ctx context.Context, data []byte) (pages []string, err error) {
	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unreadable pdf: %v", r)
		}
	}()

	loader := documentloaders.NewPDF(bytes.NewReader(data), int64(len(data)))
	docs, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		pages = append(pages, d.PageContent)
	}
	return pages, nil
}

// MarkdownText flattens markdown to plain text, one block per line.
func MarkdownText(source []byte) string {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
				buf.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				buf.Write(line.Value(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			buf.WriteString("- ")
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

// Page is an HTML document reduced to its visible text.
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// parseHTML extracts the title and visible text, skipping scripts and styles.
func parseHTML(body io.Reader) (*Page, error) {
	tokenizer := html.NewTokenizer(body)
	page := &Page{}
	var textBuilder strings.Builder
	inScript, inStyle, inTitle := false, false, false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if tokenizer.Err() == io.EOF {
				page.Text = cleanText(textBuilder.String())
				return page, nil
			}
			return nil, tokenizer.Err()

		case html.StartTagToken:
			switch tokenizer.Token().Data {
			case "script":
				inScript = true
			case "style":
				inStyle = true
			case "title":
				inTitle = true
			}

		case html.EndTagToken:
			switch tokenizer.Token().Data {
			case "script":
				inScript = false
			case "style":
				inStyle = false
			case "title":
				inTitle = false
			}

		case html.TextToken:
			data := tokenizer.Token().Data
			if inTitle {
				page.Title = strings.TrimSpace(data)
				continue
			}
			if !inScript && !inStyle {
				if t := strings.TrimSpace(data); t != "" {
					textBuilder.WriteString(t + " ")
				}
			}
		}
	}
}

// cleanText collapses runs of whitespace.
func cleanText(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
