package indexer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"notesearch/internal/document"
)

// DefaultMaxChunkLength is the soft upper bound on chunk text, in characters.
const DefaultMaxChunkLength = 2000

const blockSeparator = "\n\n"

// chunkNamespace seeds the UUIDv5 chunk ids.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("notesearch:chunk"))

// GoldmarkChunker chunks documents. Markdown is parsed with goldmark; only
// level 2 and 3 headings open new scopes.
type GoldmarkChunker struct {
	parser         goldmark.Markdown
	maxChunkLength int
}

// NewGoldmarkChunker creates a chunker. A non-positive maxChunkLength selects DefaultMaxChunkLength.
func NewGoldmarkChunker(maxChunkLength int) *GoldmarkChunker {
	if maxChunkLength <= 0 {
		maxChunkLength = DefaultMaxChunkLength
	}
	return &GoldmarkChunker{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
		maxChunkLength: maxChunkLength,
	}
}

// MaxChunkLength returns the configured chunk bound.
func (c *GoldmarkChunker) MaxChunkLength() int {
	return c.maxChunkLength
}

// Chunk turns doc into an ordered list of chunks. An empty document yields no chunks.
func (c *GoldmarkChunker) Chunk(doc document.Document) ([]Chunk, error) {
	switch doc.Format {
	case document.Structured:
		return c.chunkMarkdown(doc), nil
	case document.BookmarkList:
		return chunkBookmarks(doc), nil
	default:
		return nil, fmt.Errorf("unsupported document format %s", doc.Format)
	}
}

// ContentHash returns the hex sha256 of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ChunkID derives a stable id from the document id, heading path and the
// ordinal of the chunk within that path.
func ChunkID(docID string, headingPath []string, ordinal int) string {
	name := docID + "\x00" + strings.Join(headingPath, "\x1f") + "\x00" + strconv.Itoa(ordinal)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

func (c *GoldmarkChunker) chunkMarkdown(doc document.Document) []Chunk {
	if len(bytes.TrimSpace(doc.Body)) == 0 {
		return nil
	}

	src := doc.Body
	root := c.parser.Parser().Parse(text.NewReader(src))

	title := doc.Title
	if title == "" {
		title = extractTitle(root, src, doc.DocID)
	}

	b := &chunkBuilder{
		doc:      doc,
		title:    title,
		maxLen:   c.maxChunkLength,
		ordinals: make(map[string]int),
	}

	var h2 string
	titleSeen := false
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if heading, ok := n.(*ast.Heading); ok {
			headingText := extractTextFromNode(heading, src)
			switch {
			case heading.Level == 1 && !titleSeen && headingText == title:
				titleSeen = true
				continue
			case heading.Level == 2:
				b.flush()
				h2 = headingText
				b.path = []string{h2}
				continue
			case heading.Level == 3:
				b.flush()
				if h2 != "" {
					b.path = []string{h2, headingText}
				} else {
					b.path = []string{headingText}
				}
				continue
			}
		}

		block := strings.TrimSpace(blockText(n, src))
		if block == "" {
			continue
		}
		b.add(block)
	}
	b.flush()

	return b.chunks
}

// chunkBuilder accumulates blocks under the current heading path.
type chunkBuilder struct {
	doc    document.Document
	title  string
	maxLen int

	path   []string
	blocks []string
	size   int

	ordinals map[string]int
	chunks   []Chunk
}

// add appends a block, flushing first when the buffer would exceed maxLen.
// A single block longer than maxLen is kept whole.
func (b *chunkBuilder) add(block string) {
	n := utf8.RuneCountInString(block)
	if len(b.blocks) > 0 && b.size+len(blockSeparator)+n > b.maxLen {
		b.flush()
	}
	if len(b.blocks) == 0 {
		b.size = n
	} else {
		b.size += len(blockSeparator) + n
	}
	b.blocks = append(b.blocks, block)
}

func (b *chunkBuilder) flush() {
	if len(b.blocks) == 0 {
		return
	}
	body := strings.Join(b.blocks, blockSeparator)
	b.blocks = b.blocks[:0]
	b.size = 0

	key := strings.Join(b.path, "\x1f")
	ordinal := b.ordinals[key]
	b.ordinals[key]++

	headingPath := append([]string(nil), b.path...)
	top := b.title
	if len(headingPath) > 0 {
		top = headingPath[0]
	}

	b.chunks = append(b.chunks, Chunk{
		ChunkID:     ChunkID(b.doc.DocID, headingPath, ordinal),
		DocID:       b.doc.DocID,
		Kind:        b.doc.Kind,
		Title:       b.title,
		URL:         b.doc.URL,
		TopHeading:  top,
		HeadingPath: headingPath,
		Text:        body,
		ContentHash: ContentHash(body),
	})
}

// chunkBookmarks emits one chunk per bookmark item. The id is keyed by the
// item URL when present so reordering a list keeps ids stable.
func chunkBookmarks(doc document.Document) []Chunk {
	chunks := make([]Chunk, 0, len(doc.Bookmarks))
	seen := make(map[string]int)

	for i, item := range doc.Bookmarks {
		body := joinNonEmpty(blockSeparator, item.Title, item.Quote, item.Summary)
		if body == "" {
			continue
		}

		category := firstNonEmpty(item.Category, doc.Category, doc.Title)
		title := firstNonEmpty(item.Title, doc.Title)
		url := firstNonEmpty(item.URL, doc.URL)

		key := item.URL
		if key == "" {
			key = "#" + strconv.Itoa(i)
		}
		ordinal := seen[key]
		seen[key]++

		headingPath := []string{category}
		chunks = append(chunks, Chunk{
			ChunkID:     ChunkID(doc.DocID, []string{"bookmark", key}, ordinal),
			DocID:       doc.DocID,
			Kind:        doc.Kind,
			Title:       title,
			URL:         url,
			TopHeading:  category,
			HeadingPath: headingPath,
			Text:        body,
			ContentHash: ContentHash(body),
		})
	}

	return chunks
}

// extractTitle returns the first level 1 heading, then the first level 2
// heading, then a title derived from the document id.
func extractTitle(doc ast.Node, content []byte, docID string) string {
	var firstH1, firstH2 string

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := n.(*ast.Heading); ok {
			headingText := extractTextFromNode(heading, content)
			if heading.Level == 1 && firstH1 == "" {
				firstH1 = headingText
				return ast.WalkStop, nil
			}
			if heading.Level == 2 && firstH2 == "" {
				firstH2 = headingText
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	if firstH1 != "" {
		return firstH1
	}
	if firstH2 != "" {
		return firstH2
	}
	return extractTitleFromFilename(docID)
}

// extractTitleFromFilename removes the extension and capitalizes words.
// Dashes and underscores separate words.
func extractTitleFromFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)

	words := strings.Fields(name)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// blockText renders a block node as plain text.
func blockText(n ast.Node, src []byte) string {
	switch node := n.(type) {
	case *ast.Paragraph, *ast.TextBlock, *ast.Heading:
		return extractTextFromNode(node, src)

	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		return linesText(node, src)

	case *ast.List:
		var items []string
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			var parts []string
			for child := item.FirstChild(); child != nil; child = child.NextSibling() {
				if t := strings.TrimSpace(blockText(child, src)); t != "" {
					parts = append(parts, t)
				}
			}
			items = append(items, "- "+strings.Join(parts, "\n  "))
		}
		return strings.Join(items, "\n")

	case *ast.Blockquote:
		var parts []string
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			if t := strings.TrimSpace(blockText(child, src)); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, "\n")

	case *east.Table:
		var rows []string
		for row := node.FirstChild(); row != nil; row = row.NextSibling() {
			rows = append(rows, extractTableRowText(row, src))
		}
		return strings.Join(rows, "\n")

	case *ast.ThematicBreak:
		return ""

	default:
		return extractTextFromNode(n, src)
	}
}

// linesText joins the raw lines of a code or HTML block.
func linesText(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		sb.Write(line.Value(src))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// extractTextFromNode extracts inline text content from a node and its children.
func extractTextFromNode(n ast.Node, content []byte) string {
	var sb strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(content))
			if v.HardLineBreak() {
				sb.WriteByte('\n')
			} else if v.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(v.Value)
		case *ast.AutoLink:
			sb.Write(v.Label(content))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(sb.String())
}

// extractTableRowText extracts text from a table row, formatting cells with pipe separators.
func extractTableRowText(row ast.Node, content []byte) string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if _, ok := cell.(*east.TableCell); ok {
			cells = append(cells, extractTextFromNode(cell, content))
		}
	}
	return strings.Join(cells, " | ")
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
