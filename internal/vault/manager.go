// Package vault loads source documents for ingestion from the content
// root on disk and, optionally, from an exported records table.
package vault

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"notesearch/internal/document"
	"notesearch/internal/service"
)

// Loaded is one document read from a source, or the error that kept it from being read.
type Loaded struct {
	DocID string
	Doc   document.Document
	Err   error
}

// Source yields the documents of one ingestion run. A returned error means
// the source itself is unusable; per-document failures are reported in Loaded.Err.
type Source interface {
	Load(ctx context.Context) ([]Loaded, error)
}

// Manager reads documents from a content root laid out as
// markdown/**.md and bookmarks/*.yaml.
type Manager struct {
	root string
}

// NewManager creates a manager for root, which must be an existing directory.
func NewManager(root string) (*Manager, error) {
	if root == "" {
		return nil, &service.ConfigurationError{Setting: "CONTENT_ROOT", Message: "must be set"}
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, &service.ConfigurationError{Setting: "CONTENT_ROOT", Message: err.Error()}
	}
	if !info.IsDir() {
		return nil, &service.ConfigurationError{Setting: "CONTENT_ROOT", Message: root + " is not a directory"}
	}
	return &Manager{root: root}, nil
}

// Root returns the content root.
func (m *Manager) Root() string {
	return m.root
}

// Load scans the content root and reads every recognized file.
func (m *Manager) Load(ctx context.Context) ([]Loaded, error) {
	files, err := m.ScanAll(ctx)
	if err != nil {
		return nil, err
	}

	loaded := make([]Loaded, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := m.ReadDocument(f)
		loaded = append(loaded, Loaded{DocID: f.DocID(), Doc: doc, Err: err})
	}
	return loaded, nil
}

// ReadDocument reads and parses one scanned file.
func (m *Manager) ReadDocument(f ScannedFile) (document.Document, error) {
	content, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return document.Document{}, &service.ParseError{DocID: f.DocID(), Err: err}
	}

	switch f.Format {
	case document.BookmarkList:
		return parseBookmarkFile(f, content)
	default:
		return parseMarkdownFile(f, content)
	}
}

// frontMatter holds the recognized markdown front matter keys.
type frontMatter struct {
	Title    string `yaml:"title"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}

// bookmarkFile is the on-disk shape of a bookmark list.
type bookmarkFile struct {
	Title    string              `yaml:"title"`
	Category string              `yaml:"category"`
	Items    []document.Bookmark `yaml:"items"`
}

func parseMarkdownFile(f ScannedFile, content []byte) (document.Document, error) {
	fm, body, err := splitFrontMatter(content)
	if err != nil {
		return document.Document{}, &service.ParseError{DocID: f.DocID(), Err: err}
	}
	return document.Document{
		DocID:    f.DocID(),
		Format:   document.Structured,
		Kind:     f.Kind,
		Title:    fm.Title,
		Body:     body,
		URL:      fm.URL,
		Category: fm.Category,
	}, nil
}

func parseBookmarkFile(f ScannedFile, content []byte) (document.Document, error) {
	var bf bookmarkFile
	if err := yaml.Unmarshal(content, &bf); err != nil {
		return document.Document{}, &service.ParseError{DocID: f.DocID(), Err: err}
	}

	title := bf.Title
	if title == "" {
		title = strings.TrimSuffix(path.Base(f.RelPath), path.Ext(f.RelPath))
	}
	return document.Document{
		DocID:     f.DocID(),
		Format:    document.BookmarkList,
		Kind:      f.Kind,
		Title:     title,
		Category:  bf.Category,
		Bookmarks: bf.Items,
	}, nil
}

var frontMatterDelim = []byte("---")

// splitFrontMatter separates a leading YAML block delimited by --- lines from the body.
// Content without front matter is returned unchanged, including content whose
// first line is a --- thematic break that is never closed.
func splitFrontMatter(content []byte) (frontMatter, []byte, error) {
	var fm frontMatter

	rest, ok := cutDelimLine(content)
	if !ok {
		return fm, content, nil
	}

	sawKey := false
	for offset := 0; offset < len(rest); {
		lineEnd := bytes.IndexByte(rest[offset:], '\n')
		var line []byte
		next := len(rest)
		if lineEnd >= 0 {
			line = rest[offset : offset+lineEnd]
			next = offset + lineEnd + 1
		} else {
			line = rest[offset:]
		}

		trimmed := bytes.TrimSpace(line)
		if bytes.Equal(trimmed, frontMatterDelim) {
			if err := yaml.Unmarshal(rest[:offset], &fm); err != nil {
				return fm, nil, fmt.Errorf("invalid front matter: %w", err)
			}
			return fm, rest[next:], nil
		}
		// The first content line of a YAML block is a key; anything else
		// means the opening --- was a thematic break.
		if !sawKey && len(trimmed) > 0 {
			if !isYAMLKeyLine(trimmed) {
				return fm, content, nil
			}
			sawKey = true
		}
		offset = next
	}

	return fm, content, nil
}

// isYAMLKeyLine reports whether line looks like "key: value" or "key:".
func isYAMLKeyLine(line []byte) bool {
	key, _, found := bytes.Cut(line, []byte(":"))
	if !found || len(key) == 0 {
		return false
	}
	for _, c := range key {
		if c == ' ' || c == '#' {
			return false
		}
	}
	return true
}

// cutDelimLine strips a first line consisting of ---.
func cutDelimLine(content []byte) ([]byte, bool) {
	line, rest, found := bytes.Cut(content, []byte("\n"))
	if !found || !bytes.Equal(bytes.TrimRight(line, " \r"), frontMatterDelim) {
		return nil, false
	}
	return rest, true
}

// MultiSource concatenates several sources in order.
type MultiSource []Source

// Load loads every source; the first source-level error aborts.
func (ms MultiSource) Load(ctx context.Context) ([]Loaded, error) {
	var all []Loaded
	for _, s := range ms {
		loaded, err := s.Load(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, loaded...)
	}
	return all, nil
}
