package search

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"notesearch/internal/document"
	"notesearch/internal/vectorstore"
)

// SnippetLength is the maximum snippet length in characters, before the ellipsis.
const SnippetLength = 150

const ellipsis = "…"

var isbnPattern = regexp.MustCompile(`/book/([^/]+)\.md$`)

// Snippet truncates text to SnippetLength characters followed by an ellipsis.
// Shorter text is returned unchanged.
func Snippet(text string) string {
	if utf8.RuneCountInString(text) <= SnippetLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:SnippetLength]) + ellipsis
}

// ISBN extracts the identifier from a book document id such as
// "file:markdown/book/9784003362211.md".
func ISBN(docID string) (string, bool) {
	m := isbnPattern.FindStringSubmatch(docID)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// notePath maps a note document id to its path under /notes.
func notePath(docID string) string {
	for _, prefix := range []string{"file:markdown/", "db:notes/"} {
		if rest, ok := strings.CutPrefix(docID, prefix); ok {
			return strings.TrimSuffix(rest, ".md")
		}
	}
	return ""
}

// href returns the link a result should open, or "" when none can be derived.
func href(kind document.Kind, docID, url, isbn string) string {
	switch kind {
	case document.KindBooks:
		if isbn != "" {
			return "/books/" + isbn
		}
	case document.KindNotes:
		if p := notePath(docID); p != "" {
			return "/notes/" + p
		}
	case document.KindArticles:
		return url
	}
	return ""
}

// resultFromHit maps a raw hit to a Result. Missing or mistyped required
// fields (kind, doc_id, text) are errors.
func resultFromHit(hit vectorstore.Hit) (Result, error) {
	p := hit.Payload

	kindStr, err := requiredString(p, vectorstore.FieldKind)
	if err != nil {
		return Result{}, err
	}
	kind, err := document.ParseKind(kindStr)
	if err != nil {
		return Result{}, err
	}
	docID, err := requiredString(p, vectorstore.FieldDocID)
	if err != nil {
		return Result{}, err
	}
	text, err := requiredString(p, vectorstore.FieldText)
	if err != nil {
		return Result{}, err
	}
	headingPath, err := stringList(p, vectorstore.FieldHeadingPath)
	if err != nil {
		return Result{}, err
	}

	topHeading := optionalString(p, vectorstore.FieldTopHeading)
	title := optionalString(p, vectorstore.FieldTitle)
	if title == "" {
		title = topHeading
	}
	url := optionalString(p, vectorstore.FieldURL)
	chunkID := optionalString(p, vectorstore.FieldChunkID)
	if chunkID == "" {
		chunkID = hit.ID
	}

	var isbn string
	if kind == document.KindBooks {
		isbn, _ = ISBN(docID)
	}

	return Result{
		Score:       hit.Score,
		Kind:        string(kind),
		DocID:       docID,
		ChunkID:     chunkID,
		Title:       title,
		Snippet:     Snippet(text),
		URL:         url,
		Href:        href(kind, docID, url, isbn),
		TopHeading:  topHeading,
		HeadingPath: headingPath,
		ISBN:        isbn,
	}, nil
}

func requiredString(p map[string]any, field string) (string, error) {
	v, ok := p[field]
	if !ok || v == nil {
		return "", fmt.Errorf("missing payload field %q", field)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("payload field %q has type %T, want string", field, v)
	}
	if s == "" {
		return "", fmt.Errorf("payload field %q is empty", field)
	}
	return s, nil
}

func optionalString(p map[string]any, field string) string {
	s, _ := p[field].(string)
	return s
}

// stringList reads a list of strings. An absent field is an empty list.
func stringList(p map[string]any, field string) ([]string, error) {
	switch v := p[field].(type) {
	case nil:
		return []string{}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("payload field %q[%d] has type %T, want string", field, i, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("payload field %q has type %T, want list", field, v)
	}
}

// groupResults partitions results by kind in display order. Relative order
// within a group is the order of results. Kinds with no results are omitted.
func groupResults(results []Result) []Group {
	byKind := make(map[string][]Result)
	for _, r := range results {
		byKind[r.Kind] = append(byKind[r.Kind], r)
	}

	groups := make([]Group, 0, len(byKind))
	for _, k := range document.Kinds {
		rs := byKind[string(k)]
		if len(rs) == 0 {
			continue
		}
		groups = append(groups, Group{Kind: string(k), Results: rs, TotalCount: len(rs)})
	}
	return groups
}
