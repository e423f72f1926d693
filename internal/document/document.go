// Package document defines the source units the ingester reads.
package document

import "fmt"

// Format tags how a document body is shaped.
type Format int

const (
	// Structured is a markdown note split by headings.
	Structured Format = iota
	// BookmarkList is a list of saved links, one chunk per item.
	BookmarkList
)

func (f Format) String() string {
	switch f {
	case Structured:
		return "structured"
	case BookmarkList:
		return "bookmark-list"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Kind is the content kind stored in the index payload and used for grouping.
type Kind string

const (
	KindArticles Kind = "articles"
	KindBooks    Kind = "books"
	KindNotes    Kind = "notes"
)

// Kinds lists every kind in preferred display order.
var Kinds = []Kind{KindArticles, KindBooks, KindNotes}

// ParseKind validates s as a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// Bookmark is a single item of a bookmark list.
type Bookmark struct {
	Title    string `yaml:"title" json:"title"`
	URL      string `yaml:"url" json:"url"`
	Quote    string `yaml:"quote" json:"quote"`
	Summary  string `yaml:"summary" json:"summary"`
	Category string `yaml:"category" json:"category"`
}

// Document is one source unit. Body is set for Structured documents,
// Bookmarks for BookmarkList documents.
type Document struct {
	DocID    string
	Format   Format
	Kind     Kind
	Title    string
	Body     []byte
	URL      string
	Category string

	Bookmarks []Bookmark
}
