package indexer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"notesearch/internal/document"
)

func markdownDoc(docID, body string) document.Document {
	return document.Document{
		DocID:  docID,
		Format: document.Structured,
		Kind:   document.KindNotes,
		Body:   []byte(body),
	}
}

// paragraph returns a single-line paragraph of exactly n characters.
func paragraph(n int) string {
	return strings.Repeat("x", n)
}

func TestNewGoldmarkChunker(t *testing.T) {
	tests := []struct {
		name string
		max  int
		want int
	}{
		{name: "explicit", max: 500, want: 500},
		{name: "zero uses default", max: 0, want: DefaultMaxChunkLength},
		{name: "negative uses default", max: -1, want: DefaultMaxChunkLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewGoldmarkChunker(tt.max)
			if c == nil {
				t.Fatal("NewGoldmarkChunker() returned nil")
			}
			if got := c.MaxChunkLength(); got != tt.want {
				t.Errorf("MaxChunkLength() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGoldmarkChunker_Chunk(t *testing.T) {
	chunker := NewGoldmarkChunker(2000)

	tests := []struct {
		name  string
		doc   document.Document
		check func(t *testing.T, chunks []Chunk)
	}{
		{
			name: "empty document",
			doc:  markdownDoc("file:markdown/empty.md", ""),
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 0 {
					t.Errorf("len(chunks) = %d, want 0", len(chunks))
				}
			},
		},
		{
			name: "whitespace only",
			doc:  markdownDoc("file:markdown/blank.md", "  \n\n\t\n"),
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 0 {
					t.Errorf("len(chunks) = %d, want 0", len(chunks))
				}
			},
		},
		{
			name: "text before any heading uses title",
			doc:  markdownDoc("file:markdown/intro.md", "# My Note\n\nLead paragraph."),
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 1 {
					t.Fatalf("len(chunks) = %d, want 1", len(chunks))
				}
				c := chunks[0]
				if c.Title != "My Note" {
					t.Errorf("Title = %q, want %q", c.Title, "My Note")
				}
				if c.TopHeading != "My Note" {
					t.Errorf("TopHeading = %q, want %q", c.TopHeading, "My Note")
				}
				if len(c.HeadingPath) != 0 {
					t.Errorf("HeadingPath = %v, want empty", c.HeadingPath)
				}
				if c.Text != "Lead paragraph." {
					t.Errorf("Text = %q", c.Text)
				}
			},
		},
		{
			name: "h2 and h3 build heading path",
			doc: markdownDoc("file:markdown/paths.md",
				"## Setup\n\nInstall things.\n\n### Linux\n\nUse apt.\n\n## Usage\n\nRun it."),
			check: func(t *testing.T, chunks []Chunk) {
				want := [][]string{{"Setup"}, {"Setup", "Linux"}, {"Usage"}}
				if len(chunks) != len(want) {
					t.Fatalf("len(chunks) = %d, want %d", len(chunks), len(want))
				}
				for i, w := range want {
					if strings.Join(chunks[i].HeadingPath, ">") != strings.Join(w, ">") {
						t.Errorf("chunks[%d].HeadingPath = %v, want %v", i, chunks[i].HeadingPath, w)
					}
					if chunks[i].TopHeading != w[0] {
						t.Errorf("chunks[%d].TopHeading = %q, want %q", i, chunks[i].TopHeading, w[0])
					}
				}
			},
		},
		{
			name: "h4 stays in body",
			doc:  markdownDoc("file:markdown/h4.md", "## Top\n\nA.\n\n#### Minor\n\nB."),
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 1 {
					t.Fatalf("len(chunks) = %d, want 1", len(chunks))
				}
				if chunks[0].Text != "A.\n\nMinor\n\nB." {
					t.Errorf("Text = %q", chunks[0].Text)
				}
			},
		},
		{
			name: "lists code and tables are flattened",
			doc: markdownDoc("file:markdown/blocks.md",
				"## Blocks\n\n- one\n- two\n\n```go\nfmt.Println(1)\n```\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"),
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 1 {
					t.Fatalf("len(chunks) = %d, want 1", len(chunks))
				}
				want := "- one\n- two\n\nfmt.Println(1)\n\na | b\n1 | 2"
				if chunks[0].Text != want {
					t.Errorf("Text = %q, want %q", chunks[0].Text, want)
				}
			},
		},
		{
			name: "oversize single block is kept whole",
			doc:  markdownDoc("file:markdown/long.md", "## Wall\n\n"+paragraph(2600)),
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 1 {
					t.Fatalf("len(chunks) = %d, want 1", len(chunks))
				}
				if got := utf8.RuneCountInString(chunks[0].Text); got != 2600 {
					t.Errorf("len(Text) = %d, want 2600", got)
				}
			},
		},
		{
			name: "title from filename when no headings",
			doc:  markdownDoc("file:markdown/notes/weekly-review.md", "Plain text."),
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 1 {
					t.Fatalf("len(chunks) = %d, want 1", len(chunks))
				}
				if chunks[0].Title != "Weekly Review" {
					t.Errorf("Title = %q, want %q", chunks[0].Title, "Weekly Review")
				}
			},
		},
		{
			name: "explicit title wins",
			doc: document.Document{
				DocID:  "file:markdown/x.md",
				Format: document.Structured,
				Kind:   document.KindNotes,
				Title:  "From Front Matter",
				Body:   []byte("# Heading One\n\nBody."),
			},
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 1 {
					t.Fatalf("len(chunks) = %d, want 1", len(chunks))
				}
				if chunks[0].Title != "From Front Matter" {
					t.Errorf("Title = %q", chunks[0].Title)
				}
				if chunks[0].Text != "Heading One\n\nBody." {
					t.Errorf("Text = %q", chunks[0].Text)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := chunker.Chunk(tt.doc)
			if err != nil {
				t.Fatalf("Chunk() error = %v", err)
			}
			tt.check(t, chunks)
		})
	}
}

func TestGoldmarkChunker_IntroAndLongDetails(t *testing.T) {
	chunker := NewGoldmarkChunker(2000)

	var details []string
	for i := 0; i < 5; i++ {
		details = append(details, paragraph(499))
	}
	body := "## Intro\n\n" + paragraph(500) + "\n\n## Details\n\n" + strings.Join(details, "\n\n")

	chunks, err := chunker.Chunk(markdownDoc("file:markdown/scenario.md", body))
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want at least 2", len(chunks))
	}

	var detailsLen int
	for _, c := range chunks {
		n := utf8.RuneCountInString(c.Text)
		if c.TopHeading == "Details" {
			detailsLen += n
			if n > 2000 {
				t.Errorf("Details chunk length = %d, want <= 2000", n)
			}
		}
	}
	// 5 paragraphs of 499 characters plus separators inside each chunk.
	if detailsLen < 5*499 {
		t.Errorf("Details content length = %d, lost text", detailsLen)
	}
}

func TestGoldmarkChunker_IdempotentIDs(t *testing.T) {
	chunker := NewGoldmarkChunker(300)
	body := "# Doc\n\nLead.\n\n## A\n\n" + paragraph(200) + "\n\n" + paragraph(200) +
		"\n\n## B\n\nShort.\n\n## A\n\nRepeated heading."
	doc := markdownDoc("file:markdown/idem.md", body)

	first, err := chunker.Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	second, err := chunker.Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	seen := make(map[string]bool)
	for i := range first {
		if first[i].ChunkID != second[i].ChunkID {
			t.Errorf("chunk %d id changed: %s vs %s", i, first[i].ChunkID, second[i].ChunkID)
		}
		if seen[first[i].ChunkID] {
			t.Errorf("duplicate chunk id %s", first[i].ChunkID)
		}
		seen[first[i].ChunkID] = true
	}
}

func TestGoldmarkChunker_EditKeepsOtherSectionIDs(t *testing.T) {
	chunker := NewGoldmarkChunker(2000)
	before := markdownDoc("file:markdown/edit.md", "## A\n\nalpha\n\n## B\n\nbeta")
	after := markdownDoc("file:markdown/edit.md", "## A\n\nalpha edited\n\n## B\n\nbeta")

	c1, _ := chunker.Chunk(before)
	c2, _ := chunker.Chunk(after)
	if len(c1) != 2 || len(c2) != 2 {
		t.Fatalf("unexpected chunk counts %d, %d", len(c1), len(c2))
	}
	if c1[0].ChunkID != c2[0].ChunkID {
		t.Error("editing section text should not change its chunk id")
	}
	if c1[0].ContentHash == c2[0].ContentHash {
		t.Error("editing section text should change its content hash")
	}
	if c1[1].ContentHash != c2[1].ContentHash {
		t.Error("untouched section hash changed")
	}
}

func TestGoldmarkChunker_Bookmarks(t *testing.T) {
	chunker := NewGoldmarkChunker(2000)
	doc := document.Document{
		DocID:    "file:bookmarks/reading.yaml",
		Format:   document.BookmarkList,
		Kind:     document.KindArticles,
		Title:    "Reading",
		Category: "Engineering",
		Bookmarks: []document.Bookmark{
			{Title: "Go Proverbs", URL: "https://go-proverbs.github.io", Quote: "Clear is better than clever."},
			{Title: "Design", URL: "https://example.com/design", Summary: "On systems.", Category: "Architecture"},
			{},
			{Title: "No URL"},
		},
	}

	chunks, err := chunker.Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}

	if chunks[0].Text != "Go Proverbs\n\nClear is better than clever." {
		t.Errorf("chunks[0].Text = %q", chunks[0].Text)
	}
	if got := chunks[0].HeadingPath; len(got) != 1 || got[0] != "Engineering" {
		t.Errorf("chunks[0].HeadingPath = %v, want [Engineering]", got)
	}
	if chunks[0].URL != "https://go-proverbs.github.io" {
		t.Errorf("chunks[0].URL = %q", chunks[0].URL)
	}
	if got := chunks[1].HeadingPath; len(got) != 1 || got[0] != "Architecture" {
		t.Errorf("chunks[1].HeadingPath = %v, want [Architecture]", got)
	}
	if chunks[2].Title != "No URL" {
		t.Errorf("chunks[2].Title = %q", chunks[2].Title)
	}

	// Reordering items keeps URL-keyed ids.
	doc.Bookmarks[0], doc.Bookmarks[1] = doc.Bookmarks[1], doc.Bookmarks[0]
	reordered, _ := chunker.Chunk(doc)
	if reordered[1].ChunkID != chunks[0].ChunkID {
		t.Error("bookmark id should follow its URL, not its position")
	}
}

func TestGoldmarkChunker_UnknownFormat(t *testing.T) {
	chunker := NewGoldmarkChunker(2000)
	_, err := chunker.Chunk(document.Document{DocID: "x", Format: document.Format(42)})
	if err == nil {
		t.Error("Chunk() expected error for unknown format")
	}
}

func TestContentHash(t *testing.T) {
	tests := []string{"", "hello", "日本語のテキスト", paragraph(5000)}
	for _, text := range tests {
		a, b := ContentHash(text), ContentHash(text)
		if a != b {
			t.Errorf("ContentHash not deterministic for %q", text)
		}
		if len(a) != 64 {
			t.Errorf("ContentHash length = %d, want 64", len(a))
		}
	}
	if ContentHash("a") == ContentHash("b") {
		t.Error("different text should hash differently")
	}
}

func TestChunkID(t *testing.T) {
	a := ChunkID("file:a.md", []string{"Intro"}, 0)
	if a != ChunkID("file:a.md", []string{"Intro"}, 0) {
		t.Error("ChunkID not stable")
	}
	others := []string{
		ChunkID("file:b.md", []string{"Intro"}, 0),
		ChunkID("file:a.md", []string{"Other"}, 0),
		ChunkID("file:a.md", []string{"Intro"}, 1),
		ChunkID("file:a.md", []string{"Intro", ""}, 0),
	}
	for i, o := range others {
		if o == a {
			t.Errorf("ChunkID variant %d collides", i)
		}
	}
}

func TestExtractTitleFromFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "file:markdown/notes/my-first_note.md", want: "My First Note"},
		{in: "file:markdown/book/9784003362211.md", want: "9784003362211"},
		{in: "db:notes/42", want: "42"},
		{in: "simple.md", want: "Simple"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := extractTitleFromFilename(tt.in); got != tt.want {
				t.Errorf("extractTitleFromFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
