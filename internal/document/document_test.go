package document

import "testing"

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "articles", want: KindArticles},
		{in: "books", want: KindBooks},
		{in: "notes", want: KindNotes},
		{in: "Notes", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormat_String(t *testing.T) {
	if got := Structured.String(); got != "structured" {
		t.Errorf("Structured.String() = %q", got)
	}
	if got := BookmarkList.String(); got != "bookmark-list" {
		t.Errorf("BookmarkList.String() = %q", got)
	}
	if got := Format(9).String(); got != "format(9)" {
		t.Errorf("Format(9).String() = %q", got)
	}
}
