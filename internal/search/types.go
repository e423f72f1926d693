package search

// Request is a search query.
type Request struct {
	// Query is the natural-language search text.
	Query string `json:"query" validate:"required"`
	// TopK caps the number of results. Zero selects the engine default.
	TopK int `json:"topK,omitempty" validate:"omitempty,min=1,max=50"`
	// Kind restricts results to one content kind.
	Kind string `json:"kind,omitempty" validate:"omitempty,oneof=articles books notes"`
	// Kinds restricts results to several content kinds. It is merged with Kind.
	Kinds []string `json:"kinds,omitempty" validate:"omitempty,dive,oneof=articles books notes"`
	// Heading restricts results to chunks under this top-level heading.
	Heading string `json:"heading,omitempty"`
}

// Result is one scored hit projected for its content kind.
type Result struct {
	Score       float32  `json:"score"`
	Kind        string   `json:"kind"`
	DocID       string   `json:"docId"`
	ChunkID     string   `json:"chunkId,omitempty"`
	Title       string   `json:"title"`
	Snippet     string   `json:"snippet"`
	URL         string   `json:"url,omitempty"`
	Href        string   `json:"href,omitempty"`
	TopHeading  string   `json:"topHeading,omitempty"`
	HeadingPath []string `json:"headingPath"`
	// ISBN is derived from a book's document id.
	ISBN string `json:"isbn,omitempty"`
}

// Group holds the results of one kind, in relevance order.
type Group struct {
	Kind       string   `json:"kind"`
	Results    []Result `json:"results"`
	TotalCount int      `json:"totalCount"`
}

// Response is the outcome of a search.
type Response struct {
	Results      []Result `json:"results"`
	Groups       []Group  `json:"groups"`
	Query        string   `json:"query"`
	TotalResults int      `json:"totalResults"`
}
