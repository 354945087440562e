package models

// SitePage is one stored chunk of a documentation page.
type SitePage struct {
	URL         string         `json:"url"`
	ChunkNumber int            `json:"chunk_number"`
	Title       string         `json:"title"`
	Summary     string         `json:"summary,omitempty"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Embedding   []float32      `json:"-"`
	// Similarity is only set on rows returned by a similarity search.
	Similarity float64 `json:"similarity,omitempty"`
}

// Source returns metadata.source, or "" when absent.
func (p SitePage) Source() string {
	s, _ := p.Metadata[MetadataSource].(string)
	return s
}

// Filter is the metadata filter passed to similarity search.
type Filter map[string]string

// SourceFilter scopes a lookup to one documentation corpus.
func SourceFilter(source string) Filter {
	return Filter{MetadataSource: source}
}

type PromptResponse struct {
	TurnID  string
	Query   string
	Content string
	Steps   int
}
