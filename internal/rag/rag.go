package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"workflow-docs-rag/internal/models"
)

// Backend is the document store the core reads from. Both the Supabase store
// and the local chromem store satisfy it.
type Backend interface {
	MatchPages(ctx context.Context, embedding []float32, count int, filter models.Filter) ([]models.SitePage, error)
	ListURLs(ctx context.Context, source string) ([]string, error)
	PageChunks(ctx context.Context, url, source string) ([]models.SitePage, error)
}

// Embedder never fails; a provider error yields a zero vector.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// Deps carries the clients every operation needs.
type Deps struct {
	Backend  Backend
	Embedder Embedder
}

// Result is the outcome of a lookup. Value is always usable as model context,
// falling back to a sentinel message when Err is set.
type Result[T any] struct {
	Value T
	Err   error
}

func (r Result[T]) OK() bool { return r.Err == nil }

type RAG struct {
	deps       Deps
	source     string
	matchCount int
}

func NewRAG(deps Deps, source string, matchCount int) *RAG {
	return &RAG{deps: deps, source: source, matchCount: matchCount}
}

func (r *RAG) Source() string { return r.source }

// Retrieve renders the chunks most similar to query, in backend order.
func (r *RAG) Retrieve(ctx context.Context, query string) Result[string] {
	emb := r.deps.Embedder.Embed(ctx, query)

	pages, err := r.deps.Backend.MatchPages(ctx, emb, r.matchCount, models.SourceFilter(r.source))
	if err != nil {
		log.Error().Err(err).Str("source", r.source).Msg("Failed to retrieve documentation")
		return Result[string]{Value: fmt.Sprintf(models.RetrieveErrorFmt, err), Err: err}
	}
	if len(pages) == 0 {
		return Result[string]{Value: models.NoDocumentationMsg}
	}

	blocks := make([]string, len(pages))
	for i, p := range pages {
		blocks[i] = fmt.Sprintf("# %s\n\n%s", p.Title, p.Content)
	}
	return Result[string]{Value: strings.Join(blocks, models.ContextSeparator)}
}

// ListPages returns the distinct page URLs of the source, sorted.
func (r *RAG) ListPages(ctx context.Context) Result[[]string] {
	urls, err := r.deps.Backend.ListURLs(ctx, r.source)
	if err != nil {
		log.Error().Err(err).Str("source", r.source).Msg("Failed to list documentation pages")
		return Result[[]string]{Value: []string{}, Err: err}
	}

	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	sort.Strings(out)
	return Result[[]string]{Value: out}
}

// GetPage rebuilds a page from its chunks. Order and completeness are taken
// from the backend as is.
func (r *RAG) GetPage(ctx context.Context, url string) Result[string] {
	chunks, err := r.deps.Backend.PageChunks(ctx, url, r.source)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("Failed to retrieve page content")
		return Result[string]{Value: fmt.Sprintf(models.PageErrorFmt, err), Err: err}
	}
	if len(chunks) == 0 {
		return Result[string]{Value: fmt.Sprintf(models.NoPageContentFmt, url)}
	}

	title, _, _ := strings.Cut(chunks[0].Title, models.TitleDelimiter)
	parts := make([]string, 0, len(chunks)+1)
	parts = append(parts, "# "+title)
	for _, c := range chunks {
		parts = append(parts, c.Content)
	}
	return Result[string]{Value: strings.Join(parts, "\n\n")}
}
