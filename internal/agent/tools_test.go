package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-docs-rag/internal/models"
	"workflow-docs-rag/internal/rag"
)

type memBackend struct {
	pages []models.SitePage
	err   error
}

func (b *memBackend) MatchPages(_ context.Context, _ []float32, count int, filter models.Filter) ([]models.SitePage, error) {
	if b.err != nil {
		return nil, b.err
	}
	var out []models.SitePage
	for _, p := range b.pages {
		if p.Source() == filter[models.MetadataSource] && len(out) < count {
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *memBackend) ListURLs(_ context.Context, source string) ([]string, error) {
	if b.err != nil {
		return nil, b.err
	}
	var out []string
	for _, p := range b.pages {
		if p.Source() == source {
			out = append(out, p.URL)
		}
	}
	return out, nil
}

func (b *memBackend) PageChunks(_ context.Context, url, source string) ([]models.SitePage, error) {
	if b.err != nil {
		return nil, b.err
	}
	var out []models.SitePage
	for _, p := range b.pages {
		if p.URL == url && p.Source() == source {
			out = append(out, p)
		}
	}
	return out, nil
}

type zeroEmbedder struct{}

func (zeroEmbedder) Embed(context.Context, string) []float32 { return make([]float32, 4) }

func testRAG() *rag.RAG {
	src := map[string]any{"source": "n8n_docs"}
	return rag.NewRAG(rag.Deps{
		Backend: &memBackend{pages: []models.SitePage{
			{URL: "https://docs.n8n.io/setup", ChunkNumber: 0, Title: "Setup Guide - n8n Docs", Content: "Step 1.", Metadata: src},
			{URL: "https://docs.n8n.io/setup", ChunkNumber: 1, Title: "Setup Guide - n8n Docs", Content: "Step 2.", Metadata: src},
			{URL: "https://docs.n8n.io/code", ChunkNumber: 0, Title: "Code node - n8n Docs", Content: "Run JS.", Metadata: src},
		}},
		Embedder: zeroEmbedder{},
	}, "n8n_docs", 5)
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(DocsTools(testRAG())...))
	return reg
}

func TestRegistry_registerAndLookup(t *testing.T) {
	reg := newRegistry(t)

	names := []string{}
	for _, tool := range reg.Tools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{ToolRetrieve, ToolListPages, ToolGetPage}, names)

	_, ok := reg.Lookup(ToolGetPage)
	assert.True(t, ok)
	_, ok = reg.Lookup("missing")
	assert.False(t, ok)

	err := reg.Register(Tool{Name: ToolGetPage, Call: func(context.Context, map[string]string) rag.Result[string] { return rag.Result[string]{} }})
	assert.ErrorContains(t, err, "already registered")
	assert.Error(t, reg.Register(Tool{Name: "no_handler"}))
}

func TestRegistry_LLMTools(t *testing.T) {
	tools := newRegistry(t).LLMTools()
	require.Len(t, tools, 3)

	get := tools[2]
	assert.Equal(t, "function", get.Type)
	assert.Equal(t, ToolGetPage, get.Function.Name)
	params, ok := get.Function.Parameters.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, []string{"url"}, params["required"])
	assert.Contains(t, params["properties"], "url")

	list, ok := tools[1].Function.Parameters.(map[string]any)
	require.True(t, ok)
	assert.Empty(t, list["properties"])
	assert.Equal(t, []string{}, list["required"])
}

func TestDispatch(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	out, err := reg.Dispatch(ctx, ToolListPages, "")
	require.NoError(t, err)
	assert.JSONEq(t, `["https://docs.n8n.io/code","https://docs.n8n.io/setup"]`, out)

	out, err = reg.Dispatch(ctx, ToolGetPage, `{"url":"https://docs.n8n.io/setup"}`)
	require.NoError(t, err)
	assert.Equal(t, "# Setup Guide\n\nStep 1.\n\nStep 2.", out)

	out, err = reg.Dispatch(ctx, ToolRetrieve, `{"user_query":"javascript"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "# Code node - n8n Docs\n\nRun JS.")
}

func TestDispatch_invalidCalls(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	_, err := reg.Dispatch(ctx, "search", `{}`)
	assert.ErrorIs(t, err, ErrUnknownTool)

	_, err = reg.Dispatch(ctx, ToolGetPage, `{"url":`)
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = reg.Dispatch(ctx, ToolGetPage, `{"url":42}`)
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = reg.Dispatch(ctx, ToolGetPage, `{}`)
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestDispatch_degradedResultIsNotAnError(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(DocsTools(rag.NewRAG(rag.Deps{
		Backend:  &memBackend{err: errors.New("boom")},
		Embedder: zeroEmbedder{},
	}, "n8n_docs", 5))...))

	out, err := reg.Dispatch(context.Background(), ToolListPages, "{}")
	require.NoError(t, err)
	assert.Equal(t, "[]", out)

	out, err = reg.Dispatch(context.Background(), ToolGetPage, `{"url":"u"}`)
	require.NoError(t, err)
	assert.Equal(t, "Error retrieving page content: boom", out)
}
