package chromemdb

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-docs-rag/internal/models"
)

const dims = 4

func page(url string, chunk int, source string, emb ...float32) models.SitePage {
	return models.SitePage{
		URL:         url,
		ChunkNumber: chunk,
		Title:       "Title of " + url + " - n8n Docs",
		Content:     url + " chunk " + string(rune('0'+chunk)),
		Metadata:    map[string]any{"source": source},
		Embedding:   emb,
	}
}

func newManager(t *testing.T, pages ...models.SitePage) *VectorDBManager {
	t.Helper()
	m, err := NewVectorDBManager(t.TempDir(), "site_pages", true, "", dims)
	require.NoError(t, err)
	_, err = m.GetOrCreateCollection()
	require.NoError(t, err)
	require.NoError(t, m.StorePages(context.Background(), pages))
	return m
}

func corpus() []models.SitePage {
	return []models.SitePage{
		page("https://docs.n8n.io/b", 1, "n8n_docs", 0, 1, 0, 0),
		page("https://docs.n8n.io/b", 0, "n8n_docs", 0, 0.9, 0.1, 0),
		page("https://docs.n8n.io/a", 0, "n8n_docs", 1, 0, 0, 0),
		page("https://docs.n8n.io/b", 2, "n8n_docs", 0, 0.5, 0.5, 0),
		page("https://other.dev/x", 0, "other_docs", 0, 1, 0, 0),
	}
}

func TestMatchPages_rankedAndFiltered(t *testing.T) {
	m := newManager(t, corpus()...)

	got, err := m.MatchPages(context.Background(), []float32{0, 1, 0, 0}, 2, models.SourceFilter("n8n_docs"))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "https://docs.n8n.io/b", got[0].URL)
	assert.Equal(t, 1, got[0].ChunkNumber)
	assert.Equal(t, 0, got[1].ChunkNumber)
	assert.GreaterOrEqual(t, got[0].Similarity, got[1].Similarity)
	for _, p := range got {
		assert.Equal(t, "n8n_docs", p.Source())
		assert.True(t, strings.HasSuffix(p.Title, " - n8n Docs"))
	}
}

func TestMatchPages_countLargerThanCollection(t *testing.T) {
	m := newManager(t, corpus()...)

	got, err := m.MatchPages(context.Background(), []float32{1, 0, 0, 0}, 50, models.SourceFilter("other_docs"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://other.dev/x", got[0].URL)
}

func TestMatchPages_emptyCollection(t *testing.T) {
	m := newManager(t)

	got, err := m.MatchPages(context.Background(), []float32{1, 0, 0, 0}, 5, models.SourceFilter("n8n_docs"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatchPages_dimensionMismatch(t *testing.T) {
	m := newManager(t, corpus()...)

	_, err := m.MatchPages(context.Background(), []float32{1, 0}, 5, models.SourceFilter("n8n_docs"))
	assert.ErrorContains(t, err, "dimensions")
}

func TestListURLs(t *testing.T) {
	m := newManager(t, corpus()...)

	urls, err := m.ListURLs(context.Background(), "n8n_docs")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"https://docs.n8n.io/a",
		"https://docs.n8n.io/b",
		"https://docs.n8n.io/b",
		"https://docs.n8n.io/b",
	}, urls)

	urls, err = m.ListURLs(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestPageChunks_sortedByChunkNumber(t *testing.T) {
	m := newManager(t, corpus()...)

	chunks, err := m.PageChunks(context.Background(), "https://docs.n8n.io/b", "n8n_docs")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkNumber)
		assert.Zero(t, c.Similarity)
	}

	chunks, err = m.PageChunks(context.Background(), "https://docs.n8n.io/b", "other_docs")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestStorePages_rejectsWrongDimensions(t *testing.T) {
	m := newManager(t)
	err := m.StorePages(context.Background(), []models.SitePage{page("https://docs.n8n.io/a", 0, "n8n_docs", 1, 0)})
	assert.ErrorContains(t, err, "expected 4")
}

func TestNoCollection(t *testing.T) {
	m, err := NewVectorDBManager(t.TempDir(), "site_pages", true, "", dims)
	require.NoError(t, err)

	_, err = m.ListURLs(context.Background(), "n8n_docs")
	assert.Error(t, err)
	_, err = m.MatchPages(context.Background(), []float32{1, 0, 0, 0}, 5, nil)
	assert.Error(t, err)
}

func TestExportImport(t *testing.T) {
	dir := t.TempDir()
	key := strings.Repeat("k", encryptionKeyLen)

	src, err := NewVectorDBManager(dir, "site_pages", true, key, dims)
	require.NoError(t, err)
	_, err = src.GetOrCreateCollection()
	require.NoError(t, err)
	require.NoError(t, src.StorePages(context.Background(), corpus()))
	require.NoError(t, src.Export(context.Background()))
	assert.FileExists(t, src.SnapshotPath())

	dst, err := NewVectorDBManager(dir, "site_pages", true, key, dims)
	require.NoError(t, err)
	require.NoError(t, dst.Import(context.Background()))

	chunks, err := dst.PageChunks(context.Background(), "https://docs.n8n.io/b", "n8n_docs")
	require.NoError(t, err)
	assert.Len(t, chunks, 3)
}

func TestExport_requiresKey(t *testing.T) {
	m := newManager(t, corpus()...)
	assert.ErrorContains(t, m.Export(context.Background()), "encryption key")
}

func TestPersistentDB(t *testing.T) {
	dir := t.TempDir()
	m, err := NewVectorDBManager(dir, "site_pages", false, "", dims)
	require.NoError(t, err)
	_, err = m.GetOrCreateCollection()
	require.NoError(t, err)
	require.NoError(t, m.StorePages(context.Background(), corpus()))

	reopened, err := NewVectorDBManager(dir, "site_pages", false, "", dims)
	require.NoError(t, err)
	_, err = reopened.GetOrCreateCollection()
	require.NoError(t, err)

	urls, err := reopened.ListURLs(context.Background(), "other_docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://other.dev/x"}, urls)
}

func TestDeleteCollection(t *testing.T) {
	m := newManager(t, corpus()...)
	require.NoError(t, m.DeleteCollection())
	_, err := m.ListURLs(context.Background(), "n8n_docs")
	assert.Error(t, err)
}

func TestDeletePagesBySource(t *testing.T) {
	m := newManager(t, corpus()...)
	require.NoError(t, m.DeletePagesBySource(context.Background(), "n8n_docs"))

	urls, err := m.ListURLs(context.Background(), "n8n_docs")
	require.NoError(t, err)
	assert.Empty(t, urls)

	urls, err = m.ListURLs(context.Background(), "other_docs")
	require.NoError(t, err)
	assert.Len(t, urls, 1)
}
