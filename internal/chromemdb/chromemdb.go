package chromemdb

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"workflow-docs-rag/internal/models"
)

// reserved metadata keys carrying SitePage columns
const (
	keyURL         = "url"
	keyTitle       = "title"
	keySummary     = "summary"
	keyChunkNumber = "chunk_number"
)

const (
	compress = false
	// chromem encrypts snapshots with AES-256
	encryptionKeyLen = 32
)

// VectorDBManager is a local chromem-go backed store for documentation chunks.
// It answers the same lookups as the Supabase store.
type VectorDBManager struct {
	db             *chromem.DB
	collection     *chromem.Collection
	collectionName string
	dbPath         string
	encryptionKey  string
	filePath       string
	dimensions     int
}

// NewVectorDBManager initializes a new vector database manager
func NewVectorDBManager(dbPath, collectionName string, inMemory bool, encryptionKey string, dimensions int) (*VectorDBManager, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}

	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &VectorDBManager{
		db:             db,
		collectionName: collectionName,
		dbPath:         dbPath,
		encryptionKey:  encryptionKey,
		filePath:       filepath.Join(dbPath, collectionName+".chromem"),
		dimensions:     dimensions,
	}, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection() (*chromem.Collection, error) {
	// embeddings are always supplied, the embedding func is never called
	c, err := m.db.GetOrCreateCollection(m.collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// StorePages stores chunks that already carry their embeddings.
func (m *VectorDBManager) StorePages(ctx context.Context, pages []models.SitePage) error {
	if len(pages) == 0 {
		return nil
	}
	if m.collection == nil {
		return fmt.Errorf("collection is required")
	}

	docs := make([]chromem.Document, 0, len(pages))
	for _, p := range pages {
		if len(p.Embedding) != m.dimensions {
			return fmt.Errorf("chunk %s#%d has %d dimensions, expected %d", p.URL, p.ChunkNumber, len(p.Embedding), m.dimensions)
		}
		docs = append(docs, chromem.Document{
			ID:        documentID(p.URL, p.ChunkNumber),
			Content:   p.Content,
			Metadata:  toMetadata(p),
			Embedding: p.Embedding,
		})
	}

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// MatchPages returns up to count chunks matching filter, most similar first.
func (m *VectorDBManager) MatchPages(ctx context.Context, embedding []float32, count int, filter models.Filter) ([]models.SitePage, error) {
	if m.collection == nil {
		return nil, fmt.Errorf("collection is required")
	}
	if len(embedding) != m.dimensions {
		return nil, fmt.Errorf("query embedding has %d dimensions, expected %d", len(embedding), m.dimensions)
	}
	n := min(count, m.collection.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       n,
		Where:          filter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	pages := make([]models.SitePage, len(results))
	for i, r := range results {
		pages[i] = fromResult(r)
	}
	return pages, nil
}

// ListURLs returns the url of every chunk in source.
func (m *VectorDBManager) ListURLs(ctx context.Context, source string) ([]string, error) {
	results, err := m.scan(ctx, models.SourceFilter(source))
	if err != nil {
		return nil, err
	}
	urls := make([]string, len(results))
	for i, r := range results {
		urls[i] = r.Metadata[keyURL]
	}
	return urls, nil
}

// PageChunks returns every chunk of url in source ordered by chunk number.
func (m *VectorDBManager) PageChunks(ctx context.Context, url, source string) ([]models.SitePage, error) {
	where := models.SourceFilter(source)
	where[keyURL] = url
	results, err := m.scan(ctx, where)
	if err != nil {
		return nil, err
	}

	pages := make([]models.SitePage, len(results))
	for i, r := range results {
		pages[i] = fromResult(r)
		pages[i].Similarity = 0
	}
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].ChunkNumber < pages[j].ChunkNumber
	})
	return pages, nil
}

// scan returns every document matching where. chromem has no plain filtered
// listing, so it runs a similarity query wide enough to cover the collection
// with a unit probe vector.
func (m *VectorDBManager) scan(ctx context.Context, where map[string]string) ([]chromem.Result, error) {
	if m.collection == nil {
		return nil, fmt.Errorf("collection is required")
	}
	n := m.collection.Count()
	if n == 0 {
		return nil, nil
	}

	probe := make([]float32, m.dimensions)
	probe[0] = 1
	results, err := m.collection.QueryEmbedding(ctx, probe, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to scan collection: %w", err)
	}
	return results, nil
}

// DeletePagesBySource removes every chunk of one corpus.
func (m *VectorDBManager) DeletePagesBySource(ctx context.Context, source string) error {
	if m.collection == nil {
		return fmt.Errorf("collection is required")
	}
	if err := m.collection.Delete(ctx, models.SourceFilter(source), nil); err != nil {
		return fmt.Errorf("failed to delete pages: %w", err)
	}
	return nil
}

// delete collection
func (m *VectorDBManager) DeleteCollection() error {
	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	m.collection = nil
	return nil
}

// Export writes an encrypted snapshot of the collection to dbPath.
func (m *VectorDBManager) Export(ctx context.Context) error {
	if err := m.checkSnapshot(); err != nil {
		return err
	}
	if m.collection == nil {
		return fmt.Errorf("collection is required")
	}

	log.Debug().Str("collection", m.collectionName).Str("file", m.filePath).Msg("Exporting collection")
	if err := m.db.ExportToFile(m.filePath, compress, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads a snapshot written by Export and selects its collection.
func (m *VectorDBManager) Import(ctx context.Context) error {
	if err := m.checkSnapshot(); err != nil {
		return err
	}

	log.Debug().Str("collection", m.collectionName).Str("file", m.filePath).Msg("Importing collection")
	if err := m.db.ImportFromFile(m.filePath, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	_, err := m.GetOrCreateCollection()
	return err
}

// SnapshotPath is where Export writes and Import reads.
func (m *VectorDBManager) SnapshotPath() string {
	return m.filePath
}

func (m *VectorDBManager) checkSnapshot() error {
	if len(m.encryptionKey) != encryptionKeyLen {
		return fmt.Errorf("encryption key must be %d bytes", encryptionKeyLen)
	}
	if m.dbPath == "" {
		return fmt.Errorf("db path is required")
	}
	return nil
}

func documentID(url string, chunkNumber int) string {
	return fmt.Sprintf("%s#%d", url, chunkNumber)
}

func toMetadata(p models.SitePage) map[string]string {
	md := make(map[string]string, len(p.Metadata)+4)
	for k, v := range p.Metadata {
		md[k] = fmt.Sprint(v)
	}
	md[keyURL] = p.URL
	md[keyTitle] = p.Title
	md[keySummary] = p.Summary
	md[keyChunkNumber] = strconv.Itoa(p.ChunkNumber)
	return md
}

func fromResult(r chromem.Result) models.SitePage {
	chunkNumber, _ := strconv.Atoi(r.Metadata[keyChunkNumber])
	md := make(map[string]any, len(r.Metadata))
	for k, v := range r.Metadata {
		switch k {
		case keyURL, keyTitle, keySummary, keyChunkNumber:
		default:
			md[k] = v
		}
	}
	return models.SitePage{
		URL:         r.Metadata[keyURL],
		ChunkNumber: chunkNumber,
		Title:       r.Metadata[keyTitle],
		Summary:     r.Metadata[keySummary],
		Content:     r.Content,
		Metadata:    md,
		Similarity:  float64(r.Similarity),
	}
}
