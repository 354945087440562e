package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"workflow-docs-rag/internal/models"
)

// SitePage is a row of site_pages.
type SitePage struct {
	bun.BaseModel `bun:"table:site_pages,alias:sp"`
	ID            int64          `bun:"id,pk,autoincrement"`
	URL           string         `bun:"url,notnull"`
	ChunkNumber   int            `bun:"chunk_number,notnull"`
	Title         string         `bun:"title,notnull"`
	Summary       string         `bun:"summary"`
	Content       string         `bun:"content,notnull"`
	Metadata      map[string]any `bun:"metadata,type:jsonb"`
	Embedding     Vector         `bun:"embedding,type:vector"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// matchRow is one row returned by match_site_pages.
type matchRow struct {
	ID          int64          `bun:"id"`
	URL         string         `bun:"url"`
	ChunkNumber int            `bun:"chunk_number"`
	Title       string         `bun:"title"`
	Summary     string         `bun:"summary"`
	Content     string         `bun:"content"`
	Metadata    map[string]any `bun:"metadata,type:jsonb"`
	Similarity  float64        `bun:"similarity"`
}

const matchSitePagesSQL = "SELECT id, url, chunk_number, title, summary, content, metadata, similarity " +
	"FROM match_site_pages(?::vector, ?, ?::jsonb)"

// Store reads and writes documentation chunks in Supabase.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Init creates the site_pages table and match_site_pages function.
func (s *Store) Init(ctx context.Context, dimensions int) error {
	return InitDB(ctx, s.db, dimensions)
}

// Drop removes the site_pages table.
func (s *Store) Drop(ctx context.Context) error {
	if err := DropPages(ctx, s.db); err != nil {
		return fmt.Errorf("failed to drop site_pages: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// MatchPages calls match_site_pages and keeps the rank order Postgres returns.
func (s *Store) MatchPages(ctx context.Context, embedding []float32, count int, filter models.Filter) ([]models.SitePage, error) {
	q, err := matchPagesQuery(s.db, embedding, count, filter)
	if err != nil {
		return nil, err
	}

	var rows []matchRow
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("match_site_pages: %w", err)
	}

	pages := make([]models.SitePage, len(rows))
	for i, r := range rows {
		pages[i] = models.SitePage{
			URL:         r.URL,
			ChunkNumber: r.ChunkNumber,
			Title:       r.Title,
			Summary:     r.Summary,
			Content:     r.Content,
			Metadata:    r.Metadata,
			Similarity:  r.Similarity,
		}
	}
	return pages, nil
}

// ListURLs returns the url column of every chunk in source.
func (s *Store) ListURLs(ctx context.Context, source string) ([]string, error) {
	var urls []string
	if err := listURLsQuery(s.db, source).Scan(ctx, &urls); err != nil {
		return nil, fmt.Errorf("list urls: %w", err)
	}
	return urls, nil
}

// PageChunks returns every chunk of url in source, ordered by chunk_number.
func (s *Store) PageChunks(ctx context.Context, url, source string) ([]models.SitePage, error) {
	var rows []SitePage
	if err := pageChunksQuery(s.db, &rows, url, source).Scan(ctx); err != nil {
		return nil, fmt.Errorf("page chunks: %w", err)
	}

	pages := make([]models.SitePage, len(rows))
	for i, r := range rows {
		pages[i] = models.SitePage{
			URL:         url,
			Title:       r.Title,
			Content:     r.Content,
			ChunkNumber: r.ChunkNumber,
		}
	}
	return pages, nil
}

// StorePages upserts chunks keyed by (url, chunk_number).
func (s *Store) StorePages(ctx context.Context, pages []models.SitePage) error {
	if len(pages) == 0 {
		return nil
	}

	rows := make([]SitePage, len(pages))
	for i, p := range pages {
		rows[i] = SitePage{
			URL:         p.URL,
			ChunkNumber: p.ChunkNumber,
			Title:       p.Title,
			Summary:     p.Summary,
			Content:     p.Content,
			Metadata:    p.Metadata,
			Embedding:   Vector(p.Embedding),
		}
	}

	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (url, chunk_number) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("summary = EXCLUDED.summary").
		Set("content = EXCLUDED.content").
		Set("metadata = EXCLUDED.metadata").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("store pages: %w", err)
	}
	return nil
}

// DeletePagesBySource removes every chunk of one corpus.
func (s *Store) DeletePagesBySource(ctx context.Context, source string) error {
	_, err := s.db.NewDelete().
		Model((*SitePage)(nil)).
		Where("metadata->>'source' = ?", source).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete pages: %w", err)
	}
	return nil
}

func matchPagesQuery(db bun.IDB, embedding []float32, count int, filter models.Filter) (*bun.RawQuery, error) {
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	return db.NewRaw(matchSitePagesSQL, Vector(embedding), count, string(filterJSON)), nil
}

func listURLsQuery(db bun.IDB, source string) *bun.SelectQuery {
	return db.NewSelect().
		Model((*SitePage)(nil)).
		Column("url").
		Distinct().
		Where("sp.metadata->>'source' = ?", source).
		OrderExpr("sp.url ASC")
}

func pageChunksQuery(db bun.IDB, rows *[]SitePage, url, source string) *bun.SelectQuery {
	return db.NewSelect().
		Model(rows).
		Column("title", "content", "chunk_number").
		Where("sp.url = ?", url).
		Where("sp.metadata->>'source' = ?", source).
		OrderExpr("sp.chunk_number ASC")
}
