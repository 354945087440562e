package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"workflow-docs-rag/internal/config"
)

// NewDB wraps sqldb in a bun.DB speaking the Postgres dialect.
func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the Supabase Postgres database. Connections are lazy, so
// no network traffic happens here.
func ConnectDB(dbConfig *config.DatabaseConfig) (*sql.DB, error) {
	if dbConfig.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}

	switch dbConfig.Driver {
	case "", "pgdriver":
		opts := []pgdriver.Option{pgdriver.WithDSN(dbConfig.URL)}
		if dbConfig.Password != "" {
			opts = append(opts, pgdriver.WithPassword(dbConfig.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	case "pq":
		db, err := sql.Open("postgres", dbConfig.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", dbConfig.Driver)
	}
}

// InitDB creates the pgvector extension, the site_pages table and the
// match_site_pages similarity function.
func InitDB(ctx context.Context, db *bun.DB, dimensions int) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	for _, stmt := range []string{
		createTableSQL(dimensions),
		"CREATE UNIQUE INDEX IF NOT EXISTS site_pages_url_chunk_idx ON site_pages (url, chunk_number)",
		"CREATE INDEX IF NOT EXISTS site_pages_metadata_idx ON site_pages USING gin (metadata)",
		"CREATE INDEX IF NOT EXISTS site_pages_embedding_idx ON site_pages USING hnsw (embedding vector_cosine_ops)",
		matchFunctionSQL(dimensions),
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// DropPages drops the site_pages table.
func DropPages(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*SitePage)(nil)).IfExists().Exec(ctx)
	return err
}

// The vector width lives in the column type, which bun struct tags cannot
// parameterize, so the table is created from SQL.
func createTableSQL(dimensions int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS site_pages (
  id bigserial PRIMARY KEY,
  url varchar NOT NULL,
  chunk_number integer NOT NULL,
  title varchar NOT NULL,
  summary varchar NOT NULL DEFAULT '',
  content text NOT NULL,
  metadata jsonb NOT NULL DEFAULT '{}'::jsonb,
  embedding vector(%d),
  created_at timestamptz NOT NULL DEFAULT now()
)`, dimensions)
}

func matchFunctionSQL(dimensions int) string {
	return fmt.Sprintf(`CREATE OR REPLACE FUNCTION match_site_pages (
  query_embedding vector(%d),
  match_count int DEFAULT 10,
  filter jsonb DEFAULT '{}'::jsonb
) RETURNS TABLE (
  id bigint,
  url varchar,
  chunk_number integer,
  title varchar,
  summary varchar,
  content text,
  metadata jsonb,
  similarity float
)
LANGUAGE plpgsql
AS $$
#variable_conflict use_column
BEGIN
  RETURN QUERY
  SELECT id, url, chunk_number, title, summary, content, metadata,
    1 - (site_pages.embedding <=> query_embedding) AS similarity
  FROM site_pages
  WHERE metadata @> filter
  ORDER BY site_pages.embedding <=> query_embedding
  LIMIT match_count;
END;
$$`, dimensions)
}
