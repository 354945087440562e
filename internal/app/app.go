package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"

	"workflow-docs-rag/internal/agent"
	"workflow-docs-rag/internal/chromemdb"
	"workflow-docs-rag/internal/config"
	"workflow-docs-rag/internal/db"
	"workflow-docs-rag/internal/embedding"
	"workflow-docs-rag/internal/helper"
	"workflow-docs-rag/internal/llmservice"
	"workflow-docs-rag/internal/models"
	"workflow-docs-rag/internal/parser"
	"workflow-docs-rag/internal/rag"
)

const (
	BackendSupabase = "supabase"
	BackendChromem  = "chromem"
)

// PageStore is a Backend that can also be written to and initialised.
type PageStore interface {
	rag.Backend
	StorePages(ctx context.Context, pages []models.SitePage) error
	DeletePagesBySource(ctx context.Context, source string) error
}

// App holds the clients built once at startup and shared by every operation.
type App struct {
	Config   *config.Config
	Embedder *embedding.Provider
	RAG      *rag.RAG
	Registry *agent.Registry

	store    PageStore
	supabase *db.Store
	chromem  *chromemdb.VectorDBManager
}

// New wires the configured backend and embedder into the retrieval core and
// tool registry.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}
	return NewWithEmbedder(ctx, cfg, embedding.NewProvider(embedder, cfg.RAG.Dimensions))
}

func NewWithEmbedder(ctx context.Context, cfg *config.Config, provider *embedding.Provider) (*App, error) {
	a := &App{Config: cfg, Embedder: provider}

	switch cfg.RAG.Backend {
	case BackendSupabase:
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		a.supabase = db.NewStore(db.NewDB(sqldb, cfg.Database.Debug))
		a.store = a.supabase
	case BackendChromem:
		m, err := openChromem(ctx, &cfg.RAG)
		if err != nil {
			return nil, err
		}
		a.chromem = m
		a.store = m
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.RAG.Backend)
	}

	a.RAG = rag.NewRAG(rag.Deps{Backend: a.store, Embedder: provider}, cfg.RAG.Source, cfg.RAG.MatchCount)
	a.Registry = agent.NewRegistry()
	if err := a.Registry.Register(agent.DocsTools(a.RAG)...); err != nil {
		return nil, err
	}

	log.Debug().Str("backend", cfg.RAG.Backend).Str("source", cfg.RAG.Source).Msg("Application ready")
	return a, nil
}

// openChromem uses an in-memory collection backed by an encrypted snapshot
// when an encryption key is configured, and a persistent directory otherwise.
func openChromem(ctx context.Context, cfg *config.RAGConfig) (*chromemdb.VectorDBManager, error) {
	if err := helper.CreateFolder(cfg.ChromemPath); err != nil {
		return nil, err
	}

	inMemory := cfg.EncryptionKey != ""
	m, err := chromemdb.NewVectorDBManager(cfg.ChromemPath, cfg.Collection, inMemory, cfg.EncryptionKey, cfg.Dimensions)
	if err != nil {
		return nil, err
	}

	if inMemory {
		_, err := os.Stat(m.SnapshotPath())
		switch {
		case err == nil:
			if err := m.Import(ctx); err != nil {
				return nil, err
			}
			return m, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to stat snapshot: %w", err)
		}
	}

	if _, err := m.GetOrCreateCollection(); err != nil {
		return nil, err
	}
	return m, nil
}

// Store is the backend every operation reads from.
func (a *App) Store() PageStore {
	return a.store
}

// InitStore creates the site_pages schema or the local collection. With
// fresh set, existing data is dropped first.
func (a *App) InitStore(ctx context.Context, fresh bool) error {
	if a.supabase != nil {
		if fresh {
			if err := a.supabase.Drop(ctx); err != nil {
				return err
			}
		}
		return a.supabase.Init(ctx, a.Config.RAG.Dimensions)
	}

	if fresh {
		if err := a.chromem.DeleteCollection(); err != nil {
			return err
		}
	}
	if _, err := a.chromem.GetOrCreateCollection(); err != nil {
		return err
	}
	return a.persist(ctx)
}

// Ingest parses filePath as the page at url, embeds its chunks and stores
// them. It returns the number of chunks written.
func (a *App) Ingest(ctx context.Context, filePath, url, siteName string) (int, error) {
	pages, err := parser.ParseFile(filePath, url, parser.OptionsFromConfig(&a.Config.RAG, siteName))
	if err != nil {
		return 0, err
	}
	if len(pages) == 0 {
		log.Warn().Str("file", filePath).Msg("No content to ingest")
		return 0, nil
	}

	if err := a.Embedder.EmbedChunks(ctx, pages); err != nil {
		return 0, err
	}
	if err := a.store.StorePages(ctx, pages); err != nil {
		return 0, err
	}
	if err := a.persist(ctx); err != nil {
		return 0, err
	}

	log.Info().Str("url", url).Int("chunks", len(pages)).Msg("Ingested document")
	return len(pages), nil
}

// Reset removes every chunk of the configured source.
func (a *App) Reset(ctx context.Context) error {
	if err := a.store.DeletePagesBySource(ctx, a.Config.RAG.Source); err != nil {
		return err
	}
	return a.persist(ctx)
}

// persist writes the encrypted snapshot of an in-memory chromem collection.
func (a *App) persist(ctx context.Context) error {
	if a.chromem == nil || a.Config.RAG.EncryptionKey == "" {
		return nil
	}
	return a.chromem.Export(ctx)
}

// NewAgent builds the documentation agent on the configured chat model.
func (a *App) NewAgent() (*agent.Agent, error) {
	llm, err := llmservice.NewLLM(&a.Config.InferenceLLM)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(models.SystemPrompt, models.SampleTemplate)
	return agent.NewAgent(llm, a.Registry, prompt, a.Config.Agent), nil
}

func (a *App) Close() error {
	if a.supabase != nil {
		return a.supabase.Close()
	}
	return nil
}
