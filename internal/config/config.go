package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultSource         = "n8n_docs"
	defaultMatchCount     = 5
	defaultDimensions     = 1536
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultInferenceModel = "gpt-4o-mini"
	defaultOpenAIBase     = "https://api.openai.com/v1"
	defaultBackend        = "supabase"
	defaultChromemPath    = "./chromemdb"
	defaultCollection     = "site_pages"
	defaultChunkSize      = 5000
	defaultChunkOverlap   = 200
	defaultMaxSteps       = 8
	defaultRetries        = 2
	defaultLogLevel       = "info"
)

type Config struct {
	Database     DatabaseConfig `yaml:"database"`
	EmbedLLM     LLMConfig      `yaml:"embed_llm"`
	InferenceLLM LLMConfig      `yaml:"inference_llm"`
	RAG          RAGConfig      `yaml:"rag"`
	Agent        AgentConfig    `yaml:"agent"`
	Log          LogConfig      `yaml:"log"`
}

// DatabaseConfig points at the Supabase Postgres instance holding site_pages.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	// Driver is "pgdriver" (default) or "pq".
	Driver string `yaml:"driver"`
	Debug  bool   `yaml:"debug"`
}

type LLMConfig struct {
	// Provider is "openai" (any OpenAI compatible endpoint) or "ollama".
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type RAGConfig struct {
	// Source is the metadata.source partition every lookup is scoped to.
	Source     string `yaml:"source"`
	MatchCount int    `yaml:"match_count"`
	Dimensions int    `yaml:"dimensions"`
	// Backend is "supabase" or "chromem".
	Backend       string `yaml:"backend"`
	ChromemPath   string `yaml:"chromem_path"`
	Collection    string `yaml:"collection"`
	EncryptionKey string `yaml:"encryption_key"`
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
}

type AgentConfig struct {
	MaxSteps int `yaml:"max_steps"`
	Retries  int `yaml:"retries"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig reads the YAML config at path, then layers .env and environment
// variables on top. A missing config file is not an error when the environment
// supplies everything.
func LoadConfig(path string) (*Config, error) {
	// retries: 0 is a valid setting, so unset is marked with -1
	cfg := Config{Agent: AgentConfig{Retries: -1}}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	applyEnv(&cfg)
	ApplyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.InferenceLLM.Model, "LLM_MODEL")
	setString(&cfg.InferenceLLM.Key, "OPENAI_API_KEY")
	setString(&cfg.InferenceLLM.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.EmbedLLM.Model, "EMBEDDING_MODEL")
	setString(&cfg.EmbedLLM.Key, "OPENAI_API_KEY")
	setString(&cfg.EmbedLLM.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.Database.URL, "SUPABASE_DB_URL")
	setString(&cfg.Database.Password, "SUPABASE_DB_PASSWORD")
	setString(&cfg.RAG.Source, "DOCS_SOURCE")
	setString(&cfg.RAG.Backend, "DOCS_BACKEND")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	if v := os.Getenv("EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RAG.Dimensions = n
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// ApplyDefaults fills zero values. Agent.Retries is only defaulted when
// negative, since zero disables retries.
func ApplyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "pgdriver"
	}
	defaultLLM(&cfg.EmbedLLM, defaultEmbeddingModel)
	defaultLLM(&cfg.InferenceLLM, defaultInferenceModel)

	if cfg.RAG.Source == "" {
		cfg.RAG.Source = defaultSource
	}
	if cfg.RAG.MatchCount <= 0 {
		cfg.RAG.MatchCount = defaultMatchCount
	}
	if cfg.RAG.Dimensions <= 0 {
		cfg.RAG.Dimensions = defaultDimensions
	}
	if cfg.RAG.Backend == "" {
		cfg.RAG.Backend = defaultBackend
	}
	if cfg.RAG.ChromemPath == "" {
		cfg.RAG.ChromemPath = defaultChromemPath
	}
	if cfg.RAG.Collection == "" {
		cfg.RAG.Collection = defaultCollection
	}
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = defaultChunkSize
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		cfg.RAG.ChunkOverlap = min(defaultChunkOverlap, cfg.RAG.ChunkSize/2)
	}

	if cfg.Agent.MaxSteps <= 0 {
		cfg.Agent.MaxSteps = defaultMaxSteps
	}
	if cfg.Agent.Retries < 0 {
		cfg.Agent.Retries = defaultRetries
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
}

func defaultLLM(c *LLMConfig, model string) {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.BaseURL == "" && c.Provider == "openai" {
		c.BaseURL = defaultOpenAIBase
	}
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.Database.Password != "" {
		c.Database.Password = "***"
	}
	if c.EmbedLLM.Key != "" {
		c.EmbedLLM.Key = "***"
	}
	if c.InferenceLLM.Key != "" {
		c.InferenceLLM.Key = "***"
	}
	if c.RAG.EncryptionKey != "" {
		c.RAG.EncryptionKey = "***"
	}
	return c
}
