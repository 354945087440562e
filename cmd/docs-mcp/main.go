package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"workflow-docs-rag/internal/app"
	"workflow-docs-rag/internal/config"
	"workflow-docs-rag/internal/helper"
	"workflow-docs-rag/internal/mcpserver"
)

func main() {
	configPath := os.Getenv("DOCS_RAG_CONFIG")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the protocol
	helper.InitLogger(cfg.Log.Level, os.Stderr)

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	s := mcpserver.NewServer(a.Registry)
	log.Info().Str("backend", cfg.RAG.Backend).Msg("Serving documentation tools over stdio")
	if err := server.ServeStdio(s); err != nil {
		log.Error().Err(err).Msg("MCP server stopped")
	}
}
