package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"workflow-docs-rag/internal/app"
	"workflow-docs-rag/internal/config"
	"workflow-docs-rag/internal/helper"
)

const (
	configFilePath  = "./configs/config.yaml"
	defaultSiteName = "n8n Docs"
)

func main() {
	configPath := flag.String("config", configFilePath, "Path to the YAML config file")
	backend := flag.String("backend", "", "Document store: supabase or chromem (overrides config)")
	query := flag.String("query", "", "Ask the documentation agent")
	retrieve := flag.String("retrieve", "", "Print the documentation chunks most similar to the text")
	listPages := flag.Bool("list-pages", false, "List documentation page URLs")
	page := flag.String("page", "", "Print the full content of the page at this URL")
	ingest := flag.String("ingest", "", "Path to a documentation file to store")
	url := flag.String("url", "", "Page URL of the ingested file")
	siteName := flag.String("site-name", defaultSiteName, "Site name appended to ingested page titles")
	initDB := flag.Bool("init-db", false, "Create the document store schema")
	fresh := flag.Bool("fresh", false, "With -init-db, drop existing documents first")
	reset := flag.Bool("reset", false, "Delete every document of the configured source")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.RAG.Backend = *backend
	}

	helper.InitLogger(cfg.Log.Level, os.Stdout)
	log.Debug().Interface("config", cfg.Redacted()).Msg("Loaded config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing application")
	}
	defer a.Close()

	switch {
	case *initDB:
		runInitDB(ctx, a, *fresh)
	case *reset:
		runReset(ctx, a)
	case *ingest != "":
		runIngest(ctx, a, *ingest, *url, *siteName)
	case *retrieve != "":
		fmt.Println(a.RAG.Retrieve(ctx, *retrieve).Value)
	case *listPages:
		helper.PrettyPrint(os.Stdout, a.RAG.ListPages(ctx).Value)
	case *page != "":
		fmt.Println(a.RAG.GetPage(ctx, *page).Value)
	case *query != "":
		runQuery(ctx, a, *query)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runInitDB(ctx context.Context, a *app.App, fresh bool) {
	if err := a.InitStore(ctx, fresh); err != nil {
		log.Fatal().Err(err).Msg("Error initializing document store")
	}
	log.Info().Str("backend", a.Config.RAG.Backend).Bool("fresh", fresh).Msg("Document store ready")
}

func runReset(ctx context.Context, a *app.App) {
	if err := a.Reset(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error deleting documents")
	}
	log.Info().Str("source", a.Config.RAG.Source).Msg("Deleted documents")
}

func runIngest(ctx context.Context, a *app.App, filePath, url, siteName string) {
	if url == "" {
		log.Fatal().Msg("Please provide the page URL of the document using the -url flag")
	}
	n, err := a.Ingest(ctx, filePath, url, siteName)
	if err != nil {
		log.Fatal().Err(err).Str("file", filePath).Msg("Error ingesting document")
	}
	log.Info().Str("file", filePath).Int("chunks", n).Msg("Stored document")
}

func runQuery(ctx context.Context, a *app.App, query string) {
	ag, err := a.NewAgent()
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing agent")
	}

	response, err := ag.Run(ctx, query)
	if err != nil {
		log.Fatal().Err(err).Str("turn_id", response.TurnID).Msg("Error querying")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Int("steps", response.Steps).Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
}
