// Package main is the Kioku CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/catalog"
	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/extract"
	"github.com/hyperjump/kioku/internal/ingest"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/query"
	"github.com/hyperjump/kioku/internal/server"
	"github.com/hyperjump/kioku/internal/store"
	"github.com/hyperjump/kioku/internal/watcher"
	"github.com/hyperjump/kioku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kioku/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. When neither exists, built-in defaults plus environment
// overrides apply. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "seed":
		runSeed()
	case "query":
		runQuery()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kioku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var assetWatcher *watcher.Watcher
	if cfg.Assets.Watch && cfg.Assets.Dir != "" {
		pipeline := components.Pipeline
		defaultID := cfg.Tenants.DefaultID
		assetWatcher = watcher.New(cfg.Assets.Dir, cfg.Assets.Extensions, func(path string) {
			resp, err := pipeline.IngestFile(context.Background(), defaultID, path, filepath.Base(path))
			if err != nil {
				logger.Warn("asset ingestion failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Info("asset ingested",
				zap.String("path", path),
				zap.String("status", resp.Status),
				zap.Int("chunks", resp.ChunksAdded))
		}, logger)
		if err := assetWatcher.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start assets watcher", zap.Error(err))
		}
		defer assetWatcher.Stop()
		if err := assetWatcher.SyncExisting(); err != nil {
			logger.Warn("asset directory sync failed", zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Engine,
		components.Pipeline,
		components.Store,
		components.Catalog,
		components.Provider,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// runSeed ingests every supported file in the assets directory into the
// shared default index.
func runSeed() {
	flagSet := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := flagSet.String("config", defaultConfigPath, "config file path")
	assetsDir := flagSet.String("dir", "", "assets directory (default from config)")
	rebuild := flagSet.Bool("rebuild", false, "delete the default index before seeding")
	_ = flagSet.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	dir := *assetsDir
	if dir == "" {
		dir = cfg.Assets.Dir
	}
	if dir == "" {
		fmt.Println("No assets directory configured; use --dir or set assets.dir in config")
		os.Exit(1)
	}

	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	defaultID := cfg.Tenants.DefaultID
	if *rebuild {
		fmt.Printf("Rebuilding default index %q\n", defaultID)
		components.Store.Delete(defaultID)
		if components.Catalog != nil {
			if err := components.Catalog.DeleteByTenant(ctx, defaultID); err != nil {
				logger.Warn("could not clear catalog entries", zap.Error(err))
			}
		}
	}

	var added, skipped, failed int
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !extract.IsSupported(filepath.Ext(path)) {
			skipped++
			return nil
		}
		resp, err := components.Pipeline.IngestFile(ctx, defaultID, path, filepath.Base(path))
		if err != nil {
			failed++
			fmt.Printf("  FAILED  %s: %v\n", path, err)
			return nil
		}
		switch resp.Status {
		case models.StatusAdded:
			added++
			fmt.Printf("  added   %s (%d chunks)\n", path, resp.ChunksAdded)
		default:
			skipped++
			fmt.Printf("  skipped %s: %s\n", path, resp.Message)
		}
		return nil
	})
	if err != nil {
		fmt.Printf("Seeding failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded default index: %d added, %d skipped, %d failed\n", added, skipped, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// runQuery sends a query to a running server and prints the results.
func runQuery() {
	flagSet := flag.NewFlagSet("query", flag.ExitOnError)
	serverURL := flagSet.String("server", "http://localhost:5002", "server URL")
	tenantID := flagSet.String("tenant", "", "tenant id")
	k := flagSet.Int("k", 0, "number of results (0 = server default)")
	_ = flagSet.Parse(os.Args[2:])

	if flagSet.NArg() < 1 || *tenantID == "" {
		fmt.Println("Usage: kioku query --tenant <id> [flags] <question>")
		os.Exit(1)
	}
	question := flagSet.Arg(0)
	for _, a := range flagSet.Args()[1:] {
		question += " " + a
	}

	body, _ := json.Marshal(&models.QueryRequest{TenantID: *tenantID, Query: question, K: *k})
	resp, err := http.Post(*serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out models.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response: %v\n", err)
		os.Exit(1)
	}
	if len(out.RelevantDocs) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, doc := range out.RelevantDocs {
		fmt.Printf("%d. %s (score %.4f)\n   %s\n", i+1, doc.DocumentName, doc.Score, utils.Truncate(doc.Content, 200))
	}
	fmt.Printf("(%d ms)\n", out.QueryTime)
}

func runStatus() {
	flagSet := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := flagSet.String("server", "http://localhost:5002", "server URL")
	_ = flagSet.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(status)
}

// Components holds initialized services.
type Components struct {
	Catalog  *catalog.Catalog
	Embedder embedding.Embedder
	Provider *embedding.Provider
	Store    *store.Store
	Pipeline *ingest.Pipeline
	Engine   *query.Engine
}

func (c *Components) Close() {
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Provider != nil {
		_ = c.Provider.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	var cat *catalog.Catalog
	if cfg.Storage.CatalogPath != "" {
		var err error
		cat, err = catalog.Open(cfg.Storage.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open document catalog: %w", err)
		}
	}

	var embedder embedding.Embedder
	onnxEmbedder, err := embedding.NewONNXEmbedder(
		cfg.Embedding.ModelPath,
		cfg.Embedding.Dimensions,
		cfg.Embedding.MaxTokens,
		cfg.Embedding.CacheSize,
	)
	if err != nil {
		logger.Warn("ONNX model unavailable, using deterministic mock embedder",
			zap.String("model_path", cfg.Embedding.ModelPath),
			zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		embedder = onnxEmbedder
	}
	provider := embedding.NewProvider(embedder, logger)

	st, err := store.NewStore(cfg.Storage.RootDir, provider, logger)
	if err != nil {
		if cat != nil {
			_ = cat.Close()
		}
		_ = provider.Close()
		return nil, fmt.Errorf("failed to initialize index store: %w", err)
	}

	chunker := ingest.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	pipeline := ingest.NewPipeline(provider, st, chunker, cat, logger)
	engine := query.NewEngine(provider, st, cfg.Tenants.DefaultID, logger)

	return &Components{
		Catalog:  cat,
		Embedder: embedder,
		Provider: provider,
		Store:    st,
		Pipeline: pipeline,
		Engine:   engine,
	}, nil
}

func printUsage() {
	fmt.Println(`kioku - per-tenant vector index service

Usage:
  kioku server [flags]            Start the HTTP server
  kioku seed [flags]              Ingest assets into the shared default index
  kioku query [flags] <question>  Query a running server
  kioku status [flags]            Show server status
  kioku version                   Show version
  kioku help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kioku/config.yaml)
  --debug            Enable debug logging

Seed Flags:
  --config string    Config file path
  --dir string       Assets directory (default from config assets.dir)
  --rebuild          Delete the default index before seeding

Query Flags:
  --server string    Server URL (default: http://localhost:5002)
  --tenant string    Tenant id (required)
  --k int            Number of results

Status Flags:
  --server string    Server URL (default: http://localhost:5002)

Examples:
  kioku server
  kioku seed --rebuild
  kioku query --tenant alice "what is in my notes about budgets"
  kioku status`)
}
