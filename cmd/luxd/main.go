package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nightowl2626/LuxPricer/internal/auth"
	"github.com/nightowl2626/LuxPricer/internal/cache"
	"github.com/nightowl2626/LuxPricer/internal/config"
	"github.com/nightowl2626/LuxPricer/internal/embedder"
	"github.com/nightowl2626/LuxPricer/internal/lexical"
	"github.com/nightowl2626/LuxPricer/internal/llm"
	"github.com/nightowl2626/LuxPricer/internal/pricing"
	"github.com/nightowl2626/LuxPricer/internal/reranker"
	"github.com/nightowl2626/LuxPricer/internal/retriever"
	"github.com/nightowl2626/LuxPricer/internal/server"
	"github.com/nightowl2626/LuxPricer/internal/service"
	"github.com/nightowl2626/LuxPricer/internal/store"
	"github.com/nightowl2626/LuxPricer/internal/store/postgres"
	"github.com/nightowl2626/LuxPricer/internal/trend"
	"github.com/nightowl2626/LuxPricer/internal/vectorindex"
)

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting pricing service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
	)

	// Initialize Ollama embedder
	embed := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL: cfg.OllamaURL,
		Model:   cfg.OllamaEmbeddingModel,
	})
	dimension := embed.Dimension()
	slog.Info("initialized Ollama embedder", "model", cfg.OllamaEmbeddingModel, "dimension", dimension)

	// Load the catalog snapshot. A missing snapshot starts the service
	// empty, to be populated by luxingest.
	snapshot, err := store.LoadSnapshot(cfg.SnapshotDir, cfg.OllamaEmbeddingModel)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load snapshot: %w", err)
		}
		slog.Warn("no catalog snapshot found, starting empty", "dir", cfg.SnapshotDir)
		snapshot = nil
	} else {
		slog.Info("loaded catalog snapshot",
			"dir", cfg.SnapshotDir,
			"listings", len(snapshot.Listings),
			"created_at", snapshot.Metadata.CreatedAt,
		)
	}

	// Listing store: PostgreSQL when configured, otherwise in-memory
	// populated from the snapshot.
	var (
		listings store.ListingStore
		lookup   retriever.ListingLookup
		db       *postgres.DB
	)
	if cfg.DatabaseURL != "" {
		db, err = postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		repo := postgres.NewListingRepo(db)
		listings, lookup = repo, repo
		slog.Info("connected to PostgreSQL")
	} else {
		mem := store.NewMemory()
		if snapshot != nil {
			if err := mem.Upsert(ctx, snapshot.Listings); err != nil {
				return fmt.Errorf("failed to populate listing store: %w", err)
			}
		}
		listings, lookup = mem, mem
	}

	// Vector index: Qdrant when configured, otherwise the snapshot's flat
	// index.
	var vectors vectorindex.Index
	if cfg.QdrantGRPCURL != "" {
		qdrant, err := vectorindex.NewQdrantIndex(ctx, cfg.QdrantGRPCURL, cfg.QdrantCollection, dimension)
		if err != nil {
			return fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		// A fresh collection is backfilled from the snapshot so a
		// Qdrant deployment does not serve out of an empty index.
		if snapshot != nil && snapshot.Vectors != nil {
			n, err := qdrant.Len(ctx)
			if err != nil {
				return fmt.Errorf("failed to count Qdrant points: %w", err)
			}
			if n == 0 {
				if err := vectorindex.Mirror(ctx, snapshot.Vectors, qdrant); err != nil {
					return fmt.Errorf("failed to backfill Qdrant from snapshot: %w", err)
				}
				slog.Info("backfilled Qdrant collection from snapshot", "collection", cfg.QdrantCollection)
			}
		}
		vectors = qdrant
		slog.Info("connected to Qdrant", "collection", cfg.QdrantCollection)
	} else if snapshot != nil && snapshot.Vectors != nil {
		vectors = snapshot.Vectors
	} else {
		flat, err := vectorindex.NewFlat(dimension)
		if err != nil {
			return fmt.Errorf("failed to create vector index: %w", err)
		}
		vectors = flat
	}

	// Lexical index: on-disk Bleve when configured, otherwise in-memory
	// rebuilt from the snapshot.
	var lex *lexical.BleveSearcher
	if cfg.BleveIndexPath != "" {
		lex, err = lexical.Open(cfg.BleveIndexPath)
	} else {
		lex, err = lexical.NewMemory()
	}
	if err != nil {
		return fmt.Errorf("failed to open lexical index: %w", err)
	}
	defer lex.Close()
	if snapshot != nil {
		if count, err := lex.Count(); err == nil && count == 0 {
			if err := lex.IndexListings(ctx, snapshot.Listings); err != nil {
				return fmt.Errorf("failed to build lexical index: %w", err)
			}
			slog.Info("built lexical index", "listings", len(snapshot.Listings))
		}
	}

	// Trend scores
	trends := trend.NewStatic(nil)
	if cfg.TrendScoresPath != "" {
		trends, err = trend.LoadFile(cfg.TrendScoresPath)
		if err != nil {
			return fmt.Errorf("failed to load trend scores: %w", err)
		}
		slog.Info("loaded trend scores", "path", cfg.TrendScoresPath, "entries", trends.Len())
	}

	// Retrieval and reranking
	hybrid := retriever.NewHybrid(embed, vectors, lex, lookup, slog.Default())
	strategies := []reranker.Strategy{
		reranker.NewKeywordStrategy(),
		reranker.NewSemanticStrategy(embed),
	}
	if cfg.RerankLLMModel != "" {
		llmClient := llm.NewOllamaClient(
			llm.WithBaseURL(cfg.OllamaURL),
			llm.WithModel(cfg.RerankLLMModel),
		)
		strategies = append(strategies, reranker.NewLLMStrategy(llmClient))
		slog.Info("enabled LLM rerank strategy", "model", cfg.RerankLLMModel)
	}
	ensemble, err := reranker.NewEnsemble(strategies, nil, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create reranker: %w", err)
	}

	estimates := cache.New[*service.EstimateResponse](cfg.EstimateCacheTTL, cfg.EstimateCacheSize)
	defer estimates.Close()

	appraisal := service.NewAppraisal(
		hybrid,
		pricing.NewEstimator(pricing.DefaultConfig()),
		slog.Default(),
		service.WithReranker(ensemble),
		service.WithTrendProvider(trends),
		service.WithEstimateCache(estimates),
	)

	// Authentication, enabled only when API keys are configured
	var (
		authMW *auth.Middleware
		jwtMgr *auth.JWTManager
	)
	if len(cfg.APIKeys) > 0 {
		jwtMgr = auth.NewJWTManager(&auth.JWTConfig{
			Secret: cfg.JWTSecret,
			Expiry: cfg.JWTExpiry,
		})
		authMW = auth.NewMiddleware(cfg.APIKeys, jwtMgr, slog.Default())
	}

	httpServer, err := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         slog.Default(),
		AllowedOrigins: []string{"*"}, // Configure in production
		Appraisal:      appraisal,
		Listings:       listings,
		Auth:           authMW,
		TokenIssuer:    jwtMgr,
		ReadyCheck: func(ctx context.Context) error {
			if db != nil {
				return db.Pool.Ping(ctx)
			}
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
