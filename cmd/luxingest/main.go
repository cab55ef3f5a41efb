// Command luxingest builds the catalog snapshot served by luxd. It reads
// listings from a JSON file or scrapes them from marketplace URLs, embeds
// them, and writes the snapshot directory.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/nightowl2626/LuxPricer/internal/config"
	"github.com/nightowl2626/LuxPricer/internal/embedder"
	"github.com/nightowl2626/LuxPricer/internal/ingest"
	"github.com/nightowl2626/LuxPricer/internal/listing"
	"github.com/nightowl2626/LuxPricer/internal/scraper"
	"github.com/nightowl2626/LuxPricer/internal/store"
	"github.com/nightowl2626/LuxPricer/internal/store/postgres"
	"github.com/nightowl2626/LuxPricer/internal/vectorindex"
)

func main() {
	var (
		inputPath = flag.String("input", "", "path to a JSON file of listings")
		urlsPath  = flag.String("urls", "", "path to a file of listing URLs to scrape, one per line")
		platform  = flag.String("platform", "", "marketplace name for scraped listings")
		outDir    = flag.String("out", "", "snapshot output directory (default: SNAPSHOT_DIR)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*inputPath, *urlsPath, *platform, *outDir); err != nil {
		slog.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func run(inputPath, urlsPath, platform, outDir string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if outDir == "" {
		outDir = cfg.SnapshotDir
	}
	if inputPath == "" && urlsPath == "" {
		return fmt.Errorf("either -input or -urls is required")
	}

	var raw []listing.Listing
	if inputPath != "" {
		raw, err = ingest.LoadListingsFile(inputPath)
		if err != nil {
			return fmt.Errorf("failed to load listings: %w", err)
		}
		slog.Info("loaded listings file", "path", inputPath, "listings", len(raw))
	}

	if urlsPath != "" {
		if platform == "" {
			return fmt.Errorf("-platform is required with -urls")
		}
		urls, err := readLines(urlsPath)
		if err != nil {
			return fmt.Errorf("failed to read URL file: %w", err)
		}
		scraped, err := scraper.New(scraper.DefaultConfig(), slog.Default()).
			ScrapeListings(ctx, urls, platform)
		if err != nil {
			return fmt.Errorf("scrape failed: %w", err)
		}
		slog.Info("scraped listings", "platform", platform, "listings", len(scraped))
		raw = append(raw, scraped...)
	}

	embed := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL: cfg.OllamaURL,
		Model:   cfg.OllamaEmbeddingModel,
	})

	vectors, err := vectorindex.NewFlat(embed.Dimension())
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	var listings store.ListingStore = store.NewMemory()
	if cfg.DatabaseURL != "" {
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		listings = postgres.NewListingRepo(db)
		slog.Info("writing listings to PostgreSQL")
	}

	pipeline, err := ingest.NewPipeline(ingest.Config{
		Embedder: embed,
		Vectors:  vectors,
		Listings: listings,
		Logger:   slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	stats, err := pipeline.Ingest(ctx, raw)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	slog.Info("ingest complete",
		"total", stats.Total,
		"ingested", stats.Ingested,
		"skipped", stats.Skipped,
		"duration", stats.ProcessingTime,
	)

	if cfg.QdrantGRPCURL != "" {
		qidx, err := vectorindex.NewQdrantIndex(ctx, cfg.QdrantGRPCURL, cfg.QdrantCollection, embed.Dimension())
		if err != nil {
			return fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		defer qidx.Close()
		if err := vectorindex.Mirror(ctx, vectors, qidx); err != nil {
			return fmt.Errorf("failed to push vectors to Qdrant: %w", err)
		}
		slog.Info("vectors pushed to Qdrant", "collection", cfg.QdrantCollection)
	}

	ingested, _, err := listings.List(ctx, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to read back listings: %w", err)
	}
	if err := store.SaveSnapshot(outDir, ingested, vectors, store.SnapshotMetadata{
		EmbeddingModel: cfg.OllamaEmbeddingModel,
		Dimension:      embed.Dimension(),
	}); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	slog.Info("snapshot written", "dir", outDir, "listings", len(ingested))
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
