// Copyright 2026 Xynenyx
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/xynenyx/fundwire/ai"
	"github.com/xynenyx/fundwire/ai/openai"
	aipattern "github.com/xynenyx/fundwire/ai/pattern"
	"github.com/xynenyx/fundwire/core"
	"github.com/xynenyx/fundwire/feed"
	"github.com/xynenyx/fundwire/reconcile"
	"github.com/xynenyx/fundwire/search"
	"github.com/xynenyx/fundwire/storage/badger"
	"github.com/xynenyx/fundwire/worker"
)

func main() {
	dbFlag := &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to BadgerDB database directory",
		EnvVars:  []string{"FUNDWIRE_DB"},
		Required: true,
	}
	batchFlag := &cli.IntFlag{
		Name:  "batch-size",
		Usage: "Number of documents to claim in one pass",
		Value: 10,
	}
	embeddingHostFlag := &cli.StringFlag{
		Name:    "embedding-host",
		Usage:   "Embedding service host URL",
		EnvVars: []string{"FUNDWIRE_EMBEDDING_HOST"},
		Value:   "http://localhost:11434/v1",
	}
	embeddingModelFlag := &cli.StringFlag{
		Name:     "embedding-model",
		Usage:    "Embedding model name",
		EnvVars:  []string{"FUNDWIRE_EMBEDDING_MODEL"},
		Required: true,
	}

	app := &cli.App{
		Name:  "fundwire",
		Usage: "Startup funding news ingestion and extraction pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "system-actor",
				Usage:   "Actor name attached to log records for automated writes",
				EnvVars: []string{"FUNDWIRE_SYSTEM_ACTOR"},
				Value:   "system-ingestion",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "add-feed",
				Usage:  "Register an RSS/Atom feed for ingestion",
				Action: addFeedCommand,
				Flags: []cli.Flag{
					dbFlag,
					&cli.StringFlag{
						Name:     "url",
						Usage:    "Feed URL",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Feed display name",
					},
				},
			},
			{
				Name:   "list-feeds",
				Usage:  "List registered feeds",
				Action: listFeedsCommand,
				Flags:  []cli.Flag{dbFlag},
			},
			{
				Name:   "ingest",
				Usage:  "Fetch articles from active feeds and store them as pending documents",
				Action: ingestCommand,
				Flags: []cli.Flag{
					dbFlag,
					&cli.BoolFlag{
						Name:  "no-article-fetch",
						Usage: "Use only feed-provided text, never fetch article pages",
					},
				},
			},
			{
				Name:   "process",
				Usage:  "Chunk and embed pending documents",
				Action: processCommand,
				Flags: []cli.Flag{
					dbFlag,
					batchFlag,
					embeddingHostFlag,
					embeddingModelFlag,
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Number of documents processed concurrently (0 = CPU-based default)",
					},
				},
			},
			{
				Name:   "features",
				Usage:  "Extract companies, investors and funding rounds from ready documents",
				Action: featuresCommand,
				Flags: []cli.Flag{
					dbFlag,
					batchFlag,
					&cli.BoolFlag{
						Name:  "pattern",
						Usage: "Use the offline regex extractor instead of the LLM",
					},
					&cli.StringFlag{
						Name:    "extractor-host",
						Usage:   "Extraction service host URL",
						EnvVars: []string{"FUNDWIRE_EXTRACTOR_HOST"},
						Value:   "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:    "extractor-model",
						Usage:   "Extraction model name",
						EnvVars: []string{"FUNDWIRE_EXTRACTOR_MODEL"},
						Value:   "qwen2.5:3b",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Query processed documents by semantic similarity",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					dbFlag,
					embeddingHostFlag,
					embeddingModelFlag,
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of hits",
						Value: 5,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Similarity floor for a chunk to count as a hit",
						Value: 0.6,
					},
				},
			},
			{
				Name:   "reconcile",
				Usage:  "Detect and repair corrupted feature-store rows",
				Action: reconcileCommand,
				Flags: []cli.Flag{
					dbFlag,
					&cli.BoolFlag{
						Name:  "execute",
						Usage: "Apply the computed changes (default is dry-run)",
					},
					&cli.BoolFlag{
						Name:  "no-fix-amounts",
						Usage: "Disable amount rescaling",
					},
					&cli.BoolFlag{
						Name:  "no-delete-rounds",
						Usage: "Disable untrustworthy round deletion",
					},
					&cli.BoolFlag{
						Name:  "no-delete-entities",
						Usage: "Disable bad company/investor deletion",
					},
					&cli.BoolFlag{
						Name:  "no-fix-dates",
						Usage: "Disable round date canonicalization",
					},
					&cli.BoolFlag{
						Name:  "no-rearm",
						Usage: "Do not reset extraction flags on affected documents",
					},
					&cli.BoolFlag{
						Name:  "reset-stuck",
						Usage: "Return long-stuck processing documents to pending",
					},
					&cli.DurationFlag{
						Name:  "stuck-cutoff",
						Usage: "Age at which a processing document counts as stuck",
						Value: time.Hour,
					},
					&cli.BoolFlag{
						Name:  "reprocess",
						Usage: "Run the pattern extractor on re-armed documents immediately after execute",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openRepositories opens the backend plus the repositories a command needs.
// Callers close in reverse order via the returned function.
func openRepositories(dbPath string) (*badger.FeedRepository, *badger.DocumentRepository, *badger.FeatureRepository, func(), error) {
	backend, err := badger.OpenBackend(dbPath, false)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	feedRepo, err := badger.NewFeedRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, nil, fmt.Errorf("failed to create feed repository: %w", err)
	}
	docRepo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		feedRepo.Close()
		backend.Close()
		return nil, nil, nil, nil, fmt.Errorf("failed to create document repository: %w", err)
	}
	featureRepo, err := badger.NewFeatureRepository(backend)
	if err != nil {
		docRepo.Close()
		feedRepo.Close()
		backend.Close()
		return nil, nil, nil, nil, fmt.Errorf("failed to create feature repository: %w", err)
	}
	cleanup := func() {
		featureRepo.Close()
		docRepo.Close()
		feedRepo.Close()
		backend.Close()
	}
	return feedRepo, docRepo, featureRepo, cleanup, nil
}

func addFeedCommand(c *cli.Context) error {
	feedRepo, _, _, cleanup, err := openRepositories(c.String("db"))
	if err != nil {
		return err
	}
	defer cleanup()

	name := c.String("name")
	if name == "" {
		name = c.String("url")
	}

	f, err := feedRepo.AddFeed(context.Background(), &core.Feed{
		Name:   name,
		URL:    c.String("url"),
		Status: core.FeedActive,
	})
	if err != nil {
		return fmt.Errorf("failed to add feed: %w", err)
	}

	fmt.Printf("feed %d: %s (%s)\n", f.Id, f.Name, f.URL)
	return nil
}

func listFeedsCommand(c *cli.Context) error {
	feedRepo, _, _, cleanup, err := openRepositories(c.String("db"))
	if err != nil {
		return err
	}
	defer cleanup()

	feeds, err := feedRepo.ListFeeds(context.Background(), 0)
	if err != nil {
		return fmt.Errorf("failed to list feeds: %w", err)
	}

	for _, f := range feeds {
		last := "never"
		if !f.LastIngestedAt.IsZero() {
			last = f.LastIngestedAt.Format(time.RFC3339)
		}
		fmt.Printf("%d\t%s\t%s\t%s\tarticles=%d\tlast=%s\n",
			f.Id, f.Status, f.Name, f.URL, f.ArticleCount, last)
	}
	return nil
}

func ingestCommand(c *cli.Context) error {
	feedRepo, docRepo, _, cleanup, err := openRepositories(c.String("db"))
	if err != nil {
		return err
	}
	defer cleanup()

	var opts []worker.IngestorOption
	if !c.Bool("no-article-fetch") {
		opts = append(opts, worker.WithArticleExtractor(feed.NewExtractor(nil)))
	}

	ingestor, err := worker.NewIngestor(feedRepo, docRepo, feed.NewFetcher(nil), opts...)
	if err != nil {
		return err
	}

	summary, err := ingestor.Run(context.Background())
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "feeds=%d added=%d duplicates=%d skipped=%d failedFeeds=%d\n",
		summary.FeedsChecked, summary.DocumentsAdded, summary.Duplicates,
		summary.ItemsSkipped, summary.FeedsFailed)
	return nil
}

func processCommand(c *cli.Context) error {
	_, docRepo, _, cleanup, err := openRepositories(c.String("db"))
	if err != nil {
		return err
	}
	defer cleanup()

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		// Extraction settings are unused by this command.
		ai.WithExtractorHost(c.String("embedding-host")),
		ai.WithExtractorModel("unused"),
	)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	provider, err := openai.NewProvider(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create AI provider: %w", err)
	}
	defer provider.Close()

	var opts []worker.ProcessorOption
	if size := c.Int("pool-size"); size > 0 {
		opts = append(opts, worker.WithProcessorPoolSize(size))
	}

	processor, err := worker.NewProcessor(docRepo, provider, opts...)
	if err != nil {
		return err
	}
	defer processor.Release()

	summary, err := processor.Run(context.Background(), c.Int("batch-size"))
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "claimed=%d completed=%d failed=%d\n",
		summary.Claimed, summary.Completed, summary.Failed)
	return nil
}

func featuresCommand(c *cli.Context) error {
	_, docRepo, featureRepo, cleanup, err := openRepositories(c.String("db"))
	if err != nil {
		return err
	}
	defer cleanup()

	extractor, err := buildExtractor(c)
	if err != nil {
		return err
	}

	featureWorker, err := worker.NewFeatureWorker(docRepo, featureRepo, extractor)
	if err != nil {
		return err
	}

	summary, err := featureWorker.Run(context.Background(), c.Int("batch-size"))
	if err != nil {
		return fmt.Errorf("feature extraction failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "claimed=%d extracted=%d failed=%d rounds=%d rejectedNames=%d rejectedAmounts=%d\n",
		summary.Claimed, summary.Extracted, summary.Failed,
		summary.FundingRounds, summary.RejectedNames, summary.RejectedAmounts)
	return nil
}

func buildExtractor(c *cli.Context) (ai.EntityExtractor, error) {
	if c.Bool("pattern") {
		return aipattern.NewEntityExtractor(), nil
	}

	aiConfig := ai.NewConfig(
		ai.WithExtractorHost(c.String("extractor-host")),
		ai.WithExtractorModel(c.String("extractor-model")),
		// Embedding settings are unused by this command.
		ai.WithEmbeddingHost(c.String("extractor-host")),
		ai.WithEmbeddingModel("unused"),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	extractor, err := openai.NewEntityExtractor(aiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create entity extractor: %w", err)
	}
	return extractor, nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if query == "" {
		return fmt.Errorf("search requires a query argument")
	}

	_, docRepo, _, cleanup, err := openRepositories(c.String("db"))
	if err != nil {
		return err
	}
	defer cleanup()

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		// Extraction settings are unused by this command.
		ai.WithExtractorHost(c.String("embedding-host")),
		ai.WithExtractorModel("unused"),
	)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	provider, err := openai.NewProvider(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create AI provider: %w", err)
	}
	defer provider.Close()

	searcher, err := search.NewSearcher(docRepo, provider.Embedder(),
		search.WithMinSimilarity(float32(c.Float64("min-similarity"))))
	if err != nil {
		return err
	}

	results, err := searcher.FindSimilar(context.Background(), query, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Printf("Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Printf("%d: [%0.3f] %s (%s)\n   %s\n",
			i, hit.Score, hit.Document.Name, hit.Document.ArticleURL, hit.Chunk.Content)
	}
	return nil
}

func reconcileCommand(c *cli.Context) error {
	_, docRepo, featureRepo, cleanup, err := openRepositories(c.String("db"))
	if err != nil {
		return err
	}
	defer cleanup()

	rules := reconcile.DefaultRules()
	rules.FixAmounts = !c.Bool("no-fix-amounts")
	rules.DeleteInvalidRounds = !c.Bool("no-delete-rounds")
	rules.DeleteBadEntities = !c.Bool("no-delete-entities")
	rules.FixDates = !c.Bool("no-fix-dates")
	rules.Rearm = !c.Bool("no-rearm")
	rules.ResetStuck = c.Bool("reset-stuck")
	rules.StuckCutoff = c.Duration("stuck-cutoff")

	reconciler, err := reconcile.New(docRepo, featureRepo,
		reconcile.WithRules(rules),
		reconcile.WithProgress(os.Stderr))
	if err != nil {
		return err
	}

	ctx := context.Background()
	execute := c.Bool("execute")

	plan, summary, err := reconciler.Run(ctx, execute)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	plan.Report(os.Stdout)
	if !execute {
		fmt.Fprintln(os.Stderr, "dry run, no changes applied (pass --execute to apply)")
		return nil
	}
	if summary.Errors > 0 {
		return fmt.Errorf("reconciliation finished with %d errors", summary.Errors)
	}

	// Optionally re-run extraction right away instead of waiting for the
	// next scheduled features pass.
	if c.Bool("reprocess") && summary.Rearmed > 0 {
		featureWorker, err := worker.NewFeatureWorker(docRepo, featureRepo, aipattern.NewEntityExtractor())
		if err != nil {
			return err
		}
		fs, err := featureWorker.Run(ctx, summary.Rearmed)
		if err != nil {
			return fmt.Errorf("re-extraction failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "re-extracted %d documents\n", fs.Extracted)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	if actor := c.String("system-actor"); actor != "" {
		logger = logger.With("actor", actor)
	}
	slog.SetDefault(logger)

	return nil
}
