// main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type cliOptions struct {
	mode     string
	topics   int
	words    int
	regions  string
	noImages bool
	noTweets bool
	noVideos bool
	draft    bool
	category string
	dryRun   bool
}

func parseFlags() cliOptions {
	var o cliOptions
	flag.StringVar(&o.mode, "mode", "run", "Mode to run: run, serve, stats, trending, category or random")
	flag.IntVar(&o.topics, "topics", 3, "Maximum topics to process per run")
	flag.IntVar(&o.words, "words", 1500, "Target word count per article")
	flag.StringVar(&o.regions, "regions", "US", "Comma-separated region codes")
	flag.BoolVar(&o.noImages, "no-images", false, "Skip image search")
	flag.BoolVar(&o.noTweets, "no-tweets", false, "Skip social post search")
	flag.BoolVar(&o.noVideos, "no-videos", false, "Skip video search")
	flag.BoolVar(&o.draft, "draft", false, "Save generated articles as drafts")
	flag.StringVar(&o.category, "category", "", "Category for -mode=category")
	flag.BoolVar(&o.dryRun, "dry-run", false, "Use an in-memory store instead of Postgres")
	flag.Parse()
	return o
}

func (o cliOptions) workflowConfig() WorkflowConfig {
	cfg := DefaultWorkflowConfig()
	cfg.MaxTopicsPerRun = o.topics
	cfg.TargetWordCount = o.words
	cfg.Regions = parseRegions(o.regions)
	cfg.IncludeImages = !o.noImages
	cfg.IncludeTweets = !o.noTweets
	cfg.IncludeVideos = !o.noVideos
	cfg.AutoPublish = !o.draft
	return cfg
}

func main() {
	opts := parseFlags()
	cfg := LoadConfig()
	InitLogger(cfg.LogLevel)

	if err := run(opts, cfg); err != nil {
		slog.Error("[Main] Fatal error", slog.String("mode", opts.mode), slog.Any("error", err))
		os.Exit(1)
	}
}

func run(opts cliOptions, cfg Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := NewMetrics(registry)

	app, err := buildApp(ctx, cfg, opts.dryRun, metrics)
	if err != nil {
		return err
	}
	defer app.close()

	switch opts.mode {
	case "run":
		result := app.workflow.Execute(ctx, opts.workflowConfig(), TriggerInteractive)
		if err := printJSON(os.Stdout, result); err != nil {
			return err
		}
		stats, err := app.workflow.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, stats)
	case "stats":
		stats, err := app.workflow.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, stats)
	case "trending":
		wfCfg := opts.workflowConfig()
		topics := app.workflow.Trending(ctx, wfCfg.Regions, 10)
		out, err := FormatTrendingTopicsJSON(topics)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	case "category":
		if opts.category == "" {
			return errors.New("-category is required for -mode=category")
		}
		return printJSON(os.Stdout, app.workflow.GenerateForCategory(ctx, opts.category, opts.workflowConfig()))
	case "random":
		return printJSON(os.Stdout, app.workflow.GenerateRandom(ctx, opts.workflowConfig()))
	case "serve":
		return serve(ctx, cfg, app, registry, metrics)
	default:
		return fmt.Errorf("unknown mode %q", opts.mode)
	}
}

type application struct {
	workflow *Workflow
	store    ArticleStore
	closers  []io.Closer
}

func (a *application) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			slog.Warn("[Main] Error closing resource", slog.Any("error", err))
		}
	}
	if err := a.store.Disconnect(); err != nil {
		slog.Warn("[Main] Error disconnecting store", slog.Any("error", err))
	}
}

// buildApp wires every adapter whose credentials are configured. Missing credentials
// leave the corresponding source out rather than failing startup.
func buildApp(ctx context.Context, cfg Config, dryRun bool, metrics *Metrics) (*application, error) {
	a := &application{}
	httpClient := defaultHTTPClient(cfg.AdapterTimeout)
	settings := guardSettings{
		Timeout:          cfg.AdapterTimeout,
		FailureThreshold: cfg.BreakerFailureTrigger,
		Cooldown:         cfg.BreakerCooldown,
		Metrics:          metrics,
	}

	var trendAdapters []TrendAdapter
	if cfg.BrowserTrends {
		if err := playwright.Install(); err != nil {
			return nil, fmt.Errorf("error installing playwright: %w", err)
		}
		var proxies *WebshareClient
		if cfg.WebshareAPIKey != "" {
			proxies = NewWebshareClient(cfg.WebshareAPIKey, httpClient)
		}
		trendAdapters = append(trendAdapters, NewBrowserTrends(proxies, cfg.TrendsPerSource, cfg.BrowserTimeout))
	} else {
		trendAdapters = append(trendAdapters, NewGoogleTrendsFeed(httpClient, cfg.TrendsPerSource))
	}

	var sources MediaSources
	if cfg.TwitterBearerToken != "" {
		twitter := NewTwitterClient(cfg.TwitterBearerToken, httpClient, cfg.TrendsPerSource)
		trendAdapters = append(trendAdapters, twitter)
		sources.Social = twitter
	}
	trendAdapters = append(trendAdapters, CatalogTrends{})

	if cfg.UnsplashAccessKey != "" {
		sources.Images = NewUnsplashClient(cfg.UnsplashAccessKey, httpClient)
	}
	if cfg.GoogleAPIKey != "" {
		yt, err := NewYouTubeClient(ctx, cfg.GoogleAPIKey)
		if err != nil {
			return nil, err
		}
		sources.Videos = yt
		if cfg.GoogleSearchEngine != "" {
			search, err := NewArticleSearchClient(ctx, cfg.GoogleAPIKey, cfg.GoogleSearchEngine, httpClient)
			if err != nil {
				return nil, err
			}
			sources.Articles = search
		}
	}

	gen, err := NewGenerator(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating generator: %w", err)
	}
	if c, ok := gen.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	if dryRun {
		slog.Info("[Main] Dry run, articles are kept in memory")
		a.store = NewMemoryStore()
	} else {
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required unless -dry-run is set")
		}
		a.store = NewPostgresStore(cfg.DatabaseURL)
	}

	synth := NewContentSynthesizer(gen, SynthesizerOptions{
		SiteBaseURL:   cfg.SiteBaseURL,
		AuthorName:    cfg.AuthorName,
		FeaturedImage: cfg.FeaturedImage,
	})
	a.workflow = NewWorkflow(
		NewTopicAggregator(settings, trendAdapters...),
		NewMediaCollector(sources, cfg.MediaResultsPerType, settings),
		synth,
		a.store,
		metrics,
	)

	slog.Info("[Main] Workflow ready",
		slog.Int("trendSources", len(trendAdapters)),
		slog.Bool("images", sources.Images != nil),
		slog.Bool("social", sources.Social != nil),
		slog.Bool("videos", sources.Videos != nil),
		slog.Bool("articles", sources.Articles != nil),
		slog.String("model", gen.Model()))
	return a, nil
}

func serve(ctx context.Context, cfg Config, a *application, registry *prometheus.Registry, metrics *Metrics) error {
	// Owned here and shared by reference with the scheduler.
	guard := &RunGuard{}
	scheduler := NewTrendScheduler(a.workflow, guard, SchedulerOptions{
		Interval:   cfg.ContentEvery,
		ReportHour: cfg.ReportHour,
		Config:     ScheduledWorkflowConfig(),
		Metrics:    metrics,
	})
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           NewServer(a.workflow, a.store, registry, cfg.WorkflowPerMin).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("[Main] HTTP server listening", slog.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("[Main] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
