package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streeteasy_scraper/analytics"
	"streeteasy_scraper/api"
	"streeteasy_scraper/cache"
	"streeteasy_scraper/config"
	"streeteasy_scraper/export"
	"streeteasy_scraper/fetch"
	"streeteasy_scraper/httputil"
	"streeteasy_scraper/logging"
	"streeteasy_scraper/models"
	"streeteasy_scraper/scheduler"
	"streeteasy_scraper/scraper"
	"streeteasy_scraper/storage"
)

var (
	searchPreset = flag.String("search", "", "Run one saved search and exit")
	outPath      = flag.String("out", "", "With -search, write the listings to this CSV file")
	serve        = flag.Bool("serve", true, "Run the HTTP API and scheduler")
)

const cachePurgeInterval = time.Hour

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting streeteasy_scraper...")
	log.Printf("Loaded %d saved searches", len(cfg.Searches))
	for id, p := range cfg.Searches {
		log.Printf("  - %s (%s)", p.Name, id)
	}

	if cfg.Fetch.Mode == fetch.ModeScrapingBee && cfg.Fetch.APIKey == "" {
		log.Println("Warning: SCRAPINGBEE_API_KEY is not set; searches need an api_key per request")
	}

	clients := httputil.NewClients(&cfg.Fetch)
	factory, err := fetch.NewFactory(cfg.Fetch.Mode, clients)
	if err != nil {
		log.Fatalf("Failed to set up fetching: %v", err)
	}
	log.Printf("Fetch mode: %s", cfg.Fetch.Mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pages := setupCache(ctx, cfg)

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	runner := scraper.NewRunner(factory, scraper.OptionsFromConfig(cfg, pages))
	orchestrator := scraper.NewOrchestrator(runner, sqliteStore, cfg.Fetch.APIKey)
	orchestrator.SetPresets(presetList(cfg))

	var pgExporter scraper.ListingExporter
	var exported api.ListingCounter
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresExporter(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pg.Close()
		pgExporter = pg
		exported = pg
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))
	}

	var uploader scraper.Uploader
	if cfg.S3.Enabled() {
		up, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKey,
			SecretAccessKey: cfg.S3.SecretKey,
			PublicBaseURL:   cfg.S3.PublicURL,
		})
		if err != nil {
			log.Fatalf("Failed to set up S3: %v", err)
		}
		uploader = up
		log.Printf("S3 exports to bucket %s", cfg.S3.Bucket)
	}
	orchestrator.SetExporters(pgExporter, uploader)

	if *searchPreset != "" {
		if err := runOnce(ctx, orchestrator, *searchPreset, *outPath); err != nil {
			log.Fatalf("Search failed: %v", err)
		}
		return
	}
	if !*serve {
		log.Println("Nothing to do: pass -search or -serve")
		return
	}

	sched := scheduler.New(orchestrator, cfg.Scheduler.Cron)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	jobs := api.NewJobManager(ctx, orchestrator)
	server := api.NewServer(cfg, orchestrator, jobs, sqliteStore, exported)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	sched.Stop()
	log.Println("Goodbye!")
}

// setupCache prefers Redis when configured and falls back to memory.
func setupCache(ctx context.Context, cfg *config.Config) cache.PageCache {
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisDB, cfg.Cache.TTL)
		if err == nil {
			log.Printf("Page cache: redis %s (ttl %s)", cfg.Cache.RedisAddr, cfg.Cache.TTL)
			go func() {
				<-ctx.Done()
				rc.Close()
			}()
			return rc
		}
		log.Printf("Warning: redis unavailable, using memory cache: %v", err)
	}

	mc := cache.NewMemoryCache(cfg.Cache.TTL)
	go func() {
		ticker := time.NewTicker(cachePurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := mc.Purge(); n > 0 {
					log.Printf("Page cache: purged %d expired entries", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	log.Printf("Page cache: memory (ttl %s)", cfg.Cache.TTL)
	return mc
}

func presetList(cfg *config.Config) []*models.SearchPreset {
	presets := make([]*models.SearchPreset, 0, len(cfg.Searches))
	for _, p := range cfg.Searches {
		presets = append(presets, p)
	}
	return presets
}

func runOnce(ctx context.Context, orchestrator *scraper.Orchestrator, presetID, out string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run, res, err := orchestrator.RunPreset(ctx, presetID)
	if err != nil {
		return err
	}

	sum := analytics.Summary(analytics.Prepare(res.Listings))
	fmt.Printf("Run %d: %s\n", run.ID, res.Status)
	fmt.Printf("  search URL:    %s\n", res.SearchURL)
	fmt.Printf("  pages fetched: %d\n", res.PagesFetched)
	fmt.Printf("  listings:      %d (%d enriched, %d neighborhoods)\n", sum.Listings, res.Enriched, sum.Neighborhoods)
	fmt.Printf("  median price:  $%.0f\n", sum.MedianPrice)
	fmt.Printf("  API usage:     %d calls, %d credits\n", res.Usage.Calls, res.Usage.Credits)
	if res.Err != nil {
		fmt.Printf("  ended early:   %v\n", res.Err)
	}

	if out != "" {
		analytics.SortByListingDate(res.Listings)
		if err := export.WriteFile(out, res.Listings); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		log.Printf("Wrote %d listings to %s", len(res.Listings), out)
	}
	return nil
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	// Simple mask - find :// and mask until @
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	// Find : after user
	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
