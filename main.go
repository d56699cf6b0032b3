package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/seaway-data/shiptrace/internal/api"
	"github.com/seaway-data/shiptrace/internal/cache"
	"github.com/seaway-data/shiptrace/internal/config"
	"github.com/seaway-data/shiptrace/internal/db"
	"github.com/seaway-data/shiptrace/internal/envgrid"
	"github.com/seaway-data/shiptrace/internal/httputil"
	"github.com/seaway-data/shiptrace/internal/ingest"
	"github.com/seaway-data/shiptrace/internal/monitoring"
	"github.com/seaway-data/shiptrace/internal/pipeline"
	"github.com/seaway-data/shiptrace/internal/schema"
	"github.com/seaway-data/shiptrace/internal/timeutil"
)

var (
	//go:embed static/*
	staticFiles embed.FS
	configPath  = flag.String("config", "shiptrace.yaml", "Path to YAML config file")
	listen      = flag.String("listen", "", "Listen address (overrides config)")
	devMode     = flag.Bool("dev", false, "Run in dev mode")
)

// buildResolver picks the schema backend: heuristic-only by default, with a
// language-model pass in front when a model and credentials are configured.
func buildResolver(cfg *config.Config) (schema.Resolver, error) {
	var extra map[string]string
	if cfg.Trajectory.SynonymTable != "" {
		var err error
		extra, err = schema.LoadSynonymTable(cfg.Trajectory.SynonymTable)
		if err != nil {
			return nil, err
		}
	}

	heuristic, err := schema.NewHeuristicResolver(extra)
	if err != nil {
		return nil, err
	}

	if !cfg.LLMEnabled() {
		if cfg.LLM.Model != "" {
			monitoring.Logf("no %s in environment; header resolution is heuristic-only", config.LLMKeyEnv)
		}
		return heuristic, nil
	}

	client := httputil.NewStandardClient(&http.Client{Timeout: 30 * time.Second})
	return schema.NewLLMResolver(heuristic, client, cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLMKey(), cfg.LLM.Temperature), nil
}

// loadGrid reads the environment grid. A failed read is not fatal: the
// service still serves the trajectory, just without wind fields.
func loadGrid(ctx context.Context, cfg *config.Config) *envgrid.Grid {
	if cfg.Grid.Path == "" {
		monitoring.Logf("no grid configured; serving trajectory without wind fields")
		return nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, cfg.GetGridReadTimeout())
	defer cancel()

	grid, err := envgrid.Load(loadCtx, cfg.Grid.Path, cfg.Grid.Levels)
	if err != nil {
		monitoring.Logf("grid load failed (%v); serving trajectory without wind fields", err)
		return nil
	}
	monitoring.Logf("loaded grid %s: %d times x %d lats x %d lons, %d fields",
		cfg.Grid.Path, len(grid.Times), len(grid.Lats), len(grid.Lons), len(grid.Fields))
	return grid
}

func main() {
	flag.Parse()

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && *configPath == "shiptrace.yaml" {
			log.Printf("no config file found, using defaults")
			cfg = config.Default()
		} else {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	database, err := db.NewDB(cfg.Cache.DBPath)
	if err != nil {
		log.Fatalf("failed to open cache database: %v", err)
	}
	defer database.Close()

	resolver, err := buildResolver(cfg)
	if err != nil {
		log.Fatalf("failed to build schema resolver: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	grid := loadGrid(ctx, cfg)

	loader := &ingest.Loader{
		Resolver: resolver,
		Clips:    cfg.Trajectory.Clips,
		Units:    cfg.Trajectory.Units,
		Resample: cfg.GetResampleInterval(),
		Encoding: cfg.Trajectory.Encoding,
		Sheet:    cfg.Trajectory.Sheet,
		RowLimit: cfg.Trajectory.RowLimit,
	}
	resultCache := cache.New(cache.NewStore(database.DB, timeutil.RealClock{}), cfg.Cache.MemoryEntries)
	p := pipeline.New(cfg, loader, grid, resultCache)

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		database.AttachAdminRoutes(mux)

		apiMux := api.NewServer(p, cfg).ServeMux()
		mux.Handle("/api/", apiMux)
		mux.Handle("/debug/charts/", apiMux)

		// read static files from the embedded filesystem in production or from
		// the local ./static in dev for easier iteration without restarting the
		// server
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./static"))
		} else {
			staticHandler = http.FileServer(http.FS(staticFiles))
		}
		mux.Handle("/", staticHandler)

		server := &http.Server{
			Addr:    cfg.Listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", cfg.Listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
