package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sentinel-vision/sentinel/internal/alerts"
	"github.com/sentinel-vision/sentinel/internal/api"
	"github.com/sentinel-vision/sentinel/internal/broadcast"
	"github.com/sentinel-vision/sentinel/internal/clips"
	"github.com/sentinel-vision/sentinel/internal/config"
	"github.com/sentinel-vision/sentinel/internal/db"
	"github.com/sentinel-vision/sentinel/internal/heatmap"
	"github.com/sentinel-vision/sentinel/internal/monitoring"
	"github.com/sentinel-vision/sentinel/internal/notify"
	"github.com/sentinel-vision/sentinel/internal/objstore"
	"github.com/sentinel-vision/sentinel/internal/pipeline"
	"github.com/sentinel-vision/sentinel/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Run in dev mode (debug logging)")
	listen      = flag.String("listen", "", "Listen address (overrides LISTEN_ADDR and config)")
	configFile  = flag.String("config", "", "Path to JSON configuration file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// loadConfig reads the optional config file and overlays the environment.
func loadConfig(path string, lookup config.LookupFunc) (*config.ServerConfig, error) {
	cfg := &config.ServerConfig{}
	if path != "" {
		var err error
		if cfg, err = config.LoadServerConfig(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func engineConfig(cfg *config.ServerConfig) alerts.Config {
	return alerts.Config{
		Enabled:         cfg.GetEnableNotifications(),
		DedupeWindow:    cfg.GetDedupeWindow(),
		CorrelateWindow: cfg.GetCorrelateWindow(),
	}
}

// newClipPublisher returns nil when object storage credentials are absent.
func newClipPublisher(cfg *config.ServerConfig) (pipeline.ClipPublisher, error) {
	if cfg.S3.AccessKey == "" || cfg.S3.SecretKey == "" {
		return nil, nil
	}
	store, err := objstore.New(objstore.Config{
		EndpointURL: cfg.S3.EndpointURL,
		Region:      cfg.S3.GetRegion(),
		AccessKey:   cfg.S3.AccessKey,
		SecretKey:   cfg.S3.SecretKey,
		Bucket:      cfg.S3.GetBucket(),
		UseSSL:      cfg.S3.GetUseSSL(),
	})
	if err != nil {
		return nil, err
	}
	clipper := clips.NewClipper(cfg.GetHLSOutputDir(), cfg.GetClipTempDir(), cfg.GetClipSeconds(), clips.ExecRunner{})
	return clips.NewPublisher(clipper, store, nil), nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	_ = godotenv.Load()

	cfg, err := loadConfig(*configFile, os.LookupEnv)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if *listen != "" {
		cfg.Listen = listen
	}
	if *devMode {
		monitoring.SetStructuredLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	notifier := notify.FromConfig(cfg, &http.Client{})
	log.Printf("notification channels: %v", notifier.Channels())
	engine := alerts.NewEngine(engineConfig(cfg), notifier)

	clipPub, err := newClipPublisher(cfg)
	if err != nil {
		log.Fatalf("failed to configure object storage: %v", err)
	}
	if clipPub == nil {
		log.Print("object storage not configured; clips disabled")
	}

	hub := broadcast.NewHub()
	heat := heatmap.New()
	pipe := pipeline.New(engine, pipeline.Options{
		Store:        database,
		Broadcaster:  hub,
		Clips:        clipPub,
		MockInterval: cfg.GetMockInterval(),
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.GetMode() == "mock" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pipe.RunGenerator(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("demo generator failed: %v", err)
			}
			log.Print("demo generator terminated")
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		srv := api.NewServer(database, pipe, hub, heat, api.Config{
			Mode:              cfg.GetMode(),
			APIKey:            cfg.GetAPIKey(),
			PrometheusEnabled: cfg.GetPrometheusEnabled(),
		})
		mux := srv.ServeMux()
		if err := srv.AttachAdminRoutes(mux); err != nil {
			log.Fatalf("failed to attach admin routes: %v", err)
		}

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("sentinel %s listening on %s (mode=%s)", version.String(), server.Addr, cfg.GetMode())
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Print("waiting for clip uploads")
	pipe.Wait()
	log.Printf("Graceful shutdown complete")
}
