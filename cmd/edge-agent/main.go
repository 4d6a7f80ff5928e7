package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sentinel-vision/sentinel/internal/config"
	"github.com/sentinel-vision/sentinel/internal/edge"
	"github.com/sentinel-vision/sentinel/internal/tracking"
	"github.com/sentinel-vision/sentinel/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to JSON configuration file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func loadConfig(path string, lookup config.LookupFunc) (*config.EdgeConfig, error) {
	cfg := &config.EdgeConfig{}
	if path != "" {
		var err error
		if cfg, err = config.LoadEdgeConfig(path); err != nil {
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

func newAgent(cfg *config.EdgeConfig, client *http.Client) (*edge.Agent, edge.FrameSource) {
	tracker := tracking.New(cfg.GetTrackerImpl(), tracking.Config{
		MaxLost:    cfg.GetMaxLost(),
		DistThresh: cfg.GetDistThresh(),
	})
	source := edge.OpenSource(cfg.GetVideoPath(), cfg.GetFrameWidth(), cfg.GetFrameHeight())
	agent := edge.NewAgent(edge.Config{
		BackendURL:    cfg.GetBackendURL(),
		APIKey:        cfg.GetAPIKey(),
		CameraID:      cfg.GetCameraID(),
		FrameInterval: cfg.GetFrameInterval(),
		PostTimeout:   cfg.GetPostTimeout(),
	}, source, edge.MockDetector{}, tracker, client, nil)
	return agent, source
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

	agent, source := newAgent(cfg, &http.Client{})
	defer source.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("edge agent failed: %v", err)
	}
	log.Printf("edge agent stopped")
}
