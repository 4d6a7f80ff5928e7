// Package edge runs the per-camera loop on an edge device: read a frame,
// detect, track, normalize and post the batch to the alert server.
package edge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sentinel-vision/sentinel/internal/httputil"
	"github.com/sentinel-vision/sentinel/internal/monitoring"
	"github.com/sentinel-vision/sentinel/internal/timeutil"
	"github.com/sentinel-vision/sentinel/internal/tracking"
)

// Config is the agent's runtime configuration.
type Config struct {
	BackendURL    string
	APIKey        string
	CameraID      string
	FrameInterval time.Duration
	PostTimeout   time.Duration
}

// Batch is the ingestion payload for one frame.
type Batch struct {
	CameraID  string      `json:"camera_id"`
	Timestamp float64     `json:"ts"`
	Persons   [][]float64 `json:"persons"`
}

// Agent owns one camera's tracker and posts its output.
type Agent struct {
	cfg      Config
	source   FrameSource
	detector Detector
	tracker  tracking.BoxTracker
	client   httputil.HTTPClient
	clock    timeutil.Clock

	frameNo int
}

// NewAgent returns an Agent. A nil client uses http.DefaultClient and a nil
// clock the real clock.
func NewAgent(cfg Config, source FrameSource, detector Detector, tracker tracking.BoxTracker, client httputil.HTTPClient, clock timeutil.Clock) *Agent {
	if client == nil {
		client = http.DefaultClient
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 100 * time.Millisecond
	}
	if cfg.PostTimeout <= 0 {
		cfg.PostTimeout = 2 * time.Second
	}
	return &Agent{
		cfg:      cfg,
		source:   source,
		detector: detector,
		tracker:  tracker,
		client:   client,
		clock:    clock,
	}
}

func (a *Agent) ingestURL() string {
	return strings.TrimRight(a.cfg.BackendURL, "/") + "/ingest/detections"
}

// Run processes one frame per FrameInterval until ctx is done. Post
// failures are logged and the loop continues.
func (a *Agent) Run(ctx context.Context) error {
	monitoring.Logf("edge agent %s posting to %s every %s", a.cfg.CameraID, a.ingestURL(), a.cfg.FrameInterval)
	ticker := a.clock.NewTicker(a.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if _, err := a.Step(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				monitoring.LogError(ctx, "post failed", err, slog.String("camera_id", a.cfg.CameraID))
			}
		}
	}
}

// Step handles a single frame and returns the batch it posted.
func (a *Agent) Step(ctx context.Context) (Batch, error) {
	frame, err := a.readFrame()
	if err != nil {
		return Batch{}, err
	}
	boxes := a.detector.Detect(frame, a.frameNo)
	a.frameNo++

	persons, err := tracking.Normalize(a.tracker.Update(boxes), frame.Width, frame.Height)
	if err != nil {
		return Batch{}, err
	}
	b := Batch{
		CameraID:  a.cfg.CameraID,
		Timestamp: timeutil.Unix(a.clock.Now()),
		Persons:   persons,
	}

	pctx, cancel := context.WithTimeout(ctx, a.cfg.PostTimeout)
	defer cancel()
	header := http.Header{}
	header.Set("X-API-Key", a.cfg.APIKey)
	if err := httputil.PostJSON(pctx, a.client, a.ingestURL(), b, header); err != nil {
		return b, fmt.Errorf("failed to post detections: %w", err)
	}
	return b, nil
}

// readFrame reads the next frame, rewinding once at end of stream.
func (a *Agent) readFrame() (Frame, error) {
	f, err := a.source.Read()
	if errors.Is(err, ErrEndOfStream) {
		if err := a.source.Rewind(); err != nil {
			return Frame{}, fmt.Errorf("failed to rewind source: %w", err)
		}
		f, err = a.source.Read()
	}
	if err != nil {
		return Frame{}, fmt.Errorf("failed to read frame: %w", err)
	}
	return f, nil
}
