// Package pipeline drives server-side alert handling: the dedup and
// correlation engine, persistence, live broadcast and clip attachment.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sentinel-vision/sentinel/internal/alerts"
	"github.com/sentinel-vision/sentinel/internal/clips"
	"github.com/sentinel-vision/sentinel/internal/db"
	"github.com/sentinel-vision/sentinel/internal/monitoring"
	"github.com/sentinel-vision/sentinel/internal/timeutil"
)

// ClipTimeout bounds the background clip work for one alert.
const ClipTimeout = 2 * time.Minute

// Store persists alerts and cameras. *db.DB satisfies it.
type Store interface {
	RecordAlert(a alerts.Alert, thread alerts.ThreadHandle) (string, error)
	ListCameras() ([]db.Camera, error)
	CreateCamera(c db.Camera) (*db.Camera, error)
}

// Broadcaster fans events out to live subscribers. *broadcast.Hub
// satisfies it.
type Broadcaster interface {
	Broadcast(ctx context.Context, v interface{}) (int, error)
}

// ClipPublisher cuts and uploads a clip. *clips.Publisher satisfies it.
type ClipPublisher interface {
	Publish(ctx context.Context, cameraID string) (alerts.ClipURLs, error)
}

// Event is the message sent to live subscribers.
type Event struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Pipeline handles alerts end to end. Store, Broadcaster and ClipPublisher
// are optional; a nil dependency skips that step.
type Pipeline struct {
	engine *alerts.Engine
	store  Store
	hub    Broadcaster
	clips  ClipPublisher
	clock  timeutil.Clock

	interval time.Duration
	rng      randSource

	wg sync.WaitGroup
}

// Options carries the optional dependencies of a Pipeline.
type Options struct {
	Store        Store
	Broadcaster  Broadcaster
	Clips        ClipPublisher
	Clock        timeutil.Clock
	MockInterval time.Duration
}

// New returns a Pipeline around engine.
func New(engine *alerts.Engine, opts Options) *Pipeline {
	p := &Pipeline{
		engine:   engine,
		store:    opts.Store,
		hub:      opts.Broadcaster,
		clips:    opts.Clips,
		clock:    opts.Clock,
		interval: opts.MockInterval,
		rng:      newRand(),
	}
	if p.clock == nil {
		p.clock = timeutil.RealClock{}
	}
	if p.interval <= 0 {
		p.interval = 3 * time.Second
	}
	return p
}

// Handle submits a to the engine and, when it is emitted, records and
// broadcasts it. A clip is scheduled only while the engine is enabled.
func (p *Pipeline) Handle(ctx context.Context, a alerts.Alert) alerts.Decision {
	d := p.engine.Submit(ctx, a)
	if !d.Emitted {
		monitoring.DedupedAlerts.Add(1)
		return d
	}

	if d.CorrelationPosted {
		monitoring.CorrelationGroups.Add(1)
	}
	monitoring.AlertsTotal.Get(a.Type).Add(1)
	monitoring.LastAlertTS.Set(a.Timestamp)

	if p.store != nil {
		if _, err := p.store.RecordAlert(a, d.Thread); err != nil {
			monitoring.LogError(ctx, "failed to record alert", err,
				slog.String("camera_id", a.CameraID), slog.String("type", a.Type))
		}
	}

	if p.hub != nil {
		if _, err := p.hub.Broadcast(ctx, Event{Event: "alert", Payload: a}); err != nil {
			monitoring.LogError(ctx, "failed to broadcast alert", err)
		}
	}

	if p.clips != nil && p.engine.Enabled() {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.attachClip(context.WithoutCancel(ctx), a.CameraID, d.Thread)
		}()
	}
	return d
}

func (p *Pipeline) attachClip(ctx context.Context, cameraID string, thread alerts.ThreadHandle) {
	ctx, cancel := context.WithTimeout(ctx, ClipTimeout)
	defer cancel()

	urls, err := p.clips.Publish(ctx, cameraID)
	if errors.Is(err, clips.ErrNoClip) {
		return
	}
	if err != nil {
		monitoring.ClipFailures.Add(1)
		monitoring.LogError(ctx, "clip upload failed", err, slog.String("camera_id", cameraID))
		return
	}

	out := p.engine.AttachClip(ctx, urls, thread)
	if out.Status == alerts.StatusFailed {
		monitoring.ClipFailures.Add(1)
		return
	}
	monitoring.ClipUploads.Add(1)
}

// Wait blocks until background clip work has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
