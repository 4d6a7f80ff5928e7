package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/sentinel-vision/sentinel/internal/alerts"
	"github.com/sentinel-vision/sentinel/internal/db"
	"github.com/sentinel-vision/sentinel/internal/monitoring"
	"github.com/sentinel-vision/sentinel/internal/timeutil"
)

// AlertTypes are the types produced by the demo generator.
var AlertTypes = []string{
	"gun", "knife", "intruder", "loitering", "fight", "crowd", "distance",
	"distress_audio", "fire", "ppe", "vehicle", "fall", "line_cross",
	"zone_intrusion",
}

const demoLocation = "Demo"

type randSource interface {
	IntN(n int) int
	Float64() float64
}

// lockedRand guards a *rand.Rand, which is not safe for concurrent use.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newRand() *lockedRand {
	return &lockedRand{r: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// RunGenerator submits a random demo alert every MockInterval until ctx is
// done.
func (p *Pipeline) RunGenerator(ctx context.Context) error {
	monitoring.Logf("demo alert generator running every %s", p.interval)
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if _, err := p.GenerateOnce(ctx); err != nil {
				monitoring.LogError(ctx, "demo alert generation failed", err)
			}
		}
	}
}

// GenerateOnce picks a camera and type at random and handles the resulting
// alert. Demo cameras are created when none exist.
func (p *Pipeline) GenerateOnce(ctx context.Context) (alerts.Alert, error) {
	cameras, err := p.demoCameras()
	if err != nil {
		return alerts.Alert{}, err
	}

	conf := 0.55 + p.rng.Float64()*(0.98-0.55)
	a := alerts.Alert{
		Type:       AlertTypes[p.rng.IntN(len(AlertTypes))],
		CameraID:   cameras[p.rng.IntN(len(cameras))],
		Confidence: math.Round(conf*100) / 100,
		Message:    "Auto-generated demo alert",
		Timestamp:  timeutil.Unix(p.clock.Now()),
	}
	d := p.Handle(ctx, a)
	monitoring.Logger().Debug("demo alert",
		slog.String("camera_id", a.CameraID), slog.String("type", a.Type), slog.Bool("emitted", d.Emitted))
	return a, nil
}

func (p *Pipeline) demoCameras() ([]string, error) {
	if p.store == nil {
		return []string{"cam_1", "cam_2"}, nil
	}
	cams, err := p.store.ListCameras()
	if err != nil {
		return nil, fmt.Errorf("failed to list cameras: %w", err)
	}
	if len(cams) == 0 {
		loc := demoLocation
		for i := 1; i <= 2; i++ {
			c, err := p.store.CreateCamera(db.Camera{Name: fmt.Sprintf("Demo Cam %d", i), Location: &loc})
			if err != nil {
				return nil, fmt.Errorf("failed to seed demo camera: %w", err)
			}
			cams = append(cams, *c)
		}
	}
	ids := make([]string, len(cams))
	for i, c := range cams {
		ids[i] = c.ID
	}
	return ids, nil
}
