package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-vision/sentinel/internal/alerts"
	"github.com/sentinel-vision/sentinel/internal/clips"
	"github.com/sentinel-vision/sentinel/internal/db"
	"github.com/sentinel-vision/sentinel/internal/monitoring"
	"github.com/sentinel-vision/sentinel/internal/timeutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	monitoring.SetStructuredLogger(nil)
	m.Run()
}

type fakeStore struct {
	mu      sync.Mutex
	alerts  []alerts.Alert
	cameras []db.Camera
	err     error
}

func (s *fakeStore) RecordAlert(a alerts.Alert, _ alerts.ThreadHandle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.alerts = append(s.alerts, a)
	return fmt.Sprintf("id-%d", len(s.alerts)), nil
}

func (s *fakeStore) ListCameras() ([]db.Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]db.Camera(nil), s.cameras...), nil
}

func (s *fakeStore) CreateCamera(c db.Camera) (*db.Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = fmt.Sprintf("cam_%d", len(s.cameras)+1)
	s.cameras = append(s.cameras, c)
	return &c, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

type fakeHub struct {
	mu     sync.Mutex
	events []Event
}

func (h *fakeHub) Broadcast(_ context.Context, v interface{}) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, v.(Event))
	return 1, nil
}

type fakeClips struct {
	urls alerts.ClipURLs
	err  error
}

func (f fakeClips) Publish(context.Context, string) (alerts.ClipURLs, error) {
	return f.urls, f.err
}

// threadNotifier returns a fixed thread and records clip attachments.
type threadNotifier struct {
	alerts.NopNotifier
	mu      sync.Mutex
	clips   []alerts.ClipURLs
	clipErr error
}

func (n *threadNotifier) PostPrimary(context.Context, alerts.Alert) (alerts.ThreadHandle, alerts.Outcome) {
	return "T1", alerts.Delivered()
}

func (n *threadNotifier) PostClipAttachment(_ context.Context, urls alerts.ClipURLs, _ alerts.ThreadHandle) alerts.Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clips = append(n.clips, urls)
	if n.clipErr != nil {
		return alerts.Failed(n.clipErr)
	}
	return alerts.Delivered()
}

func alert(cam, typ string, ts float64) alerts.Alert {
	return alerts.Alert{Type: typ, CameraID: cam, Confidence: 0.8, Message: "m", Timestamp: ts}
}

func TestHandle_EmitsRecordsAndBroadcasts(t *testing.T) {
	store, hub := &fakeStore{}, &fakeHub{}
	p := New(alerts.NewEngine(alerts.DefaultConfig(), &threadNotifier{}), Options{Store: store, Broadcaster: hub})

	before := monitoring.AlertsTotal.Get("gun").Value()
	d := p.Handle(context.Background(), alert("cam_1", "gun", 100))
	assert.True(t, d.Emitted)
	assert.Equal(t, alerts.ThreadHandle("T1"), d.Thread)

	assert.Equal(t, 1, store.count())
	require.Len(t, hub.events, 1)
	assert.Equal(t, "alert", hub.events[0].Event)
	assert.Equal(t, alert("cam_1", "gun", 100), hub.events[0].Payload)
	assert.Equal(t, before+1, monitoring.AlertsTotal.Get("gun").Value())
	assert.Equal(t, 100.0, monitoring.LastAlertTS.Value())
}

func TestHandle_SuppressedCountsOnly(t *testing.T) {
	store, hub := &fakeStore{}, &fakeHub{}
	p := New(alerts.NewEngine(alerts.DefaultConfig(), nil), Options{Store: store, Broadcaster: hub})
	ctx := context.Background()

	p.Handle(ctx, alert("cam_1", "knife", 0))
	before := monitoring.DedupedAlerts.Value()
	d := p.Handle(ctx, alert("cam_1", "knife", 10))
	assert.False(t, d.Emitted)
	assert.Equal(t, before+1, monitoring.DedupedAlerts.Value())
	assert.Equal(t, 1, store.count())
	assert.Len(t, hub.events, 1)
}

func TestHandle_CorrelationCounted(t *testing.T) {
	p := New(alerts.NewEngine(alerts.DefaultConfig(), &threadNotifier{}), Options{})
	ctx := context.Background()

	before := monitoring.CorrelationGroups.Value()
	p.Handle(ctx, alert("cam_1", "fire", 0))
	d := p.Handle(ctx, alert("cam_2", "fire", 5))
	assert.True(t, d.CorrelationPosted)
	assert.Equal(t, before+1, monitoring.CorrelationGroups.Value())
}

func TestHandle_StoreFailureIsBestEffort(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	hub := &fakeHub{}
	p := New(alerts.NewEngine(alerts.DefaultConfig(), nil), Options{Store: store, Broadcaster: hub})

	d := p.Handle(context.Background(), alert("cam_1", "fall", 1))
	assert.True(t, d.Emitted)
	assert.Len(t, hub.events, 1)
}

func TestHandle_ClipAttached(t *testing.T) {
	n := &threadNotifier{}
	urls := alerts.ClipURLs{Video: "https://s3/cam_1/1.mp4", Preview: "https://s3/cam_1/1.gif"}
	p := New(alerts.NewEngine(alerts.DefaultConfig(), n), Options{Clips: fakeClips{urls: urls}})

	before := monitoring.ClipUploads.Value()
	p.Handle(context.Background(), alert("cam_1", "intruder", 1))
	p.Wait()

	assert.Equal(t, []alerts.ClipURLs{urls}, n.clips)
	assert.Equal(t, before+1, monitoring.ClipUploads.Value())
}

func TestHandle_ClipOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		clips       fakeClips
		clipErr     error
		wantFailure int64
		wantAttach  int
	}{
		{"no clip is silent", fakeClips{err: fmt.Errorf("%w: no playlist", clips.ErrNoClip)}, nil, 0, 0},
		{"upload failure", fakeClips{err: errors.New("s3 down")}, nil, 1, 0},
		{"attach failure", fakeClips{urls: alerts.ClipURLs{Video: "v"}}, errors.New("slack down"), 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &threadNotifier{clipErr: tt.clipErr}
			p := New(alerts.NewEngine(alerts.DefaultConfig(), n), Options{Clips: tt.clips})

			before := monitoring.ClipFailures.Value()
			p.Handle(context.Background(), alert("cam_1", "ppe", 1))
			p.Wait()

			assert.Equal(t, before+tt.wantFailure, monitoring.ClipFailures.Value())
			assert.Len(t, n.clips, tt.wantAttach)
		})
	}
}

func TestHandle_ClipSurvivesRequestCancel(t *testing.T) {
	n := &threadNotifier{}
	p := New(alerts.NewEngine(alerts.DefaultConfig(), n), Options{Clips: fakeClips{urls: alerts.ClipURLs{Video: "v"}}})

	ctx, cancel := context.WithCancel(context.Background())
	p.Handle(ctx, alert("cam_1", "crowd", 1))
	cancel()
	p.Wait()
	assert.Len(t, n.clips, 1)
}

// countingClips counts Publish calls.
type countingClips struct {
	calls atomic.Int32
}

func (c *countingClips) Publish(context.Context, string) (alerts.ClipURLs, error) {
	c.calls.Add(1)
	return alerts.ClipURLs{Video: "v"}, nil
}

func TestHandle_DisabledEngineSkipsClip(t *testing.T) {
	cfg := alerts.DefaultConfig()
	cfg.Enabled = false
	pub := &countingClips{}
	p := New(alerts.NewEngine(cfg, &threadNotifier{}), Options{Clips: pub})

	uploads, failures := monitoring.ClipUploads.Value(), monitoring.ClipFailures.Value()
	d := p.Handle(context.Background(), alert("cam_1", "gun", 1))
	p.Wait()

	assert.True(t, d.Emitted)
	assert.Equal(t, int32(0), pub.calls.Load())
	assert.Equal(t, uploads, monitoring.ClipUploads.Value())
	assert.Equal(t, failures, monitoring.ClipFailures.Value())
}

type fixedRand struct {
	ints   []int
	floats []float64
}

func (f *fixedRand) IntN(n int) int {
	v := f.ints[0] % n
	f.ints = f.ints[1:]
	return v
}

func (f *fixedRand) Float64() float64 {
	v := f.floats[0]
	f.floats = f.floats[1:]
	return v
}

func TestGenerateOnce_SeedsCameras(t *testing.T) {
	store := &fakeStore{}
	clock := timeutil.NewMockClock(time.Unix(1700000000, 500000000))
	p := New(alerts.NewEngine(alerts.DefaultConfig(), nil), Options{Store: store, Clock: clock})
	p.rng = &fixedRand{ints: []int{8, 1}, floats: []float64{0.6}}

	a, err := p.GenerateOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fire", a.Type)
	assert.Equal(t, "cam_2", a.CameraID)
	assert.Equal(t, 0.81, a.Confidence)
	assert.Equal(t, "Auto-generated demo alert", a.Message)
	assert.Equal(t, 1700000000.5, a.Timestamp)

	cams, _ := store.ListCameras()
	require.Len(t, cams, 2)
	assert.Equal(t, "Demo Cam 1", cams[0].Name)
	assert.Equal(t, "Demo", *cams[1].Location)

	// a second call does not seed again
	p.rng = &fixedRand{ints: []int{0, 0}, floats: []float64{0}}
	a, err = p.GenerateOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gun", a.Type)
	assert.Equal(t, 0.55, a.Confidence)
	cams, _ = store.ListCameras()
	assert.Len(t, cams, 2)
}

func TestGenerateOnce_ConfidenceRange(t *testing.T) {
	p := New(alerts.NewEngine(alerts.DefaultConfig(), nil), Options{})
	for i := 0; i < 200; i++ {
		a, err := p.GenerateOnce(context.Background())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, a.Confidence, 0.55)
		assert.LessOrEqual(t, a.Confidence, 0.98)
		assert.Contains(t, AlertTypes, a.Type)
		assert.Contains(t, []string{"cam_1", "cam_2"}, a.CameraID)
	}
}

func TestRunGenerator_WithDB(t *testing.T) {
	database, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer database.Close()

	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	p := New(alerts.NewEngine(alerts.DefaultConfig(), nil), Options{Store: database, Clock: clock, MockInterval: 3 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.RunGenerator(ctx) }()

	require.Eventually(t, func() bool {
		clock.Advance(3 * time.Second)
		recent, err := database.RecentAlerts(10)
		return err == nil && len(recent) > 0
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	cams, err := database.ListCameras()
	require.NoError(t, err)
	require.Len(t, cams, 2)
	assert.Equal(t, "cam_1", cams[0].ID)
	assert.Equal(t, "Demo Cam 2", cams[1].Name)
}
