package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sentinel-vision/sentinel/internal/monitoring"
)

// Config controls emission and correlation.
type Config struct {
	// Enabled turns notification handling on. A disabled engine emits every
	// alert without keeping state or calling the notifier.
	Enabled bool
	// DedupeWindow is the minimum spacing between two emitted alerts with the
	// same camera and type.
	DedupeWindow time.Duration
	// CorrelateWindow is the span over which alerts of one type from
	// different cameras are grouped.
	CorrelateWindow time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		DedupeWindow:    60 * time.Second,
		CorrelateWindow: 60 * time.Second,
	}
}

type correlationGroup struct {
	first   float64
	cameras map[string]struct{}
}

func (g *correlationGroup) sortedCameras() []string {
	out := make([]string, 0, len(g.cameras))
	for c := range g.cameras {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Engine deduplicates and correlates alerts and drives the notifier.
// It is safe for concurrent use.
type Engine struct {
	cfg      Config
	notifier Notifier

	mu       sync.Mutex
	lastSent map[Key]float64
	threads  map[Key]ThreadHandle
	groups   map[string]*correlationGroup

	outcomesMu sync.Mutex
	outcomes   map[string]map[Status]int
}

// NewEngine creates an Engine. A nil notifier skips every call.
func NewEngine(cfg Config, notifier Notifier) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{
		cfg:      cfg,
		notifier: notifier,
		lastSent: make(map[Key]float64),
		threads:  make(map[Key]ThreadHandle),
		groups:   make(map[string]*correlationGroup),
		outcomes: make(map[string]map[Status]int),
	}
}

// Enabled reports whether the engine is handling notifications.
func (e *Engine) Enabled() bool {
	return e.cfg.Enabled
}

// Submit decides whether a is emitted, posts the resulting notifications and
// reports the decision. Delivery failures never change the decision.
func (e *Engine) Submit(ctx context.Context, a Alert) Decision {
	if !e.cfg.Enabled {
		return Decision{Emitted: true}
	}

	key := KeyOf(a)
	dedupe := e.cfg.DedupeWindow.Seconds()
	correlate := e.cfg.CorrelateWindow.Seconds()

	e.mu.Lock()
	g := e.groups[a.Type]
	if g == nil || a.Timestamp-g.first > correlate {
		g = &correlationGroup{first: a.Timestamp, cameras: make(map[string]struct{})}
		e.groups[a.Type] = g
	}
	g.cameras[a.CameraID] = struct{}{}

	if last, ok := e.lastSent[key]; ok && a.Timestamp-last < dedupe {
		thread, hasThread := e.threads[key]
		e.mu.Unlock()

		if hasThread {
			text := fmt.Sprintf("Another `%s` detected on %s.", a.Type, a.CameraID)
			e.record(ctx, CallReply, e.notifier.PostThreadReply(ctx, text, thread))
		}
		return Decision{Emitted: false, Thread: thread}
	}
	e.lastSent[key] = a.Timestamp
	cameras := g.sortedCameras()
	e.mu.Unlock()

	thread, out := e.notifier.PostPrimary(ctx, a)
	e.record(ctx, CallPrimary, out)

	if thread != "" {
		e.mu.Lock()
		e.threads[key] = thread
		e.mu.Unlock()
	}

	corr := false
	if len(cameras) > 1 {
		text := fmt.Sprintf("*Correlation:* `%s` also seen on: %s", a.Type, strings.Join(cameras, ", "))
		e.record(ctx, CallCorrelation, e.notifier.PostThreadReply(ctx, text, thread))
		corr = true
	}

	e.record(ctx, CallSMS, e.notifier.SendSMS(ctx, a))

	return Decision{Emitted: true, Thread: thread, CorrelationPosted: corr}
}

// AttachClip posts clip links into the alert's thread and returns the
// outcome of the post.
func (e *Engine) AttachClip(ctx context.Context, urls ClipURLs, thread ThreadHandle) Outcome {
	if !e.cfg.Enabled {
		return Skipped()
	}
	out := e.notifier.PostClipAttachment(ctx, urls, thread)
	e.record(ctx, CallClip, out)
	return out
}

// Thread returns the stored thread handle for key.
func (e *Engine) Thread(key Key) (ThreadHandle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.threads[key]
	return t, ok
}

// LastSent returns the timestamp of the last emission for key.
func (e *Engine) LastSent(key Key) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ts, ok := e.lastSent[key]
	return ts, ok
}

// CorrelatedCameras returns the cameras in the current correlation window for
// alertType in lexicographic order.
func (e *Engine) CorrelatedCameras(alertType string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	g := e.groups[alertType]
	if g == nil {
		return nil
	}
	return g.sortedCameras()
}

// Outcomes returns a copy of the per-call outcome counters.
func (e *Engine) Outcomes() map[string]map[Status]int {
	e.outcomesMu.Lock()
	defer e.outcomesMu.Unlock()
	out := make(map[string]map[Status]int, len(e.outcomes))
	for call, byStatus := range e.outcomes {
		m := make(map[Status]int, len(byStatus))
		for s, n := range byStatus {
			m[s] = n
		}
		out[call] = m
	}
	return out
}

func (e *Engine) record(ctx context.Context, call string, out Outcome) {
	e.outcomesMu.Lock()
	byStatus := e.outcomes[call]
	if byStatus == nil {
		byStatus = make(map[Status]int)
		e.outcomes[call] = byStatus
	}
	byStatus[out.Status]++
	e.outcomesMu.Unlock()

	monitoring.NotifyOutcomes.Get(call + "_" + out.Status.String()).Add(1)
	if out.Status == StatusFailed {
		monitoring.LogError(ctx, "notification failed", out.Err, slog.String("call", call))
	}
}
