// Package api serves the alert server's HTTP interface.
package api

import (
	"bufio"
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"tailscale.com/tsweb/varz"

	"github.com/sentinel-vision/sentinel/internal/alerts"
	"github.com/sentinel-vision/sentinel/internal/broadcast"
	"github.com/sentinel-vision/sentinel/internal/db"
	"github.com/sentinel-vision/sentinel/internal/heatmap"
	"github.com/sentinel-vision/sentinel/internal/httputil"
	"github.com/sentinel-vision/sentinel/internal/monitoring"
	"github.com/sentinel-vision/sentinel/internal/timeutil"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// APIKeyHeader carries the write key.
const APIKeyHeader = "X-API-Key"

// AlertHandler runs an alert through the server pipeline.
// *pipeline.Pipeline satisfies it.
type AlertHandler interface {
	Handle(ctx context.Context, a alerts.Alert) alerts.Decision
}

// Config holds the settings the HTTP layer needs.
type Config struct {
	Mode              string
	APIKey            string
	PrometheusEnabled bool
}

type Server struct {
	cfg     Config
	db      *db.DB
	handler AlertHandler
	hub     *broadcast.Hub
	heat    *heatmap.Map
	clock   timeutil.Clock
}

// NewServer returns a Server. hub and heat may be nil, which disables the
// live stream and heatmap routes.
func NewServer(database *db.DB, handler AlertHandler, hub *broadcast.Hub, heat *heatmap.Map, cfg Config) *Server {
	if heat == nil {
		heat = heatmap.New()
	}
	return &Server{
		cfg:     cfg,
		db:      database,
		handler: handler,
		hub:     hub,
		heat:    heat,
		clock:   timeutil.RealClock{},
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// requireKey rejects requests whose X-API-Key does not match the
// configured key.
func (s *Server) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.APIKey)) != 1 {
			httputil.Unauthorized(w, "invalid api key")
			return
		}
		next(w, r)
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.health)
	mux.HandleFunc("/metrics", s.metrics)
	mux.HandleFunc("/cameras", s.cameras)
	mux.HandleFunc("/zones/{camera_id}", s.zones)
	mux.HandleFunc("/calibration/{camera_id}", s.calibration)
	mux.HandleFunc("/alerts", s.alerts)
	mux.HandleFunc("/ingest/detections", s.requireKey(s.ingestDetections))
	mux.HandleFunc("/analytics/heatmap/{file}", s.heatmapPNG)
	if s.hub != nil {
		mux.Handle("/ws/alerts", s.hub)
	}
	return mux
}

// AttachAdminRoutes registers the debug routes of the database and the
// broadcast hub on mux.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) error {
	if s.db != nil {
		if err := s.db.AttachAdminRoutes(mux); err != nil {
			return err
		}
	}
	if s.hub != nil {
		s.hub.AttachAdminRoutes(mux)
	}
	return nil
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.cfg.PrometheusEnabled {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("metrics disabled\n"))
		return
	}
	monitoring.Logger().Debug("metrics scrape", "remote", r.RemoteAddr)
	varz.Handler(w, r)
}
