package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sentinel-vision/sentinel/internal/alerts"
	"github.com/sentinel-vision/sentinel/internal/db"
	"github.com/sentinel-vision/sentinel/internal/geometry"
	"github.com/sentinel-vision/sentinel/internal/httputil"
	"github.com/sentinel-vision/sentinel/internal/monitoring"
	"github.com/sentinel-vision/sentinel/internal/security"
	"github.com/sentinel-vision/sentinel/internal/timeutil"
	"github.com/sentinel-vision/sentinel/internal/version"
)

const defaultAlertLimit = 100

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	dbStatus := "ok"
	if s.db == nil || !s.db.Healthy() {
		dbStatus = "error"
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":     "ok",
		"mode":       s.cfg.Mode,
		"prometheus": s.cfg.PrometheusEnabled,
		"db":         dbStatus,
		"version":    version.String(),
	})
}

// cameraRequest is the body of POST /cameras.
type cameraRequest struct {
	Name     string   `json:"name"`
	RTSPURL  *string  `json:"rtsp_url"`
	Location *string  `json:"location"`
	Tags     []string `json:"tags"`
}

func (s *Server) cameras(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cams, err := s.db.ListCameras()
		if err != nil {
			monitoring.LogError(r.Context(), "failed to list cameras", err)
			httputil.InternalServerError(w, "failed to list cameras")
			return
		}
		httputil.WriteJSONOK(w, cams)
	case http.MethodPost:
		s.requireKey(s.createCamera)(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) createCamera(w http.ResponseWriter, r *http.Request) {
	var req cameraRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		httputil.BadRequest(w, "name is required")
		return
	}
	cam, err := s.db.CreateCamera(db.Camera{
		Name:     req.Name,
		RTSPURL:  req.RTSPURL,
		Location: req.Location,
		Tags:     req.Tags,
	})
	if err != nil {
		monitoring.LogError(r.Context(), "failed to create camera", err)
		httputil.InternalServerError(w, "failed to create camera")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cam)
}

// cameraFromPath returns the validated {camera_id} path value, writing a
// 400 when it is unusable.
func cameraFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("camera_id")
	if err := security.ValidateCameraID(id); err != nil {
		httputil.BadRequest(w, err.Error())
		return "", false
	}
	return id, true
}

func (s *Server) zones(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getZone(w, r)
	case http.MethodPut:
		s.requireKey(s.putZone)(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) getZone(w http.ResponseWriter, r *http.Request) {
	id, ok := cameraFromPath(w, r)
	if !ok {
		return
	}
	z, err := s.db.GetZone(id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.WriteJSONOK(w, nil)
		return
	}
	if err != nil {
		monitoring.LogError(r.Context(), "failed to load zone", err, slog.String("camera_id", id))
		httputil.InternalServerError(w, "failed to load zone")
		return
	}
	httputil.WriteJSONOK(w, z)
}

func (s *Server) putZone(w http.ResponseWriter, r *http.Request) {
	id, ok := cameraFromPath(w, r)
	if !ok {
		return
	}
	var z db.Zone
	if err := httputil.DecodeJSON(w, r, &z); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if z.CameraID != id {
		httputil.BadRequest(w, "camera_id mismatch")
		return
	}
	if len(z.Polygon) < 3 {
		httputil.BadRequest(w, "polygon needs at least 3 points")
		return
	}
	if err := s.db.SaveZone(z); err != nil {
		monitoring.LogError(r.Context(), "failed to save zone", err, slog.String("camera_id", id))
		httputil.InternalServerError(w, "failed to save zone")
		return
	}
	httputil.WriteOK(w)
}

func (s *Server) calibration(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getCalibration(w, r)
	case http.MethodPut:
		s.requireKey(s.putCalibration)(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) getCalibration(w http.ResponseWriter, r *http.Request) {
	id, ok := cameraFromPath(w, r)
	if !ok {
		return
	}
	c, err := s.db.GetCalibration(id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.WriteJSONOK(w, struct{}{})
		return
	}
	if err != nil {
		monitoring.LogError(r.Context(), "failed to load calibration", err, slog.String("camera_id", id))
		httputil.InternalServerError(w, "failed to load calibration")
		return
	}
	httputil.WriteJSONOK(w, c)
}

func (s *Server) putCalibration(w http.ResponseWriter, r *http.Request) {
	id, ok := cameraFromPath(w, r)
	if !ok {
		return
	}
	var c db.Calibration
	if err := httputil.DecodeJSON(w, r, &c); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if c.CameraID != id {
		httputil.BadRequest(w, "camera_id mismatch")
		return
	}
	m, err := geometry.SolveHomography(c.Src, c.Dst)
	if err != nil {
		httputil.BadRequest(w, "invalid calibration: "+err.Error())
		return
	}
	c.Matrix = m
	if err := s.db.SaveCalibration(c); err != nil {
		monitoring.LogError(r.Context(), "failed to save calibration", err, slog.String("camera_id", id))
		httputil.InternalServerError(w, "failed to save calibration")
		return
	}
	httputil.WriteOK(w)
}

func (s *Server) alerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listAlerts(w, r)
	case http.MethodPost:
		s.requireKey(s.postAlert)(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAlertLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	recent, err := s.db.RecentAlerts(limit)
	if err != nil {
		monitoring.LogError(r.Context(), "failed to list alerts", err)
		httputil.InternalServerError(w, "failed to list alerts")
		return
	}
	httputil.WriteJSONOK(w, recent)
}

func (s *Server) postAlert(w http.ResponseWriter, r *http.Request) {
	var a alerts.Alert
	if err := httputil.DecodeJSON(w, r, &a); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := a.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := security.ValidateCameraID(a.CameraID); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if a.Timestamp == 0 {
		a.Timestamp = timeutil.Unix(s.clock.Now())
	}
	httputil.WriteJSONOK(w, s.handler.Handle(r.Context(), a))
}

// DetectionBatch is one frame's worth of tracked boxes from an edge agent.
// Persons hold normalized [x1, y1, x2, y2, track_id] values.
type DetectionBatch struct {
	CameraID  string      `json:"camera_id"`
	Timestamp float64     `json:"ts"`
	Persons   [][]float64 `json:"persons"`
}

func (s *Server) ingestDetections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var b DetectionBatch
	if err := httputil.DecodeJSON(w, r, &b); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := security.ValidateCameraID(b.CameraID); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	monitoring.IngestBatches.Add(1)
	monitoring.PersonCount.Get(b.CameraID).Set(int64(len(b.Persons)))
	s.heat.Add(b.CameraID, b.Persons)

	z, err := s.db.GetZone(b.CameraID)
	switch {
	case err == nil:
		monitoring.ZoneOccupancy.Get(b.CameraID).Set(int64(geometry.CountInside(centers(b.Persons), z.Polygon)))
	case !errors.Is(err, db.ErrNotFound):
		monitoring.LogError(r.Context(), "failed to load zone", err, slog.String("camera_id", b.CameraID))
	}
	httputil.WriteOK(w)
}

// centers returns the center of each box with at least four values.
func centers(persons [][]float64) []geometry.Point {
	out := make([]geometry.Point, 0, len(persons))
	for _, p := range persons {
		if len(p) < 4 {
			continue
		}
		out = append(out, geometry.Point{(p[0] + p[2]) / 2, (p[1] + p[3]) / 2})
	}
	return out
}

func (s *Server) heatmapPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	file := r.PathValue("file")
	id, ok := strings.CutSuffix(file, ".png")
	if !ok {
		httputil.NotFound(w, "not found")
		return
	}
	if err := security.ValidateCameraID(id); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := s.heat.WritePNG(id, w); err != nil {
		monitoring.LogError(r.Context(), "failed to render heatmap", err, slog.String("camera_id", id))
	}
}
