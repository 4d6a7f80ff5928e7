package db

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sentinel-vision/sentinel/internal/alerts"
	"github.com/sentinel-vision/sentinel/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPragmasApplied(t *testing.T) {
	db := setupTestDB(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}

	var busyTimeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("Failed to query busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("Expected busy_timeout=5000, got %d", busyTimeout)
	}
	if !db.Healthy() {
		t.Error("Healthy() = false on an open database")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS() failed: %v", err)
	}
	ups, err := fs.Glob(migFS, "*.up.sql")
	if err != nil || len(ups) == 0 {
		t.Fatalf("expected embedded up migrations, got %v (err %v)", ups, err)
	}

	db := setupTestDB(t)
	version, dirty, err := db.MigrateVersion(migFS)
	if err != nil {
		t.Fatalf("MigrateVersion: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("version = %d dirty = %v, want 1 clean", version, dirty)
	}

	// Re-running is a no-op.
	if err := db.MigrateUp(migFS); err != nil {
		t.Errorf("second MigrateUp: %v", err)
	}

	if err := db.MigrateDown(migFS); err != nil {
		t.Fatalf("MigrateDown: %v", err)
	}
	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='alerts'`).Scan(&n)
	if err != nil || n != 0 {
		t.Errorf("alerts table should be dropped, count=%d err=%v", n, err)
	}
}

func TestRecordAndRecentAlerts(t *testing.T) {
	db := setupTestDB(t)

	inputs := []alerts.Alert{
		{Type: "gun", CameraID: "cam_1", Confidence: 0.9, Message: "a", Timestamp: 100},
		{Type: "fire", CameraID: "cam_2", Confidence: 0.7, Message: "b", Timestamp: 300},
		{Type: "fall", CameraID: "cam_1", Confidence: 0.6, Message: "c", Timestamp: 200},
	}
	ids := map[string]bool{}
	for i, a := range inputs {
		thread := alerts.ThreadHandle("")
		if i == 0 {
			thread = "171.1"
		}
		id, err := db.RecordAlert(a, thread)
		if err != nil {
			t.Fatalf("RecordAlert: %v", err)
		}
		if len(id) != 36 || ids[id] {
			t.Errorf("unexpected alert id %q", id)
		}
		ids[id] = true
	}

	got, err := db.RecentAlerts(2)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if diff := cmp.Diff(inputs[1], got[0].Alert); diff != "" {
		t.Errorf("newest alert mismatch (-want +got):\n%s", diff)
	}
	if got[1].Type != "fall" {
		t.Errorf("second alert = %s, want fall", got[1].Type)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("created_at not populated")
	}

	all, err := db.RecentAlerts(0)
	if err != nil {
		t.Fatalf("RecentAlerts(0): %v", err)
	}
	if len(all) != 3 || all[2].Thread != "171.1" {
		t.Errorf("default limit result = %+v", all)
	}
}

func TestRecentAlertsEmpty(t *testing.T) {
	db := setupTestDB(t)
	got, err := db.RecentAlerts(10)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("want empty non-nil slice, got %#v", got)
	}
}

func TestAlertCountsByType(t *testing.T) {
	db := setupTestDB(t)
	for _, a := range []alerts.Alert{
		{Type: "gun", CameraID: "c", Timestamp: 10},
		{Type: "gun", CameraID: "c", Timestamp: 20},
		{Type: "fire", CameraID: "c", Timestamp: 30},
		{Type: "fall", CameraID: "c", Timestamp: 1},
	} {
		if _, err := db.RecordAlert(a, ""); err != nil {
			t.Fatal(err)
		}
	}
	got, err := db.AlertCountsByType(5)
	if err != nil {
		t.Fatalf("AlertCountsByType: %v", err)
	}
	want := []TypeCount{{"gun", 2}, {"fire", 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestZones(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.GetZone("cam_1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetZone on empty db = %v, want ErrNotFound", err)
	}

	z := Zone{CameraID: "cam_1", Polygon: []Point{{0, 0}, {1, 0}, {1, 1}}}
	if err := db.SaveZone(z); err != nil {
		t.Fatalf("SaveZone: %v", err)
	}
	z.Polygon = append(z.Polygon, Point{0, 1})
	if err := db.SaveZone(z); err != nil {
		t.Fatalf("SaveZone replace: %v", err)
	}

	got, err := db.GetZone("cam_1")
	if err != nil {
		t.Fatalf("GetZone: %v", err)
	}
	if diff := cmp.Diff(&z, got); diff != "" {
		t.Errorf("zone mismatch (-want +got):\n%s", diff)
	}
}

func TestCalibrations(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.GetCalibration("cam_1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetCalibration on empty db = %v, want ErrNotFound", err)
	}

	c := Calibration{
		CameraID: "cam_1",
		Src:      []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		Dst:      []Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}},
		Matrix:   [3][3]float64{{2, 0, 0}, {0, 2, 0}, {0, 0, 1}},
	}
	if err := db.SaveCalibration(c); err != nil {
		t.Fatalf("SaveCalibration: %v", err)
	}
	got, err := db.GetCalibration("cam_1")
	if err != nil {
		t.Fatalf("GetCalibration: %v", err)
	}
	if diff := cmp.Diff(&c, got); diff != "" {
		t.Errorf("calibration mismatch (-want +got):\n%s", diff)
	}
}

func TestCameras(t *testing.T) {
	db := setupTestDB(t)

	list, err := db.ListCameras()
	if err != nil {
		t.Fatalf("ListCameras: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no cameras, got %v", list)
	}

	loc := "Demo"
	first, err := db.CreateCamera(Camera{Name: "Demo Cam 1", Location: &loc})
	if err != nil {
		t.Fatalf("CreateCamera: %v", err)
	}
	if first.ID != "cam_1" {
		t.Errorf("first id = %s, want cam_1", first.ID)
	}
	url := "rtsp://10.0.0.2/stream"
	second, err := db.CreateCamera(Camera{Name: "Dock", RTSPURL: &url, Tags: []string{"outdoor"}})
	if err != nil {
		t.Fatalf("CreateCamera: %v", err)
	}
	if second.ID != "cam_2" {
		t.Errorf("second id = %s, want cam_2", second.ID)
	}

	list, err = db.ListCameras()
	if err != nil {
		t.Fatalf("ListCameras: %v", err)
	}
	want := []Camera{
		{ID: "cam_1", Name: "Demo Cam 1", Location: &loc, Tags: []string{}},
		{ID: "cam_2", Name: "Dock", RTSPURL: &url, Tags: []string{"outdoor"}},
	}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Errorf("cameras mismatch (-want +got):\n%s", diff)
	}
}

func TestAdminRoutes(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.RecordAlert(alerts.Alert{Type: "gun", CameraID: "cam_1", Timestamp: 1}, ""); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := renderAlertsChart([]TypeCount{{"gun", 3}, {"fire", 1}}, &buf); err != nil {
		t.Fatalf("renderAlertsChart: %v", err)
	}
	if !strings.Contains(buf.String(), "Alerts by type") {
		t.Error("chart page missing title")
	}

	mux := http.NewServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		t.Fatalf("AttachAdminRoutes: %v", err)
	}
	for _, path := range []string{"/debug/backup", "/debug/alerts-chart", "/debug/tailsql/"} {
		if _, pattern := mux.Handler(httptest.NewRequest(http.MethodGet, path, nil)); pattern == "" {
			t.Errorf("%s not registered", path)
		}
	}

	rec := httptest.NewRecorder()
	db.handleBackup(rec, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("backup status = %d, body %s", rec.Code, rec.Body.String())
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("backup is not gzip: %v", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("SQLite format 3")) {
		t.Error("backup does not look like a SQLite file")
	}

	rec = httptest.NewRecorder()
	db.handleAlertsChart(rec, httptest.NewRequest(http.MethodGet, "/debug/alerts-chart", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("alerts-chart status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("alerts-chart content type = %q", ct)
	}
}
