package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestServerConfigDefaults(t *testing.T) {
	cfg := &ServerConfig{}

	if got := cfg.GetListen(); got != ":8000" {
		t.Errorf("GetListen() = %q, want :8000", got)
	}
	if got := cfg.GetMode(); got != "mock" {
		t.Errorf("GetMode() = %q, want mock", got)
	}
	if got := cfg.GetAPIKey(); got != "changeme" {
		t.Errorf("GetAPIKey() = %q, want changeme", got)
	}
	if !cfg.GetEnableNotifications() {
		t.Error("GetEnableNotifications() = false, want true")
	}
	if !cfg.GetPrometheusEnabled() {
		t.Error("GetPrometheusEnabled() = false, want true")
	}
	if got := cfg.GetDedupeWindow(); got != 60*time.Second {
		t.Errorf("GetDedupeWindow() = %v, want 60s", got)
	}
	if got := cfg.GetCorrelateWindow(); got != 60*time.Second {
		t.Errorf("GetCorrelateWindow() = %v, want 60s", got)
	}
	if got := cfg.GetClipSeconds(); got != 6 {
		t.Errorf("GetClipSeconds() = %d, want 6", got)
	}
	if got := cfg.GetMockInterval(); got != 3*time.Second {
		t.Errorf("GetMockInterval() = %v, want 3s", got)
	}
	if got := cfg.GetNotifyTimeout(); got != 5*time.Second {
		t.Errorf("GetNotifyTimeout() = %v, want 5s", got)
	}
	if got := cfg.S3.GetBucket(); got != "clips" {
		t.Errorf("S3.GetBucket() = %q, want clips", got)
	}
	if got := cfg.S3.GetRegion(); got != "us-east-1" {
		t.Errorf("S3.GetRegion() = %q, want us-east-1", got)
	}
	if cfg.S3.GetUseSSL() {
		t.Error("S3.GetUseSSL() = true, want false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty config should validate: %v", err)
	}
}

func TestServerConfigApplyEnv(t *testing.T) {
	cfg := &ServerConfig{}
	err := cfg.ApplyEnv(envMap(map[string]string{
		"MODE":                    "live",
		"API_KEY":                 " secret ",
		"ENABLE_NOTIFICATIONS":    "False",
		"ALERT_DEDUPE_SECONDS":    "30",
		"ALERT_CORRELATE_SECONDS": "12.5",
		"CLIP_SECONDS":            "8",
		"SLACK_BOT_TOKEN":         "xoxb-1",
		"SLACK_CHANNEL_ID":        "C1",
		"ALERT_SMS_TO":            "+15550001",
		"S3_BUCKET":               "evidence",
		"S3_USE_SSL":              "true",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.GetMode() != "live" {
		t.Errorf("mode = %q, want live", cfg.GetMode())
	}
	if cfg.GetAPIKey() != "secret" {
		t.Errorf("api key = %q, want trimmed secret", cfg.GetAPIKey())
	}
	if cfg.GetEnableNotifications() {
		t.Error("notifications should be disabled")
	}
	if cfg.GetDedupeWindow() != 30*time.Second {
		t.Errorf("dedupe = %v, want 30s", cfg.GetDedupeWindow())
	}
	if cfg.GetCorrelateWindow() != 12500*time.Millisecond {
		t.Errorf("correlate = %v, want 12.5s", cfg.GetCorrelateWindow())
	}
	if cfg.GetClipSeconds() != 8 {
		t.Errorf("clip seconds = %d, want 8", cfg.GetClipSeconds())
	}
	if cfg.Slack.BotToken != "xoxb-1" || cfg.Slack.ChannelID != "C1" {
		t.Errorf("slack = %+v", cfg.Slack)
	}
	if cfg.Twilio.To != "+15550001" {
		t.Errorf("sms to = %q", cfg.Twilio.To)
	}
	if cfg.S3.GetBucket() != "evidence" || !cfg.S3.GetUseSSL() {
		t.Errorf("s3 = %+v", cfg.S3)
	}
}

func TestServerConfigApplyEnvInvalid(t *testing.T) {
	cases := map[string]string{
		"ENABLE_NOTIFICATIONS": "maybe",
		"ALERT_DEDUPE_SECONDS": "sixty",
		"CLIP_SECONDS":         "6.5",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			cfg := &ServerConfig{}
			err := cfg.ApplyEnv(envMap(map[string]string{key: val}))
			if err == nil {
				t.Fatalf("expected error for %s=%s", key, val)
			}
			if !strings.Contains(err.Error(), key) {
				t.Errorf("error %q should name %s", err, key)
			}
		})
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServerConfig
		wantErr bool
	}{
		{"mock mode", ServerConfig{Mode: ptrString("mock")}, false},
		{"live mode", ServerConfig{Mode: ptrString("live")}, false},
		{"bad mode", ServerConfig{Mode: ptrString("replay")}, true},
		{"negative dedupe", ServerConfig{DedupeSeconds: ptrFloat64(-1)}, true},
		{"zero dedupe", ServerConfig{DedupeSeconds: ptrFloat64(0)}, false},
		{"zero clip", ServerConfig{ClipSeconds: ptrInt(0)}, true},
		{"bad interval", ServerConfig{MockInterval: ptrString("soon")}, true},
		{"negative timeout", ServerConfig{NotifyTimeout: ptrString("-1s")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadServerConfig(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "server.json")
	body := `{
  "listen": ":9000",
  "mode": "live",
  "alert_dedupe_seconds": 10,
  "slack": {"webhook": "https://hooks.example/x"},
  "s3": {"bucket": "b1", "endpoint_url": "http://minio:9000"}
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.GetListen() != ":9000" {
		t.Errorf("listen = %q", cfg.GetListen())
	}
	if cfg.GetDedupeWindow() != 10*time.Second {
		t.Errorf("dedupe = %v", cfg.GetDedupeWindow())
	}
	if cfg.Slack.Webhook != "https://hooks.example/x" {
		t.Errorf("webhook = %q", cfg.Slack.Webhook)
	}
	if cfg.S3.GetBucket() != "b1" || cfg.S3.EndpointURL != "http://minio:9000" {
		t.Errorf("s3 = %+v", cfg.S3)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	yamlPath := filepath.Join(tmpDir, "server.yaml")
	if err := os.WriteFile(yamlPath, []byte("mode: live"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadServerConfig(yamlPath); err == nil {
		t.Error("expected extension error")
	}

	if _, err := LoadServerConfig(filepath.Join(tmpDir, "missing.json")); err == nil {
		t.Error("expected stat error for missing file")
	}

	badPath := filepath.Join(tmpDir, "bad.json")
	if err := os.WriteFile(badPath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadServerConfig(badPath); err == nil {
		t.Error("expected parse error")
	}

	invalidPath := filepath.Join(tmpDir, "invalid.json")
	if err := os.WriteFile(invalidPath, []byte(`{"mode":"replay"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadServerConfig(invalidPath); err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("expected validation error, got %v", err)
	}

	bigPath := filepath.Join(tmpDir, "big.json")
	big := make([]byte, 1024*1024+1)
	for i := range big {
		big[i] = ' '
	}
	if err := os.WriteFile(bigPath, big, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadEdgeConfig(bigPath); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestEdgeConfigDefaults(t *testing.T) {
	cfg := &EdgeConfig{}

	if cfg.GetBackendURL() != "http://backend:8000" {
		t.Errorf("backend = %q", cfg.GetBackendURL())
	}
	if cfg.GetCameraID() != "cam_1" {
		t.Errorf("camera = %q", cfg.GetCameraID())
	}
	if cfg.GetVideoPath() != "/samples/demo.mp4" {
		t.Errorf("video = %q", cfg.GetVideoPath())
	}
	if cfg.GetTrackerImpl() != "centroid" {
		t.Errorf("tracker = %q", cfg.GetTrackerImpl())
	}
	if cfg.GetMaxLost() != 10 || cfg.GetDistThresh() != 80 {
		t.Errorf("tracker params = %d, %f", cfg.GetMaxLost(), cfg.GetDistThresh())
	}
	if cfg.GetFrameInterval() != 100*time.Millisecond {
		t.Errorf("interval = %v", cfg.GetFrameInterval())
	}
	if cfg.GetPostTimeout() != 2*time.Second {
		t.Errorf("post timeout = %v", cfg.GetPostTimeout())
	}
	if cfg.GetFrameWidth() != 640 || cfg.GetFrameHeight() != 480 {
		t.Errorf("frame = %dx%d", cfg.GetFrameWidth(), cfg.GetFrameHeight())
	}
}

func TestEdgeConfigApplyEnv(t *testing.T) {
	cfg := &EdgeConfig{}
	err := cfg.ApplyEnv(envMap(map[string]string{
		"CAMERA_ID":           "cam_7",
		"VIDEO_PATH":          "",
		"TRACKER_IMPL":        "ocsort_stub",
		"TRACKER_MAX_LOST":    "3",
		"TRACKER_DIST_THRESH": "42.5",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.GetCameraID() != "cam_7" {
		t.Errorf("camera = %q", cfg.GetCameraID())
	}
	if cfg.GetVideoPath() != "" {
		t.Errorf("explicit empty video path should select synthetic source, got %q", cfg.GetVideoPath())
	}
	if cfg.GetTrackerImpl() != "ocsort_stub" {
		t.Errorf("tracker = %q", cfg.GetTrackerImpl())
	}
	if cfg.GetMaxLost() != 3 || cfg.GetDistThresh() != 42.5 {
		t.Errorf("tracker params = %d, %f", cfg.GetMaxLost(), cfg.GetDistThresh())
	}

	if err := cfg.ApplyEnv(envMap(map[string]string{"TRACKER_MAX_LOST": "ten"})); err == nil {
		t.Error("expected error for non-integer max lost")
	}
}

func TestEdgeConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EdgeConfig
		wantErr bool
	}{
		{"empty", EdgeConfig{}, false},
		{"zero max lost", EdgeConfig{MaxLost: ptrInt(0)}, false},
		{"negative max lost", EdgeConfig{MaxLost: ptrInt(-1)}, true},
		{"zero threshold", EdgeConfig{DistThresh: ptrFloat64(0)}, true},
		{"zero width", EdgeConfig{FrameWidth: ptrInt(0)}, true},
		{"bad interval", EdgeConfig{FrameInterval: ptrString("fast")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
