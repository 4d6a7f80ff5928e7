package config

import (
	"fmt"
	"time"
)

// EdgeConfig is the configuration of an edge agent.
type EdgeConfig struct {
	BackendURL    *string  `json:"backend_url,omitempty"`
	APIKey        *string  `json:"api_key,omitempty"`
	CameraID      *string  `json:"camera_id,omitempty"`
	VideoPath     *string  `json:"video_path,omitempty"`
	TrackerImpl   *string  `json:"tracker_impl,omitempty"`
	MaxLost       *int     `json:"max_lost,omitempty"`
	DistThresh    *float64 `json:"dist_thresh,omitempty"`
	FrameInterval *string  `json:"frame_interval,omitempty"` // duration string like "100ms"
	PostTimeout   *string  `json:"post_timeout,omitempty"`
	FrameWidth    *int     `json:"frame_width,omitempty"`
	FrameHeight   *int     `json:"frame_height,omitempty"`
}

// LoadEdgeConfig loads an EdgeConfig from a JSON file and validates it.
func LoadEdgeConfig(path string) (*EdgeConfig, error) {
	cfg := &EdgeConfig{}
	if err := loadJSON(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto the configuration.
func (c *EdgeConfig) ApplyEnv(lookup LookupFunc) error {
	return applyBindings(lookup, []envBinding{
		{"BACKEND_URL", setString(&c.BackendURL)},
		{"API_KEY", setString(&c.APIKey)},
		{"CAMERA_ID", setString(&c.CameraID)},
		{"VIDEO_PATH", setString(&c.VideoPath)},
		{"TRACKER_IMPL", setString(&c.TrackerImpl)},
		{"TRACKER_MAX_LOST", setInt(&c.MaxLost)},
		{"TRACKER_DIST_THRESH", setFloat(&c.DistThresh)},
		{"FRAME_INTERVAL", setString(&c.FrameInterval)},
	})
}

// Validate checks that the configuration values are valid.
func (c *EdgeConfig) Validate() error {
	if c.MaxLost != nil && *c.MaxLost < 0 {
		return fmt.Errorf("max_lost must be non-negative, got %d", *c.MaxLost)
	}
	if c.DistThresh != nil && *c.DistThresh <= 0 {
		return fmt.Errorf("dist_thresh must be positive, got %f", *c.DistThresh)
	}
	if c.FrameWidth != nil && *c.FrameWidth <= 0 {
		return fmt.Errorf("frame_width must be positive, got %d", *c.FrameWidth)
	}
	if c.FrameHeight != nil && *c.FrameHeight <= 0 {
		return fmt.Errorf("frame_height must be positive, got %d", *c.FrameHeight)
	}
	if err := validateDuration("frame_interval", c.FrameInterval); err != nil {
		return err
	}
	return validateDuration("post_timeout", c.PostTimeout)
}

// GetBackendURL returns the server base URL or the default (http://backend:8000).
func (c *EdgeConfig) GetBackendURL() string { return stringOr(c.BackendURL, "http://backend:8000") }

// GetAPIKey returns the API key or the default (changeme).
func (c *EdgeConfig) GetAPIKey() string { return stringOr(c.APIKey, "changeme") }

// GetCameraID returns the camera id or the default (cam_1).
func (c *EdgeConfig) GetCameraID() string { return stringOr(c.CameraID, "cam_1") }

// GetVideoPath returns the video source. Empty selects the synthetic source.
func (c *EdgeConfig) GetVideoPath() string {
	if c.VideoPath == nil {
		return "/samples/demo.mp4"
	}
	return *c.VideoPath
}

// GetTrackerImpl returns the tracker implementation name or the default (centroid).
func (c *EdgeConfig) GetTrackerImpl() string { return stringOr(c.TrackerImpl, "centroid") }

// GetMaxLost returns max_lost or the default (10).
func (c *EdgeConfig) GetMaxLost() int {
	if c.MaxLost == nil {
		return 10
	}
	return *c.MaxLost
}

// GetDistThresh returns dist_thresh or the default (80).
func (c *EdgeConfig) GetDistThresh() float64 {
	if c.DistThresh == nil {
		return 80.0
	}
	return *c.DistThresh
}

// GetFrameInterval returns the frame period or the default (100ms).
func (c *EdgeConfig) GetFrameInterval() time.Duration {
	return parseDurationOr(c.FrameInterval, 100*time.Millisecond)
}

// GetPostTimeout returns the ingestion POST timeout or the default (2s).
func (c *EdgeConfig) GetPostTimeout() time.Duration {
	return parseDurationOr(c.PostTimeout, 2*time.Second)
}

// GetFrameWidth returns the synthetic frame width or the default (640).
func (c *EdgeConfig) GetFrameWidth() int {
	if c.FrameWidth == nil {
		return 640
	}
	return *c.FrameWidth
}

// GetFrameHeight returns the synthetic frame height or the default (480).
func (c *EdgeConfig) GetFrameHeight() int {
	if c.FrameHeight == nil {
		return 480
	}
	return *c.FrameHeight
}
