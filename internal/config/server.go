package config

import (
	"fmt"
	"os"
	"time"
)

// SlackConfig holds Slack credentials. Empty values leave that path disabled.
type SlackConfig struct {
	Webhook   string `json:"webhook,omitempty"`
	BotToken  string `json:"bot_token,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}

// TwilioConfig holds SMS gateway credentials. All four must be set for SMS
// to be sent.
type TwilioConfig struct {
	AccountSID string `json:"account_sid,omitempty"`
	AuthToken  string `json:"auth_token,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
}

// S3Config holds object storage settings for clip uploads.
type S3Config struct {
	EndpointURL string  `json:"endpoint_url,omitempty"`
	Region      *string `json:"region,omitempty"`
	AccessKey   string  `json:"access_key,omitempty"`
	SecretKey   string  `json:"secret_key,omitempty"`
	Bucket      *string `json:"bucket,omitempty"`
	UseSSL      *bool   `json:"use_ssl,omitempty"`
}

// GetRegion returns the region or the default (us-east-1).
func (c *S3Config) GetRegion() string { return stringOr(c.Region, "us-east-1") }

// GetBucket returns the bucket or the default (clips).
func (c *S3Config) GetBucket() string { return stringOr(c.Bucket, "clips") }

// GetUseSSL returns use_ssl or the default (false).
func (c *S3Config) GetUseSSL() bool {
	if c.UseSSL == nil {
		return false
	}
	return *c.UseSSL
}

// ServerConfig is the configuration of the alert server. Fields omitted from
// the JSON file or environment fall back to the Get* defaults.
type ServerConfig struct {
	Listen              *string  `json:"listen,omitempty"`
	DBPath              *string  `json:"db_path,omitempty"`
	Mode                *string  `json:"mode,omitempty"`
	APIKey              *string  `json:"api_key,omitempty"`
	HLSOutputDir        *string  `json:"hls_output_dir,omitempty"`
	ClipTempDir         *string  `json:"clip_temp_dir,omitempty"`
	EnableNotifications *bool    `json:"enable_notifications,omitempty"`
	PrometheusEnabled   *bool    `json:"prometheus_enabled,omitempty"`
	DedupeSeconds       *float64 `json:"alert_dedupe_seconds,omitempty"`
	CorrelateSeconds    *float64 `json:"alert_correlate_seconds,omitempty"`
	ClipSeconds         *int     `json:"clip_seconds,omitempty"`
	MockInterval        *string  `json:"mock_interval,omitempty"` // duration string like "3s"
	NotifyTimeout       *string  `json:"notify_timeout,omitempty"`

	Slack  SlackConfig  `json:"slack"`
	Twilio TwilioConfig `json:"twilio"`
	S3     S3Config     `json:"s3"`
}

// LoadServerConfig loads a ServerConfig from a JSON file and validates it.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := loadJSON(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto the configuration.
func (c *ServerConfig) ApplyEnv(lookup LookupFunc) error {
	return applyBindings(lookup, []envBinding{
		{"LISTEN_ADDR", setString(&c.Listen)},
		{"DB_PATH", setString(&c.DBPath)},
		{"MODE", setString(&c.Mode)},
		{"API_KEY", setString(&c.APIKey)},
		{"HLS_OUTPUT_DIR", setString(&c.HLSOutputDir)},
		{"CLIP_TEMP_DIR", setString(&c.ClipTempDir)},
		{"ENABLE_NOTIFICATIONS", setBool(&c.EnableNotifications)},
		{"PROMETHEUS_ENABLED", setBool(&c.PrometheusEnabled)},
		{"ALERT_DEDUPE_SECONDS", setFloat(&c.DedupeSeconds)},
		{"ALERT_CORRELATE_SECONDS", setFloat(&c.CorrelateSeconds)},
		{"CLIP_SECONDS", setInt(&c.ClipSeconds)},
		{"MOCK_INTERVAL", setString(&c.MockInterval)},
		{"SLACK_WEBHOOK", setPlain(&c.Slack.Webhook)},
		{"SLACK_BOT_TOKEN", setPlain(&c.Slack.BotToken)},
		{"SLACK_CHANNEL_ID", setPlain(&c.Slack.ChannelID)},
		{"TWILIO_ACCOUNT_SID", setPlain(&c.Twilio.AccountSID)},
		{"TWILIO_AUTH_TOKEN", setPlain(&c.Twilio.AuthToken)},
		{"TWILIO_FROM", setPlain(&c.Twilio.From)},
		{"ALERT_SMS_TO", setPlain(&c.Twilio.To)},
		{"S3_ENDPOINT_URL", setPlain(&c.S3.EndpointURL)},
		{"S3_REGION", setString(&c.S3.Region)},
		{"S3_ACCESS_KEY", setPlain(&c.S3.AccessKey)},
		{"S3_SECRET_KEY", setPlain(&c.S3.SecretKey)},
		{"S3_BUCKET", setString(&c.S3.Bucket)},
		{"S3_USE_SSL", setBool(&c.S3.UseSSL)},
	})
}

// Validate checks that the configuration values are valid.
func (c *ServerConfig) Validate() error {
	if c.Mode != nil && *c.Mode != "" && *c.Mode != "mock" && *c.Mode != "live" {
		return fmt.Errorf("mode must be \"mock\" or \"live\", got %q", *c.Mode)
	}
	if c.DedupeSeconds != nil && *c.DedupeSeconds < 0 {
		return fmt.Errorf("alert_dedupe_seconds must be non-negative, got %f", *c.DedupeSeconds)
	}
	if c.CorrelateSeconds != nil && *c.CorrelateSeconds < 0 {
		return fmt.Errorf("alert_correlate_seconds must be non-negative, got %f", *c.CorrelateSeconds)
	}
	if c.ClipSeconds != nil && *c.ClipSeconds <= 0 {
		return fmt.Errorf("clip_seconds must be positive, got %d", *c.ClipSeconds)
	}
	if err := validateDuration("mock_interval", c.MockInterval); err != nil {
		return err
	}
	return validateDuration("notify_timeout", c.NotifyTimeout)
}

// GetListen returns the listen address or the default (:8000).
func (c *ServerConfig) GetListen() string { return stringOr(c.Listen, ":8000") }

// GetDBPath returns the database path or the default (sentinel.db).
func (c *ServerConfig) GetDBPath() string { return stringOr(c.DBPath, "sentinel.db") }

// GetMode returns the run mode or the default (mock).
func (c *ServerConfig) GetMode() string { return stringOr(c.Mode, "mock") }

// GetAPIKey returns the write API key or the default (changeme).
func (c *ServerConfig) GetAPIKey() string { return stringOr(c.APIKey, "changeme") }

// GetHLSOutputDir returns the HLS root or the default (/app/hls).
func (c *ServerConfig) GetHLSOutputDir() string { return stringOr(c.HLSOutputDir, "/app/hls") }

// GetClipTempDir returns the scratch directory for clips or os.TempDir().
func (c *ServerConfig) GetClipTempDir() string { return stringOr(c.ClipTempDir, os.TempDir()) }

// GetEnableNotifications returns enable_notifications or the default (true).
func (c *ServerConfig) GetEnableNotifications() bool {
	if c.EnableNotifications == nil {
		return true
	}
	return *c.EnableNotifications
}

// GetPrometheusEnabled returns prometheus_enabled or the default (true).
func (c *ServerConfig) GetPrometheusEnabled() bool {
	if c.PrometheusEnabled == nil {
		return true
	}
	return *c.PrometheusEnabled
}

// GetDedupeWindow returns the dedupe window or the default (60s).
func (c *ServerConfig) GetDedupeWindow() time.Duration {
	if c.DedupeSeconds == nil {
		return 60 * time.Second
	}
	return time.Duration(*c.DedupeSeconds * float64(time.Second))
}

// GetCorrelateWindow returns the correlation window or the default (60s).
func (c *ServerConfig) GetCorrelateWindow() time.Duration {
	if c.CorrelateSeconds == nil {
		return 60 * time.Second
	}
	return time.Duration(*c.CorrelateSeconds * float64(time.Second))
}

// GetClipSeconds returns the clip length or the default (6).
func (c *ServerConfig) GetClipSeconds() int {
	if c.ClipSeconds == nil {
		return 6
	}
	return *c.ClipSeconds
}

// GetMockInterval returns the mock generator period or the default (3s).
func (c *ServerConfig) GetMockInterval() time.Duration {
	return parseDurationOr(c.MockInterval, 3*time.Second)
}

// GetNotifyTimeout returns the per-call notification timeout or the default (5s).
func (c *ServerConfig) GetNotifyTimeout() time.Duration {
	return parseDurationOr(c.NotifyTimeout, 5*time.Second)
}
