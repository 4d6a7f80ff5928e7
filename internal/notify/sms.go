package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/sentinel-vision/sentinel/internal/alerts"
)

// SMSConfig configures the Twilio SMS channel. All four fields are required.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
	Timeout    time.Duration
}

func (c SMSConfig) complete() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.From != "" && c.To != ""
}

// messageCreator is the subset of the Twilio v2010 API used here.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// SMS sends one text message per emitted alert.
type SMS struct {
	cfg SMSConfig
	api messageCreator
}

// NewSMS builds the SMS channel. It returns a channel that skips every call
// when the configuration is incomplete.
func NewSMS(cfg SMSConfig) *SMS {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	s := &SMS{cfg: cfg}
	if cfg.complete() {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		client.SetTimeout(cfg.Timeout)
		s.api = client.Api
	}
	return s
}

// Enabled reports whether SMS is configured.
func (s *SMS) Enabled() bool { return s.api != nil }

// SendSMS sends "<type> at <camera>" to the configured number. The Twilio
// client is not context aware; its own timeout bounds the call.
func (s *SMS) SendSMS(ctx context.Context, a alerts.Alert) alerts.Outcome {
	if s.api == nil {
		return alerts.Skipped()
	}
	if err := ctx.Err(); err != nil {
		return alerts.Failed(err)
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(s.cfg.To)
	params.SetFrom(s.cfg.From)
	params.SetBody(fmt.Sprintf("%s at %s", a.Type, a.CameraID))
	if _, err := s.api.CreateMessage(params); err != nil {
		return alerts.Failed(fmt.Errorf("twilio send: %w", err))
	}
	return alerts.Delivered()
}
