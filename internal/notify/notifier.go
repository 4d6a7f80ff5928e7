// Package notify delivers alert notifications to Slack and SMS.
package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/sentinel-vision/sentinel/internal/alerts"
	"github.com/sentinel-vision/sentinel/internal/config"
	"github.com/sentinel-vision/sentinel/internal/httputil"
)

const defaultTimeout = 5 * time.Second

// Notifier combines the Slack and SMS channels into an alerts.Notifier.
type Notifier struct {
	slack *Slack
	sms   *SMS
}

var _ alerts.Notifier = (*Notifier)(nil)

// New combines the given channels. Either may be nil.
func New(s *Slack, sms *SMS) *Notifier {
	if s == nil {
		s = NewSlack(SlackConfig{}, nil)
	}
	if sms == nil {
		sms = NewSMS(SMSConfig{})
	}
	return &Notifier{slack: s, sms: sms}
}

// FromConfig builds the notifier from the server configuration.
func FromConfig(cfg *config.ServerConfig, client httputil.HTTPClient) *Notifier {
	timeout := cfg.GetNotifyTimeout()
	s := NewSlack(SlackConfig{
		Webhook:   cfg.Slack.Webhook,
		BotToken:  cfg.Slack.BotToken,
		ChannelID: cfg.Slack.ChannelID,
		Timeout:   timeout,
	}, client)
	sms := NewSMS(SMSConfig{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		From:       cfg.Twilio.From,
		To:         cfg.Twilio.To,
		Timeout:    timeout,
	})
	return New(s, sms)
}

// Channels lists the configured channel names.
func (n *Notifier) Channels() []string {
	var out []string
	if n.slack.BotEnabled() {
		out = append(out, "slack_bot")
	}
	if n.slack.WebhookEnabled() {
		out = append(out, "slack_webhook")
	}
	if n.sms.Enabled() {
		out = append(out, "sms")
	}
	return out
}

func (n *Notifier) PostPrimary(ctx context.Context, a alerts.Alert) (alerts.ThreadHandle, alerts.Outcome) {
	return n.slack.PostPrimary(ctx, a)
}

func (n *Notifier) PostThreadReply(ctx context.Context, text string, thread alerts.ThreadHandle) alerts.Outcome {
	return n.slack.PostThreadReply(ctx, text, thread)
}

func (n *Notifier) PostClipAttachment(ctx context.Context, urls alerts.ClipURLs, thread alerts.ThreadHandle) alerts.Outcome {
	return n.slack.PostClipAttachment(ctx, urls, thread)
}

func (n *Notifier) SendSMS(ctx context.Context, a alerts.Alert) alerts.Outcome {
	return n.sms.SendSMS(ctx, a)
}

// formatConfidence renders c the shortest way that round-trips, so 0.87
// prints as 0.87 and 0.9 as 0.9.
func formatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}
