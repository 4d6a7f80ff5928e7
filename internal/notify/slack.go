package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/sentinel-vision/sentinel/internal/alerts"
	"github.com/sentinel-vision/sentinel/internal/httputil"
)

// SlackConfig configures the Slack channel. The bot path needs both BotToken
// and ChannelID; the webhook path needs Webhook. Either may be left empty.
type SlackConfig struct {
	Webhook   string
	BotToken  string
	ChannelID string
	// APIURL overrides the Web API base URL. It must end in a slash.
	APIURL  string
	Timeout time.Duration
}

// Slack posts alerts with the chat.postMessage Web API when a bot token is
// configured and falls back to an incoming webhook otherwise. Only the bot
// path returns thread handles.
type Slack struct {
	cfg    SlackConfig
	client httputil.HTTPClient
	bot    *slack.Client
}

// NewSlack builds the Slack channel. A nil client uses an *http.Client with
// cfg.Timeout.
func NewSlack(cfg SlackConfig, client httputil.HTTPClient) *Slack {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	s := &Slack{cfg: cfg, client: client}
	if cfg.BotToken != "" && cfg.ChannelID != "" {
		opts := []slack.Option{slack.OptionHTTPClient(client)}
		if cfg.APIURL != "" {
			opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
		}
		s.bot = slack.New(cfg.BotToken, opts...)
	}
	return s
}

// BotEnabled reports whether the Web API path is configured.
func (s *Slack) BotEnabled() bool { return s.bot != nil }

// WebhookEnabled reports whether the webhook path is configured.
func (s *Slack) WebhookEnabled() bool { return s.cfg.Webhook != "" }

func headline(a alerts.Alert) string {
	return fmt.Sprintf("*%s* detected on *%s*", strings.ToUpper(a.Type), a.CameraID)
}

func alertBlocks(a alerts.Alert) []slack.Block {
	ctxText := fmt.Sprintf("Confidence: `%s` · Time: `%d`", formatConfidence(a.Confidence), int64(a.Timestamp))
	return []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, headline(a), false, false), nil, nil),
		slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, ctxText, false, false)),
	}
}

func clipBlocks(urls alerts.ClipURLs) []slack.Block {
	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, "*Event clip ready*", false, false), nil, nil),
	}
	if urls.Preview != "" {
		blocks = append(blocks, slack.NewImageBlock(urls.Preview, "clip", "", nil))
	}
	if urls.Video != "" {
		link := fmt.Sprintf("<%s|Download MP4>", urls.Video)
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, link, false, false), nil, nil))
	}
	return blocks
}

// PostPrimary posts the alert headline. The bot path is tried first; if it is
// not configured or fails, the webhook is used and no thread is returned.
func (s *Slack) PostPrimary(ctx context.Context, a alerts.Alert) (alerts.ThreadHandle, alerts.Outcome) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	blocks := alertBlocks(a)
	var botErr error
	if s.bot != nil {
		_, ts, err := s.bot.PostMessageContext(ctx, s.cfg.ChannelID,
			slack.MsgOptionBlocks(blocks...),
			slack.MsgOptionText(fmt.Sprintf("%s detected on %s", strings.ToUpper(a.Type), a.CameraID), false),
		)
		if err == nil {
			return alerts.ThreadHandle(ts), alerts.Delivered()
		}
		botErr = fmt.Errorf("slack bot post: %w", err)
	}
	if s.cfg.Webhook == "" {
		if botErr != nil {
			return "", alerts.Failed(botErr)
		}
		return "", alerts.Skipped()
	}
	msg := &slack.WebhookMessage{Blocks: &slack.Blocks{BlockSet: blocks}}
	if err := httputil.PostJSON(ctx, s.client, s.cfg.Webhook, msg, nil); err != nil {
		return "", alerts.Failed(errors.Join(botErr, fmt.Errorf("slack webhook post: %w", err)))
	}
	return "", alerts.Delivered()
}

// PostThreadReply posts text into thread through the bot, or unthreaded
// through the webhook when there is no bot or no thread.
func (s *Slack) PostThreadReply(ctx context.Context, text string, thread alerts.ThreadHandle) alerts.Outcome {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if s.bot != nil && thread != "" {
		_, _, err := s.bot.PostMessageContext(ctx, s.cfg.ChannelID,
			slack.MsgOptionText(text, false),
			slack.MsgOptionTS(string(thread)),
		)
		if err != nil {
			return alerts.Failed(fmt.Errorf("slack thread post: %w", err))
		}
		return alerts.Delivered()
	}
	if s.cfg.Webhook != "" {
		if err := httputil.PostJSON(ctx, s.client, s.cfg.Webhook, &slack.WebhookMessage{Text: text}, nil); err != nil {
			return alerts.Failed(fmt.Errorf("slack webhook post: %w", err))
		}
		return alerts.Delivered()
	}
	return alerts.Skipped()
}

// PostClipAttachment posts a clip card into thread. Without a bot thread it
// degrades to a plain "Clip: <url>" reply.
func (s *Slack) PostClipAttachment(ctx context.Context, urls alerts.ClipURLs, thread alerts.ThreadHandle) alerts.Outcome {
	if urls.Video == "" && urls.Preview == "" {
		return alerts.Skipped()
	}
	if s.bot == nil || thread == "" {
		link := urls.Video
		if link == "" {
			link = urls.Preview
		}
		return s.PostThreadReply(ctx, "Clip: "+link, thread)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	_, _, err := s.bot.PostMessageContext(ctx, s.cfg.ChannelID,
		slack.MsgOptionBlocks(clipBlocks(urls)...),
		slack.MsgOptionText("Event clip ready", false),
		slack.MsgOptionTS(string(thread)),
	)
	if err != nil {
		return alerts.Failed(fmt.Errorf("slack clip post: %w", err))
	}
	return alerts.Delivered()
}
