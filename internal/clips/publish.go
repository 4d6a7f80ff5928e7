package clips

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sentinel-vision/sentinel/internal/alerts"
	"github.com/sentinel-vision/sentinel/internal/monitoring"
	"github.com/sentinel-vision/sentinel/internal/timeutil"
)

// Uploader stores a local file under key and returns a download URL.
// *objstore.Store satisfies it.
type Uploader interface {
	Upload(ctx context.Context, path, key, contentType string) (string, error)
}

// Publisher cuts a clip for a camera and uploads it with its preview.
type Publisher struct {
	clipper  *Clipper
	uploader Uploader
	clock    timeutil.Clock
}

// NewPublisher returns a Publisher. A nil clock uses the real clock.
func NewPublisher(c *Clipper, u Uploader, clock timeutil.Clock) *Publisher {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Publisher{clipper: c, uploader: u, clock: clock}
}

// Publish produces and uploads a clip for cameraID. It returns ErrNoClip
// when no clip could be cut. A preview failure keeps the mp4 URL.
func (p *Publisher) Publish(ctx context.Context, cameraID string) (alerts.ClipURLs, error) {
	mp4, err := p.clipper.Generate(ctx, cameraID)
	if err != nil {
		return alerts.ClipURLs{}, err
	}
	defer os.Remove(mp4)

	key := fmt.Sprintf("%s/%d.mp4", cameraID, p.clock.Now().Unix())
	videoURL, err := p.uploader.Upload(ctx, mp4, key, "video/mp4")
	if err != nil {
		return alerts.ClipURLs{}, err
	}
	urls := alerts.ClipURLs{Video: videoURL}

	gif, err := p.clipper.Preview(ctx, mp4)
	if err != nil {
		monitoring.LogError(ctx, "clip preview failed", err, slog.String("camera_id", cameraID))
		return urls, nil
	}
	defer os.Remove(gif)

	gifKey := strings.TrimSuffix(key, ".mp4") + ".gif"
	if urls.Preview, err = p.uploader.Upload(ctx, gif, gifKey, "image/gif"); err != nil {
		monitoring.LogError(ctx, "clip preview upload failed", err, slog.String("camera_id", cameraID))
	}
	return urls, nil
}
