// Package clips cuts short mp4 clips from a camera's HLS output with ffmpeg
// and publishes them, with a gif preview, to object storage.
package clips

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrNoClip is returned when no clip could be produced for a camera.
var ErrNoClip = errors.New("no clip available")

// Clipper produces clips from HLS playlists on local disk.
type Clipper struct {
	HLSRoot string
	TempDir string
	Seconds int
	Runner  Runner
	FFmpeg  string

	newID func() string
}

// NewClipper returns a Clipper that runs ffmpeg through runner. A nil runner
// uses ExecRunner.
func NewClipper(hlsRoot, tempDir string, seconds int, runner Runner) *Clipper {
	if runner == nil {
		runner = ExecRunner{}
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Clipper{
		HLSRoot: hlsRoot,
		TempDir: tempDir,
		Seconds: seconds,
		Runner:  runner,
		FFmpeg:  "ffmpeg",
		newID:   func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

func (c *Clipper) outPath() string {
	return filepath.Join(c.TempDir, "clip_"+c.newID()+".mp4")
}

// Generate returns the path of a new mp4 covering the last Seconds of the
// camera's stream. The caller owns the file.
func (c *Clipper) Generate(ctx context.Context, cameraID string) (string, error) {
	playlist, pl, err := ReadPlaylist(c.HLSRoot, cameraID)
	if err != nil {
		if errors.Is(err, ErrNoPlaylist) {
			return "", fmt.Errorf("%w: %v", ErrNoClip, err)
		}
		return "", err
	}
	segs := pl.Tail(float64(c.Seconds))
	if len(segs) == 0 {
		return "", fmt.Errorf("%w: playlist for %s has no segments", ErrNoClip, cameraID)
	}

	out, preciseErr := c.precise(ctx, segs)
	if preciseErr == nil {
		return out, nil
	}
	out, fallbackErr := c.streamCut(ctx, playlist)
	if fallbackErr == nil {
		return out, nil
	}
	return "", fmt.Errorf("%w: precise: %v; fallback: %v", ErrNoClip, preciseErr, fallbackErr)
}

// concatList renders segs in ffmpeg concat demuxer syntax.
func concatList(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(s.URI, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

// precise concatenates the selected segments without re-encoding and remuxes
// the result into mp4.
func (c *Clipper) precise(ctx context.Context, segs []Segment) (string, error) {
	work, err := os.MkdirTemp(c.TempDir, "clip-")
	if err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(work)

	list := filepath.Join(work, "files.txt")
	if err := os.WriteFile(list, []byte(concatList(segs)), 0o600); err != nil {
		return "", fmt.Errorf("failed to write concat list: %w", err)
	}
	ts := filepath.Join(work, "out.ts")
	if _, err := c.Runner.Run(ctx, c.FFmpeg, "-y", "-loglevel", "error", "-f", "concat", "-safe", "0", "-i", list, "-c", "copy", ts); err != nil {
		return "", err
	}
	out := c.outPath()
	if _, err := c.Runner.Run(ctx, c.FFmpeg, "-y", "-loglevel", "error", "-i", ts, "-c", "copy", out); err != nil {
		os.Remove(out)
		return "", err
	}
	return out, nil
}

// streamCut copies the first Seconds straight from the playlist.
func (c *Clipper) streamCut(ctx context.Context, playlist string) (string, error) {
	out := c.outPath()
	if _, err := c.Runner.Run(ctx, c.FFmpeg, "-y", "-loglevel", "error", "-i", playlist, "-t", strconv.Itoa(c.Seconds), "-c", "copy", out); err != nil {
		os.Remove(out)
		return "", err
	}
	return out, nil
}

// Preview renders a gif next to mp4 and returns its path.
func (c *Clipper) Preview(ctx context.Context, mp4 string) (string, error) {
	gif := strings.TrimSuffix(mp4, ".mp4") + ".gif"
	_, err := c.Runner.Run(ctx, c.FFmpeg, "-y", "-loglevel", "error", "-i", mp4, "-t", strconv.Itoa(c.Seconds),
		"-vf", "fps=8,scale=480:-1:flags=lanczos", gif)
	if err != nil {
		os.Remove(gif)
		return "", fmt.Errorf("gif preview: %w", err)
	}
	return gif, nil
}
