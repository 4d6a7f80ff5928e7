package edge

import (
	"errors"
	"fmt"

	"github.com/sentinel-vision/sentinel/internal/monitoring"
)

// ErrEndOfStream is returned by FrameSource.Read once the source is
// exhausted. Rewind restarts it.
var ErrEndOfStream = errors.New("end of stream")

// Frame is one decoded video frame. Only its geometry is needed by the
// mock detector.
type Frame struct {
	Width  int
	Height int
}

// FrameSource yields frames from a camera or a file.
type FrameSource interface {
	Read() (Frame, error)
	Rewind() error
	Close() error
}

// SyntheticSource produces blank frames of a fixed size forever.
type SyntheticSource struct {
	Width  int
	Height int
}

// Read implements FrameSource.
func (s *SyntheticSource) Read() (Frame, error) {
	return Frame{Width: s.Width, Height: s.Height}, nil
}

// Rewind implements FrameSource.
func (s *SyntheticSource) Rewind() error { return nil }

// Close implements FrameSource.
func (s *SyntheticSource) Close() error { return nil }

// OpenSource opens path as a video file. An empty path, or a file that
// cannot be opened, yields a synthetic source of width x height.
func OpenSource(path string, width, height int) FrameSource {
	if path == "" {
		return &SyntheticSource{Width: width, Height: height}
	}
	src, err := OpenVideo(path)
	if err != nil {
		monitoring.Logf("failed to open %s: %v; using synthetic %dx%d frames", path, err, width, height)
		return &SyntheticSource{Width: width, Height: height}
	}
	return src
}

func errVideoDisabled(path string) error {
	return fmt.Errorf("video support not enabled: rebuild with -tags=gocv to read %s", path)
}
