package clips

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/grafov/m3u8"

	"github.com/sentinel-vision/sentinel/internal/security"
)

// ErrNoPlaylist is returned when a camera has no HLS playlist on disk.
var ErrNoPlaylist = errors.New("no playlist")

// Segment is one media segment listed in a playlist.
type Segment struct {
	Duration float64
	URI      string
}

// Playlist is the subset of an HLS media playlist used for clipping.
type Playlist struct {
	TargetDuration int
	Segments       []Segment
}

// ParsePlaylist reads an HLS media playlist. Relative segment URIs are
// resolved against baseDir; http(s) URIs are kept as they are. A master
// playlist is rejected.
func ParsePlaylist(r io.Reader, baseDir string) (*Playlist, error) {
	decoded, listType, err := m3u8.DecodeFrom(r, true)
	if err != nil {
		return nil, fmt.Errorf("failed to parse playlist: %w", err)
	}
	media, ok := decoded.(*m3u8.MediaPlaylist)
	if listType != m3u8.MEDIA || !ok {
		return nil, errors.New("not a media playlist")
	}

	pl := &Playlist{TargetDuration: int(media.TargetDuration)}
	if pl.TargetDuration <= 0 {
		pl.TargetDuration = 2
	}
	for _, seg := range media.Segments {
		// the segment slice is a ring buffer padded with nils
		if seg == nil {
			continue
		}
		uri := seg.URI
		if !strings.HasPrefix(uri, "http") {
			uri = filepath.Join(baseDir, uri)
		}
		pl.Segments = append(pl.Segments, Segment{Duration: seg.Duration, URI: uri})
	}
	return pl, nil
}

// Tail returns the shortest run of trailing segments whose durations add up
// to at least seconds, or every segment if the playlist is shorter.
func (p *Playlist) Tail(seconds float64) []Segment {
	total := 0.0
	i := len(p.Segments)
	for i > 0 && total < seconds {
		i--
		total += p.Segments[i].Duration
	}
	return append([]Segment(nil), p.Segments[i:]...)
}

// ReadPlaylist opens <hlsRoot>/<cameraID>/index.m3u8 and parses it.
func ReadPlaylist(hlsRoot, cameraID string) (string, *Playlist, error) {
	if err := security.ValidateCameraID(cameraID); err != nil {
		return "", nil, err
	}
	path, err := security.JoinWithin(hlsRoot, cameraID, "index.m3u8")
	if err != nil {
		return "", nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return path, nil, fmt.Errorf("%w for %s", ErrNoPlaylist, cameraID)
	}
	if err != nil {
		return path, nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer f.Close()

	pl, err := ParsePlaylist(f, filepath.Dir(path))
	if err != nil {
		return path, nil, err
	}
	return path, pl, nil
}
