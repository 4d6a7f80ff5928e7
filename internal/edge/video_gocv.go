//go:build gocv
// +build gocv

package edge

import (
	"fmt"

	"gocv.io/x/gocv"
)

// videoSource reads frames from a file through OpenCV.
type videoSource struct {
	cap   *gocv.VideoCapture
	frame gocv.Mat
}

// OpenVideo opens a video file for reading.
func OpenVideo(path string) (FrameSource, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video %s: %w", path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("failed to open video %s", path)
	}
	return &videoSource{cap: cap, frame: gocv.NewMat()}, nil
}

// Read implements FrameSource.
func (v *videoSource) Read() (Frame, error) {
	if ok := v.cap.Read(&v.frame); !ok || v.frame.Empty() {
		return Frame{}, ErrEndOfStream
	}
	return Frame{Width: v.frame.Cols(), Height: v.frame.Rows()}, nil
}

// Rewind implements FrameSource.
func (v *videoSource) Rewind() error {
	v.cap.Set(gocv.VideoCapturePosFrames, 0)
	return nil
}

// Close implements FrameSource.
func (v *videoSource) Close() error {
	v.frame.Close()
	return v.cap.Close()
}
