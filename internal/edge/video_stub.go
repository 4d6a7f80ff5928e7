//go:build !gocv
// +build !gocv

package edge

// OpenVideo is a stub implementation when OpenCV support is disabled.
// Build with -tags=gocv to enable video file reading.
func OpenVideo(path string) (FrameSource, error) {
	return nil, errVideoDisabled(path)
}
