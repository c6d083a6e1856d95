// Package video reads submitted clips, runs the preflight quality gate
// and extracts the per-frame signals the analysis pipeline consumes.
package video

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// Preflight requirements.
const (
	MinFPS    = 25.0
	MinWidth  = 1280
	MinHeight = 720
)

// ErrSourceNotOpen is returned when reading from a source that is not open.
var ErrSourceNotOpen = errors.New("video source is not open")

// allowedFormats are the container extensions the pipeline accepts.
var allowedFormats = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
}

// Meta describes a video file.
type Meta struct {
	Filename    string  `json:"filename"`
	FPS         float64 `json:"fps"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	DurationS   float64 `json:"duration_s"`
	TotalFrames int     `json:"total_frames"`
}

// FrameSource defines the interface for video frame providers.
type FrameSource interface {
	Open() error
	Close() error

	// ReadFrame returns the next frame and its timestamp in seconds.
	// io.EOF signals the end of the video. The caller closes the Mat.
	ReadFrame() (*gocv.Mat, float64, error)

	Meta() Meta
}

// fileSource reads frames from a video file using GoCV.
type fileSource struct {
	path    string
	capture *gocv.VideoCapture
	meta    Meta
	mu      sync.Mutex
	open    bool
}

// NewFileSource creates a FrameSource for the given video file.
func NewFileSource(path string) FrameSource {
	return &fileSource{path: path}
}

// Open opens the file and reads the container metadata.
func (f *fileSource) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.open {
		return nil
	}

	capture, err := gocv.VideoCaptureFile(f.path)
	if err != nil {
		return fmt.Errorf("failed to open video %s: %w", f.path, err)
	}

	fps := capture.Get(gocv.VideoCaptureFPS)
	frames := int(capture.Get(gocv.VideoCaptureFrameCount))
	meta := Meta{
		Filename:    filepath.Base(f.path),
		FPS:         fps,
		Width:       int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:      int(capture.Get(gocv.VideoCaptureFrameHeight)),
		TotalFrames: frames,
	}
	if fps > 0 {
		meta.DurationS = float64(frames) / fps
	}

	f.capture = capture
	f.meta = meta
	f.open = true
	return nil
}

// Close releases the capture.
func (f *fileSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.open || f.capture == nil {
		f.open = false
		return nil
	}
	err := f.capture.Close()
	f.capture = nil
	f.open = false
	return err
}

// ReadFrame reads the next frame from the file.
func (f *fileSource) ReadFrame() (*gocv.Mat, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.open || f.capture == nil {
		return nil, 0, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	if ok := f.capture.Read(&mat); !ok {
		mat.Close()
		return nil, 0, io.EOF
	}
	if mat.Empty() {
		mat.Close()
		return nil, 0, io.EOF
	}

	ts := f.capture.Get(gocv.VideoCapturePosMsec) / 1000.0
	return &mat, ts, nil
}

// Meta returns the container metadata. Valid after Open.
func (f *fileSource) Meta() Meta {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta
}

// FormatAllowed reports whether the file extension is an accepted
// container format.
func FormatAllowed(filename string) bool {
	return allowedFormats[strings.ToLower(filepath.Ext(filename))]
}
