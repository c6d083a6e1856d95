package video

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Stability detection constants.
const (
	// stabilityBlurSize is the kernel size for Gaussian blur (21x21).
	stabilityBlurSize = 21
	// stabilityDiffThreshold is the binary threshold for pixel change.
	stabilityDiffThreshold = 25
)

// StabilityChecker measures how much of each frame changes relative to
// the previous one. On tripod footage only the athlete moves, so a
// large sustained change percentage means the camera itself is moving.
type StabilityChecker struct {
	prevGray    gocv.Mat
	initialized bool
	sumPct      float64
	samples     int
	mu          sync.Mutex
}

// NewStabilityChecker creates a StabilityChecker.
func NewStabilityChecker() *StabilityChecker {
	return &StabilityChecker{prevGray: gocv.NewMat()}
}

// Observe folds one frame into the stability estimate and returns the
// change percentage against the previous frame.
//
// Algorithm:
// 1. Convert the frame to grayscale
// 2. Blur (21x21) to suppress compression noise
// 3. Absolute difference with the previous blurred frame
// 4. Binary threshold (25) and count changed pixels
func (s *StabilityChecker) Observe(frame *gocv.Mat) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if frame == nil || frame.Empty() {
		return 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: stabilityBlurSize, Y: stabilityBlurSize}, 0, 0, gocv.BorderDefault)

	if !s.initialized {
		blurred.CopyTo(&s.prevGray)
		s.initialized = true
		return 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, s.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, stabilityDiffThreshold, 255, gocv.ThresholdBinary)

	nonZero := gocv.CountNonZero(thresh)
	total := thresh.Rows() * thresh.Cols()
	blurred.CopyTo(&s.prevGray)

	if total == 0 {
		return 0
	}
	pct := float64(nonZero) / float64(total) * 100.0
	s.sumPct += pct
	s.samples++
	return pct
}

// AveragePct returns the mean change percentage over all observed frames.
func (s *StabilityChecker) AveragePct() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.samples == 0 {
		return 0
	}
	return s.sumPct / float64(s.samples)
}

// Close releases the held frame buffer.
func (s *StabilityChecker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prevGray.Close()
}
