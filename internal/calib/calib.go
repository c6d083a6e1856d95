// Package calib converts pixel measurements to real-world meters using
// the two reference markers visible in the frame.
package calib

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/fieldside/shuttlerun/internal/pose"
)

// Calibration constants.
const (
	// DefaultKnownDistanceM is the real-world distance between the
	// reference lines unless the caller supplies ground truth.
	DefaultKnownDistanceM = 10.0
	// MinSamples is the minimum number of frames with both markers
	// detected required to calibrate.
	MinSamples = 3
	// VerifiedConfidence is the confidence at or above which the
	// measured distance is considered verified.
	VerifiedConfidence = 0.8
)

// ErrInsufficientSamples is returned when too few frames contain both
// reference markers to compute a trustworthy ratio.
var ErrInsufficientSamples = errors.New("calibration: markers not detected in enough frames")

// Sample is one candidate frame with the detected marker centroids.
type Sample struct {
	FrameIdx int
	A        pose.Point2D
	B        pose.Point2D
	AFound   bool
	BFound   bool
}

// Result is the outcome of a calibration pass. It is computed once per
// run before frame-level processing and never mutated afterwards.
type Result struct {
	PxToM            float64      `json:"px_to_m"`
	Confidence       float64      `json:"confidence"`
	LineAPx          pose.Point2D `json:"line_a_px"`
	LineBPx          pose.Point2D `json:"line_b_px"`
	DistanceM        float64      `json:"distance_m"`
	DistanceVerified bool         `json:"distance_verified"`
	SampleCount      int          `json:"sample_count"`
	Comment          string       `json:"comment,omitempty"`
}

// Calibrate computes the pixel-to-meter ratio from the given candidate
// frames. Frames where either marker is undetected are excluded from the
// sample. knownDistanceM defaults to DefaultKnownDistanceM when zero.
//
// The ratio is knownDistanceM / mean(pixel distances); confidence is
// 1 - stddev/mean clamped to [0,1]. Fewer than MinSamples usable frames
// is an input error: no ratio is guessed.
func Calibrate(samples []Sample, knownDistanceM float64) (*Result, error) {
	if knownDistanceM <= 0 {
		knownDistanceM = DefaultKnownDistanceM
	}

	var (
		dists      []float64
		sumA, sumB pose.Point2D
	)
	for _, s := range samples {
		if !s.AFound || !s.BFound {
			continue
		}
		d := pose.Distance(s.A, s.B)
		if d <= 0 {
			continue
		}
		dists = append(dists, d)
		sumA.X += s.A.X
		sumA.Y += s.A.Y
		sumB.X += s.B.X
		sumB.Y += s.B.Y
	}

	if len(dists) < MinSamples {
		return &Result{
			Confidence:       0,
			DistanceM:        knownDistanceM,
			DistanceVerified: false,
			SampleCount:      len(dists),
			Comment:          "markers not detected",
		}, fmt.Errorf("%w: %d of %d frames usable", ErrInsufficientSamples, len(dists), len(samples))
	}

	mean := stat.Mean(dists, nil)
	stddev := stat.StdDev(dists, nil)
	confidence := clamp01(1.0 - stddev/mean)

	n := float64(len(dists))
	res := &Result{
		PxToM:            knownDistanceM / mean,
		Confidence:       confidence,
		LineAPx:          pose.Point2D{X: sumA.X / n, Y: sumA.Y / n},
		LineBPx:          pose.Point2D{X: sumB.X / n, Y: sumB.Y / n},
		DistanceM:        knownDistanceM,
		DistanceVerified: confidence >= VerifiedConfidence,
		SampleCount:      len(dists),
	}
	if !res.DistanceVerified {
		res.Comment = "marker distance unstable across frames"
	}
	return res, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
