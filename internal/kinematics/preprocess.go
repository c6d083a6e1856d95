// Package kinematics turns raw per-frame pose detections into an ordered
// kinematic trace: gap-filled foot positions, metric conversion, speed and
// direction per frame.
package kinematics

import (
	"errors"
	"math"

	"github.com/fieldside/shuttlerun/internal/pose"
)

// ErrNoFrames is returned when there are no samples to preprocess.
var ErrNoFrames = errors.New("kinematics: no pose samples")

// Config holds tuning for the preprocessor.
type Config struct {
	// MaxGapFrames is the longest run of missing foot keypoints that
	// interpolation may bridge. Frames inside longer gaps are marked
	// invalid rather than extrapolated.
	MaxGapFrames int
	// MinSpeedForDirection is the speed below which no direction vector
	// is emitted (zero vector instead of a unit vector from noise).
	MinSpeedForDirection float64
}

// DefaultConfig returns the preprocessor defaults.
func DefaultConfig() Config {
	return Config{
		MaxGapFrames:         10,
		MinSpeedForDirection: 0.1,
	}
}

// PoseFrame is one processed frame of the kinematic trace. Frames are
// created once by the preprocessor and never mutated afterwards.
type PoseFrame struct {
	FrameIdx     int
	TimestampS   float64
	Keypoints    pose.Keypoints
	FootCenterPx pose.Point2D
	FootCenterM  pose.Point2D
	SpeedMS      float64
	Direction    pose.Point2D // unit vector; zero when HasDirection is false
	HasDirection bool
	Valid        bool // false when foot position could not be recovered
	Interpolated bool // true when a foot keypoint was gap-filled
	Confidence   float64
}

// Preprocess builds the ordered kinematic trace from raw samples.
// Missing foot keypoints are linearly interpolated from the nearest valid
// frames on both sides, bounded by cfg.MaxGapFrames. The first valid
// frame has speed 0.
func Preprocess(samples []pose.Sample, pxToM float64, cfg Config) ([]PoseFrame, error) {
	if len(samples) == 0 {
		return nil, ErrNoFrames
	}
	if cfg.MaxGapFrames <= 0 {
		cfg = DefaultConfig()
	}

	frames := make([]PoseFrame, len(samples))
	for i, s := range samples {
		frames[i] = PoseFrame{
			FrameIdx:   s.FrameIdx,
			TimestampS: s.TimestampS,
			Keypoints:  s.Keypoints,
			Confidence: s.Keypoints.FootConfidence(),
		}
		if s.Detected && s.Keypoints.FeetValid() {
			frames[i].FootCenterPx = pose.Midpoint(s.Keypoints.LeftFoot.Point(), s.Keypoints.RightFoot.Point())
			frames[i].Valid = true
		}
	}

	fillGaps(frames, cfg.MaxGapFrames)

	// Metric conversion, then speed and direction from consecutive
	// valid positions.
	prev := -1
	for i := range frames {
		f := &frames[i]
		if !f.Valid {
			continue
		}
		f.FootCenterM = pose.Point2D{X: f.FootCenterPx.X * pxToM, Y: f.FootCenterPx.Y * pxToM}

		if prev >= 0 {
			dt := f.TimestampS - frames[prev].TimestampS
			if dt > 0 {
				dx := f.FootCenterM.X - frames[prev].FootCenterM.X
				dy := f.FootCenterM.Y - frames[prev].FootCenterM.Y
				dist := math.Sqrt(dx*dx + dy*dy)
				f.SpeedMS = dist / dt
				if f.SpeedMS > cfg.MinSpeedForDirection {
					f.Direction = pose.Point2D{X: dx / dist, Y: dy / dist}
					f.HasDirection = true
				}
			}
		}
		prev = i
	}

	return frames, nil
}

// fillGaps interpolates foot-center positions for invalid frames bounded
// by valid neighbors no more than maxGap frames apart.
func fillGaps(frames []PoseFrame, maxGap int) {
	n := len(frames)
	i := 0
	for i < n {
		if frames[i].Valid {
			i++
			continue
		}
		// Find the gap [i, j).
		j := i
		for j < n && !frames[j].Valid {
			j++
		}
		// Interior gaps only: need valid frames on both sides.
		if i > 0 && j < n && j-i <= maxGap {
			left := frames[i-1]
			right := frames[j]
			span := right.TimestampS - left.TimestampS
			for k := i; k < j; k++ {
				u := 0.5
				if span > 0 {
					u = (frames[k].TimestampS - left.TimestampS) / span
				}
				frames[k].FootCenterPx = pose.Point2D{
					X: left.FootCenterPx.X + (right.FootCenterPx.X-left.FootCenterPx.X)*u,
					Y: left.FootCenterPx.Y + (right.FootCenterPx.Y-left.FootCenterPx.Y)*u,
				}
				frames[k].Valid = true
				frames[k].Interpolated = true
			}
		}
		i = j
	}
}
