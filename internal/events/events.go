// Package events detects the start of the run and the line-touch events
// from the kinematic trace and lane geometry.
package events

import (
	"github.com/fieldside/shuttlerun/internal/kinematics"
	"github.com/fieldside/shuttlerun/internal/track"
)

// Foot identifies which foot produced a touch.
type Foot string

const (
	FootLeft   Foot = "left"
	FootRight  Foot = "right"
	FootCenter Foot = "center"
)

// Thresholds holds the event detection tuning.
type Thresholds struct {
	// StartSpeedMS is the speed above which the run is considered started.
	StartSpeedMS float64
	// TouchDistanceM is the proximity to a line that registers a touch.
	TouchDistanceM float64
	// DedupeWindowS suppresses touch candidates this close in time to a
	// previously accepted touch.
	DedupeWindowS float64
}

// DefaultThresholds returns the standard 4x10m shuttle-run thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		StartSpeedMS:   1.2,
		TouchDistanceM: 0.3,
		DedupeWindowS:  1.5,
	}
}

// TouchEvent is a detected foot-to-line proximity or crossing.
// Any two accepted touches are at least DedupeWindowS apart; the
// deduplication happens at creation time, not in a later filter.
type TouchEvent struct {
	TimeS           float64    `json:"time_s"`
	FrameIdx        int        `json:"frame_idx"`
	Foot            Foot       `json:"foot"`
	Line            track.Line `json:"line"`
	DistanceToLineM float64    `json:"distance_to_line_m"`
	Confidence      float64    `json:"confidence"`
}

// StartEvent marks the detected start of the run.
type StartEvent struct {
	TimeS    float64 `json:"time_s"`
	FrameIdx int     `json:"frame_idx"`
	// FromAudio is true when the time came from an external "GO" signal
	// rather than the kinematic scan.
	FromAudio bool `json:"from_audio"`
}

// DetectStart scans the trace for the first frame moving faster than the
// start threshold in the expected forward direction (from line A toward
// line B). A caller-supplied audio "GO" timestamp is authoritative and
// overrides the computed time. Returns nil when no start is found.
func DetectStart(frames []kinematics.PoseFrame, lane track.Lane, th Thresholds, audioGoS *float64) *StartEvent {
	if audioGoS != nil {
		ev := &StartEvent{TimeS: *audioGoS, FromAudio: true}
		// Attach the nearest frame index for evidence.
		for _, f := range frames {
			if f.TimestampS >= *audioGoS {
				ev.FrameIdx = f.FrameIdx
				break
			}
		}
		return ev
	}

	axis := lane.Axis()
	for _, f := range frames {
		if !f.Valid || !f.HasDirection {
			continue
		}
		if f.SpeedMS <= th.StartSpeedMS {
			continue
		}
		forward := f.Direction.X*axis.X + f.Direction.Y*axis.Y
		if forward > 0 {
			return &StartEvent{TimeS: f.TimestampS, FrameIdx: f.FrameIdx}
		}
	}
	return nil
}

// DetectTouches scans the trace for line touches. A touch registers when
// the foot center comes within TouchDistanceM of a line, or when it
// crosses the line's position between consecutive frames (sub-frame
// crossing). A candidate within the dedupe window of a previously
// accepted touch on any line is dropped, first-detected wins.
func DetectTouches(frames []kinematics.PoseFrame, lane track.Lane, th Thresholds) []TouchEvent {
	var (
		touches  []TouchEvent
		lastTime = -1e9
		prevFwd  float64
		havePrev bool
	)

	accept := func(ev TouchEvent) {
		if ev.TimeS-lastTime < th.DedupeWindowS {
			return
		}
		touches = append(touches, ev)
		lastTime = ev.TimeS
	}

	for _, f := range frames {
		if !f.Valid {
			havePrev = false
			continue
		}
		fwd := lane.ForwardCoord(f.FootCenterM)

		for _, line := range []track.Line{track.LineA, track.LineB} {
			dist := lane.DistanceToLine(line, f.FootCenterM)
			crossed := false
			if havePrev {
				pos := lane.LinePosition(line)
				if (prevFwd-pos)*(fwd-pos) < 0 {
					crossed = true
				}
			}
			if dist <= th.TouchDistanceM || crossed {
				accept(TouchEvent{
					TimeS:           f.TimestampS,
					FrameIdx:        f.FrameIdx,
					Foot:            closerFoot(f),
					Line:            line,
					DistanceToLineM: dist,
					Confidence:      touchConfidence(f, dist, th.TouchDistanceM),
				})
			}
		}

		prevFwd = fwd
		havePrev = true
	}
	return touches
}

// closerFoot picks the foot nearer the lane plane, falling back to the
// center when either keypoint is missing or interpolated.
func closerFoot(f kinematics.PoseFrame) Foot {
	if f.Interpolated || f.Keypoints.LeftFoot.Missing() || f.Keypoints.RightFoot.Missing() {
		return FootCenter
	}
	if f.Keypoints.LeftFoot.Y > f.Keypoints.RightFoot.Y {
		return FootLeft
	}
	return FootRight
}

// touchConfidence derives the event confidence from keypoint confidence
// and proximity to the line.
func touchConfidence(f kinematics.PoseFrame, dist, threshold float64) float64 {
	conf := f.Confidence
	if conf <= 0 {
		conf = 0.5
	}
	if dist < threshold {
		// Closer touches are more certain; scale up to the keypoint cap.
		proximity := 1.0 - dist/(2*threshold)
		conf *= 0.5 + 0.5*proximity
	}
	if f.Interpolated {
		conf *= 0.8
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}
