package kinematics

import "github.com/fieldside/shuttlerun/internal/pose"

// Reversal is a direction reversal of the athlete along the primary axis.
type Reversal struct {
	FrameIdx int
	TimeS    float64
	Position pose.Point2D // meters
}

// TurnSpeedThreshold is the speed below which the athlete is considered
// to be in a turn when measuring turn durations.
const TurnSpeedThreshold = 1.0

// MaxSpeed returns the maximum speed over the valid frames of the trace.
func MaxSpeed(frames []PoseFrame) float64 {
	var maxS float64
	for _, f := range frames {
		if f.Valid && f.SpeedMS > maxS {
			maxS = f.SpeedMS
		}
	}
	return maxS
}

// PathLength integrates the total distance traveled by the foot center
// across the whole trace, in meters.
func PathLength(frames []PoseFrame) float64 {
	var total float64
	prev := -1
	for i, f := range frames {
		if !f.Valid {
			continue
		}
		if prev >= 0 {
			total += pose.Distance(frames[prev].FootCenterM, f.FootCenterM)
		}
		prev = i
	}
	return total
}

// Reversals scans the trace for sign changes of the velocity component
// along the given axis unit vector and returns the reversal points.
func Reversals(frames []PoseFrame, axis pose.Point2D) []Reversal {
	var out []Reversal
	prevSign := 0
	for _, f := range frames {
		if !f.Valid || !f.HasDirection {
			continue
		}
		proj := f.Direction.X*axis.X + f.Direction.Y*axis.Y
		sign := 0
		if proj > 0.2 {
			sign = 1
		} else if proj < -0.2 {
			sign = -1
		}
		if sign == 0 {
			continue
		}
		if prevSign != 0 && sign != prevSign {
			out = append(out, Reversal{FrameIdx: f.FrameIdx, TimeS: f.TimestampS, Position: f.FootCenterM})
		}
		prevSign = sign
	}
	return out
}

// AverageTurnTime measures how long the athlete stays below the turn
// speed threshold around each reversal and returns the mean duration.
// Returns 0 when no reversals are present.
func AverageTurnTime(frames []PoseFrame, axis pose.Point2D) float64 {
	reversals := Reversals(frames, axis)
	if len(reversals) == 0 {
		return 0
	}

	// Index frames by FrameIdx for window scans.
	byIdx := make(map[int]int, len(frames))
	for i, f := range frames {
		byIdx[f.FrameIdx] = i
	}

	var total float64
	for _, r := range reversals {
		center, ok := byIdx[r.FrameIdx]
		if !ok {
			continue
		}
		// Walk outward while speed stays below the threshold.
		start, end := center, center
		for start > 0 && frames[start-1].Valid && frames[start-1].SpeedMS < TurnSpeedThreshold {
			start--
		}
		for end < len(frames)-1 && frames[end+1].Valid && frames[end+1].SpeedMS < TurnSpeedThreshold {
			end++
		}
		total += frames[end].TimestampS - frames[start].TimestampS
	}
	return total / float64(len(reversals))
}

// SpeedSeries extracts the per-frame speed values of valid frames,
// used by the integrity checks as a motion signature.
func SpeedSeries(frames []PoseFrame) []float64 {
	out := make([]float64, 0, len(frames))
	for _, f := range frames {
		if f.Valid {
			out = append(out, f.SpeedMS)
		}
	}
	return out
}

// DisplacementsPx returns the pixel displacement of the foot center
// between consecutive valid frames.
func DisplacementsPx(frames []PoseFrame) []float64 {
	out := make([]float64, 0, len(frames))
	prev := -1
	for i, f := range frames {
		if !f.Valid {
			continue
		}
		if prev >= 0 {
			out = append(out, pose.Distance(frames[prev].FootCenterPx, f.FootCenterPx))
		}
		prev = i
	}
	return out
}
