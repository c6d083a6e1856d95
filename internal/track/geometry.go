// Package track locates the two reference line markers per frame and
// smooths their position over time. It also owns the lane geometry the
// rest of the pipeline measures against.
package track

import (
	"math"

	"github.com/fieldside/shuttlerun/internal/pose"
)

// Line identifies one of the two reference lines.
type Line string

const (
	// LineA is the start/turn line the athlete begins behind.
	LineA Line = "A"
	// LineB is the far turn line.
	LineB Line = "B"
)

// Lane is the metric geometry of the running lane, built once from the
// calibrated marker positions. The reference lines run perpendicular to
// the lane axis through points A and B.
type Lane struct {
	A pose.Point2D // meters
	B pose.Point2D // meters
}

// NewLane converts the calibrated pixel marker positions to a metric lane.
func NewLane(aPx, bPx pose.Point2D, pxToM float64) Lane {
	return Lane{
		A: pose.Point2D{X: aPx.X * pxToM, Y: aPx.Y * pxToM},
		B: pose.Point2D{X: bPx.X * pxToM, Y: bPx.Y * pxToM},
	}
}

// LengthM returns the distance between the two lines in meters.
func (l Lane) LengthM() float64 {
	return pose.Distance(l.A, l.B)
}

// Axis returns the unit vector pointing from line A toward line B.
// A zero vector is returned for a degenerate lane.
func (l Lane) Axis() pose.Point2D {
	length := l.LengthM()
	if length < 1e-9 {
		return pose.Point2D{}
	}
	return pose.Point2D{X: (l.B.X - l.A.X) / length, Y: (l.B.Y - l.A.Y) / length}
}

// ForwardCoord projects p onto the lane axis. The result is 0 at line A
// and LengthM at line B.
func (l Lane) ForwardCoord(p pose.Point2D) float64 {
	axis := l.Axis()
	return (p.X-l.A.X)*axis.X + (p.Y-l.A.Y)*axis.Y
}

// LinePosition returns the forward coordinate of the given line.
func (l Lane) LinePosition(line Line) float64 {
	if line == LineB {
		return l.LengthM()
	}
	return 0
}

// DistanceToLine returns the distance along the run axis from p to the
// given reference line.
func (l Lane) DistanceToLine(line Line, p pose.Point2D) float64 {
	return math.Abs(l.ForwardCoord(p) - l.LinePosition(line))
}

// NearerLineDistance returns the distance from p to whichever reference
// line is closer.
func (l Lane) NearerLineDistance(p pose.Point2D) float64 {
	da := l.DistanceToLine(LineA, p)
	db := l.DistanceToLine(LineB, p)
	if db < da {
		return db
	}
	return da
}

// LateralOffset returns the perpendicular distance from p to the lane
// center line (the line through A and B).
func (l Lane) LateralOffset(p pose.Point2D) float64 {
	axis := l.Axis()
	// Perpendicular component of (p - A).
	dx := p.X - l.A.X
	dy := p.Y - l.A.Y
	return math.Abs(dx*axis.Y - dy*axis.X)
}
