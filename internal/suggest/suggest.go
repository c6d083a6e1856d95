// Package suggest turns run metrics and fouls into training advice.
package suggest

import (
	"gonum.org/v1/gonum/stat"

	"github.com/fieldside/shuttlerun/internal/fouls"
)

// Type labels the training area a suggestion addresses.
type Type string

const (
	TurnEfficiency Type = "turn_efficiency"
	LaneControl    Type = "lane_control"
	Acceleration   Type = "acceleration"
	Pacing         Type = "pacing"
)

// Suggestion is one piece of training advice.
type Suggestion struct {
	Type   Type   `json:"type"`
	Advice string `json:"advice"`
}

// Metrics carries the signals the rules fire on.
type Metrics struct {
	// SegmentVariance is the variance of the four leg durations, s^2.
	SegmentVariance float64
	// AvgTurnTimeS is the mean time spent below the turn speed
	// threshold around each reversal.
	AvgTurnTimeS float64
	// MaxSpeedMS is the top speed reached during the run.
	MaxSpeedMS float64
	// FoulTypes are the foul kinds detected by the rule validator.
	FoulTypes []fouls.Type
}

// Rule thresholds.
const (
	slowTurnS       = 0.8
	lowTopSpeedMS   = 5.0
	unevenVarianceS = 0.1
)

// For returns the suggestions for one run. The rules are evaluated in a
// fixed order and each area fires at most once, so identical inputs
// always produce the identical list.
func For(m Metrics) []Suggestion {
	has := make(map[fouls.Type]bool, len(m.FoulTypes))
	for _, t := range m.FoulTypes {
		has[t] = true
	}

	var out []Suggestion
	if m.AvgTurnTimeS > slowTurnS || has[fouls.EarlyTurn] {
		out = append(out, Suggestion{
			Type:   TurnEfficiency,
			Advice: "Practice 180° quick-turn drills; focus on faster decel + re-accel",
		})
	}
	if has[fouls.LaneDeviation] || has[fouls.DiagonalRunning] {
		out = append(out, Suggestion{
			Type:   LaneControl,
			Advice: "Use cone drills to reduce lateral drift; keep body lean low through the turn",
		})
	}
	if (m.MaxSpeedMS > 0 && m.MaxSpeedMS < lowTopSpeedMS) || has[fouls.FalseStart] {
		out = append(out, Suggestion{
			Type:   Acceleration,
			Advice: "Work on explosive starts; practice sprint technique with resistance bands",
		})
	}
	if m.SegmentVariance > unevenVarianceS {
		out = append(out, Suggestion{
			Type:   Pacing,
			Advice: "Even out leg times; avoid spending everything on the first two legs",
		})
	}
	return out
}

// SegmentVariance computes the population variance of the leg durations.
func SegmentVariance(segments []float64) float64 {
	if len(segments) == 0 {
		return 0
	}
	return stat.PopVariance(segments, nil)
}
