// Package fouls evaluates the five rule violations of the 4x10m shuttle
// run. The detectors are independent: none depends on another's result
// and multiple fouls may co-occur.
package fouls

import (
	"fmt"
	"sort"

	"github.com/fieldside/shuttlerun/internal/events"
	"github.com/fieldside/shuttlerun/internal/kinematics"
	"github.com/fieldside/shuttlerun/internal/run"
	"github.com/fieldside/shuttlerun/internal/track"
)

// Type is a closed enum of the foul kinds.
type Type string

const (
	EarlyTurn       Type = "early_turn"
	LaneDeviation   Type = "lane_deviation"
	DiagonalRunning Type = "diagonal_running"
	MissingTouches  Type = "missing_touches"
	FalseStart      Type = "false_start"
)

// Foul is one detected rule violation with its measured evidence.
type Foul struct {
	Type           Type    `json:"type"`
	TimeS          float64 `json:"time_s"`
	Confidence     float64 `json:"confidence"`
	Explanation    string  `json:"explanation"`
	EvidenceFrames []int   `json:"evidence_frames"`
}

// Config holds the rule thresholds.
type Config struct {
	// EarlyTurnDistanceM is how far from the nearer line a reversal may
	// happen before it counts as an early turn.
	EarlyTurnDistanceM float64
	// LaneDeviationM is the maximum allowed lateral offset from the
	// lane center line.
	LaneDeviationM float64
	// ExpectedPathM is the nominal total path length (4 x 10m).
	ExpectedPathM float64
	// PathShortfallRatio is the fraction of the expected path below
	// which diagonal running is flagged.
	PathShortfallRatio float64
	// FalseStartDistanceM is the forward displacement before the start
	// that counts as a false start.
	FalseStartDistanceM float64
}

// DefaultConfig returns the standard shuttle-run rule thresholds.
func DefaultConfig() Config {
	return Config{
		EarlyTurnDistanceM:  1.5,
		LaneDeviationM:      1.0,
		ExpectedPathM:       40.0,
		PathShortfallRatio:  0.95,
		FalseStartDistanceM: 0.3,
	}
}

// Validator evaluates the foul rules over one run's kinematic trace.
type Validator struct {
	cfg Config
}

// NewValidator creates a Validator with the given thresholds.
func NewValidator(cfg Config) *Validator {
	if cfg.ExpectedPathM <= 0 {
		cfg = DefaultConfig()
	}
	return &Validator{cfg: cfg}
}

// Detect runs all five detectors and returns the fouls sorted by time.
// The detectors are order-independent; sorting is only for stable output.
func (v *Validator) Detect(frames []kinematics.PoseFrame, lane track.Lane, touches []events.TouchEvent, summary run.Summary) []Foul {
	var fouls []Foul
	fouls = append(fouls, v.earlyTurns(frames, lane)...)
	if f := v.laneDeviation(frames, lane); f != nil {
		fouls = append(fouls, *f)
	}
	if f := v.diagonalRunning(frames); f != nil {
		fouls = append(fouls, *f)
	}
	if f := v.missingTouches(frames, touches, summary); f != nil {
		fouls = append(fouls, *f)
	}
	if f := v.falseStart(frames, lane, summary); f != nil {
		fouls = append(fouls, *f)
	}

	sort.SliceStable(fouls, func(i, j int) bool { return fouls[i].TimeS < fouls[j].TimeS })
	return fouls
}

// earlyTurns flags direction reversals that happen too far from either
// line. Confidence scales linearly with the overshoot, capped at 1.0.
func (v *Validator) earlyTurns(frames []kinematics.PoseFrame, lane track.Lane) []Foul {
	var fouls []Foul
	for _, r := range kinematics.Reversals(frames, lane.Axis()) {
		dist := lane.NearerLineDistance(r.Position)
		if dist <= v.cfg.EarlyTurnDistanceM {
			continue
		}
		over := dist - v.cfg.EarlyTurnDistanceM
		conf := 0.5 + over/v.cfg.EarlyTurnDistanceM
		if conf > 1 {
			conf = 1
		}
		fouls = append(fouls, Foul{
			Type:           EarlyTurn,
			TimeS:          r.TimeS,
			Confidence:     conf,
			Explanation:    fmt.Sprintf("turned %.2fm from the nearer line, limit is %.2fm", dist, v.cfg.EarlyTurnDistanceM),
			EvidenceFrames: []int{r.FrameIdx},
		})
	}
	return fouls
}

// laneDeviation tracks the running maximum lateral offset and emits one
// foul carrying that maximum when it exceeds the limit.
func (v *Validator) laneDeviation(frames []kinematics.PoseFrame, lane track.Lane) *Foul {
	var (
		maxOffset float64
		maxFrame  int
		maxTime   float64
	)
	for _, f := range frames {
		if !f.Valid {
			continue
		}
		off := lane.LateralOffset(f.FootCenterM)
		if off > maxOffset {
			maxOffset = off
			maxFrame = f.FrameIdx
			maxTime = f.TimestampS
		}
	}
	if maxOffset <= v.cfg.LaneDeviationM {
		return nil
	}
	conf := maxOffset / (2 * v.cfg.LaneDeviationM)
	if conf > 1 {
		conf = 1
	}
	return &Foul{
		Type:           LaneDeviation,
		TimeS:          maxTime,
		Confidence:     conf,
		Explanation:    fmt.Sprintf("maximum lateral offset %.2fm exceeds the %.2fm lane limit", maxOffset, v.cfg.LaneDeviationM),
		EvidenceFrames: []int{maxFrame},
	}
}

// diagonalRunning integrates the foot-center path length; a run well
// short of the nominal 40m means the athlete cut the corners.
func (v *Validator) diagonalRunning(frames []kinematics.PoseFrame) *Foul {
	actual := kinematics.PathLength(frames)
	limit := v.cfg.PathShortfallRatio * v.cfg.ExpectedPathM
	if actual >= limit {
		return nil
	}
	evidence := midRunEvidence(frames)
	shortfall := (limit - actual) / limit
	conf := 0.5 + shortfall*2
	if conf > 1 {
		conf = 1
	}
	return &Foul{
		Type:           DiagonalRunning,
		TimeS:          evidenceTime(frames, evidence),
		Confidence:     conf,
		Explanation:    fmt.Sprintf("total path length %.2fm is below the %.2fm minimum for a %.0fm course", actual, limit, v.cfg.ExpectedPathM),
		EvidenceFrames: evidence,
	}
}

// missingTouches fires when the state machine consumed fewer than four
// transitions, naming the legs that never completed. The detected touch
// events are the evidence: they include touches the machine ignored, so
// a reviewer can see what was found against what was expected.
func (v *Validator) missingTouches(frames []kinematics.PoseFrame, touches []events.TouchEvent, summary run.Summary) *Foul {
	if summary.Touches >= 4 {
		return nil
	}
	var evidence []int
	for _, t := range touches {
		evidence = append(evidence, t.FrameIdx)
	}
	if len(evidence) == 0 {
		evidence = summary.TouchFrames
	}
	if len(evidence) == 0 {
		evidence = midRunEvidence(frames)
	}
	return &Foul{
		Type:           MissingTouches,
		TimeS:          summary.StartTimeS,
		Confidence:     1.0,
		Explanation:    fmt.Sprintf("only %d of 4 touches detected; missing: %v", summary.Touches, summary.MissingLegs),
		EvidenceFrames: evidence,
	}
}

// falseStart flags forward displacement beyond the limit before the
// recorded start time.
func (v *Validator) falseStart(frames []kinematics.PoseFrame, lane track.Lane, summary run.Summary) *Foul {
	if !summary.Started {
		return nil
	}

	var (
		baseline   float64
		haveBase   bool
		maxAdvance float64
		advFrame   int
		advTime    float64
	)
	for _, f := range frames {
		if !f.Valid {
			continue
		}
		if f.TimestampS >= summary.StartTimeS {
			break
		}
		fwd := lane.ForwardCoord(f.FootCenterM)
		if !haveBase {
			baseline = fwd
			haveBase = true
			continue
		}
		if adv := fwd - baseline; adv > maxAdvance {
			maxAdvance = adv
			advFrame = f.FrameIdx
			advTime = f.TimestampS
		}
	}
	if maxAdvance <= v.cfg.FalseStartDistanceM {
		return nil
	}
	conf := maxAdvance / (2 * v.cfg.FalseStartDistanceM)
	if conf > 1 {
		conf = 1
	}
	return &Foul{
		Type:           FalseStart,
		TimeS:          advTime,
		Confidence:     conf,
		Explanation:    fmt.Sprintf("moved %.2fm forward before the start signal, limit is %.2fm", maxAdvance, v.cfg.FalseStartDistanceM),
		EvidenceFrames: []int{advFrame},
	}
}

// midRunEvidence returns a fallback evidence frame from the middle of
// the trace when a detector has no sharper pointer.
func midRunEvidence(frames []kinematics.PoseFrame) []int {
	for i := len(frames) / 2; i < len(frames); i++ {
		if frames[i].Valid {
			return []int{frames[i].FrameIdx}
		}
	}
	if len(frames) > 0 {
		return []int{frames[0].FrameIdx}
	}
	return []int{0}
}

func evidenceTime(frames []kinematics.PoseFrame, evidence []int) float64 {
	if len(evidence) == 0 {
		return 0
	}
	for _, f := range frames {
		if f.FrameIdx == evidence[0] {
			return f.TimestampS
		}
	}
	return 0
}
