// Package report assembles the final analysis report returned to the
// client. All times and scores render with exactly two decimals.
package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldside/shuttlerun/internal/calib"
	"github.com/fieldside/shuttlerun/internal/events"
	"github.com/fieldside/shuttlerun/internal/fouls"
	"github.com/fieldside/shuttlerun/internal/integrity"
	"github.com/fieldside/shuttlerun/internal/run"
	"github.com/fieldside/shuttlerun/internal/scoring"
	"github.com/fieldside/shuttlerun/internal/suggest"
)

// ErrInvalidAthlete marks athlete validation failures.
var ErrInvalidAthlete = errors.New("invalid athlete")

// Seconds renders as a JSON number with two decimals.
type Seconds float64

// MarshalJSON implements json.Marshaler.
func (s Seconds) MarshalJSON() ([]byte, error) {
	return formatFixed(float64(s)), nil
}

// Points renders a score as a JSON number with two decimals.
type Points float64

// MarshalJSON implements json.Marshaler.
func (p Points) MarshalJSON() ([]byte, error) {
	return formatFixed(float64(p)), nil
}

func formatFixed(v float64) []byte {
	// NaN and Inf are not valid JSON numbers.
	if v != v || v > 1e15 || v < -1e15 {
		v = 0
	}
	return []byte(strconv.FormatFloat(v, 'f', 2, 64))
}

// Athlete is the subject of the analysis.
type Athlete struct {
	Name     string  `json:"name"`
	Age      int     `json:"age"`
	Gender   string  `json:"gender"`
	HeightCM float64 `json:"height_cm,omitempty"`
	WeightKG float64 `json:"weight_kg,omitempty"`
}

// Validate checks the athlete fields. The gender accepts the canonical
// "M"/"F" plus "other"; ages outside 4-100 are rejected.
func (a Athlete) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidAthlete)
	}
	if a.Age < 4 || a.Age > 100 {
		return fmt.Errorf("%w: age %d out of range [4,100]", ErrInvalidAthlete, a.Age)
	}
	switch a.Gender {
	case "M", "F", "other":
	default:
		return fmt.Errorf("%w: gender %q (want M, F or other)", ErrInvalidAthlete, a.Gender)
	}
	if a.HeightCM < 0 {
		return fmt.Errorf("%w: negative height", ErrInvalidAthlete)
	}
	if a.WeightKG < 0 {
		return fmt.Errorf("%w: negative weight", ErrInvalidAthlete)
	}
	return nil
}

// VideoInfo describes the analyzed clip.
type VideoInfo struct {
	Filename  string  `json:"filename"`
	FPS       float64 `json:"fps"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	DurationS Seconds `json:"duration_s"`
}

// PreflightInfo records the quality-gate verdict for the clip.
type PreflightInfo struct {
	Valid          bool     `json:"valid"`
	LinesVisible   bool     `json:"lines_visible"`
	CameraStable   bool     `json:"camera_stable"`
	AthleteInFrame bool     `json:"athlete_in_frame"`
	FPS            float64  `json:"fps"`
	Resolution     string   `json:"resolution"`
	Comments       []string `json:"comments,omitempty"`
}

// Event is one timeline entry of the run.
type Event struct {
	Name  string         `json:"name"`
	TimeS Seconds        `json:"time_s"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// FoulEntry is a foul as rendered in the report.
type FoulEntry struct {
	Type        fouls.Type `json:"type"`
	TimeS       Seconds    `json:"time_s"`
	Confidence  Points     `json:"confidence"`
	Explanation string     `json:"explanation"`
}

// Keyframe points a reviewer at one moment of the video.
type Keyframe struct {
	FrameIdx int     `json:"frame_idx"`
	TimeS    Seconds `json:"time_s"`
	Label    string  `json:"label"`
}

// EvidenceRef ties a verdict to the frames that justify it.
type EvidenceRef struct {
	Kind   string `json:"kind"`
	Label  string `json:"label"`
	Frames []int  `json:"frames"`
}

// VisualDebug collects the review material: keyframes of the run and an
// evidence pointer for every foul and cheat reason.
type VisualDebug struct {
	Keyframes []Keyframe    `json:"keyframe_images"`
	Evidence  []EvidenceRef `json:"evidence,omitempty"`
}

// Report is the complete analysis output. It serializes flat: the run,
// cheat and score outcomes sit at the top level of the JSON document.
type Report struct {
	SessionID   string        `json:"session_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Athlete     Athlete       `json:"athlete"`
	VideoMeta   VideoInfo     `json:"video_meta"`
	Preflight   PreflightInfo `json:"preflight"`
	Calibration calib.Result  `json:"calibration"`

	Completed   bool     `json:"completed"`
	RunState    string   `json:"run_state"`
	MissingLegs []string `json:"missing_legs,omitempty"`

	Events          []Event            `json:"events"`
	Segments        map[string]Seconds `json:"segments"`
	TotalTimeS      *Seconds           `json:"total_time_s"`
	TouchesDetected int                `json:"touches_detected"`

	Fouls []FoulEntry `json:"fouls"`

	CheatDetected   bool               `json:"cheat_detected"`
	CheatReasons    []integrity.Reason `json:"cheat_reasons"`
	CheatConfidence Points             `json:"cheat_confidence"`
	CheatDetails    []string           `json:"cheat_details,omitempty"`

	AgeGroup     string             `json:"age_group,omitempty"`
	Rating       scoring.Rating     `json:"rating,omitempty"`
	AgilityScore *Points            `json:"agility_score,omitempty"`
	Benchmark    *scoring.Benchmark `json:"benchmark,omitempty"`

	Confidence  Points               `json:"confidence"`
	Suggestions []suggest.Suggestion `json:"suggestions"`
	VisualDebug VisualDebug          `json:"visual_debug"`
	Warnings    []string             `json:"warnings,omitempty"`
}

// Input gathers the pipeline outputs the report is assembled from.
type Input struct {
	Athlete     Athlete
	Video       VideoInfo
	Preflight   PreflightInfo
	Calibration calib.Result
	Start       *events.StartEvent
	Touches     []events.TouchEvent
	Run         run.Summary
	Fouls       []fouls.Foul
	Integrity   integrity.Result
	Score       *scoring.Score
	Suggestions []suggest.Suggestion
	Confidence  float64
	Warnings    []string
}

// Assemble builds the report. The session id is a fresh UUID; completed
// runs always carry at least three keyframes, and every foul and cheat
// finding contributes one evidence pointer.
func Assemble(in Input) *Report {
	r := &Report{
		SessionID:       uuid.NewString(),
		GeneratedAt:     time.Now().UTC(),
		Athlete:         in.Athlete,
		VideoMeta:       in.Video,
		Preflight:       in.Preflight,
		Calibration:     in.Calibration,
		Completed:       in.Run.Finished,
		RunState:        in.Run.State.String(),
		MissingLegs:     in.Run.MissingLegs,
		Events:          timeline(in.Start, in.Touches),
		TouchesDetected: in.Run.Touches,
		Fouls:           foulEntries(in.Fouls),
		CheatDetected:   in.Integrity.CheatDetected,
		CheatReasons:    cheatReasons(in.Integrity),
		CheatConfidence: Points(in.Integrity.Confidence),
		Suggestions:     in.Suggestions,
		VisualDebug:     visualDebug(in),
		Confidence:      Points(in.Confidence),
		Warnings:        in.Warnings,
	}
	for _, f := range in.Integrity.Findings {
		r.CheatDetails = append(r.CheatDetails, f.Detail)
	}
	if in.Run.Finished {
		total := Seconds(in.Run.TotalTimeS)
		r.TotalTimeS = &total
		r.Segments = map[string]Seconds{
			"A_to_B_1": Seconds(in.Run.Segments.AToB1),
			"B_to_A_2": Seconds(in.Run.Segments.BToA2),
			"A_to_B_3": Seconds(in.Run.Segments.AToB3),
			"B_to_A_4": Seconds(in.Run.Segments.BToA4),
		}
	}
	if in.Score != nil {
		r.AgeGroup = in.Score.AgeGroup
		r.Rating = in.Score.Rating
		score := Points(in.Score.AgilityScore)
		r.AgilityScore = &score
		bench := in.Score.Benchmark
		r.Benchmark = &bench
	}
	if r.Suggestions == nil {
		r.Suggestions = []suggest.Suggestion{}
	}
	return r
}

// cheatReasons renders as an empty array, not null, when the clip is clean.
func cheatReasons(res integrity.Result) []integrity.Reason {
	if reasons := res.Reasons(); reasons != nil {
		return reasons
	}
	return []integrity.Reason{}
}

func timeline(start *events.StartEvent, touches []events.TouchEvent) []Event {
	out := make([]Event, 0, len(touches)+1)
	if start != nil {
		out = append(out, Event{
			Name:  "start",
			TimeS: Seconds(start.TimeS),
			Meta:  map[string]any{"frame_idx": start.FrameIdx, "from_audio": start.FromAudio},
		})
	}
	for _, t := range touches {
		out = append(out, Event{
			Name:  "touch",
			TimeS: Seconds(t.TimeS),
			Meta: map[string]any{
				"frame_idx": t.FrameIdx,
				"line":      string(t.Line),
				"foot":      string(t.Foot),
			},
		})
	}
	return out
}

func foulEntries(fs []fouls.Foul) []FoulEntry {
	out := make([]FoulEntry, 0, len(fs))
	for _, f := range fs {
		out = append(out, FoulEntry{
			Type:        f.Type,
			TimeS:       Seconds(f.TimeS),
			Confidence:  Points(f.Confidence),
			Explanation: f.Explanation,
		})
	}
	return out
}

func visualDebug(in Input) VisualDebug {
	var vd VisualDebug

	if in.Start != nil {
		vd.Keyframes = append(vd.Keyframes, Keyframe{
			FrameIdx: in.Start.FrameIdx,
			TimeS:    Seconds(in.Start.TimeS),
			Label:    "start",
		})
	}
	for i, t := range in.Touches {
		vd.Keyframes = append(vd.Keyframes, Keyframe{
			FrameIdx: t.FrameIdx,
			TimeS:    Seconds(t.TimeS),
			Label:    fmt.Sprintf("touch %d (line %s)", i+1, t.Line),
		})
	}
	// A completed run with no events would leave a reviewer nothing to
	// look at; anchor at least the midpoint of the clip.
	if in.Run.Finished && len(vd.Keyframes) < 3 {
		mid := float64(in.Video.DurationS) / 2
		vd.Keyframes = append(vd.Keyframes, Keyframe{TimeS: Seconds(mid), Label: "mid-run"})
	}

	for _, f := range in.Fouls {
		vd.Evidence = append(vd.Evidence, EvidenceRef{
			Kind:   "foul",
			Label:  string(f.Type),
			Frames: f.EvidenceFrames,
		})
	}
	for _, f := range in.Integrity.Findings {
		vd.Evidence = append(vd.Evidence, EvidenceRef{
			Kind:   "cheat",
			Label:  string(f.Reason),
			Frames: f.EvidenceFrames,
		})
	}
	return vd
}
