// Package analysis orchestrates the full pipeline for one clip:
// calibration, preprocessing, event detection, the run state machine,
// rule validation, integrity checks, scoring and report assembly.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fieldside/shuttlerun/internal/calib"
	"github.com/fieldside/shuttlerun/internal/events"
	"github.com/fieldside/shuttlerun/internal/fouls"
	"github.com/fieldside/shuttlerun/internal/integrity"
	"github.com/fieldside/shuttlerun/internal/kinematics"
	"github.com/fieldside/shuttlerun/internal/pose"
	"github.com/fieldside/shuttlerun/internal/report"
	"github.com/fieldside/shuttlerun/internal/run"
	"github.com/fieldside/shuttlerun/internal/scoring"
	"github.com/fieldside/shuttlerun/internal/suggest"
	"github.com/fieldside/shuttlerun/internal/track"
	"github.com/fieldside/shuttlerun/internal/video"
)

// ErrInput marks problems with the submission itself (athlete data,
// unusable markers) as opposed to pipeline failures.
var ErrInput = errors.New("invalid input")

// Options tunes one analysis run.
type Options struct {
	// KnownDistanceM is the real distance between the lines; zero means
	// the standard 10m course.
	KnownDistanceM float64
	// AudioGoS is the timestamp of an external "GO" signal. When set it
	// overrides the computed start time.
	AudioGoS *float64
}

// Input is everything the pipeline consumes, already extracted from the
// clip.
type Input struct {
	Athlete      report.Athlete
	Meta         video.Meta
	Stats        video.ContentStats
	Samples      []pose.Sample
	Observations []track.Observation
	TimestampsS  []float64
	Hashes       []integrity.HashSample
	RatioSamples []integrity.RatioSample
	Options      Options
}

// FromExtraction builds an Input from the video extraction output.
func FromExtraction(ext *video.Extraction, athlete report.Athlete, opts Options) Input {
	return Input{
		Athlete:      athlete,
		Meta:         ext.Meta,
		Stats:        ext.Stats,
		Samples:      ext.Samples,
		Observations: ext.Observations,
		TimestampsS:  ext.TimestampsS,
		Hashes:       ext.Hashes,
		RatioSamples: ext.RatioSamples,
		Options:      opts,
	}
}

// Analyzer runs the pipeline. It is stateless across runs and safe for
// concurrent use; per-run state lives on the stack of Analyze.
type Analyzer struct {
	benchmarks scoring.BenchmarkSource
	thresholds events.Thresholds
	kinCfg     kinematics.Config
	foulCfg    fouls.Config
	integCfg   integrity.Config
}

// NewAnalyzer creates an Analyzer resolving benchmarks from the given
// source.
func NewAnalyzer(benchmarks scoring.BenchmarkSource) *Analyzer {
	return &Analyzer{
		benchmarks: benchmarks,
		thresholds: events.DefaultThresholds(),
		kinCfg:     kinematics.DefaultConfig(),
		foulCfg:    fouls.DefaultConfig(),
		integCfg:   integrity.DefaultConfig(),
	}
}

// Analyze runs the full pipeline over one input. Degraded inputs lower
// the report confidence instead of failing; only unusable input aborts.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (*report.Report, error) {
	if err := in.Athlete.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInput, err)
	}

	// 1. Calibration from the smoothed marker observations.
	calRes, err := calib.Calibrate(calibSamples(in.Observations), in.Options.KnownDistanceM)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInput, err)
	}
	lane := track.NewLane(calRes.LineAPx, calRes.LineBPx, calRes.PxToM)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. Kinematic trace.
	frames, err := kinematics.Preprocess(in.Samples, calRes.PxToM, a.kinCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInput, err)
	}

	// 3. Events and the state machine.
	start := events.DetectStart(frames, lane, a.thresholds, in.Options.AudioGoS)
	touches := events.DetectTouches(frames, lane, a.thresholds)

	machine := run.NewMachine()
	if start != nil {
		machine.Start(start.TimeS)
	}
	for _, ev := range touches {
		machine.Consume(ev)
	}
	summary := machine.Summary()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 4. Rule validation and integrity run independently.
	var (
		wg       sync.WaitGroup
		foulList []fouls.Foul
		integRes integrity.Result
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		foulList = fouls.NewValidator(a.foulCfg).Detect(frames, lane, touches, summary)
	}()
	go func() {
		defer wg.Done()
		integRes = integrity.NewChecker(a.integCfg).Evaluate(integrity.Signals{
			TimestampsS:     in.TimestampsS,
			DeclaredFPS:     in.Meta.FPS,
			DisplacementsPx: kinematics.DisplacementsPx(frames),
			RatioSamples:    in.RatioSamples,
			Hashes:          in.Hashes,
			SpeedSeries:     kinematics.SpeedSeries(frames),
		})
	}()
	wg.Wait()

	// 5. Scoring, only for completed runs with a benchmarkable athlete.
	// A missing benchmark row is a hard failure: the wrapped error from
	// scoring.Evaluate cites the age group and gender.
	var (
		score    *scoring.Score
		warnings []string
	)
	avgTurn := kinematics.AverageTurnTime(frames, lane.Axis())
	maxSpeed := kinematics.MaxSpeed(frames)
	if summary.Finished {
		gender, ok := scoring.NormalizeGender(in.Athlete.Gender)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("no benchmarks for gender %q; rating skipped", in.Athlete.Gender))
		} else {
			s, err := scoring.Evaluate(in.Athlete.Age, gender, scoring.Input{
				TotalTimeS:   summary.TotalTimeS,
				AvgTurnTimeS: avgTurn,
				MaxSpeedMS:   maxSpeed,
			}, a.benchmarks)
			if err != nil {
				return nil, fmt.Errorf("scoring: %w", err)
			}
			score = &s
		}
	}

	// 6. Suggestions.
	suggestions := suggest.For(suggest.Metrics{
		SegmentVariance: suggest.SegmentVariance(summary.Segments.Slice()),
		AvgTurnTimeS:    avgTurn,
		MaxSpeedMS:      maxSpeed,
		FoulTypes:       foulTypes(foulList),
	})

	return report.Assemble(report.Input{
		Athlete:     in.Athlete,
		Video:       videoInfo(in.Meta),
		Preflight:   preflightInfo(video.Check(in.Meta, in.Stats)),
		Calibration: *calRes,
		Start:       start,
		Touches:     touches,
		Run:         summary,
		Fouls:       foulList,
		Integrity:   integRes,
		Score:       score,
		Suggestions: suggestions,
		Confidence:  overallConfidence(calRes.Confidence, frames, summary.Finished),
		Warnings:    warnings,
	}), nil
}

// calibSamples converts tracker observations into calibration samples.
func calibSamples(obs []track.Observation) []calib.Sample {
	out := make([]calib.Sample, 0, len(obs))
	for _, o := range obs {
		out = append(out, calib.Sample{
			FrameIdx: o.FrameIdx,
			A:        o.A.Center,
			B:        o.B.Center,
			AFound:   o.A.Found,
			BFound:   o.B.Found,
		})
	}
	return out
}

func foulTypes(fs []fouls.Foul) []fouls.Type {
	out := make([]fouls.Type, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Type)
	}
	return out
}

func preflightInfo(p video.Preflight) report.PreflightInfo {
	return report.PreflightInfo{
		Valid:          p.Valid,
		LinesVisible:   p.LinesVisible,
		CameraStable:   p.CameraStable,
		AthleteInFrame: p.AthleteInFrame,
		FPS:            p.FPS,
		Resolution:     p.Resolution,
		Comments:       p.Comments,
	}
}

func videoInfo(m video.Meta) report.VideoInfo {
	return report.VideoInfo{
		Filename:  m.Filename,
		FPS:       m.FPS,
		Width:     m.Width,
		Height:    m.Height,
		DurationS: report.Seconds(m.DurationS),
	}
}

// overallConfidence folds the calibration confidence and the mean frame
// confidence. Incomplete runs are capped below 0.5: without all four
// touches no downstream number deserves trust.
func overallConfidence(calibConf float64, frames []kinematics.PoseFrame, finished bool) float64 {
	var sum float64
	var n int
	for _, f := range frames {
		if f.Valid {
			sum += f.Confidence
			n++
		}
	}
	frameConf := 0.0
	if n > 0 {
		frameConf = sum / float64(n)
	}

	conf := calibConf
	if frameConf < conf {
		conf = frameConf
	}
	if !finished && conf > 0.45 {
		conf = 0.45
	}
	return conf
}
