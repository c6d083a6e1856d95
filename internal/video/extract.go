package video

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fieldside/shuttlerun/internal/integrity"
	"github.com/fieldside/shuttlerun/internal/pose"
	"github.com/fieldside/shuttlerun/internal/track"
)

// hashEveryN is the frame sampling interval for the perceptual hashes.
const hashEveryN = 30

// Extraction is everything the analysis pipeline needs from one clip.
type Extraction struct {
	Meta         Meta
	Samples      []pose.Sample
	Observations []track.Observation
	TimestampsS  []float64
	Hashes       []integrity.HashSample
	RatioSamples []integrity.RatioSample
	Stats        ContentStats
}

// Extractor walks a clip frame by frame, feeding the pose and marker
// detectors and collecting the integrity signals on the way.
type Extractor struct {
	poseDet   pose.Detector
	markerDet track.MarkerDetector
}

// NewExtractor creates an Extractor over the given detectors. The
// caller keeps ownership of the detectors and closes them.
func NewExtractor(poseDet pose.Detector, markerDet track.MarkerDetector) *Extractor {
	return &Extractor{poseDet: poseDet, markerDet: markerDet}
}

// Run consumes the source until EOF. The tracker smooths the raw marker
// detections; the pose samples stay raw for the preprocessing stage.
func (e *Extractor) Run(ctx context.Context, src FrameSource) (*Extraction, error) {
	if err := src.Open(); err != nil {
		return nil, err
	}
	defer src.Close()

	tracker := track.NewTracker(track.DefaultTrackerConfig())
	stability := NewStabilityChecker()
	defer stability.Close()

	ext := &Extraction{Meta: src.Meta()}
	var (
		frameIdx    int
		linesSeen   int
		athleteSeen int
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, ts, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read frame %d: %w", frameIdx, err)
		}

		ext.TimestampsS = append(ext.TimestampsS, ts)
		stability.Observe(frame)

		kps, detected, err := e.poseDet.Detect(frame)
		if err != nil {
			frame.Close()
			return nil, fmt.Errorf("pose detection at frame %d: %w", frameIdx, err)
		}
		if detected {
			athleteSeen++
		}
		ext.Samples = append(ext.Samples, pose.Sample{
			FrameIdx:   frameIdx,
			TimestampS: ts,
			Keypoints:  kps,
			Detected:   detected,
		})

		raw, err := e.markerDet.DetectMarkers(frame)
		if err != nil {
			frame.Close()
			return nil, fmt.Errorf("marker detection at frame %d: %w", frameIdx, err)
		}
		raw.FrameIdx = frameIdx
		raw.TimestampS = ts
		obs := tracker.Update(raw)
		ext.Observations = append(ext.Observations, obs)
		if obs.A.Found && obs.B.Found {
			linesSeen++
			ext.RatioSamples = append(ext.RatioSamples, integrity.RatioSample{
				FrameIdx: frameIdx,
				Ratio:    pose.Distance(obs.A.Center, obs.B.Center),
			})
		}

		if frameIdx%hashEveryN == 0 {
			ext.Hashes = append(ext.Hashes, integrity.HashSample{
				FrameIdx: frameIdx,
				Hash:     integrity.DHash(frame),
			})
		}

		frame.Close()
		frameIdx++
	}

	if frameIdx > 0 {
		ext.Stats = ContentStats{
			LineVisibleFrac:    float64(linesSeen) / float64(frameIdx),
			AthleteVisibleFrac: float64(athleteSeen) / float64(frameIdx),
			AvgMotionPct:       stability.AveragePct(),
		}
	}
	// Fill in what the container did not declare.
	if ext.Meta.TotalFrames == 0 {
		ext.Meta.TotalFrames = frameIdx
	}
	if ext.Meta.DurationS == 0 && len(ext.TimestampsS) > 0 {
		ext.Meta.DurationS = ext.TimestampsS[len(ext.TimestampsS)-1]
	}
	return ext, nil
}
