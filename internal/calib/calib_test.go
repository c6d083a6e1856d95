package calib

import (
	"errors"
	"math"
	"testing"

	"github.com/fieldside/shuttlerun/internal/pose"
)

func samplesWithDistances(dists []float64) []Sample {
	samples := make([]Sample, len(dists))
	for i, d := range dists {
		samples[i] = Sample{
			FrameIdx: i,
			A:        pose.Point2D{X: 100, Y: 500},
			B:        pose.Point2D{X: 100 + d, Y: 500},
			AFound:   true,
			BFound:   true,
		}
	}
	return samples
}

func TestCalibrate_KnownDistances(t *testing.T) {
	// Samples [998, 1002, 1000] with 10m ground truth should give
	// px_to_m ~= 0.01 and near-perfect confidence.
	res, err := Calibrate(samplesWithDistances([]float64{998, 1002, 1000}), 10.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(res.PxToM-0.01) > 1e-6 {
		t.Errorf("expected px_to_m ~= 0.01, got %f", res.PxToM)
	}
	if res.Confidence < 0.99 {
		t.Errorf("expected confidence ~= 1.0, got %f", res.Confidence)
	}
	if !res.DistanceVerified {
		t.Error("expected distance to be verified")
	}
}

func TestCalibrate_RatioMatchesMean(t *testing.T) {
	dists := []float64{950, 1000, 1050, 990, 1010}
	res, err := Calibrate(samplesWithDistances(dists), 10.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sum float64
	for _, d := range dists {
		sum += d
	}
	want := 10.0 / (sum / float64(len(dists)))
	if math.Abs(res.PxToM-want) > 1e-9 {
		t.Errorf("expected px_to_m %f, got %f", want, res.PxToM)
	}
	if res.Confidence < 0 || res.Confidence > 1 {
		t.Errorf("confidence %f out of [0,1]", res.Confidence)
	}
}

func TestCalibrate_ExcludesUndetectedMarkers(t *testing.T) {
	samples := samplesWithDistances([]float64{1000, 1000, 1000, 1000})
	samples[1].BFound = false // should be excluded, not treated as zero

	res, err := Calibrate(samples, 10.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SampleCount != 3 {
		t.Errorf("expected 3 usable samples, got %d", res.SampleCount)
	}
}

func TestCalibrate_InsufficientSamples(t *testing.T) {
	samples := samplesWithDistances([]float64{1000, 1000})

	res, err := Calibrate(samples, 10.0)
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Fatalf("expected ErrInsufficientSamples, got %v", err)
	}
	if res.Confidence != 0 {
		t.Errorf("expected zero confidence, got %f", res.Confidence)
	}
	if res.DistanceVerified {
		t.Error("distance must not be verified without samples")
	}
	if res.Comment == "" {
		t.Error("expected an explanatory comment")
	}
}

func TestCalibrate_DefaultDistance(t *testing.T) {
	res, err := Calibrate(samplesWithDistances([]float64{1000, 1000, 1000}), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(res.PxToM-0.01) > 1e-9 {
		t.Errorf("expected default 10m distance to give 0.01, got %f", res.PxToM)
	}
}

func TestCalibrate_UnstableMarkersLowerConfidence(t *testing.T) {
	res, err := Calibrate(samplesWithDistances([]float64{500, 1000, 1500}), 10.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DistanceVerified {
		t.Errorf("expected unverified distance at confidence %f", res.Confidence)
	}
}
