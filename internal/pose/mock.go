package pose

import (
	"math"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It replays a pre-configured sequence of keypoint sets.
type MockDetector struct {
	frames []Keypoints
	next   int
	err    error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFrames sets the keypoint sequence that Detect will replay.
func (m *MockDetector) SetFrames(frames []Keypoints) {
	m.frames = frames
	m.next = 0
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Detect returns the next pre-configured keypoint set or the configured error.
// Once the sequence is exhausted it reports no detection.
func (m *MockDetector) Detect(frame *gocv.Mat) (Keypoints, bool, error) {
	if m.err != nil {
		return Keypoints{}, false, m.err
	}
	if m.next >= len(m.frames) {
		return Keypoints{}, false, nil
	}
	kp := m.frames[m.next]
	m.next++
	return kp, true, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// RunScript describes a synthetic shuttle run for test data generation.
// The athlete stands at line A, runs four legs between the lines with a
// cosine speed profile (zero velocity at each line), then stands still.
type RunScript struct {
	FPS          float64 // frames per second
	AX           float64 // pixel x of line A
	BX           float64 // pixel x of line B
	LaneY        float64 // pixel y of the lane
	StartDelayS  float64 // idle time before the run starts
	LegS         float64 // duration of each of the four legs
	TailS        float64 // idle time after the finish
	FootSpreadPx float64 // pixel distance between the two feet
	Confidence   float64 // confidence assigned to every keypoint
}

// DefaultRunScript returns a RunScript for a clean 10s run at 30 fps
// with lines 1000 px apart (10 m at a 0.01 px-to-m ratio).
func DefaultRunScript() RunScript {
	return RunScript{
		FPS:          30,
		AX:           100,
		BX:           1100,
		LaneY:        500,
		StartDelayS:  1.0,
		LegS:         2.5,
		TailS:        1.0,
		FootSpreadPx: 20,
		Confidence:   0.9,
	}
}

// SyntheticRun generates the raw pose samples for the given script.
func SyntheticRun(s RunScript) []Sample {
	total := s.StartDelayS + 4*s.LegS + s.TailS
	n := int(total*s.FPS) + 1
	samples := make([]Sample, 0, n)

	for i := 0; i < n; i++ {
		t := float64(i) / s.FPS
		x := s.positionAt(t)
		samples = append(samples, Sample{
			FrameIdx:   i,
			TimestampS: t,
			Keypoints:  s.keypointsAt(x),
			Detected:   true,
		})
	}
	return samples
}

// positionAt returns the athlete's pixel x position at time t.
func (s RunScript) positionAt(t float64) float64 {
	if t < s.StartDelayS {
		return s.AX
	}
	elapsed := t - s.StartDelayS
	leg := int(elapsed / s.LegS)
	if leg >= 4 {
		return s.AX
	}
	u := math.Mod(elapsed, s.LegS) / s.LegS
	// Cosine ease: zero velocity at both lines, peak mid-leg.
	frac := (1 - math.Cos(math.Pi*u)) / 2
	if leg%2 == 0 {
		return s.AX + (s.BX-s.AX)*frac
	}
	return s.BX + (s.AX-s.BX)*frac
}

// keypointsAt builds the full keypoint set for a foot-center pixel x.
func (s RunScript) keypointsAt(x float64) Keypoints {
	c := s.Confidence
	half := s.FootSpreadPx / 2
	return Keypoints{
		LeftFoot:      Keypoint{X: x - half, Y: s.LaneY, Confidence: c},
		RightFoot:     Keypoint{X: x + half, Y: s.LaneY, Confidence: c},
		LeftAnkle:     Keypoint{X: x - half, Y: s.LaneY - 10, Confidence: c},
		RightAnkle:    Keypoint{X: x + half, Y: s.LaneY - 10, Confidence: c},
		LeftHip:       Keypoint{X: x - half, Y: s.LaneY - 90, Confidence: c},
		RightHip:      Keypoint{X: x + half, Y: s.LaneY - 90, Confidence: c},
		LeftShoulder:  Keypoint{X: x - half, Y: s.LaneY - 160, Confidence: c},
		RightShoulder: Keypoint{X: x + half, Y: s.LaneY - 160, Confidence: c},
	}
}
