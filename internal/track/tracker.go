package track

import "github.com/fieldside/shuttlerun/internal/pose"

// Marker is one reference marker observation or estimate for a frame.
type Marker struct {
	Center     pose.Point2D
	Confidence float64
	Found      bool
}

// Observation holds the raw per-frame marker detections.
type Observation struct {
	FrameIdx   int
	TimestampS float64
	A          Marker
	B          Marker
}

// TrackerConfig holds tuning for the marker tracker.
type TrackerConfig struct {
	// ProcessNoise is the Kalman process noise intensity.
	ProcessNoise float64
	// MeasurementNoise is the Kalman measurement noise variance in px².
	MeasurementNoise float64
	// MaxCoastFrames is how many consecutive missed detections the
	// filter may bridge by prediction before the marker is lost.
	MaxCoastFrames int
}

// DefaultTrackerConfig returns tuning suitable for tripod footage where
// the markers barely move.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		ProcessNoise:     2.0,
		MeasurementNoise: 9.0,
		MaxCoastFrames:   15,
	}
}

// Tracker smooths the two marker trajectories with constant-velocity
// Kalman filters, bridging brief occlusions. Each run gets its own
// Tracker instance; state is owned, never shared.
type Tracker struct {
	cfg      TrackerConfig
	a, b     *kalman2D
	aMissed  int
	bMissed  int
	lastTime float64
	primed   bool
}

// NewTracker creates a Tracker with the given configuration.
func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.MaxCoastFrames <= 0 {
		cfg = DefaultTrackerConfig()
	}
	return &Tracker{cfg: cfg}
}

// Update consumes one observation and returns the smoothed marker
// positions for that frame. Markers missing longer than MaxCoastFrames
// are reported as not found rather than extrapolated indefinitely.
func (t *Tracker) Update(obs Observation) Observation {
	dt := obs.TimestampS - t.lastTime
	if !t.primed || dt <= 0 {
		dt = 1.0 / 30
	}
	t.lastTime = obs.TimestampS

	out := Observation{FrameIdx: obs.FrameIdx, TimestampS: obs.TimestampS}
	out.A, t.a, t.aMissed = t.step(t.a, obs.A, dt, t.aMissed)
	out.B, t.b, t.bMissed = t.step(t.b, obs.B, dt, t.bMissed)
	t.primed = true
	return out
}

func (t *Tracker) step(f *kalman2D, m Marker, dt float64, missed int) (Marker, *kalman2D, int) {
	if m.Found {
		if f == nil {
			f = newKalman2D(m.Center, t.cfg.ProcessNoise, t.cfg.MeasurementNoise)
			return Marker{Center: m.Center, Confidence: m.Confidence, Found: true}, f, 0
		}
		f.predict(dt)
		smoothed := f.update(m.Center)
		return Marker{Center: smoothed, Confidence: m.Confidence, Found: true}, f, 0
	}

	if f == nil {
		return Marker{}, nil, missed + 1
	}
	missed++
	if missed > t.cfg.MaxCoastFrames {
		return Marker{}, f, missed
	}
	predicted := f.predict(dt)
	// Coasting on prediction only; confidence decays with each miss.
	conf := 1.0 - float64(missed)/float64(t.cfg.MaxCoastFrames+1)
	return Marker{Center: predicted, Confidence: conf, Found: true}, f, missed
}

// PixelDistances extracts the per-frame pixel distance between the two
// markers from a sequence of observations, skipping frames where either
// marker is missing. Used to sample the calibration ratio over time.
func PixelDistances(obs []Observation) []float64 {
	out := make([]float64, 0, len(obs))
	for _, o := range obs {
		if !o.A.Found || !o.B.Found {
			continue
		}
		out = append(out, pose.Distance(o.A.Center, o.B.Center))
	}
	return out
}
