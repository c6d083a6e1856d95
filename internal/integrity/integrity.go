// Package integrity checks a submission for signs of video manipulation:
// cuts and loops, slow-motion playback, camera movement and zooming.
package integrity

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// Reason is a closed enum of the manipulation kinds.
type Reason string

const (
	PossibleEdit       Reason = "possible_edit"
	PossibleSlowMotion Reason = "possible_slow_motion"
	CameraMove         Reason = "camera_move"
	Zoom               Reason = "zoom"
)

// HashSample is a perceptual hash of one sampled frame.
type HashSample struct {
	FrameIdx int
	Hash     uint64
}

// RatioSample is the pixel distance between the two line markers in one
// frame. A stable camera keeps this ratio constant over the whole video.
type RatioSample struct {
	FrameIdx int
	Ratio    float64
}

// Signals carries everything the integrity checks need. All series are
// extracted upstream so the checks themselves stay pure math.
type Signals struct {
	// TimestampsS are the per-frame presentation times, in order.
	TimestampsS []float64
	// DeclaredFPS is the frame rate the container claims.
	DeclaredFPS float64
	// DisplacementsPx are the foot-center pixel displacements between
	// consecutive detected frames.
	DisplacementsPx []float64
	// RatioSamples are the marker-distance samples over the video.
	RatioSamples []RatioSample
	// Hashes are perceptual hashes of sampled frames.
	Hashes []HashSample
	// SpeedSeries is the per-frame speed in m/s, the motion signature
	// for the spectral check.
	SpeedSeries []float64
}

// Finding is one detected manipulation with its evidence.
type Finding struct {
	Reason         Reason  `json:"reason"`
	Confidence     float64 `json:"confidence"`
	Detail         string  `json:"detail"`
	EvidenceFrames []int   `json:"evidence_frames"`
}

// Result aggregates the integrity findings. CheatDetected is true iff at
// least one finding is present.
type Result struct {
	CheatDetected bool      `json:"cheat_detected"`
	Findings      []Finding `json:"findings"`
	Confidence    float64   `json:"confidence"`
}

// Reasons lists the finding reasons in order.
func (r Result) Reasons() []Reason {
	out := make([]Reason, 0, len(r.Findings))
	for _, f := range r.Findings {
		out = append(out, f.Reason)
	}
	return out
}

// Config holds the manipulation detection thresholds.
type Config struct {
	// MaxJumpPx is the keypoint displacement between consecutive frames
	// above which a cut is suspected.
	MaxJumpPx float64
	// GapFactor flags a timestamp interval this many times the median
	// interval as a cut.
	GapFactor float64
	// DuplicateHammingMax is the dHash Hamming distance at or below
	// which two sampled frames count as duplicates.
	DuplicateHammingMax int
	// DuplicateFrac is the fraction of non-adjacent duplicate pairs
	// above which looping is suspected.
	DuplicateFrac float64
	// FPSMismatchFrac is the allowed relative deviation between the
	// measured and declared frame interval.
	FPSMismatchFrac float64
	// SlowMotionFreqHz is the dominant motion frequency below which
	// slow-motion playback is suspected. Real shuttle runs concentrate
	// their energy between roughly 0.4 and 3 Hz (2.5s legs and up), so
	// the floor sits below the slowest legitimate leg rhythm.
	SlowMotionFreqHz float64
	// RatioDriftFrac is the relative marker-ratio deviation above which
	// the camera is considered unstable.
	RatioDriftFrac float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MaxJumpPx:           200,
		GapFactor:           3.0,
		DuplicateHammingMax: 5,
		DuplicateFrac:       0.05,
		FPSMismatchFrac:     0.20,
		SlowMotionFreqHz:    0.3,
		RatioDriftFrac:      0.10,
	}
}

// Checker runs the manipulation detectors over one video's signals.
type Checker struct {
	cfg Config
}

// NewChecker creates a Checker with the given thresholds.
func NewChecker(cfg Config) *Checker {
	if cfg.MaxJumpPx <= 0 {
		cfg = DefaultConfig()
	}
	return &Checker{cfg: cfg}
}

// Evaluate runs all detectors. The overall confidence is the maximum of
// the finding confidences; no findings means no cheat.
func (c *Checker) Evaluate(sig Signals) Result {
	var findings []Finding
	if f := c.checkEdits(sig); f != nil {
		findings = append(findings, *f)
	}
	if f := c.checkSlowMotion(sig); f != nil {
		findings = append(findings, *f)
	}
	if f := c.checkCamera(sig); f != nil {
		findings = append(findings, *f)
	}

	res := Result{Findings: findings, CheatDetected: len(findings) > 0}
	for _, f := range findings {
		if f.Confidence > res.Confidence {
			res.Confidence = f.Confidence
		}
	}
	return res
}

// checkEdits looks for cuts and loops: broken timestamps, impossible
// keypoint jumps and near-duplicate frames far apart in the video.
func (c *Checker) checkEdits(sig Signals) *Finding {
	// 1. Timestamps must be strictly increasing without large gaps.
	if frame, detail := timestampAnomaly(sig.TimestampsS, c.cfg.GapFactor); frame >= 0 {
		return &Finding{
			Reason:         PossibleEdit,
			Confidence:     0.9,
			Detail:         detail,
			EvidenceFrames: []int{frame},
		}
	}

	// 2. A keypoint cannot jump across the frame in one interval.
	for i, d := range sig.DisplacementsPx {
		if d > c.cfg.MaxJumpPx {
			return &Finding{
				Reason:         PossibleEdit,
				Confidence:     0.8,
				Detail:         fmt.Sprintf("keypoint jumped %.0fpx between consecutive frames, limit is %.0fpx", d, c.cfg.MaxJumpPx),
				EvidenceFrames: []int{i + 1},
			}
		}
	}

	// 3. Repeated content: near-duplicate hashes at non-adjacent
	// sample positions indicate looped footage.
	dupPairs, evidence := duplicatePairs(sig.Hashes, c.cfg.DuplicateHammingMax)
	if n := len(sig.Hashes); n > 2 {
		total := n * (n - 1) / 2
		if frac := float64(dupPairs) / float64(total); frac > c.cfg.DuplicateFrac {
			return &Finding{
				Reason:         PossibleEdit,
				Confidence:     math.Min(1, 0.6+frac),
				Detail:         fmt.Sprintf("%d non-adjacent near-duplicate frame pairs (%.1f%% of sampled pairs)", dupPairs, frac*100),
				EvidenceFrames: evidence,
			}
		}
	}
	return nil
}

// checkSlowMotion compares the measured frame interval against the
// declared rate, then inspects the motion spectrum: a run played back
// slowed down concentrates its energy below the normal stride band.
func (c *Checker) checkSlowMotion(sig Signals) *Finding {
	if sig.DeclaredFPS > 0 && len(sig.TimestampsS) >= 3 {
		measured := medianInterval(sig.TimestampsS)
		declared := 1.0 / sig.DeclaredFPS
		if measured > 0 && math.Abs(measured-declared)/declared > c.cfg.FPSMismatchFrac {
			return &Finding{
				Reason:         PossibleSlowMotion,
				Confidence:     0.8,
				Detail:         fmt.Sprintf("median frame interval %.1fms does not match the declared %.1f fps", measured*1000, sig.DeclaredFPS),
				EvidenceFrames: []int{0},
			}
		}
	}

	fps := sig.DeclaredFPS
	if fps <= 0 {
		return nil
	}
	domFreq, highFrac, ok := motionSpectrum(sig.SpeedSeries, fps)
	if !ok {
		return nil
	}
	if domFreq < c.cfg.SlowMotionFreqHz && highFrac < 0.2 {
		return &Finding{
			Reason:         PossibleSlowMotion,
			Confidence:     0.7,
			Detail:         fmt.Sprintf("dominant motion frequency %.2fHz is below the %.1fHz floor of a real run", domFreq, c.cfg.SlowMotionFreqHz),
			EvidenceFrames: []int{len(sig.SpeedSeries) / 2},
		}
	}
	return nil
}

// checkCamera watches the marker-distance ratio. Any drift means the
// camera moved; a monotonic drift is a zoom, anything else is handheld
// movement.
func (c *Checker) checkCamera(sig Signals) *Finding {
	if len(sig.RatioSamples) < 3 {
		return nil
	}
	ratios := make([]float64, len(sig.RatioSamples))
	for i, s := range sig.RatioSamples {
		ratios[i] = s.Ratio
	}
	mean := stat.Mean(ratios, nil)
	if mean <= 0 {
		return nil
	}
	sd := stat.StdDev(ratios, nil)
	drift := math.Abs(ratios[len(ratios)-1]-ratios[0]) / mean

	if sd/mean <= c.cfg.RatioDriftFrac && drift <= c.cfg.RatioDriftFrac {
		return nil
	}

	worst := 0
	for i, r := range ratios {
		if math.Abs(r-mean) > math.Abs(ratios[worst]-mean) {
			worst = i
		}
	}
	evidence := []int{sig.RatioSamples[worst].FrameIdx}

	if drift > c.cfg.RatioDriftFrac && isMonotonic(ratios) {
		return &Finding{
			Reason:         Zoom,
			Confidence:     math.Min(1, 0.5+drift),
			Detail:         fmt.Sprintf("marker spacing drifted %.0f%% in one direction over the video", drift*100),
			EvidenceFrames: evidence,
		}
	}
	return &Finding{
		Reason:         CameraMove,
		Confidence:     math.Min(1, 0.5+sd/mean),
		Detail:         fmt.Sprintf("marker spacing varies %.0f%% around its mean", sd/mean*100),
		EvidenceFrames: evidence,
	}
}

// timestampAnomaly returns the first frame whose timestamp goes backward
// or jumps by more than gapFactor times the median interval. Returns -1
// when the series is clean.
func timestampAnomaly(ts []float64, gapFactor float64) (int, string) {
	if len(ts) < 3 {
		return -1, ""
	}
	median := medianInterval(ts)
	for i := 1; i < len(ts); i++ {
		dt := ts[i] - ts[i-1]
		if dt <= 0 {
			return i, fmt.Sprintf("timestamp goes backward at frame %d", i)
		}
		if median > 0 && dt > gapFactor*median {
			return i, fmt.Sprintf("%.0fms gap at frame %d, median interval is %.0fms", dt*1000, i, median*1000)
		}
	}
	return -1, ""
}

func medianInterval(ts []float64) float64 {
	if len(ts) < 2 {
		return 0
	}
	intervals := make([]float64, 0, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		intervals = append(intervals, ts[i]-ts[i-1])
	}
	sort.Float64s(intervals)
	return intervals[len(intervals)/2]
}

// duplicatePairs counts near-duplicate hash pairs at least two sample
// positions apart and returns the frames of the first such pair.
func duplicatePairs(hashes []HashSample, maxHamming int) (int, []int) {
	var (
		count    int
		evidence []int
	)
	for i := 0; i < len(hashes); i++ {
		for j := i + 2; j < len(hashes); j++ {
			if HammingDistance(hashes[i].Hash, hashes[j].Hash) <= maxHamming {
				count++
				if evidence == nil {
					evidence = []int{hashes[i].FrameIdx, hashes[j].FrameIdx}
				}
			}
		}
	}
	return count, evidence
}

// motionSpectrum returns the dominant non-DC frequency of the speed
// series and the fraction of spectral energy above 0.5 Hz. ok is false
// when the series is too short to analyze.
func motionSpectrum(speeds []float64, fps float64) (domFreq, highFrac float64, ok bool) {
	n := len(speeds)
	if n < 32 || fps <= 0 {
		return 0, 0, false
	}

	// Detrend so the DC component does not dominate.
	mean := stat.Mean(speeds, nil)
	seq := make([]float64, n)
	for i, s := range speeds {
		seq[i] = s - mean
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, seq)

	var (
		peakBin   int
		peakPower float64
		total     float64
		high      float64
	)
	for bin := 1; bin < len(coeffs); bin++ {
		power := real(coeffs[bin])*real(coeffs[bin]) + imag(coeffs[bin])*imag(coeffs[bin])
		freq := float64(bin) * fps / float64(n)
		total += power
		if freq > 0.5 {
			high += power
		}
		if power > peakPower {
			peakPower = power
			peakBin = bin
		}
	}
	if total <= 0 || peakBin == 0 {
		return 0, 0, false
	}
	return float64(peakBin) * fps / float64(n), high / total, true
}

func isMonotonic(xs []float64) bool {
	up, down := true, true
	for i := 1; i < len(xs); i++ {
		if xs[i] < xs[i-1] {
			up = false
		}
		if xs[i] > xs[i-1] {
			down = false
		}
	}
	return up || down
}
