package video

import "fmt"

// ContentStats summarizes what the extraction saw in the clip.
type ContentStats struct {
	// LineVisibleFrac is the fraction of frames with both markers found.
	LineVisibleFrac float64
	// AthleteVisibleFrac is the fraction of frames with a detected pose.
	AthleteVisibleFrac float64
	// AvgMotionPct is the mean frame-difference change percentage, a
	// proxy for camera shake on tripod footage.
	AvgMotionPct float64
}

// Content acceptance thresholds.
const (
	minLineVisibleFrac    = 0.5
	minAthleteVisibleFrac = 0.5
	maxBackgroundMotion   = 40.0
)

// Preflight is the quality-gate verdict for a submitted clip.
type Preflight struct {
	Valid          bool     `json:"valid"`
	LinesVisible   bool     `json:"lines_visible"`
	CameraStable   bool     `json:"camera_stable"`
	AthleteInFrame bool     `json:"athlete_in_frame"`
	FPS            float64  `json:"fps"`
	Resolution     string   `json:"resolution"`
	Comments       []string `json:"comments,omitempty"`
}

// Check runs the preflight gate over the container metadata and the
// extracted content statistics. Every failed requirement adds a comment
// so the client can tell the user what to fix.
func Check(meta Meta, stats ContentStats) Preflight {
	p := Preflight{
		FPS:        meta.FPS,
		Resolution: fmt.Sprintf("%dx%d", meta.Width, meta.Height),
	}

	ok := true
	if !FormatAllowed(meta.Filename) {
		ok = false
		p.Comments = append(p.Comments, fmt.Sprintf("unsupported format %q; use .mp4, .mov or .webm", meta.Filename))
	}
	if meta.FPS < MinFPS {
		ok = false
		p.Comments = append(p.Comments, fmt.Sprintf("frame rate %.1f fps below the %.0f fps minimum", meta.FPS, MinFPS))
	}
	if meta.Width < MinWidth || meta.Height < MinHeight {
		ok = false
		p.Comments = append(p.Comments, fmt.Sprintf("resolution %dx%d below the %dx%d minimum", meta.Width, meta.Height, MinWidth, MinHeight))
	}
	if meta.DurationS <= 0 {
		ok = false
		p.Comments = append(p.Comments, "video has no readable frames")
	}

	p.LinesVisible = stats.LineVisibleFrac >= minLineVisibleFrac
	if !p.LinesVisible {
		p.Comments = append(p.Comments, fmt.Sprintf("reference lines visible in only %.0f%% of frames", stats.LineVisibleFrac*100))
	}
	p.AthleteInFrame = stats.AthleteVisibleFrac >= minAthleteVisibleFrac
	if !p.AthleteInFrame {
		p.Comments = append(p.Comments, fmt.Sprintf("athlete detected in only %.0f%% of frames", stats.AthleteVisibleFrac*100))
	}
	p.CameraStable = stats.AvgMotionPct <= maxBackgroundMotion
	if !p.CameraStable {
		p.Comments = append(p.Comments, fmt.Sprintf("camera appears unstable (%.0f%% average frame change)", stats.AvgMotionPct))
	}

	p.Valid = ok && p.LinesVisible && p.AthleteInFrame && p.CameraStable
	return p
}
