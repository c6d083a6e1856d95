package video

import (
	"strings"
	"testing"
)

func goodMeta() Meta {
	return Meta{
		Filename:    "run.mp4",
		FPS:         30,
		Width:       1920,
		Height:      1080,
		DurationS:   13,
		TotalFrames: 390,
	}
}

func goodStats() ContentStats {
	return ContentStats{LineVisibleFrac: 0.95, AthleteVisibleFrac: 0.9, AvgMotionPct: 8}
}

func TestFormatAllowed(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"run.mp4", true},
		{"run.MOV", true},
		{"clip.webm", true},
		{"run.avi", false},
		{"run.mkv", false},
		{"noext", false},
	}
	for _, c := range cases {
		if got := FormatAllowed(c.name); got != c.want {
			t.Errorf("FormatAllowed(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestCheck_GoodClip(t *testing.T) {
	p := Check(goodMeta(), goodStats())
	if !p.Valid {
		t.Fatalf("good clip rejected: %+v", p)
	}
	if !p.LinesVisible || !p.AthleteInFrame || !p.CameraStable {
		t.Errorf("unexpected content flags: %+v", p)
	}
	if len(p.Comments) != 0 {
		t.Errorf("good clip must have no comments, got %v", p.Comments)
	}
	if p.Resolution != "1920x1080" {
		t.Errorf("unexpected resolution string: %s", p.Resolution)
	}
}

func TestCheck_LowFPS(t *testing.T) {
	meta := goodMeta()
	meta.FPS = 24

	p := Check(meta, goodStats())
	if p.Valid {
		t.Fatal("24fps clip must be rejected")
	}
	if !commentMentions(p, "frame rate") {
		t.Errorf("expected a frame rate comment, got %v", p.Comments)
	}
}

func TestCheck_LowResolution(t *testing.T) {
	meta := goodMeta()
	meta.Width, meta.Height = 640, 480

	p := Check(meta, goodStats())
	if p.Valid {
		t.Fatal("480p clip must be rejected")
	}
	if !commentMentions(p, "resolution") {
		t.Errorf("expected a resolution comment, got %v", p.Comments)
	}
}

func TestCheck_BadFormat(t *testing.T) {
	meta := goodMeta()
	meta.Filename = "run.avi"

	p := Check(meta, goodStats())
	if p.Valid {
		t.Fatal(".avi clip must be rejected")
	}
	if !commentMentions(p, "format") {
		t.Errorf("expected a format comment, got %v", p.Comments)
	}
}

func TestCheck_MissingLines(t *testing.T) {
	stats := goodStats()
	stats.LineVisibleFrac = 0.2

	p := Check(goodMeta(), stats)
	if p.Valid || p.LinesVisible {
		t.Fatalf("clip without visible lines must be rejected: %+v", p)
	}
	if !commentMentions(p, "lines") {
		t.Errorf("expected a lines comment, got %v", p.Comments)
	}
}

func TestCheck_UnstableCamera(t *testing.T) {
	stats := goodStats()
	stats.AvgMotionPct = 65

	p := Check(goodMeta(), stats)
	if p.Valid || p.CameraStable {
		t.Fatalf("shaky clip must be rejected: %+v", p)
	}
}

func TestCheck_CollectsAllComments(t *testing.T) {
	meta := goodMeta()
	meta.Filename = "run.avi"
	meta.FPS = 20
	meta.Width, meta.Height = 640, 480
	stats := ContentStats{}

	p := Check(meta, stats)
	if p.Valid {
		t.Fatal("clip failing every gate must be rejected")
	}
	// format, fps, resolution, lines, athlete and stability all pass
	// except stability (0% motion is stable).
	if len(p.Comments) < 5 {
		t.Errorf("expected one comment per failure, got %v", p.Comments)
	}
}

func TestMockSource_Playback(t *testing.T) {
	src := NewMockSource(Meta{Filename: "run.mp4", FPS: 30, Width: 64, Height: 48}, 3)

	if _, _, err := src.ReadFrame(); err != ErrSourceNotOpen {
		t.Errorf("expected ErrSourceNotOpen before Open, got %v", err)
	}

	if err := src.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer src.Close()

	var last float64
	for i := 0; i < 3; i++ {
		frame, ts, err := src.ReadFrame()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if i > 0 && ts <= last {
			t.Errorf("timestamps must increase, got %f after %f", ts, last)
		}
		last = ts
		frame.Close()
	}

	if _, _, err := src.ReadFrame(); err == nil {
		t.Error("expected EOF after the last frame")
	}
}

func commentMentions(p Preflight, substr string) bool {
	for _, c := range p.Comments {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}
