package track

import (
	"image"
	"sort"

	"gocv.io/x/gocv"

	"github.com/fieldside/shuttlerun/internal/pose"
)

// MarkerDetector defines the interface for reference marker detection.
// The exact detector is replaceable as long as it yields a centroid and
// confidence per marker per frame.
type MarkerDetector interface {
	// DetectMarkers locates the line A and line B markers in a frame.
	DetectMarkers(frame *gocv.Mat) (Observation, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Edge detection constants.
const (
	// DetectBlurSize is the kernel size for Gaussian blur (5x5).
	DetectBlurSize = 5
	// CannyLow is the lower hysteresis threshold for edge detection.
	CannyLow = 50
	// CannyHigh is the upper hysteresis threshold for edge detection.
	CannyHigh = 150
	// MinMarkerAreaPx is the minimum contour area for a marker candidate.
	MinMarkerAreaPx = 120
)

// EdgeMarkerDetector finds the two ground markers via edge detection and
// contour centroids. The leftmost of the two strongest candidates is
// reported as marker A, the rightmost as marker B.
type EdgeMarkerDetector struct {
	frameIdx int
}

// NewEdgeMarkerDetector creates a new EdgeMarkerDetector.
func NewEdgeMarkerDetector() *EdgeMarkerDetector {
	return &EdgeMarkerDetector{}
}

// DetectMarkers locates the marker centroids in one frame.
//
// Algorithm:
// 1. Convert frame to grayscale
// 2. Apply Gaussian blur (5x5) to reduce noise
// 3. Canny edge detection (50/150)
// 4. Dilate to close marker outlines
// 5. Find external contours, drop those below the minimum area
// 6. Take the two largest contours, compute centroids from moments
// 7. Assign leftmost centroid to A, rightmost to B
func (d *EdgeMarkerDetector) DetectMarkers(frame *gocv.Mat) (Observation, error) {
	obs := Observation{FrameIdx: d.frameIdx}
	d.frameIdx++

	if frame == nil || frame.Empty() {
		return obs, nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: DetectBlurSize, Y: DetectBlurSize}, 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, CannyLow, CannyHigh)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 3, Y: 3})
	defer kernel.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(edges, &dilated, kernel)

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	type candidate struct {
		center pose.Point2D
		area   float64
	}
	var candidates []candidate
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area < MinMarkerAreaPx {
			continue
		}
		m := gocv.Moments(c, false)
		if m["m00"] == 0 {
			continue
		}
		candidates = append(candidates, candidate{
			center: pose.Point2D{X: m["m10"] / m["m00"], Y: m["m01"] / m["m00"]},
			area:   area,
		})
	}

	if len(candidates) < 2 {
		return obs, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].area > candidates[j].area
	})
	first, second := candidates[0], candidates[1]
	if first.center.X > second.center.X {
		first, second = second, first
	}

	obs.A = Marker{Center: first.center, Confidence: 0.9, Found: true}
	obs.B = Marker{Center: second.center, Confidence: 0.9, Found: true}
	return obs, nil
}

// Close is a no-op for the edge detector.
func (d *EdgeMarkerDetector) Close() error {
	return nil
}

// MockMarkerDetector is a test implementation of MarkerDetector that
// reports fixed marker positions for every frame.
type MockMarkerDetector struct {
	a, b     pose.Point2D
	frameIdx int
	err      error
}

// NewMockMarkerDetector creates a mock reporting the given positions.
func NewMockMarkerDetector(a, b pose.Point2D) *MockMarkerDetector {
	return &MockMarkerDetector{a: a, b: b}
}

// SetError sets the error that will be returned by DetectMarkers.
func (m *MockMarkerDetector) SetError(err error) {
	m.err = err
}

// DetectMarkers returns the fixed positions or the configured error.
func (m *MockMarkerDetector) DetectMarkers(frame *gocv.Mat) (Observation, error) {
	if m.err != nil {
		return Observation{}, m.err
	}
	obs := Observation{
		FrameIdx: m.frameIdx,
		A:        Marker{Center: m.a, Confidence: 0.95, Found: true},
		B:        Marker{Center: m.b, Confidence: 0.95, Found: true},
	}
	m.frameIdx++
	return obs, nil
}

// Close is a no-op for the mock detector.
func (m *MockMarkerDetector) Close() error {
	return nil
}
