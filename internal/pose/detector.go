package pose

import "gocv.io/x/gocv"

// Detector defines the interface for pose estimation implementations.
// The underlying model is a black box; the pipeline only consumes the
// keypoints and confidences it produces.
type Detector interface {
	// Detect analyzes a video frame and returns the body keypoints.
	// The second return value is false if no athlete was detected.
	Detect(frame *gocv.Mat) (Keypoints, bool, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for pose detection.
type Config struct {
	// MinDetectionConf is the minimum detection confidence threshold (0.0-1.0).
	MinDetectionConf float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ModelComplexity selects the model variant (0=lite, 1=full, 2=heavy).
	ModelComplexity int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinDetectionConf: 0.5,
		MinTrackingConf:  0.5,
		ModelComplexity:  1,
	}
}
