// Package pose provides body keypoint types and the pose estimation
// interface used by the shuttle-run analysis pipeline.
package pose

import "math"

// Body landmark indices following MediaPipe convention.
// Only the subset the analyzer consumes is named here.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	LeftShoulderIdx  = 11
	RightShoulderIdx = 12
	LeftHipIdx       = 23
	RightHipIdx      = 24
	LeftAnkleIdx     = 27
	RightAnkleIdx    = 28
	LeftFootIdx      = 31
	RightFootIdx     = 32
)

// LandmarkCount is the number of landmarks in a full body pose.
const LandmarkCount = 33

// MinKeypointConfidence is the confidence below which a keypoint is
// treated as missing.
const MinKeypointConfidence = 0.5

// Point2D represents a 2D point in pixel or metric coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance calculates the Euclidean distance between two points.
func Distance(a, b Point2D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point2D) Point2D {
	return Point2D{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// Keypoint is a single detected body landmark with its confidence.
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Point returns the keypoint position as a Point2D.
func (k Keypoint) Point() Point2D {
	return Point2D{X: k.X, Y: k.Y}
}

// Missing reports whether the keypoint should be treated as undetected.
func (k Keypoint) Missing() bool {
	return k.Confidence < MinKeypointConfidence
}

// Keypoints holds the named landmarks the analyzer consumes for one frame.
type Keypoints struct {
	LeftAnkle     Keypoint `json:"left_ankle"`
	RightAnkle    Keypoint `json:"right_ankle"`
	LeftFoot      Keypoint `json:"left_foot"`
	RightFoot     Keypoint `json:"right_foot"`
	LeftHip       Keypoint `json:"left_hip"`
	RightHip      Keypoint `json:"right_hip"`
	LeftShoulder  Keypoint `json:"left_shoulder"`
	RightShoulder Keypoint `json:"right_shoulder"`
}

// FeetValid reports whether both foot keypoints are usable.
func (k *Keypoints) FeetValid() bool {
	return !k.LeftFoot.Missing() && !k.RightFoot.Missing()
}

// FootConfidence returns the lower of the two foot keypoint confidences.
func (k *Keypoints) FootConfidence() float64 {
	if k.LeftFoot.Confidence < k.RightFoot.Confidence {
		return k.LeftFoot.Confidence
	}
	return k.RightFoot.Confidence
}

// Sample is one raw per-frame detection produced by a pose estimator.
// Timestamps are strictly increasing across a run.
type Sample struct {
	FrameIdx   int       `json:"frame_idx"`
	TimestampS float64   `json:"timestamp_s"`
	Keypoints  Keypoints `json:"keypoints"`
	Detected   bool      `json:"detected"`
}
