package integrity

import (
	"image"
	"math/bits"

	"gocv.io/x/gocv"
)

// DHash computes a 64-bit difference hash of the frame: grayscale,
// shrink to 9x8, then one bit per horizontal neighbor comparison.
// Near-identical frames land within a small Hamming distance of each
// other regardless of compression noise.
func DHash(frame *gocv.Mat) uint64 {
	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(gray, &small, image.Pt(9, 8), 0, 0, gocv.InterpolationArea)

	var hash uint64
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			hash <<= 1
			if small.GetUCharAt(row, col) > small.GetUCharAt(row, col+1) {
				hash |= 1
			}
		}
	}
	return hash
}

// HammingDistance counts the differing bits of two hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
