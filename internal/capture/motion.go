package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/holistic/internal/model"
)

// Motion detection constants
const (
	// AnalysisWidth is the width frames are shrunk to before differencing.
	AnalysisWidth = 160
	// GaussianBlurSize is the blur kernel applied to the shrunk frame.
	GaussianBlurSize = 7
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
)

// MotionDetector gates the capture loop between idle and active rates by
// differencing consecutive frames.
type MotionDetector struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionDetector creates a MotionDetector. threshold is the percentage of
// changed pixels that counts as motion; 1.0 means 1%.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one and returns whether motion
// was seen and the changed-pixel percentage. The first frame only sets the
// baseline. A frame without pixels always counts as motion so that pixel-less
// sources are never throttled.
func (m *MotionDetector) Detect(frame model.Frame) (bool, float64) {
	if frame.Image == nil {
		return true, 100
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if frame.Image.Empty() {
		return false, 0
	}

	blurred := shrinkGray(*frame.Image)
	defer blurred.Close()

	if !m.initialized || m.prevGray.Rows() != blurred.Rows() || m.prevGray.Cols() != blurred.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changePercent := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	blurred.CopyTo(&m.prevGray)

	return changePercent > m.threshold, changePercent
}

// shrinkGray converts img to a blurred grayscale image AnalysisWidth wide.
func shrinkGray(img gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()

	if img.Channels() > 1 {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	} else {
		img.CopyTo(&gray)
	}

	small := gocv.NewMat()
	defer small.Close()
	if gray.Cols() > AnalysisWidth {
		h := gray.Rows() * AnalysisWidth / gray.Cols()
		gocv.Resize(gray, &small, image.Point{X: AnalysisWidth, Y: h}, 0, 0, gocv.InterpolationArea)
	} else {
		gray.CopyTo(&small)
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(small, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)
	return blurred
}

// Reset drops the baseline frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
}

// Close releases the baseline frame. The detector may be reused afterwards.
func (m *MotionDetector) Close() {
	m.Reset()
}

// SetThreshold sets the motion threshold. Values less than or equal to 0 are
// ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}
