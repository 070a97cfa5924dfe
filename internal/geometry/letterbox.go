package geometry

import "math"

// DefaultWorkingSize is the side length in pixels of the square working frame.
const DefaultWorkingSize = 256

// Letterbox maps an arbitrary-aspect frame into a fixed square working frame
// with the shorter axis centred between symmetric padding.
//
// With scale = (max(H/W,1), max(1,W/H)) and pad = (scale-1)/2:
//
//	frame   = working*scale - pad
//	working = (frame + pad) / scale
type Letterbox struct {
	FrameWidth  int     `json:"frame_width"`
	FrameHeight int     `json:"frame_height"`
	Size        int     `json:"size"`
	ScaleX      float64 `json:"scale_x"`
	ScaleY      float64 `json:"scale_y"`
}

// NewLetterbox computes the letterbox for a w x h frame and a square working
// frame of the given size. Degenerate dimensions yield the identity mapping.
func NewLetterbox(w, h, size int) Letterbox {
	l := Letterbox{FrameWidth: w, FrameHeight: h, Size: size, ScaleX: 1, ScaleY: 1}
	if w <= 0 || h <= 0 {
		return l
	}
	fw, fh := float64(w), float64(h)
	l.ScaleX = math.Max(fh/fw, 1)
	l.ScaleY = math.Max(1, fw/fh)
	return l
}

// PadX returns the normalized x offset removed by the inverse mapping.
func (l Letterbox) PadX() float64 {
	return (l.ScaleX - 1) / 2
}

// PadY returns the normalized y offset removed by the inverse mapping.
func (l Letterbox) PadY() float64 {
	return (l.ScaleY - 1) / 2
}

// ToFrame maps a working-frame coordinate to a frame-relative one.
func (l Letterbox) ToFrame(x, y float64) (float64, float64) {
	return x*l.ScaleX - l.PadX(), y*l.ScaleY - l.PadY()
}

// ToWorking maps a frame-relative coordinate into the working frame.
func (l Letterbox) ToWorking(x, y float64) (float64, float64) {
	return (x + l.PadX()) / l.ScaleX, (y + l.PadY()) / l.ScaleY
}

// WorkingToFrame returns ToFrame as an affine transform.
func (l Letterbox) WorkingToFrame() Affine {
	return Affine{l.ScaleX, 0, -l.PadX(), 0, l.ScaleY, -l.PadY()}
}

// FrameToWorking returns ToWorking as an affine transform.
func (l Letterbox) FrameToWorking() Affine {
	return Affine{1 / l.ScaleX, 0, l.PadX() / l.ScaleX, 0, 1 / l.ScaleY, l.PadY() / l.ScaleY}
}

// ContentRect returns the pixel rectangle of the working frame covered by
// the original frame as (x, y, width, height).
func (l Letterbox) ContentRect() (int, int, int, int) {
	s := float64(l.Size)
	cw := s / l.ScaleX
	ch := s / l.ScaleY
	x := (s - cw) / 2
	y := (s - ch) / 2
	return int(math.Round(x)), int(math.Round(y)), int(math.Round(cw)), int(math.Round(ch))
}
