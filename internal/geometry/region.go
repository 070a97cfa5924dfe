package geometry

import "math"

// Region is a rotated crop rectangle in working-frame normalized space.
// A crop coordinate (u, v) in [0,1]² maps to
//
//	centre + R(rotation) * ((u-0.5)*width, (v-0.5)*height)
//
// with y pointing down, so a positive rotation turns the crop clockwise on
// screen.
type Region struct {
	CenterX  float64 `json:"center_x" msgpack:"cx"`
	CenterY  float64 `json:"center_y" msgpack:"cy"`
	Width    float64 `json:"width" msgpack:"w"`
	Height   float64 `json:"height" msgpack:"h"`
	Rotation float64 `json:"rotation" msgpack:"r"`
}

// FullFrame is the region covering the whole working frame.
var FullFrame = Region{CenterX: 0.5, CenterY: 0.5, Width: 1, Height: 1}

// Valid reports whether the region has a positive area.
func (r Region) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// CropToWorking returns the affine transform from crop space to working
// space.
func (r Region) CropToWorking() Affine {
	c, s := math.Cos(r.Rotation), math.Sin(r.Rotation)
	a := c * r.Width
	b := -s * r.Height
	d := s * r.Width
	e := c * r.Height
	return Affine{
		a, b, r.CenterX - 0.5*(a+b),
		d, e, r.CenterY - 0.5*(d+e),
	}
}

// ToWorking maps a crop coordinate into working space.
func (r Region) ToWorking(u, v float64) (float64, float64) {
	return r.CropToWorking().Apply(u, v)
}

// ToCrop maps a working coordinate into crop space. A region without area
// maps every point to the crop centre.
func (r Region) ToCrop(x, y float64) (float64, float64) {
	if !r.Valid() {
		return 0.5, 0.5
	}
	dx, dy := x-r.CenterX, y-r.CenterY
	c, s := math.Cos(r.Rotation), math.Sin(r.Rotation)
	return (c*dx+s*dy)/r.Width + 0.5, (-s*dx+c*dy)/r.Height + 0.5
}

// RegionFromAffine recovers centre, size and rotation from a crop-to-working
// transform. Shear, if present, is discarded.
func RegionFromAffine(a Affine) Region {
	cx, cy := a.Apply(0.5, 0.5)
	return Region{
		CenterX:  cx,
		CenterY:  cy,
		Width:    math.Hypot(a[0], a[3]),
		Height:   math.Hypot(a[1], a[4]),
		Rotation: math.Atan2(a[3], a[0]),
	}
}

// NormalizeRadians wraps an angle into [-π, π).
func NormalizeRadians(angle float64) float64 {
	return angle - 2*math.Pi*math.Floor((angle+math.Pi)/(2*math.Pi))
}

// MirrorX returns the region as seen in a horizontally mirrored working
// frame.
func (r Region) MirrorX() Region {
	return Region{
		CenterX:  1 - r.CenterX,
		CenterY:  r.CenterY,
		Width:    r.Width,
		Height:   r.Height,
		Rotation: NormalizeRadians(-r.Rotation),
	}
}
