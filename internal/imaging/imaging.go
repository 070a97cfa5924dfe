// Package imaging implements the pixel-level primitives the model adapters
// need: letterboxing a frame into the square working buffer and sampling a
// rotated region crop out of it.
package imaging

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/holistic/internal/geometry"
)

// Letterbox rescales src into a size x size buffer, centring the content
// and padding the shorter axis with black. The caller owns the returned Mat.
func Letterbox(src gocv.Mat, lb geometry.Letterbox) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), fmt.Errorf("letterbox: empty source")
	}
	if lb.Size <= 0 {
		return gocv.NewMat(), fmt.Errorf("letterbox: invalid working size %d", lb.Size)
	}

	x, y, w, h := lb.ContentRect()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(src, &resized, image.Point{X: w, Y: h}, 0, 0, gocv.InterpolationLinear)

	dst := gocv.NewMat()
	gocv.CopyMakeBorder(resized, &dst,
		y, lb.Size-h-y,
		x, lb.Size-w-x,
		gocv.BorderConstant, color.RGBA{})

	return dst, nil
}

// Crop samples region r of the working image into a size x size buffer.
// When flipV is set the crop is sampled bottom-up, matching the orientation
// of palm-derived crops. The caller owns the returned Mat.
func Crop(working gocv.Mat, r geometry.Region, size int, flipV bool) (gocv.Mat, error) {
	if working.Empty() {
		return gocv.NewMat(), fmt.Errorf("crop: empty source")
	}
	if !r.Valid() || size <= 0 {
		return gocv.NewMat(), fmt.Errorf("crop: invalid region %+v or size %d", r, size)
	}

	fwd, err := CropMatrix(r, working.Cols(), size, flipV).Inverse()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("crop: %w", err)
	}

	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	defer m.Close()
	for i, v := range fwd {
		m.SetDoubleAt(i/3, i%3, v)
	}

	dst := gocv.NewMat()
	gocv.WarpAffineWithParams(working, &dst, m, image.Point{X: size, Y: size},
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})

	return dst, nil
}

// CropMatrix returns the transform from crop pixel coordinates to working
// pixel coordinates for a working buffer of workingSize pixels.
func CropMatrix(r geometry.Region, workingSize, size int, flipV bool) geometry.Affine {
	toUnit := geometry.Scale(1/float64(size), 1/float64(size))
	if flipV {
		toUnit = toUnit.Then(geometry.MirrorY)
	}
	s := float64(workingSize)
	return toUnit.Then(r.CropToWorking()).Then(geometry.Scale(s, s))
}

// EncodeJPEG encodes img for transport to the model service.
func EncodeJPEG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(".jpg", img)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// FlipHorizontal returns a left-right mirrored copy of img. The caller owns
// the returned Mat.
func FlipHorizontal(img gocv.Mat) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.NewMat(), fmt.Errorf("flip: empty source")
	}
	dst := gocv.NewMat()
	gocv.Flip(img, &dst, 1)
	return dst, nil
}
