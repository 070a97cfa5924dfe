// Package testdata generates synthetic frames for capture and end-to-end
// tests.
package testdata

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// MovingSquare returns count BGR frames of size w x h, each with a white
// square shifted further right, so consecutive frames differ.
func MovingSquare(w, h, count int) []*gocv.Mat {
	side := h / 4
	step := 0
	if count > 1 {
		step = (w - side) / (count - 1)
	}

	frames := make([]*gocv.Mat, count)
	for i := range frames {
		m := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
		x := i * step
		y := (h - side) / 2
		gocv.Rectangle(&m, image.Rect(x, y, x+side, y+side), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
		frames[i] = &m
	}
	return frames
}

// Still returns count identical black frames of size w x h.
func Still(w, h, count int) []*gocv.Mat {
	frames := make([]*gocv.Mat, count)
	for i := range frames {
		m := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	return frames
}

// Close releases every frame.
func Close(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}
