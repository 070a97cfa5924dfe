package imaging

import (
	"math"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/holistic/internal/geometry"
)

func TestCropMatrix(t *testing.T) {
	r := geometry.Region{CenterX: 0.5, CenterY: 0.25, Width: 0.5, Height: 0.5}

	t.Run("crop centre lands on region centre", func(t *testing.T) {
		x, y := CropMatrix(r, 256, 224, false).Apply(112, 112)
		if math.Abs(x-128) > 1e-9 || math.Abs(y-64) > 1e-9 {
			t.Errorf("centre mapped to (%f, %f), want (128, 64)", x, y)
		}
	})

	t.Run("flip swaps top and bottom rows", func(t *testing.T) {
		_, top := CropMatrix(r, 256, 224, false).Apply(0, 0)
		_, flippedTop := CropMatrix(r, 256, 224, true).Apply(0, 0)

		if math.Abs(top-0) > 1e-9 {
			t.Errorf("unflipped top row at y=%f, want 0", top)
		}
		if math.Abs(flippedTop-128) > 1e-9 {
			t.Errorf("flipped top row at y=%f, want 128", flippedTop)
		}
	})
}

func TestLetterbox(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	src := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer src.Close()
	src.SetTo(gocv.NewScalar(255, 255, 255, 0))

	lb := geometry.NewLetterbox(640, 480, 256)
	dst, err := Letterbox(src, lb)
	if err != nil {
		t.Fatalf("Letterbox() error = %v", err)
	}
	defer dst.Close()

	if dst.Rows() != 256 || dst.Cols() != 256 {
		t.Fatalf("letterboxed size = %dx%d, want 256x256", dst.Cols(), dst.Rows())
	}

	// Padding rows are black, content rows keep the source colour.
	if v := dst.GetVecbAt(5, 128)[0]; v != 0 {
		t.Errorf("padding pixel = %d, want 0", v)
	}
	if v := dst.GetVecbAt(128, 128)[0]; v != 255 {
		t.Errorf("content pixel = %d, want 255", v)
	}
}

func TestCrop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	working := gocv.NewMatWithSize(256, 256, gocv.MatTypeCV8UC3)
	defer working.Close()

	crop, err := Crop(working, geometry.Region{CenterX: 0.5, CenterY: 0.5, Width: 0.5, Height: 0.5, Rotation: 0.4}, 224, true)
	if err != nil {
		t.Fatalf("Crop() error = %v", err)
	}
	defer crop.Close()

	if crop.Rows() != 224 || crop.Cols() != 224 {
		t.Errorf("crop size = %dx%d, want 224x224", crop.Cols(), crop.Rows())
	}

	if _, err := Crop(working, geometry.Region{}, 224, false); err == nil {
		t.Error("expected error for a zero-sized region")
	}
}
