package tracker

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ayusman/holistic/internal/geometry"
	"github.com/ayusman/holistic/internal/landmark"
	"github.com/ayusman/holistic/internal/model"
)

const epsilon = 1e-9

var approx = cmpopts.EquateApprox(0, 1e-9)

// square is a letterbox that maps frame and working space one to one.
var square = geometry.NewLetterbox(256, 256, 256)

func poseWithForearm(side landmark.Side, ex, ey, wx, wy, vis float64) landmark.Set {
	p := landmark.NewSet(landmark.KindPose)
	wrist, elbow := landmark.PoseLeftWrist, landmark.PoseLeftElbow
	if side == landmark.Right {
		wrist, elbow = landmark.PoseRightWrist, landmark.PoseRightElbow
	}
	p.Points[elbow] = landmark.Landmark{X: ex, Y: ey, W: vis}
	p.Points[wrist] = landmark.Landmark{X: wx, Y: wy, W: vis}
	p.SetScore(vis)
	return p
}

func TestHandRegionFromPose(t *testing.T) {
	tr := New(DefaultConfig())

	t.Run("upright forearm", func(t *testing.T) {
		pose := model.UprightPose(0.9).Landmarks
		r, vis := tr.HandRegionFromPose(pose, square, landmark.Left)

		want := geometry.Region{CenterX: 0.7, CenterY: 0.4 - 0.24*0.35, Width: 0.24, Height: 0.24}
		if diff := cmp.Diff(want, r, approx); diff != "" {
			t.Errorf("region mismatch (-want +got):\n%s", diff)
		}
		if vis != 0.9 {
			t.Errorf("wrist visibility = %f, want 0.9", vis)
		}

		// The wrist sits on the crop's vertical axis, inside the near edge.
		u, v := r.ToCrop(0.7, 0.4)
		if math.Abs(u-0.5) > epsilon || math.Abs(v-0.85) > epsilon {
			t.Errorf("wrist in crop = (%f, %f), want (0.5, 0.85)", u, v)
		}
	})

	t.Run("forearm pointing right", func(t *testing.T) {
		pose := poseWithForearm(landmark.Right, 0.5, 0.5, 0.7, 0.5, 1)
		r, _ := tr.HandRegionFromPose(pose, square, landmark.Right)

		if math.Abs(r.Rotation-math.Pi/2) > epsilon {
			t.Errorf("rotation = %f, want π/2", r.Rotation)
		}
		// Crop "up" points along the forearm.
		x, y := r.ToWorking(0.5, 0)
		if x <= r.CenterX || math.Abs(y-r.CenterY) > epsilon {
			t.Errorf("crop top centre at (%f, %f), want right of centre", x, y)
		}
	})

	t.Run("low visibility yields best-effort box", func(t *testing.T) {
		pose := poseWithForearm(landmark.Left, 0.5, 0.5, 0.6, 0.3, 0.05)
		r, vis := tr.HandRegionFromPose(pose, square, landmark.Left)

		want := geometry.Region{CenterX: 0.6, CenterY: 0.3, Width: 0.15, Height: 0.15}
		if diff := cmp.Diff(want, r, approx); diff != "" {
			t.Errorf("region mismatch (-want +got):\n%s", diff)
		}
		if vis != 0.05 {
			t.Errorf("wrist visibility = %f, want 0.05", vis)
		}
	})

	t.Run("no body still yields a region", func(t *testing.T) {
		r, vis := tr.HandRegionFromPose(landmark.NewSet(landmark.KindPose), square, landmark.Right)
		if !r.Valid() {
			t.Errorf("region %+v is not valid", r)
		}
		if vis != 0 {
			t.Errorf("wrist visibility = %f, want 0", vis)
		}
	})

	t.Run("letterboxed frame", func(t *testing.T) {
		lb := geometry.NewLetterbox(640, 480, 256)
		pose := poseWithForearm(landmark.Left, 0.5, 0.5, 0.5, 0.3, 1)
		r, _ := tr.HandRegionFromPose(pose, lb, landmark.Left)

		// 0.2 of frame height is 0.15 of working height.
		if math.Abs(r.Width-0.15*1.6) > epsilon {
			t.Errorf("width = %f, want %f", r.Width, 0.15*1.6)
		}
	})
}

func TestFaceRegionFromPose(t *testing.T) {
	tr := New(DefaultConfig())

	t.Run("below threshold", func(t *testing.T) {
		r, ok := tr.FaceRegionFromPose(model.UprightPose(0.2).Landmarks, square, 0.5)
		if ok {
			t.Error("expected ok=false")
		}
		if r != geometry.FullFrame {
			t.Errorf("region = %+v, want full frame", r)
		}
	})

	t.Run("upright head", func(t *testing.T) {
		r, ok := tr.FaceRegionFromPose(model.UprightPose(0.9).Landmarks, square, 0.5)
		if !ok {
			t.Fatal("expected ok=true")
		}
		want := geometry.Region{CenterX: 0.5, CenterY: 0.255, Width: 0.12 * 2.2, Height: 0.12 * 2.2}
		if diff := cmp.Diff(want, r, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
			t.Errorf("region mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestFromPalm(t *testing.T) {
	prev := geometry.Region{CenterX: 0.3, CenterY: 0.5, Width: 0.2, Height: 0.2}
	next := geometry.Region{CenterX: 0.35, CenterY: 0.5, Width: 0.2, Height: 0.2}
	cand := []model.Candidate{{Region: next, Score: 0.9}}

	t.Run("first sighting is adopted", func(t *testing.T) {
		tr := New(DefaultConfig())
		got := tr.FromPalm(cand, time.Second)
		if diff := cmp.Diff([]geometry.Region{next}, got, approx); diff != "" {
			t.Errorf("regions mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("same timestamp is adopted", func(t *testing.T) {
		tr := New(DefaultConfig())
		tr.Update(landmark.Left, HandState{Region: prev, HasRegion: true, Timestamp: time.Second})
		got := tr.FromPalm(cand, time.Second)
		if diff := cmp.Diff([]geometry.Region{next}, got, approx); diff != "" {
			t.Errorf("regions mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("blended by elapsed time", func(t *testing.T) {
		tr := New(DefaultConfig())
		tr.Update(landmark.Left, HandState{Region: prev, HasRegion: true, Timestamp: time.Second})
		got := tr.FromPalm(cand, time.Second+50*time.Millisecond)

		alpha := 1 - math.Exp(-1)
		want := 0.3 + alpha*0.05
		if math.Abs(got[0].CenterX-want) > epsilon {
			t.Errorf("centre x = %f, want %f", got[0].CenterX, want)
		}
	})

	t.Run("distant previous region is ignored", func(t *testing.T) {
		tr := New(DefaultConfig())
		tr.Update(landmark.Left, HandState{Region: prev, HasRegion: true, Timestamp: time.Second})
		far := []model.Candidate{{Region: geometry.Region{CenterX: 0.8, CenterY: 0.5, Width: 0.2, Height: 0.2}}}
		got := tr.FromPalm(far, time.Second+30*time.Millisecond)
		if got[0].CenterX != 0.8 {
			t.Errorf("centre x = %f, want 0.8", got[0].CenterX)
		}
	})

	t.Run("two candidates never share a previous region", func(t *testing.T) {
		tr := New(DefaultConfig())
		tr.Update(landmark.Left, HandState{Region: prev, HasRegion: true, Timestamp: time.Second})
		both := []model.Candidate{{Region: next}, {Region: geometry.Region{CenterX: 0.32, CenterY: 0.5, Width: 0.2, Height: 0.2}}}
		got := tr.FromPalm(both, time.Second+30*time.Millisecond)
		if got[1].CenterX != 0.32 {
			t.Errorf("second centre x = %f, want 0.32 unblended", got[1].CenterX)
		}
	})
}

func TestBlend(t *testing.T) {
	prev := geometry.Region{Rotation: 3.0, Width: 1, Height: 1}
	next := geometry.Region{Rotation: -3.1, Width: 1, Height: 1}

	got := Blend(prev, next, 0.5)
	want := 3.0 + 0.5*(2*math.Pi-6.1)
	if math.Abs(got.Rotation-want) > 1e-9 {
		t.Errorf("rotation = %f, want %f along the short arc", got.Rotation, want)
	}

	if got := Blend(prev, next, 1); got != next {
		t.Errorf("alpha 1 = %+v, want next", got)
	}
}

func TestReset(t *testing.T) {
	tr := New(DefaultConfig())
	tr.Update(landmark.Right, HandState{HasRegion: true, Confidence: 0.9})
	tr.Reset()
	if tr.State(landmark.Right) != (HandState{}) {
		t.Errorf("state after reset = %+v", tr.State(landmark.Right))
	}
}
