package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ayusman/holistic/internal/fallback"
	"github.com/ayusman/holistic/internal/geometry"
	"github.com/ayusman/holistic/internal/landmark"
	"github.com/ayusman/holistic/internal/model"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

type fixture struct {
	p    *Pipeline
	pose *model.MockPose
	face *model.MockFace
	palm *model.MockPalm
	hand *model.MockHand
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()

	set, pose, face, palm, hand := model.NewMockSet()
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	p, err := New(cfg, set)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { p.Shutdown() })

	return &fixture{p: p, pose: pose, face: face, palm: palm, hand: hand}
}

func frameAt(ts time.Duration) model.Frame {
	return model.Frame{Width: 256, Height: 256, Timestamp: ts}
}

// run processes one frame and waits for its completion.
func (f *fixture) run(t *testing.T, frame model.Frame, mode InferenceMode) *Snapshot {
	t.Helper()

	c, err := f.p.Process(frame, mode)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !c.Published() {
		t.Fatalf("frame %d was not published", c.Seq())
	}
	return f.p.Snapshot()
}

func TestNew(t *testing.T) {
	t.Run("missing adapter", func(t *testing.T) {
		set, _, _, _, _ := model.NewMockSet()
		set.Palm = nil

		_, err := New(DefaultConfig(), set)
		var rle *model.ResourceLoadError
		if !errors.As(err, &rle) {
			t.Fatalf("expected ResourceLoadError, got %v", err)
		}
		if !errors.Is(err, ErrMissingModel) {
			t.Errorf("expected ErrMissingModel, got %v", err)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		set, _, _, _, _ := model.NewMockSet()
		cfg := DefaultConfig()
		cfg.HandFallbackThreshold = 2

		if _, err := New(cfg, set); err == nil {
			t.Error("expected error for threshold outside [0, 1]")
		}
	})

	t.Run("initial snapshot", func(t *testing.T) {
		f := newFixture(t)
		snap := f.p.Snapshot()
		if snap.Seq != 0 {
			t.Errorf("initial seq = %d, want 0", snap.Seq)
		}
		for _, k := range landmark.Kinds {
			if got := snap.Set(k).Len(); got != landmark.Count(k) {
				t.Errorf("initial %s length = %d, want %d", k, got, landmark.Count(k))
			}
		}
	})
}

func TestProcess_NoBody(t *testing.T) {
	f := newFixture(t)

	snap := f.run(t, frameAt(0), ModeFull)

	if snap.Pose.Score() > 1e-9 {
		t.Errorf("pose score = %f, want ~0", snap.Pose.Score())
	}
	if snap.HumanPresent {
		t.Error("HumanPresent = true with no body")
	}
	for _, side := range landmark.Sides {
		if snap.HandPaths[side] != fallback.PoseFallback {
			t.Errorf("%s hand path = %s, want pose_fallback", side, snap.HandPaths[side])
		}
		// The hand model reports full presence but the wrist is invisible.
		if got := snap.Hand(side).Score(); got != 0 {
			t.Errorf("%s hand presence = %f, want 0", side, got)
		}
	}

	calls := f.hand.Calls()
	if len(calls) != 2 {
		t.Fatalf("hand model calls = %d, want 2", len(calls))
	}
	for _, c := range calls {
		if c.PalmDerived {
			t.Error("fallback hand crop marked palm-derived")
		}
	}

	if regions := f.face.Regions(); len(regions) != 1 || regions[0] != geometry.FullFrame {
		t.Errorf("face regions = %+v, want one full-frame region", regions)
	}
}

func TestProcess_TwoPalms(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.HandFallbackThreshold = 0.5 })
	f.pose.SetResult(model.UprightPose(0.9))

	right := geometry.Region{CenterX: 0.3, CenterY: 0.4, Width: 0.2, Height: 0.2}
	left := geometry.Region{CenterX: 0.7, CenterY: 0.4, Width: 0.2, Height: 0.2, Rotation: 0.2}
	f.palm.SetCandidates([]model.Candidate{
		{Region: right, Score: 0.9},
		{Region: left, Score: 0.8},
	})
	f.hand.Push(
		model.HandResult{Landmarks: model.CenteredHand(), Presence: 0.95, Handedness: 0.9},
		model.HandResult{Landmarks: model.CenteredHand(), Presence: 0.9, Handedness: 0.1},
	)

	snap := f.run(t, frameAt(0), ModeFull)

	for _, side := range landmark.Sides {
		if snap.HandPaths[side] != fallback.PalmTracked {
			t.Errorf("%s hand path = %s, want palm_tracked", side, snap.HandPaths[side])
		}
	}

	calls := f.hand.Calls()
	if len(calls) != 2 {
		t.Fatalf("hand model calls = %d, want 2 (no fallback)", len(calls))
	}
	for i, c := range calls {
		if !c.PalmDerived {
			t.Errorf("call %d not palm-derived", i)
		}
	}

	if got := snap.RightHand.Score(); got != 0.95 {
		t.Errorf("right presence = %f, want 0.95", got)
	}
	if got := snap.LeftHand.Score(); got != 0.9 {
		t.Errorf("left presence = %f, want 0.9", got)
	}
	if diff := cmp.Diff(right, snap.HandRegions[landmark.Right], approx); diff != "" {
		t.Errorf("right region mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(left, snap.HandRegions[landmark.Left], approx); diff != "" {
		t.Errorf("left region mismatch (-want +got):\n%s", diff)
	}

	lm, ok := f.p.GetLandmark(landmark.KindRightHand, landmark.NumHandLandmarks)
	if !ok || lm.X != 0.95 || lm.Y != 0.9 {
		t.Errorf("GetLandmark(right hand score) = %+v, %v", lm, ok)
	}
}

func TestProcess_LowPresenceFallsBack(t *testing.T) {
	f := newFixture(t)
	f.pose.SetResult(model.UprightPose(0.8))
	f.palm.SetCandidates([]model.Candidate{
		{Region: geometry.Region{CenterX: 0.3, CenterY: 0.4, Width: 0.2, Height: 0.2}, Score: 0.7},
	})
	f.hand.Push(model.HandResult{Landmarks: model.CenteredHand(), Presence: 0.2, Handedness: 0.9})

	snap := f.run(t, frameAt(0), ModeFull)

	for _, side := range landmark.Sides {
		if snap.HandPaths[side] != fallback.PoseFallback {
			t.Errorf("%s hand path = %s, want pose_fallback", side, snap.HandPaths[side])
		}
		// Default hand presence 1 is capped by wrist visibility.
		if got := snap.Hand(side).Score(); got != 0.8 {
			t.Errorf("%s presence = %f, want 0.8", side, got)
		}
	}

	calls := f.hand.Calls()
	if len(calls) != 3 {
		t.Fatalf("hand model calls = %d, want 3", len(calls))
	}
	if !calls[0].PalmDerived || calls[1].PalmDerived || calls[2].PalmDerived {
		t.Errorf("unexpected crop paths: %+v", calls)
	}
}

func TestProcess_PoseOnly(t *testing.T) {
	f := newFixture(t)
	f.pose.SetResult(model.UprightPose(0.9))

	// Fresh pipeline: face and hand buffers keep their defaults.
	snap := f.run(t, frameAt(0), ModePoseOnly)
	if f.face.Calls() != 0 || f.palm.Calls() != 0 || len(f.hand.Calls()) != 0 {
		t.Fatalf("calls face=%d palm=%d hand=%d, want 0", f.face.Calls(), f.palm.Calls(), len(f.hand.Calls()))
	}
	if diff := cmp.Diff(landmark.NewSet(landmark.KindFace), snap.Face); diff != "" {
		t.Errorf("face buffer changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(landmark.NewSet(landmark.KindLeftHand), snap.LeftHand); diff != "" {
		t.Errorf("left hand buffer changed (-want +got):\n%s", diff)
	}
	if snap.Pose.Score() != 0.9 {
		t.Errorf("pose score = %f, want 0.9", snap.Pose.Score())
	}

	// After a full frame, pose_only keeps the last published face and hands.
	full := f.run(t, frameAt(33*time.Millisecond), ModeFull)
	faceCalls, palmCalls, handCalls := f.face.Calls(), f.palm.Calls(), len(f.hand.Calls())

	f.pose.SetResult(model.UprightPose(0.6))
	snap = f.run(t, frameAt(66*time.Millisecond), ModePoseOnly)

	if f.face.Calls() != faceCalls || f.palm.Calls() != palmCalls || len(f.hand.Calls()) != handCalls {
		t.Error("pose_only invoked face or hand models")
	}
	if diff := cmp.Diff(full.Face, snap.Face); diff != "" {
		t.Errorf("face buffer changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(full.RightHand, snap.RightHand); diff != "" {
		t.Errorf("right hand buffer changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(full.LeftEyeCrop, snap.LeftEyeCrop); diff != "" {
		t.Errorf("eye crop changed (-want +got):\n%s", diff)
	}
	if snap.Pose.Score() != 0.6 {
		t.Errorf("pose score = %f, want 0.6", snap.Pose.Score())
	}
}

func TestProcess_Modes(t *testing.T) {
	tests := []struct {
		mode                 InferenceMode
		pose, face, palmHand bool
	}{
		{ModeFull, true, true, true},
		{ModePoseOnly, true, false, false},
		{ModeFaceOnly, false, true, false},
		{ModePoseAndFace, true, true, false},
		{ModePoseAndHand, true, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			f := newFixture(t)
			f.run(t, frameAt(0), tt.mode)

			if got := f.pose.Calls() > 0; got != tt.pose {
				t.Errorf("pose ran = %v, want %v", got, tt.pose)
			}
			if got := f.face.Calls() > 0; got != tt.face {
				t.Errorf("face ran = %v, want %v", got, tt.face)
			}
			if got := f.palm.Calls() > 0; got != tt.palmHand {
				t.Errorf("palm ran = %v, want %v", got, tt.palmHand)
			}
		})
	}
}

func TestProcess_FaceFromPose(t *testing.T) {
	f := newFixture(t)
	f.pose.SetResult(model.UprightPose(0.9))

	snap := f.run(t, frameAt(0), ModePoseAndFace)

	if !snap.HumanPresent {
		t.Error("HumanPresent = false")
	}
	regions := f.face.Regions()
	if len(regions) != 1 || regions[0] == geometry.FullFrame {
		t.Fatalf("face regions = %+v, want one pose-derived region", regions)
	}
	if snap.FaceRegion != regions[0] {
		t.Errorf("snapshot face region = %+v, want %+v", snap.FaceRegion, regions[0])
	}

	// Identity eye crops reconcile to the horizontal mirror.
	want := geometry.MirrorX.Matrix4x4()
	if diff := cmp.Diff(want, snap.EyeCrop(landmark.Left), approx); diff != "" {
		t.Errorf("eye crop mismatch (-want +got):\n%s", diff)
	}
}

func TestProcess_AdapterErrors(t *testing.T) {
	f := newFixture(t)
	f.pose.SetError(errors.New("pose down"))
	f.face.SetError(errors.New("face down"))
	f.palm.SetError(errors.New("palm down"))
	f.hand.SetError(errors.New("hand down"))

	snap := f.run(t, frameAt(0), ModeFull)

	if snap.Pose.Score() != 0 || snap.FaceScore != 0 {
		t.Errorf("scores pose=%f face=%f, want 0", snap.Pose.Score(), snap.FaceScore)
	}
	for _, side := range landmark.Sides {
		if snap.Hand(side).Score() != 0 {
			t.Errorf("%s presence = %f, want 0", side, snap.Hand(side).Score())
		}
	}
}

func TestProcess_InvalidFrame(t *testing.T) {
	f := newFixture(t)
	if _, err := f.p.Process(model.Frame{}, ModeFull); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("Process() error = %v, want ErrInvalidFrame", err)
	}
	if _, err := f.p.Process(frameAt(0), "hands_only"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestProcess_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.pose.SetResult(model.UprightPose(0.9))
	f.palm.SetCandidates([]model.Candidate{
		{Region: geometry.Region{CenterX: 0.35, CenterY: 0.3, Width: 0.2, Height: 0.2, Rotation: 0.1}, Score: 0.9},
	})

	frame := model.Frame{Width: 640, Height: 480, Timestamp: time.Second}

	first := f.run(t, frame, ModeFull)
	f.p.Reset()
	second := f.run(t, frame, ModeFull)

	for _, k := range landmark.Kinds {
		if diff := cmp.Diff(first.Set(k), second.Set(k), approx); diff != "" {
			t.Errorf("%s differs between identical runs (-first +second):\n%s", k, diff)
		}
	}
	if first.HandPaths != second.HandPaths {
		t.Errorf("hand paths differ: %v vs %v", first.HandPaths, second.HandPaths)
	}
	if second.Seq <= first.Seq {
		t.Errorf("seq did not advance: %d then %d", first.Seq, second.Seq)
	}
}

func TestPublish_Monotonic(t *testing.T) {
	f := newFixture(t)

	if !f.p.publish(&Snapshot{Seq: 10}) {
		t.Fatal("publish(10) rejected")
	}
	if f.p.publish(&Snapshot{Seq: 5}) {
		t.Error("publish(5) accepted after 10")
	}
	if f.p.publish(&Snapshot{Seq: 10}) {
		t.Error("publish(10) accepted twice")
	}
	if got := f.p.Snapshot().Seq; got != 10 {
		t.Errorf("published seq = %d, want 10", got)
	}

	// A frame completing behind a newer snapshot is dropped.
	c, err := f.p.Process(frameAt(0), ModePoseOnly)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if c.Snapshot() != nil && !isDone(c) {
		t.Error("Snapshot() should be nil before Done")
	}
	<-c.Done()
	if c.Published() {
		t.Error("stale frame was published")
	}
	if snap := c.Snapshot(); snap == nil || snap.Seq != c.Seq() {
		t.Errorf("Snapshot() = %v, want the reconciled frame %d", snap, c.Seq())
	}
	if got := f.p.Snapshot().Seq; got != 10 {
		t.Errorf("published seq = %d after stale frame, want 10", got)
	}
}

func isDone(c *Completion) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

func TestGetLandmark(t *testing.T) {
	f := newFixture(t)
	f.pose.SetResult(model.UprightPose(0.7))
	f.run(t, frameAt(0), ModePoseOnly)

	lm, ok := f.p.GetLandmark(landmark.KindPose, landmark.PoseLeftWrist)
	if !ok || lm.X != 0.7 || lm.Y != 0.4 {
		t.Errorf("left wrist = %+v, %v", lm, ok)
	}
	if _, ok := f.p.GetLandmark(landmark.KindFace, landmark.NumFaceLandmarks); ok {
		t.Error("out-of-range index returned ok")
	}
	if _, ok := f.p.GetLandmark(landmark.Kind(99), 0); ok {
		t.Error("unknown kind returned ok")
	}
}

func TestShutdown(t *testing.T) {
	set, pose, face, palm, hand := model.NewMockSet()
	p, err := New(DefaultConfig(), set)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	c, err := p.Process(frameAt(0), ModeFull)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if err := p.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := p.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}

	// In-flight work finishes before the adapters close.
	select {
	case <-c.Done():
	default:
		t.Error("in-flight completion not finished after Shutdown")
	}

	if pose.Closed() != 1 || face.Closed() != 1 || palm.Closed() != 1 || hand.Closed() != 1 {
		t.Errorf("close counts pose=%d face=%d palm=%d hand=%d, want 1 each",
			pose.Closed(), face.Closed(), palm.Closed(), hand.Closed())
	}

	if _, err := p.Process(frameAt(time.Second), ModeFull); !errors.Is(err, ErrShutdown) {
		t.Errorf("Process() after Shutdown error = %v, want ErrShutdown", err)
	}
}

func TestParseInferenceMode(t *testing.T) {
	for _, m := range Modes {
		got, err := ParseInferenceMode(string(m))
		if err != nil || got != m {
			t.Errorf("ParseInferenceMode(%q) = %q, %v", m, got, err)
		}
	}
	if _, err := ParseInferenceMode("everything"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
