package store

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ayusman/holistic/internal/fallback"
	"github.com/ayusman/holistic/internal/geometry"
	"github.com/ayusman/holistic/internal/landmark"
	"github.com/ayusman/holistic/internal/pipeline"
)

func testSnapshot(seq uint64) *pipeline.Snapshot {
	snap := &pipeline.Snapshot{
		Seq:          seq,
		Timestamp:    time.Duration(seq) * 66 * time.Millisecond,
		Mode:         pipeline.ModeFull,
		FrameWidth:   640,
		FrameHeight:  480,
		Pose:         landmark.NewSet(landmark.KindPose),
		PoseWorld:    landmark.NewSet(landmark.KindPoseWorld),
		Face:         landmark.NewSet(landmark.KindFace),
		LeftEye:      landmark.NewSet(landmark.KindLeftEye),
		RightEye:     landmark.NewSet(landmark.KindRightEye),
		LeftHand:     landmark.NewSet(landmark.KindLeftHand),
		RightHand:    landmark.NewSet(landmark.KindRightHand),
		LeftEyeCrop:  geometry.Identity.Matrix4x4(),
		RightEyeCrop: geometry.Identity.Matrix4x4(),
		FaceRegion:   geometry.Region{CenterX: 0.5, CenterY: 0.3, Width: 0.2, Height: 0.2, Rotation: 0.1},
		HandPaths:    [2]fallback.State{fallback.PalmTracked, fallback.PoseFallback},
		HumanPresent: true,
	}
	snap.Pose.Points[0] = landmark.Landmark{X: 0.5, Y: 0.25, Z: -0.1, W: 0.9}
	snap.LeftHand.Points[0] = landmark.Landmark{X: 0.3, Y: 0.6, W: 1}
	snap.LeftHand.SetScore(0.8)
	return snap
}

func TestFrameRepository_AppendList(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{Mode: "full"}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Appended out of order; List returns sequence order.
	want := []*pipeline.Snapshot{testSnapshot(1), testSnapshot(2), testSnapshot(3)}
	for _, i := range []int{2, 0, 1} {
		if err := s.Frames().Append(sess.ID, want[i]); err != nil {
			t.Fatalf("Append(%d) error = %v", want[i].Seq, err)
		}
	}

	got, err := s.Frames().List(sess.ID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}

	n, err := s.Frames().Count(sess.ID)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
}

func TestFrameRepository_DuplicateSeq(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{Mode: "full"}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Frames().Append(sess.ID, testSnapshot(7)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Frames().Append(sess.ID, testSnapshot(7)); err == nil {
		t.Error("appending the same seq twice should fail")
	}
}

func TestFrameRepository_UnknownSession(t *testing.T) {
	s := newTestStore(t)

	if err := s.Frames().Append("missing", testSnapshot(1)); err == nil {
		t.Error("Append() to a missing session should fail the foreign key")
	}
}

func TestFrameRepository_Summaries(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{Mode: "full"}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	snap := testSnapshot(4)
	if err := s.Frames().Append(sess.ID, snap); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := s.Frames().Summaries(sess.ID)
	if err != nil {
		t.Fatalf("Summaries() error = %v", err)
	}
	want := []FrameSummary{{
		Seq:          4,
		TimestampMs:  264,
		HumanPresent: true,
		LeftPath:     "palm_tracked",
		RightPath:    "pose_fallback",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Summaries() mismatch (-want +got):\n%s", diff)
	}
}
