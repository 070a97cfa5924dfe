package pipeline

import (
	"time"

	"github.com/ayusman/holistic/internal/fallback"
	"github.com/ayusman/holistic/internal/geometry"
	"github.com/ayusman/holistic/internal/landmark"
)

// Timing holds per-stage durations for one frame.
type Timing struct {
	Pose      time.Duration `json:"pose" msgpack:"pose"`
	Face      time.Duration `json:"face" msgpack:"face"`
	Palm      time.Duration `json:"palm" msgpack:"palm"`
	Hand      time.Duration `json:"hand" msgpack:"hand"`
	Reconcile time.Duration `json:"reconcile" msgpack:"reconcile"`
	Total     time.Duration `json:"total" msgpack:"total"`
}

// Snapshot is one fully reconciled, published result. Published snapshots
// are never modified; readers may hold them indefinitely.
type Snapshot struct {
	Seq         uint64        `json:"seq" msgpack:"seq"`
	Timestamp   time.Duration `json:"timestamp" msgpack:"ts"`
	Mode        InferenceMode `json:"mode" msgpack:"mode"`
	FrameWidth  int           `json:"frame_width" msgpack:"fw"`
	FrameHeight int           `json:"frame_height" msgpack:"fh"`

	Pose      landmark.Set `json:"pose" msgpack:"pose"`
	PoseWorld landmark.Set `json:"pose_world" msgpack:"pose_world"`
	Face      landmark.Set `json:"face" msgpack:"face"`
	LeftEye   landmark.Set `json:"left_eye" msgpack:"left_eye"`
	RightEye  landmark.Set `json:"right_eye" msgpack:"right_eye"`
	LeftHand  landmark.Set `json:"left_hand" msgpack:"left_hand"`
	RightHand landmark.Set `json:"right_hand" msgpack:"right_hand"`

	// LeftEyeCrop and RightEyeCrop map eye-crop space to frame space as
	// row-major 4x4 matrices.
	LeftEyeCrop  [16]float64 `json:"left_eye_crop" msgpack:"left_eye_crop"`
	RightEyeCrop [16]float64 `json:"right_eye_crop" msgpack:"right_eye_crop"`

	FaceRegion   geometry.Region    `json:"face_region" msgpack:"face_region"`
	FaceScore    float64            `json:"face_score" msgpack:"face_score"`
	HandRegions  [2]geometry.Region `json:"hand_regions" msgpack:"hand_regions"`
	HandPaths    [2]fallback.State  `json:"hand_paths" msgpack:"hand_paths"`
	HumanPresent bool               `json:"human_present" msgpack:"human_present"`

	Timing Timing `json:"timing" msgpack:"timing"`
}

// emptySnapshot is the value readers see before the first publish.
func emptySnapshot() *Snapshot {
	id := geometry.Identity.Matrix4x4()
	return &Snapshot{
		Pose:         landmark.NewSet(landmark.KindPose),
		PoseWorld:    landmark.NewSet(landmark.KindPoseWorld),
		Face:         landmark.NewSet(landmark.KindFace),
		LeftEye:      landmark.NewSet(landmark.KindLeftEye),
		RightEye:     landmark.NewSet(landmark.KindRightEye),
		LeftHand:     landmark.NewSet(landmark.KindLeftHand),
		RightHand:    landmark.NewSet(landmark.KindRightHand),
		LeftEyeCrop:  id,
		RightEyeCrop: id,
		FaceRegion:   geometry.FullFrame,
	}
}

// Set returns the buffer for kind k.
func (s *Snapshot) Set(k landmark.Kind) landmark.Set {
	switch k {
	case landmark.KindPose:
		return s.Pose
	case landmark.KindPoseWorld:
		return s.PoseWorld
	case landmark.KindFace:
		return s.Face
	case landmark.KindLeftEye:
		return s.LeftEye
	case landmark.KindRightEye:
		return s.RightEye
	case landmark.KindLeftHand:
		return s.LeftHand
	case landmark.KindRightHand:
		return s.RightHand
	}
	return landmark.Set{Kind: k}
}

// Hand returns the hand buffer for side.
func (s *Snapshot) Hand(side landmark.Side) landmark.Set {
	return s.Set(landmark.HandKind(side))
}

// Eye returns the eye buffer for side.
func (s *Snapshot) Eye(side landmark.Side) landmark.Set {
	return s.Set(landmark.EyeKind(side))
}

// EyeCrop returns the eye-crop to frame transform for side.
func (s *Snapshot) EyeCrop(side landmark.Side) [16]float64 {
	if side == landmark.Right {
		return s.RightEyeCrop
	}
	return s.LeftEyeCrop
}

// EyeRegion returns the eye crop as a frame-space region.
func (s *Snapshot) EyeRegion(side landmark.Side) geometry.Region {
	return geometry.RegionFromAffine(geometry.AffineFrom4x4(s.EyeCrop(side)))
}

func (s *Snapshot) setHand(side landmark.Side, set landmark.Set) {
	if side == landmark.Right {
		s.RightHand = set
	} else {
		s.LeftHand = set
	}
}

func (s *Snapshot) setEye(side landmark.Side, set landmark.Set, crop [16]float64) {
	if side == landmark.Right {
		s.RightEye, s.RightEyeCrop = set, crop
	} else {
		s.LeftEye, s.LeftEyeCrop = set, crop
	}
}
