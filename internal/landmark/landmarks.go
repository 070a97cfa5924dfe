// Package landmark defines the landmark types shared by every stage of the
// holistic pipeline and the fixed per-model index layouts.
package landmark

import "fmt"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist            = 0
	ThumbCMC         = 1
	ThumbMCP         = 2
	ThumbIP          = 3
	ThumbTip         = 4
	IndexMCP         = 5
	IndexPIP         = 6
	IndexDIP         = 7
	IndexTip         = 8
	MiddleMCP        = 9
	MiddlePIP        = 10
	MiddleDIP        = 11
	MiddleTip        = 12
	RingMCP          = 13
	RingPIP          = 14
	RingDIP          = 15
	RingTip          = 16
	PinkyMCP         = 17
	PinkyPIP         = 18
	PinkyDIP         = 19
	PinkyTip         = 20
	NumHandLandmarks = 21
)

// Pose landmark indices following the BlazePose 33-point topology.
// See: https://google.github.io/mediapipe/solutions/pose
const (
	PoseNose           = 0
	PoseLeftEyeInner   = 1
	PoseLeftEye        = 2
	PoseLeftEyeOuter   = 3
	PoseRightEyeInner  = 4
	PoseRightEye       = 5
	PoseRightEyeOuter  = 6
	PoseLeftEar        = 7
	PoseRightEar       = 8
	PoseMouthLeft      = 9
	PoseMouthRight     = 10
	PoseLeftShoulder   = 11
	PoseRightShoulder  = 12
	PoseLeftElbow      = 13
	PoseRightElbow     = 14
	PoseLeftWrist      = 15
	PoseRightWrist     = 16
	PoseLeftPinky      = 17
	PoseRightPinky     = 18
	PoseLeftIndex      = 19
	PoseRightIndex     = 20
	PoseLeftThumb      = 21
	PoseRightThumb     = 22
	PoseLeftHip        = 23
	PoseRightHip       = 24
	PoseLeftKnee       = 25
	PoseRightKnee      = 26
	PoseLeftAnkle      = 27
	PoseRightAnkle     = 28
	PoseLeftHeel       = 29
	PoseRightHeel      = 30
	PoseLeftFootIndex  = 31
	PoseRightFootIndex = 32
	NumPoseLandmarks   = 33
)

// Face mesh and eye layouts.
const (
	// NumFaceLandmarks is the refined face mesh vertex count.
	NumFaceLandmarks = 468
	// NumEyeLandmarks is the raw eye set: iris centre followed by four contour points.
	NumEyeLandmarks = 5
)

// Landmark is a single keypoint. X and Y are normalized image coordinates,
// Z is relative depth and W is either a visibility score or the fixed
// sentinel 1.0, depending on the set kind.
type Landmark struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
	W float64 `json:"w" msgpack:"w"`
}

// Kind identifies a published landmark buffer.
type Kind int

const (
	KindPose Kind = iota
	KindPoseWorld
	KindFace
	KindLeftEye
	KindRightEye
	KindLeftHand
	KindRightHand
	numKinds
)

// Kinds lists every published kind in buffer order.
var Kinds = []Kind{KindPose, KindPoseWorld, KindFace, KindLeftEye, KindRightEye, KindLeftHand, KindRightHand}

var kindNames = [numKinds]string{
	KindPose:      "pose",
	KindPoseWorld: "pose_world",
	KindFace:      "face",
	KindLeftEye:   "left_eye",
	KindRightEye:  "right_eye",
	KindLeftHand:  "left_hand",
	KindRightHand: "right_hand",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k names a published buffer.
func (k Kind) Valid() bool {
	return k >= 0 && k < numKinds
}

// HasScoreEntry reports whether sets of this kind end with an aggregate
// score entry after the model-defined points.
func (k Kind) HasScoreEntry() bool {
	switch k {
	case KindPose, KindPoseWorld, KindLeftHand, KindRightHand:
		return true
	}
	return false
}

// Count returns the fixed vertex count of a kind, including the trailing
// score entry where the kind has one.
func Count(k Kind) int {
	switch k {
	case KindPose, KindPoseWorld:
		return NumPoseLandmarks + 1
	case KindFace:
		return NumFaceLandmarks
	case KindLeftEye, KindRightEye:
		return NumEyeLandmarks
	case KindLeftHand, KindRightHand:
		return NumHandLandmarks + 1
	}
	return 0
}

// Side distinguishes the two hands and the two eyes.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == Right {
		return Left
	}
	return Right
}

// Sides lists both sides, left first.
var Sides = [2]Side{Left, Right}

// HandKind returns the published kind for a hand side.
func HandKind(s Side) Kind {
	if s == Right {
		return KindRightHand
	}
	return KindLeftHand
}

// EyeKind returns the published kind for an eye side.
func EyeKind(s Side) Kind {
	if s == Right {
		return KindRightEye
	}
	return KindLeftEye
}
