package pipeline

import "fmt"

// InferenceMode selects which sub-pipelines run for a frame.
type InferenceMode string

const (
	ModeFull        InferenceMode = "full"
	ModePoseOnly    InferenceMode = "pose_only"
	ModeFaceOnly    InferenceMode = "face_only"
	ModePoseAndFace InferenceMode = "pose_and_face"
	ModePoseAndHand InferenceMode = "pose_and_hand"
)

// Modes lists every inference mode.
var Modes = []InferenceMode{ModeFull, ModePoseOnly, ModeFaceOnly, ModePoseAndFace, ModePoseAndHand}

// ParseInferenceMode parses a mode name.
func ParseInferenceMode(s string) (InferenceMode, error) {
	m := InferenceMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown inference mode %q", s)
	}
	return m, nil
}

// Valid reports whether m is a known mode.
func (m InferenceMode) Valid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// RunsPose reports whether the pose model runs in mode m.
func (m InferenceMode) RunsPose() bool {
	return m != ModeFaceOnly
}

// RunsFace reports whether the face pipeline runs in mode m.
func (m InferenceMode) RunsFace() bool {
	return m == ModeFull || m == ModeFaceOnly || m == ModePoseAndFace
}

// RunsHands reports whether the palm and hand models run in mode m.
func (m InferenceMode) RunsHands() bool {
	return m == ModeFull || m == ModePoseAndHand
}
