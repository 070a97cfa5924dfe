// Package model defines the contracts of the four external models the
// pipeline drives (pose, face/iris, palm, hand landmark) together with
// mock and subprocess-backed implementations.
package model

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/holistic/internal/geometry"
	"github.com/ayusman/holistic/internal/landmark"
)

// Frame is one captured image and its capture time.
type Frame struct {
	// Image holds the pixels. Mock adapters ignore it, so it may be nil in
	// tests.
	Image     *gocv.Mat
	Width     int
	Height    int
	Timestamp time.Duration
}

// Close releases the frame's image, if it has one.
func (f Frame) Close() {
	if f.Image != nil {
		f.Image.Close()
	}
}

// WorkingFrame is a Frame letterboxed into the square working buffer.
type WorkingFrame struct {
	Frame     Frame
	Letterbox geometry.Letterbox
	// Image is the letterboxed buffer, nil when Frame.Image is nil.
	Image *gocv.Mat
}

// Variant selects the pose model size/accuracy tradeoff.
type Variant string

const (
	VariantLite  Variant = "lite"
	VariantFull  Variant = "full"
	VariantHeavy Variant = "heavy"
)

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	switch v {
	case VariantLite, VariantFull, VariantHeavy:
		return true
	}
	return false
}

// PoseOptions are the per-call pose model parameters.
type PoseOptions struct {
	Variant            Variant
	DetectionThreshold float64
	IOUThreshold       float64
}

// PoseResult holds 33 frame-relative landmarks plus a trailing score entry,
// and the matching real-world landmarks.
type PoseResult struct {
	Landmarks landmark.Set
	World     landmark.Set
}

// FaceResult holds the face model output in its own crop spaces. The face
// model processes a horizontally mirrored working frame, so every crop
// matrix maps into mirrored working space.
type FaceResult struct {
	// Face is the refined mesh in face-crop space.
	Face []landmark.Landmark
	// FaceCrop maps face-crop space to mirrored working space.
	FaceCrop geometry.Affine
	// LeftEye and RightEye are the raw eye sets in their eye-crop spaces.
	LeftEye  []landmark.Landmark
	RightEye []landmark.Landmark
	// LeftEyeCrop and RightEyeCrop map eye-crop space to mirrored working
	// space.
	LeftEyeCrop  geometry.Affine
	RightEyeCrop geometry.Affine
	Score        float64
}

// Candidate is a palm detection in working space.
type Candidate struct {
	Region geometry.Region
	Score  float64
}

// HandResult holds 21 landmarks in the crop space of the region the model
// was given.
type HandResult struct {
	Landmarks  []landmark.Landmark
	Presence   float64
	Handedness float64
}

// PoseDetector runs the pose model over the working frame and returns
// frame-relative landmarks.
type PoseDetector interface {
	Detect(wf WorkingFrame, opts PoseOptions) (PoseResult, error)
	Close() error
}

// FacePipeline runs face mesh and iris refinement over a face region.
type FacePipeline interface {
	Detect(wf WorkingFrame, region geometry.Region) (FaceResult, error)
	Close() error
}

// PalmDetector returns up to two palm candidates.
type PalmDetector interface {
	Detect(wf WorkingFrame) ([]Candidate, error)
	Close() error
}

// HandLandmarker runs the hand landmark model over a rotated region crop.
// palmDerived tells the crop primitive to sample the region bottom-up.
type HandLandmarker interface {
	Detect(wf WorkingFrame, region geometry.Region, palmDerived bool) (HandResult, error)
	Close() error
}

// Set bundles the four adapters owned by one pipeline.
type Set struct {
	Pose PoseDetector
	Face FacePipeline
	Palm PalmDetector
	Hand HandLandmarker
}
