package model

import (
	"github.com/ayusman/holistic/internal/geometry"
	"github.com/ayusman/holistic/internal/landmark"
)

// MockPose is a test implementation of PoseDetector.
// It allows tests to control the detection results.
type MockPose struct {
	result PoseResult
	err    error
	calls  int
	closed int
}

// NewMockPose creates a MockPose returning an empty, zero-score pose.
func NewMockPose() *MockPose {
	return &MockPose{result: PoseResult{
		Landmarks: landmark.NewSet(landmark.KindPose),
		World:     landmark.NewSet(landmark.KindPoseWorld),
	}}
}

// SetResult sets the result returned by Detect.
func (m *MockPose) SetResult(r PoseResult) { m.result = r }

// SetError sets the error returned by Detect.
func (m *MockPose) SetError(err error) { m.err = err }

// Calls returns how many times Detect ran.
func (m *MockPose) Calls() int { return m.calls }

// Closed returns how many times Close ran.
func (m *MockPose) Closed() int { return m.closed }

// Detect returns the pre-configured result or error.
func (m *MockPose) Detect(wf WorkingFrame, opts PoseOptions) (PoseResult, error) {
	m.calls++
	if m.err != nil {
		return PoseResult{}, m.err
	}
	return PoseResult{Landmarks: m.result.Landmarks.Clone(), World: m.result.World.Clone()}, nil
}

// Close records the call.
func (m *MockPose) Close() error {
	m.closed++
	return nil
}

// MockFace is a test implementation of FacePipeline.
type MockFace struct {
	result  FaceResult
	err     error
	calls   int
	closed  int
	regions []geometry.Region
}

// NewMockFace creates a MockFace returning a zero mesh with identity crops.
func NewMockFace() *MockFace {
	return &MockFace{result: FaceResult{
		Face:         make([]landmark.Landmark, landmark.NumFaceLandmarks),
		FaceCrop:     geometry.Identity,
		LeftEye:      make([]landmark.Landmark, landmark.NumEyeLandmarks),
		RightEye:     make([]landmark.Landmark, landmark.NumEyeLandmarks),
		LeftEyeCrop:  geometry.Identity,
		RightEyeCrop: geometry.Identity,
	}}
}

// SetResult sets the result returned by Detect.
func (m *MockFace) SetResult(r FaceResult) { m.result = r }

// SetError sets the error returned by Detect.
func (m *MockFace) SetError(err error) { m.err = err }

// Calls returns how many times Detect ran.
func (m *MockFace) Calls() int { return m.calls }

// Closed returns how many times Close ran.
func (m *MockFace) Closed() int { return m.closed }

// Regions returns the face regions Detect received, in call order.
func (m *MockFace) Regions() []geometry.Region { return m.regions }

// Detect returns the pre-configured result or error.
func (m *MockFace) Detect(wf WorkingFrame, region geometry.Region) (FaceResult, error) {
	m.calls++
	m.regions = append(m.regions, region)
	if m.err != nil {
		return FaceResult{}, m.err
	}
	r := m.result
	r.Face = append([]landmark.Landmark(nil), r.Face...)
	r.LeftEye = append([]landmark.Landmark(nil), r.LeftEye...)
	r.RightEye = append([]landmark.Landmark(nil), r.RightEye...)
	return r, nil
}

// Close records the call.
func (m *MockFace) Close() error {
	m.closed++
	return nil
}

// MockPalm is a test implementation of PalmDetector.
type MockPalm struct {
	candidates []Candidate
	err        error
	calls      int
	closed     int
}

// NewMockPalm creates a MockPalm that detects nothing.
func NewMockPalm() *MockPalm {
	return &MockPalm{}
}

// SetCandidates sets the candidates returned by Detect.
func (m *MockPalm) SetCandidates(c []Candidate) { m.candidates = c }

// SetError sets the error returned by Detect.
func (m *MockPalm) SetError(err error) { m.err = err }

// Calls returns how many times Detect ran.
func (m *MockPalm) Calls() int { return m.calls }

// Closed returns how many times Close ran.
func (m *MockPalm) Closed() int { return m.closed }

// Detect returns the pre-configured candidates or error.
func (m *MockPalm) Detect(wf WorkingFrame) ([]Candidate, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append([]Candidate(nil), m.candidates...), nil
}

// Close records the call.
func (m *MockPalm) Close() error {
	m.closed++
	return nil
}

// HandCall records one HandLandmarker invocation.
type HandCall struct {
	Region      geometry.Region
	PalmDerived bool
}

// MockHand is a test implementation of HandLandmarker. Queued results are
// returned in order; once the queue is empty the default result is used.
type MockHand struct {
	def    HandResult
	queue  []HandResult
	fn     func(region geometry.Region, palmDerived bool) HandResult
	err    error
	calls  []HandCall
	closed int
}

// NewMockHand creates a MockHand whose default result is a fully present
// hand centred in its crop.
func NewMockHand() *MockHand {
	return &MockHand{def: HandResult{
		Landmarks:  CenteredHand(),
		Presence:   1,
		Handedness: 0.5,
	}}
}

// SetDefault sets the result used when the queue is empty.
func (m *MockHand) SetDefault(r HandResult) { m.def = r }

// Push queues results for the next calls.
func (m *MockHand) Push(r ...HandResult) { m.queue = append(m.queue, r...) }

// SetFunc makes Detect compute its result from the call arguments. It takes
// precedence over the queue and the default.
func (m *MockHand) SetFunc(fn func(region geometry.Region, palmDerived bool) HandResult) { m.fn = fn }

// SetError sets the error returned by Detect.
func (m *MockHand) SetError(err error) { m.err = err }

// Calls returns the recorded invocations.
func (m *MockHand) Calls() []HandCall { return m.calls }

// Closed returns how many times Close ran.
func (m *MockHand) Closed() int { return m.closed }

// Detect returns the next configured result or error.
func (m *MockHand) Detect(wf WorkingFrame, region geometry.Region, palmDerived bool) (HandResult, error) {
	m.calls = append(m.calls, HandCall{Region: region, PalmDerived: palmDerived})
	if m.err != nil {
		return HandResult{}, m.err
	}

	var r HandResult
	switch {
	case m.fn != nil:
		r = m.fn(region, palmDerived)
	case len(m.queue) > 0:
		r = m.queue[0]
		m.queue = m.queue[1:]
	default:
		r = m.def
	}
	r.Landmarks = append([]landmark.Landmark(nil), r.Landmarks...)
	return r, nil
}

// Close records the call.
func (m *MockHand) Close() error {
	m.closed++
	return nil
}

// NewMockSet returns a Set of fresh mocks and the mocks themselves.
func NewMockSet() (Set, *MockPose, *MockFace, *MockPalm, *MockHand) {
	p, f, pa, h := NewMockPose(), NewMockFace(), NewMockPalm(), NewMockHand()
	return Set{Pose: p, Face: f, Palm: pa, Hand: h}, p, f, pa, h
}

// CenteredHand returns 21 crop-space landmarks of an open hand with the
// wrist near the bottom of the crop and the fingertips near the top.
func CenteredHand() []landmark.Landmark {
	pts := make([]landmark.Landmark, landmark.NumHandLandmarks)
	pts[landmark.Wrist] = landmark.Landmark{X: 0.5, Y: 0.85, W: 1}

	// Five fingers fanned from the palm, four joints each.
	bases := [5]float64{0.70, 0.60, 0.50, 0.40, 0.30}
	for f := 0; f < 5; f++ {
		for j := 0; j < 4; j++ {
			pts[1+f*4+j] = landmark.Landmark{
				X: bases[f],
				Y: 0.65 - float64(j)*0.12,
				W: 1,
			}
		}
	}
	return pts
}

// UprightPose returns a frame-relative pose of a person facing the camera
// with both forearms pointing up, scored at score.
func UprightPose(score float64) PoseResult {
	lm := landmark.NewSet(landmark.KindPose)
	set := func(i int, x, y float64) {
		lm.Points[i] = landmark.Landmark{X: x, Y: y, W: score}
	}

	set(landmark.PoseNose, 0.5, 0.25)
	set(landmark.PoseLeftEyeInner, 0.52, 0.23)
	set(landmark.PoseLeftEye, 0.53, 0.23)
	set(landmark.PoseLeftEyeOuter, 0.54, 0.23)
	set(landmark.PoseRightEyeInner, 0.48, 0.23)
	set(landmark.PoseRightEye, 0.47, 0.23)
	set(landmark.PoseRightEyeOuter, 0.46, 0.23)
	set(landmark.PoseLeftEar, 0.56, 0.24)
	set(landmark.PoseRightEar, 0.44, 0.24)
	set(landmark.PoseMouthLeft, 0.52, 0.28)
	set(landmark.PoseMouthRight, 0.48, 0.28)
	set(landmark.PoseLeftShoulder, 0.62, 0.4)
	set(landmark.PoseRightShoulder, 0.38, 0.4)
	set(landmark.PoseLeftElbow, 0.7, 0.55)
	set(landmark.PoseRightElbow, 0.3, 0.55)
	set(landmark.PoseLeftWrist, 0.7, 0.4)
	set(landmark.PoseRightWrist, 0.3, 0.4)
	for i := landmark.PoseLeftPinky; i < landmark.NumPoseLandmarks; i++ {
		set(i, 0.5, 0.8)
	}
	lm.SetScore(score)

	world := landmark.NewSet(landmark.KindPoseWorld)
	for i := 0; i < landmark.NumPoseLandmarks; i++ {
		p := lm.Points[i]
		world.Points[i] = landmark.Landmark{X: p.X - 0.5, Y: p.Y - 0.5, Z: 0, W: score}
	}
	world.SetScore(score)

	return PoseResult{Landmarks: lm, World: world}
}
