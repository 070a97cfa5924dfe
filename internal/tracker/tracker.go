// Package tracker derives the crop regions fed to the face and hand models,
// either from palm detections or from pose landmarks, and keeps the per-hand
// state that smooths palm regions over time.
package tracker

import (
	"math"
	"time"

	"github.com/ayusman/holistic/internal/geometry"
	"github.com/ayusman/holistic/internal/landmark"
	"github.com/ayusman/holistic/internal/model"
)

// Config holds the region derivation parameters.
type Config struct {
	// SmoothingTimeConstant is τ in α = 1 - exp(-dt/τ). Zero disables
	// smoothing.
	SmoothingTimeConstant time.Duration
	// HandBoxScale multiplies the wrist-to-elbow distance into a box side.
	HandBoxScale float64
	// HandBoxShift moves the box centre past the wrist, in box sides.
	HandBoxShift float64
	// MinAnchorVisibility is the combined wrist/elbow visibility below which
	// only a best-effort box around the wrist is produced.
	MinAnchorVisibility float64
	// MinHandBoxSize is the side of the best-effort box.
	MinHandBoxSize float64
	// FaceBoxScale multiplies the extent of the pose face points.
	FaceBoxScale float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		SmoothingTimeConstant: 50 * time.Millisecond,
		HandBoxScale:          1.6,
		HandBoxShift:          0.35,
		MinAnchorVisibility:   0.3,
		MinHandBoxSize:        0.15,
		FaceBoxScale:          2.2,
	}
}

// HandState is the cross-frame state kept for one hand.
type HandState struct {
	Region     geometry.Region
	HasRegion  bool
	Confidence float64
	Handedness float64
	Timestamp  time.Duration
}

// Tracker owns the per-hand state. It is not safe for concurrent use; the
// pipeline drives it from a single goroutine.
type Tracker struct {
	config Config
	hands  [2]HandState
}

// New creates a Tracker with empty state.
func New(config Config) *Tracker {
	return &Tracker{config: config}
}

// Config returns the tracker configuration.
func (t *Tracker) Config() Config {
	return t.config
}

// State returns the stored state for side.
func (t *Tracker) State(side landmark.Side) HandState {
	return t.hands[side]
}

// Update replaces the stored state for side.
func (t *Tracker) Update(side landmark.Side, s HandState) {
	t.hands[side] = s
}

// Forget clears side so the next palm region for it is adopted unblended.
func (t *Tracker) Forget(side landmark.Side) {
	t.hands[side] = HandState{}
}

// Reset clears all hand state.
func (t *Tracker) Reset() {
	t.hands = [2]HandState{}
}

// FromPalm turns up to two palm candidates into hand regions. Each candidate
// is matched to the nearest previously tracked region not already taken and
// blended with it; a candidate with no nearby previous region is adopted
// as-is.
func (t *Tracker) FromPalm(candidates []model.Candidate, ts time.Duration) []geometry.Region {
	regions := make([]geometry.Region, 0, len(candidates))
	var taken [2]bool

	for _, c := range candidates {
		r := c.Region
		side, ok := t.nearest(r, taken)
		if ok {
			taken[side] = true
			prev := t.hands[side]
			r = Blend(prev.Region, r, t.weight(ts-prev.Timestamp))
		}
		regions = append(regions, r)
	}
	return regions
}

// nearest returns the side whose stored region centre is closest to r and
// within one previous region width of it.
func (t *Tracker) nearest(r geometry.Region, taken [2]bool) (landmark.Side, bool) {
	best, found := landmark.Left, false
	bestDist := math.Inf(1)

	for _, side := range landmark.Sides {
		h := t.hands[side]
		if taken[side] || !h.HasRegion {
			continue
		}
		d := math.Hypot(h.Region.CenterX-r.CenterX, h.Region.CenterY-r.CenterY)
		if d > h.Region.Width || d >= bestDist {
			continue
		}
		best, bestDist, found = side, d, true
	}
	return best, found
}

// weight returns the blend weight given to a new region after dt.
func (t *Tracker) weight(dt time.Duration) float64 {
	if dt <= 0 || t.config.SmoothingTimeConstant <= 0 {
		return 1
	}
	return 1 - math.Exp(-dt.Seconds()/t.config.SmoothingTimeConstant.Seconds())
}

// Blend moves prev towards next by alpha. Rotation follows the shortest arc.
func Blend(prev, next geometry.Region, alpha float64) geometry.Region {
	if alpha >= 1 {
		return next
	}
	lerp := func(a, b float64) float64 { return a + alpha*(b-a) }
	return geometry.Region{
		CenterX:  lerp(prev.CenterX, next.CenterX),
		CenterY:  lerp(prev.CenterY, next.CenterY),
		Width:    lerp(prev.Width, next.Width),
		Height:   lerp(prev.Height, next.Height),
		Rotation: geometry.NormalizeRadians(prev.Rotation + alpha*geometry.NormalizeRadians(next.Rotation-prev.Rotation)),
	}
}

// HandRegionFromPose synthesizes the region for side from the pose wrist and
// elbow. The box is aligned with the forearm and the wrist sits just inside
// its near edge. It always returns a usable region together with the wrist
// visibility, which caps the presence reported for the hand.
func (t *Tracker) HandRegionFromPose(pose landmark.Set, lb geometry.Letterbox, side landmark.Side) (geometry.Region, float64) {
	wristIdx, elbowIdx := landmark.PoseLeftWrist, landmark.PoseLeftElbow
	if side == landmark.Right {
		wristIdx, elbowIdx = landmark.PoseRightWrist, landmark.PoseRightElbow
	}

	wrist, _ := pose.At(wristIdx)
	elbow, _ := pose.At(elbowIdx)

	wx, wy := lb.ToWorking(wrist.X, wrist.Y)
	ex, ey := lb.ToWorking(elbow.X, elbow.Y)
	dx, dy := wx-ex, wy-ey
	dist := math.Hypot(dx, dy)

	if dist < 1e-6 || math.Min(wrist.W, elbow.W) < t.config.MinAnchorVisibility {
		return geometry.Region{
			CenterX: wx,
			CenterY: wy,
			Width:   t.config.MinHandBoxSize,
			Height:  t.config.MinHandBoxSize,
		}, wrist.W
	}

	ux, uy := dx/dist, dy/dist
	size := dist * t.config.HandBoxScale
	return geometry.Region{
		CenterX:  wx + ux*size*t.config.HandBoxShift,
		CenterY:  wy + uy*size*t.config.HandBoxShift,
		Width:    size,
		Height:   size,
		Rotation: math.Atan2(ux, -uy),
	}, wrist.W
}

// faceIndices are the pose points on the head.
var faceIndices = []int{
	landmark.PoseNose,
	landmark.PoseLeftEyeInner, landmark.PoseLeftEye, landmark.PoseLeftEyeOuter,
	landmark.PoseRightEyeInner, landmark.PoseRightEye, landmark.PoseRightEyeOuter,
	landmark.PoseLeftEar, landmark.PoseRightEar,
	landmark.PoseMouthLeft, landmark.PoseMouthRight,
}

// FaceRegionFromPose derives a square face region from the pose head points.
// When the pose score is below threshold no person is assumed present and
// the full working frame is returned with ok false.
func (t *Tracker) FaceRegionFromPose(pose landmark.Set, lb geometry.Letterbox, threshold float64) (geometry.Region, bool) {
	if pose.Score() < threshold {
		return geometry.FullFrame, false
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, i := range faceIndices {
		p, _ := pose.At(i)
		x, y := lb.ToWorking(p.X, p.Y)
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}

	size := math.Max(maxX-minX, maxY-minY) * t.config.FaceBoxScale
	if size <= 0 {
		return geometry.FullFrame, false
	}

	le, _ := pose.At(landmark.PoseLeftEye)
	re, _ := pose.At(landmark.PoseRightEye)
	lx, ly := lb.ToWorking(le.X, le.Y)
	rx, ry := lb.ToWorking(re.X, re.Y)

	return geometry.Region{
		CenterX:  (minX + maxX) / 2,
		CenterY:  (minY + maxY) / 2,
		Width:    size,
		Height:   size,
		Rotation: math.Atan2(ly-ry, lx-rx),
	}, true
}
