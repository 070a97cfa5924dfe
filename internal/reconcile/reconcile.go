// Package reconcile maps every model's landmarks from its own crop space
// back into frame-relative normalized coordinates.
package reconcile

import (
	"github.com/ayusman/holistic/internal/geometry"
	"github.com/ayusman/holistic/internal/landmark"
	"github.com/ayusman/holistic/internal/model"
)

// Pose returns the pose image and world sets. The pose adapter already
// reports frame-relative coordinates, so they are copied through.
func Pose(r model.PoseResult) (landmark.Set, landmark.Set) {
	lm, world := r.Landmarks.Clone(), r.World.Clone()
	if lm.Kind != landmark.KindPose || lm.Len() != landmark.Count(landmark.KindPose) {
		lm = landmark.NewSet(landmark.KindPose)
	}
	if world.Kind != landmark.KindPoseWorld || world.Len() != landmark.Count(landmark.KindPoseWorld) {
		world = landmark.NewSet(landmark.KindPoseWorld)
	}
	return lm, world
}

// FaceToFrame returns the transform from a face-model crop space to frame
// space: the crop matrix, the fixed horizontal mirror, then the letterbox
// inverse.
func FaceToFrame(crop geometry.Affine, lb geometry.Letterbox) geometry.Affine {
	return crop.Then(geometry.MirrorX).Then(lb.WorkingToFrame())
}

// Face maps the refined face mesh into frame space.
func Face(pts []landmark.Landmark, crop geometry.Affine, lb geometry.Letterbox) landmark.Set {
	return transform(landmark.KindFace, pts, FaceToFrame(crop, lb), crop.LinearScale()*lb.ScaleX)
}

// Eye maps one raw eye set into frame space.
func Eye(side landmark.Side, pts []landmark.Landmark, crop geometry.Affine, lb geometry.Letterbox) landmark.Set {
	return transform(landmark.EyeKind(side), pts, FaceToFrame(crop, lb), crop.LinearScale()*lb.ScaleX)
}

// HandToFrame returns the transform from hand crop space to frame space.
// Palm-derived crops are sampled bottom-up, so only they get the vertical
// flip before the region transform.
func HandToFrame(region geometry.Region, palmDerived bool, lb geometry.Letterbox) geometry.Affine {
	m := region.CropToWorking()
	if palmDerived {
		m = geometry.MirrorY.Then(m)
	}
	return m.Then(lb.WorkingToFrame())
}

// Hand maps a hand result into a frame-relative set. The trailing entry
// carries presence in X and handedness in Y.
func Hand(side landmark.Side, r model.HandResult, region geometry.Region, palmDerived bool, lb geometry.Letterbox) landmark.Set {
	out := transform(landmark.HandKind(side), r.Landmarks, HandToFrame(region, palmDerived, lb), region.Width*lb.ScaleX)
	out.Points[landmark.NumHandLandmarks] = landmark.Landmark{X: r.Presence, Y: r.Handedness, W: 1}
	return out
}

// transform builds a set of kind k from pts, mapping x and y through m and
// scaling z by zScale. Missing points stay zero.
func transform(k landmark.Kind, pts []landmark.Landmark, m geometry.Affine, zScale float64) landmark.Set {
	out := landmark.NewSet(k)
	body := out.Body()
	for i := 0; i < len(body) && i < len(pts); i++ {
		p := pts[i]
		x, y := m.Apply(p.X, p.Y)
		body[i] = landmark.Landmark{X: x, Y: y, Z: p.Z * zScale, W: p.W}
	}
	return out
}
