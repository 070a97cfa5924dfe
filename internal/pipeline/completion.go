package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/holistic/internal/landmark"
	"github.com/ayusman/holistic/internal/reconcile"
)

// Completion reports when a processed frame has been reconciled.
type Completion struct {
	seq       uint64
	done      chan struct{}
	published bool
	snap      *Snapshot
}

func newCompletion(seq uint64) *Completion {
	return &Completion{seq: seq, done: make(chan struct{})}
}

// Seq returns the frame sequence number.
func (c *Completion) Seq() uint64 {
	return c.seq
}

// Done is closed once the frame has been reconciled.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the frame has been reconciled or ctx is done.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Published reports whether the frame's snapshot was published. It is false
// when a newer frame landed first, and only meaningful after Done.
func (c *Completion) Published() bool {
	select {
	case <-c.done:
		return c.published
	default:
		return false
	}
}

// Snapshot returns the snapshot reconciled for the frame, published or not.
// It is nil until Done.
func (c *Completion) Snapshot() *Snapshot {
	select {
	case <-c.done:
		return c.snap
	default:
		return nil
	}
}

func (p *Pipeline) completeLoop() {
	defer p.wg.Done()

	for j := range p.jobs {
		snap := p.reconcile(j.out)
		j.completion.snap = snap
		j.completion.published = p.publish(snap)
		if !j.completion.published {
			p.log.Debug("dropping superseded frame", zap.Uint64("seq", snap.Seq))
		}
		close(j.completion.done)
	}
}

// reconcile maps raw stage outputs to frame space. Stages that did not run
// keep the values of the last published snapshot.
func (p *Pipeline) reconcile(out stageOutputs) *Snapshot {
	t0 := time.Now()
	prev := p.snapshot.Load()

	snap := *prev
	snap.Seq = out.seq
	snap.Timestamp = out.timestamp
	snap.Mode = out.mode
	snap.FrameWidth = out.letterbox.FrameWidth
	snap.FrameHeight = out.letterbox.FrameHeight
	lb := out.letterbox

	if out.pose != nil {
		snap.Pose, snap.PoseWorld = reconcile.Pose(*out.pose)
		snap.HumanPresent = out.human
	}

	if out.face != nil {
		f := out.face
		snap.Face = reconcile.Face(f.Face, f.FaceCrop, lb)
		snap.setEye(landmark.Left,
			reconcile.Eye(landmark.Left, f.LeftEye, f.LeftEyeCrop, lb),
			reconcile.FaceToFrame(f.LeftEyeCrop, lb).Matrix4x4())
		snap.setEye(landmark.Right,
			reconcile.Eye(landmark.Right, f.RightEye, f.RightEyeCrop, lb),
			reconcile.FaceToFrame(f.RightEyeCrop, lb).Matrix4x4())
		snap.FaceRegion = out.faceRegion
		snap.FaceScore = f.Score
	}

	if out.hands != nil {
		for _, side := range landmark.Sides {
			h := out.hands[side]
			snap.setHand(side, reconcile.Hand(side, h.result, h.region, h.palmDerived, lb))
			snap.HandRegions[side] = h.region
			snap.HandPaths[side] = h.state
		}
	}

	out.timing.Reconcile = time.Since(t0)
	out.timing.Total = time.Since(out.start)
	snap.Timing = out.timing
	return &snap
}

// publish stores snap unless a snapshot with the same or a newer sequence is
// already published.
func (p *Pipeline) publish(snap *Snapshot) bool {
	for {
		cur := p.snapshot.Load()
		if cur.Seq >= snap.Seq {
			return false
		}
		if p.snapshot.CompareAndSwap(cur, snap) {
			return true
		}
	}
}
