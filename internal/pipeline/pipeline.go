// Package pipeline drives the pose, face, palm and hand models for each
// frame, resolves hand fallback and publishes reconciled landmark snapshots.
package pipeline

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/holistic/internal/fallback"
	"github.com/ayusman/holistic/internal/geometry"
	"github.com/ayusman/holistic/internal/imaging"
	"github.com/ayusman/holistic/internal/landmark"
	"github.com/ayusman/holistic/internal/model"
	"github.com/ayusman/holistic/internal/tracker"
)

var (
	// ErrShutdown is returned by Process after Shutdown.
	ErrShutdown = errors.New("pipeline is shut down")
	// ErrInvalidFrame is returned by Process for a frame without dimensions.
	ErrInvalidFrame = errors.New("invalid frame")
	// ErrMissingModel reports a nil adapter passed to New.
	ErrMissingModel = errors.New("model adapter is nil")
)

// completionQueue bounds the frames waiting for reconciliation.
const completionQueue = 4

// Pipeline owns the four model adapters and the per-hand state. Process is
// serialized; Snapshot and GetLandmark may be called from any goroutine.
type Pipeline struct {
	config     Config
	log        *zap.Logger
	models     model.Set
	tracker    *tracker.Tracker
	controller *fallback.Controller

	mu     sync.Mutex
	closed bool
	seq    uint64
	jobs   chan job
	wg     sync.WaitGroup

	snapshot atomic.Pointer[Snapshot]
	shutdown sync.Once
	err      error
}

// New creates a pipeline over models. A nil adapter is reported as a
// ResourceLoadError. The pipeline owns the adapters and closes them on
// Shutdown.
func New(config Config, models model.Set) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	for name, m := range map[string]any{
		"pose model": models.Pose,
		"face model": models.Face,
		"palm model": models.Palm,
		"hand model": models.Hand,
	} {
		if m == nil {
			return nil, &model.ResourceLoadError{Asset: name, Err: ErrMissingModel}
		}
	}

	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	p := &Pipeline{
		config:     config,
		log:        log,
		models:     models,
		tracker:    tracker.New(config.trackerConfig()),
		controller: fallback.NewController(config.HandFallbackThreshold, log.Named("fallback")),
		jobs:       make(chan job, completionQueue),
	}
	p.snapshot.Store(emptySnapshot())

	p.wg.Add(1)
	go p.completeLoop()

	log.Info("pipeline initialized",
		zap.String("variant", string(config.ModelVariant)),
		zap.String("mode", string(config.InferenceMode)),
		zap.Float64("hand_fallback_threshold", config.HandFallbackThreshold))

	return p, nil
}

// handOutput is the raw result chosen for one side.
type handOutput struct {
	result      model.HandResult
	region      geometry.Region
	palmDerived bool
	state       fallback.State
}

// stageOutputs is everything the completion worker needs to reconcile one
// frame. A nil stage pointer means the stage did not run.
type stageOutputs struct {
	seq       uint64
	timestamp time.Duration
	mode      InferenceMode
	letterbox geometry.Letterbox

	pose *model.PoseResult
	human bool

	face       *model.FaceResult
	faceRegion geometry.Region

	hands *[2]handOutput

	timing Timing
	start  time.Time
}

type job struct {
	out        stageOutputs
	completion *Completion
}

// Process runs every stage mode selects for frame, in data dependency
// order, then hands the raw outputs to the completion worker. The returned
// Completion fires once the frame's snapshot is published or superseded. An
// empty mode uses the configured default.
//
// Model failures are logged and treated as zero-confidence results; Process
// only fails for an invalid frame or a shut-down pipeline.
func (p *Pipeline) Process(frame model.Frame, mode InferenceMode) (*Completion, error) {
	if mode == "" {
		mode = p.config.InferenceMode
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("process: unknown inference mode %q", mode)
	}
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("process: %w: %dx%d", ErrInvalidFrame, frame.Width, frame.Height)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrShutdown
	}

	start := time.Now()
	p.seq++
	out := stageOutputs{
		seq:       p.seq,
		timestamp: frame.Timestamp,
		mode:      mode,
		letterbox: geometry.NewLetterbox(frame.Width, frame.Height, p.config.WorkingSize),
		start:     start,
	}

	wf, release, err := p.workingFrame(frame, out.letterbox)
	if err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}
	defer release()

	var pose model.PoseResult
	if mode.RunsPose() {
		pose = p.runPose(wf, &out.timing)
		out.pose = &pose
		out.human = pose.Landmarks.Score() >= p.config.HumanExistThreshold
	}

	if mode.RunsFace() {
		region := geometry.FullFrame
		if out.pose != nil {
			region, _ = p.tracker.FaceRegionFromPose(pose.Landmarks, out.letterbox, p.config.HumanExistThreshold)
		}
		face := p.runFace(wf, region, &out.timing)
		out.face = &face
		out.faceRegion = region
	}

	if mode.RunsHands() {
		hands := p.runHands(wf, pose.Landmarks, frame.Timestamp, &out.timing)
		out.hands = &hands
	}

	c := newCompletion(out.seq)
	p.jobs <- job{out: out, completion: c}
	return c, nil
}

// workingFrame letterboxes the frame image. Frames without pixels, as used
// with mock models, get a working frame with a nil image.
func (p *Pipeline) workingFrame(frame model.Frame, lb geometry.Letterbox) (model.WorkingFrame, func(), error) {
	wf := model.WorkingFrame{Frame: frame, Letterbox: lb}
	if frame.Image == nil {
		return wf, func() {}, nil
	}
	img, err := imaging.Letterbox(*frame.Image, lb)
	if err != nil {
		return wf, nil, err
	}
	wf.Image = &img
	return wf, func() { img.Close() }, nil
}

func (p *Pipeline) runPose(wf model.WorkingFrame, timing *Timing) model.PoseResult {
	t0 := time.Now()
	res, err := p.models.Pose.Detect(wf, p.config.poseOptions())
	timing.Pose = time.Since(t0)

	if err != nil {
		p.log.Warn("pose model failed", zap.Error(err))
		return model.PoseResult{
			Landmarks: landmark.NewSet(landmark.KindPose),
			World:     landmark.NewSet(landmark.KindPoseWorld),
		}
	}
	return res
}

func (p *Pipeline) runFace(wf model.WorkingFrame, region geometry.Region, timing *Timing) model.FaceResult {
	t0 := time.Now()
	res, err := p.models.Face.Detect(wf, region)
	timing.Face = time.Since(t0)

	if err != nil {
		p.log.Warn("face model failed", zap.Error(err))
		return model.FaceResult{
			FaceCrop:     region.MirrorX().CropToWorking(),
			LeftEyeCrop:  geometry.Identity,
			RightEyeCrop: geometry.Identity,
		}
	}
	return res
}

// runHands tries the palm path for each candidate, resolves sides, then
// re-derives every unresolved side from pose.
func (p *Pipeline) runHands(wf model.WorkingFrame, pose landmark.Set, ts time.Duration, timing *Timing) [2]handOutput {
	t0 := time.Now()
	candidates, err := p.models.Palm.Detect(wf)
	timing.Palm = time.Since(t0)
	if err != nil {
		p.log.Warn("palm model failed", zap.Error(err))
		candidates = nil
	}
	if len(candidates) > 2 {
		candidates = candidates[:2]
	}

	t1 := time.Now()
	regions := p.tracker.FromPalm(candidates, ts)
	attempts := make([]fallback.Attempt, len(candidates))
	for i, c := range candidates {
		attempts[i] = fallback.Attempt{
			Candidate: c,
			Region:    regions[i],
			Result:    p.detectHand(wf, regions[i], true),
		}
	}

	decision := p.controller.Resolve(attempts)

	var hands [2]handOutput
	for _, side := range landmark.Sides {
		a := decision[side]
		if a.State == fallback.PalmTracked {
			hands[side] = handOutput{
				result:      attempts[a.Attempt].Result,
				region:      attempts[a.Attempt].Region,
				palmDerived: true,
				state:       fallback.PalmTracked,
			}
			continue
		}

		region, wristVis := p.tracker.HandRegionFromPose(pose, wf.Letterbox, side)
		res := p.detectHand(wf, region, false)
		res.Presence = math.Min(res.Presence, wristVis)
		hands[side] = handOutput{
			result: res,
			region: region,
			state:  fallback.PoseFallback,
		}
	}
	timing.Hand = time.Since(t1)

	for _, side := range landmark.Sides {
		h := hands[side]
		p.tracker.Update(side, tracker.HandState{
			Region:     h.region,
			HasRegion:  h.result.Presence >= p.controller.Threshold(),
			Confidence: h.result.Presence,
			Handedness: h.result.Handedness,
			Timestamp:  ts,
		})
	}

	p.log.Debug("hands resolved",
		zap.Int("candidates", len(candidates)),
		zap.Stringer("left", hands[landmark.Left].state),
		zap.Stringer("right", hands[landmark.Right].state))

	return hands
}

func (p *Pipeline) detectHand(wf model.WorkingFrame, region geometry.Region, palmDerived bool) model.HandResult {
	res, err := p.models.Hand.Detect(wf, region, palmDerived)
	if err != nil {
		p.log.Warn("hand model failed", zap.Bool("palm_derived", palmDerived), zap.Error(err))
		return model.HandResult{Landmarks: make([]landmark.Landmark, landmark.NumHandLandmarks)}
	}
	return res
}

// Snapshot returns the most recently published snapshot. It never returns
// nil.
func (p *Pipeline) Snapshot() *Snapshot {
	return p.snapshot.Load()
}

// GetLandmark returns landmark index of kind from the latest snapshot. ok is
// false for an unknown kind or an out-of-range index.
func (p *Pipeline) GetLandmark(kind landmark.Kind, index int) (landmark.Landmark, bool) {
	if !kind.Valid() {
		return landmark.Landmark{}, false
	}
	return p.Snapshot().Set(kind).At(index)
}

// Reset returns the per-hand state to its initial value. Published snapshots
// are kept.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.Reset()
	p.controller.Reset()
}

// Shutdown waits for in-flight frames to publish, stops the completion
// worker and closes every adapter. Only the first call does any work; later
// calls return the same result.
func (p *Pipeline) Shutdown() error {
	p.shutdown.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()

		p.wg.Wait()

		var errs []error
		if err := p.models.Pose.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pose model: %w", err))
		}
		if err := p.models.Face.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close face model: %w", err))
		}
		if err := p.models.Palm.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close palm model: %w", err))
		}
		if err := p.models.Hand.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close hand model: %w", err))
		}
		p.err = errors.Join(errs...)

		p.log.Info("pipeline shut down", zap.Uint64("frames", p.seq))
	})
	return p.err
}
