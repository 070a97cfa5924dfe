// Package fallback decides, per hand and per frame, whether the palm-derived
// hand result can be trusted or the hand must be re-derived from pose.
package fallback

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ayusman/holistic/internal/geometry"
	"github.com/ayusman/holistic/internal/landmark"
	"github.com/ayusman/holistic/internal/model"
)

// DefaultThreshold is the presence below which a palm-derived hand falls
// back to pose.
const DefaultThreshold = 0.5

// State is the path a hand was resolved through.
type State int

const (
	// PoseFallback means the hand region was synthesized from pose anchors.
	PoseFallback State = iota
	// PalmTracked means a palm candidate's hand result was accepted.
	PalmTracked
)

func (s State) String() string {
	if s == PalmTracked {
		return "palm_tracked"
	}
	return "pose_fallback"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "palm_tracked":
		*s = PalmTracked
	case "pose_fallback":
		*s = PoseFallback
	default:
		return fmt.Errorf("unknown hand state %q", text)
	}
	return nil
}

// Attempt is one palm candidate after the hand landmark model ran on it.
type Attempt struct {
	Candidate model.Candidate
	Region    geometry.Region
	Result    model.HandResult
}

// Side returns the hand the attempt was classified as.
func (a Attempt) Side() landmark.Side {
	if a.Result.Handedness > 0.5 {
		return landmark.Right
	}
	return landmark.Left
}

// Assignment is the resolution for one side. Attempt indexes the accepted
// attempt and is -1 for PoseFallback.
type Assignment struct {
	State   State
	Attempt int
}

// Decision holds the assignment for each side, indexed by landmark.Side.
type Decision [2]Assignment

// Fallbacks returns the sides resolved through PoseFallback, left first.
func (d Decision) Fallbacks() []landmark.Side {
	var out []landmark.Side
	for _, side := range landmark.Sides {
		if d[side].State == PoseFallback {
			out = append(out, side)
		}
	}
	return out
}

// Controller runs the two-state machine for both hands. Fallback is decided
// afresh every frame; the stored states only feed transition logging.
type Controller struct {
	threshold float64
	log       *zap.Logger
	states    [2]State
}

// NewController creates a Controller. A non-positive threshold uses
// DefaultThreshold.
func NewController(threshold float64, log *zap.Logger) *Controller {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{threshold: threshold, log: log}
}

// Threshold returns the presence threshold in use.
func (c *Controller) Threshold() float64 {
	return c.threshold
}

// State returns the state side was last resolved to.
func (c *Controller) State(side landmark.Side) State {
	return c.states[side]
}

// Reset returns both hands to PoseFallback.
func (c *Controller) Reset() {
	c.states = [2]State{}
}

// Resolve assigns attempts to sides. An attempt goes to the side its
// handedness names if its presence clears the threshold and the side is not
// already taken; a later attempt for a taken side is discarded. Every side
// left without an attempt falls back to pose.
func (c *Controller) Resolve(attempts []Attempt) Decision {
	d := Decision{
		{State: PoseFallback, Attempt: -1},
		{State: PoseFallback, Attempt: -1},
	}

	for i, a := range attempts {
		side := a.Side()
		if a.Result.Presence < c.threshold {
			c.log.Debug("palm hand below threshold",
				zap.Stringer("side", side),
				zap.Float64("presence", a.Result.Presence),
				zap.Float64("threshold", c.threshold))
			continue
		}
		if d[side].State == PalmTracked {
			c.log.Debug("discarding duplicate palm hand",
				zap.Stringer("side", side),
				zap.Int("attempt", i))
			continue
		}
		d[side] = Assignment{State: PalmTracked, Attempt: i}
	}

	for _, side := range landmark.Sides {
		if d[side].State != c.states[side] {
			c.log.Info("hand path changed",
				zap.Stringer("side", side),
				zap.Stringer("from", c.states[side]),
				zap.Stringer("to", d[side].State))
		}
		c.states[side] = d[side].State
	}
	return d
}
