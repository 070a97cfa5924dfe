package pipeline

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/holistic/internal/fallback"
	"github.com/ayusman/holistic/internal/geometry"
	"github.com/ayusman/holistic/internal/model"
	"github.com/ayusman/holistic/internal/tracker"
)

// Config holds pipeline configuration.
type Config struct {
	// ModelVariant selects the pose model size.
	ModelVariant model.Variant
	// DetectionThreshold and IOUThreshold are passed to the pose model.
	DetectionThreshold float64
	IOUThreshold       float64
	// HandFallbackThreshold is the hand presence below which a palm-derived
	// hand is re-derived from pose.
	HandFallbackThreshold float64
	// InferenceMode is used when Process is given an empty mode.
	InferenceMode InferenceMode
	// HumanExistThreshold is the pose score needed to derive the face region
	// from pose and to report a person present.
	HumanExistThreshold float64
	// SmoothingTimeConstant controls palm region smoothing.
	SmoothingTimeConstant time.Duration
	// WorkingSize is the side of the square working frame in pixels.
	WorkingSize int
	// Tracker overrides the region tracker parameters. Its smoothing time
	// constant is replaced by SmoothingTimeConstant.
	Tracker tracker.Config
	Logger  *zap.Logger
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelVariant:          model.VariantFull,
		DetectionThreshold:    0.5,
		IOUThreshold:          0.3,
		HandFallbackThreshold: fallback.DefaultThreshold,
		InferenceMode:         ModeFull,
		HumanExistThreshold:   0.5,
		SmoothingTimeConstant: 50 * time.Millisecond,
		WorkingSize:           geometry.DefaultWorkingSize,
		Tracker:               tracker.DefaultConfig(),
	}
}

// Validate checks that every field is in range.
func (c Config) Validate() error {
	if !c.ModelVariant.Valid() {
		return fmt.Errorf("invalid model variant %q", c.ModelVariant)
	}
	if !c.InferenceMode.Valid() {
		return fmt.Errorf("invalid inference mode %q", c.InferenceMode)
	}
	for name, v := range map[string]float64{
		"detection threshold":     c.DetectionThreshold,
		"iou threshold":           c.IOUThreshold,
		"hand fallback threshold": c.HandFallbackThreshold,
		"human exist threshold":   c.HumanExistThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s %v outside [0, 1]", name, v)
		}
	}
	if c.SmoothingTimeConstant < 0 {
		return fmt.Errorf("negative smoothing time constant %v", c.SmoothingTimeConstant)
	}
	if c.WorkingSize <= 0 {
		return fmt.Errorf("invalid working size %d", c.WorkingSize)
	}
	return nil
}

func (c Config) trackerConfig() tracker.Config {
	tc := c.Tracker
	if tc == (tracker.Config{}) {
		tc = tracker.DefaultConfig()
	}
	tc.SmoothingTimeConstant = c.SmoothingTimeConstant
	return tc
}

func (c Config) poseOptions() model.PoseOptions {
	return model.PoseOptions{
		Variant:            c.ModelVariant,
		DetectionThreshold: c.DetectionThreshold,
		IOUThreshold:       c.IOUThreshold,
	}
}
