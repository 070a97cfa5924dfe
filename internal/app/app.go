// Package app runs the capture loop: frames from a camera or file are gated
// on motion, processed by the pipeline, recorded and broadcast.
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/holistic/internal/capture"
	"github.com/ayusman/holistic/internal/pipeline"
	"github.com/ayusman/holistic/internal/store"
)

// Capture rate defaults.
const (
	// IdleFPS is the frame rate when no motion is detected.
	IdleFPS = 5
	// ActiveFPS is the frame rate while there is motion.
	ActiveFPS = 15
	// IdleTimeout is how long without motion before dropping back to IdleFPS.
	IdleTimeout = 2 * time.Second
)

// completionBacklog bounds completions waiting to be recorded.
const completionBacklog = 16

// Publisher receives every published snapshot.
type Publisher interface {
	Publish(snap *pipeline.Snapshot)
}

// Config holds configuration options for the runner.
type Config struct {
	Camera   capture.Camera
	Pipeline *pipeline.Pipeline
	// Mode is passed to every Process call; empty uses the pipeline default.
	Mode pipeline.InferenceMode

	// Store, when set, records a session with every published snapshot.
	Store *store.Store
	// Publisher, when set, receives every published snapshot.
	Publisher Publisher
	// Source and Settings are recorded on the session.
	Source   string
	Settings any

	ActiveFPS       int
	IdleFPS         int
	IdleTimeout     time.Duration
	MotionThreshold float64
	// DisableMotion processes every frame at ActiveFPS.
	DisableMotion bool
	// Unpaced reads frames as fast as the source delivers them, for files.
	Unpaced bool
	// MaxFrames stops the run after this many processed frames; 0 is no limit.
	MaxFrames int

	Logger *zap.Logger
}

// Stats summarizes a run.
type Stats struct {
	SessionID string
	Read      int
	Skipped   int
	Processed int
	Published int
	Errors    int
}

// App is the capture runner.
type App struct {
	config Config
	log    *zap.Logger
	motion *capture.MotionDetector

	mu        sync.RWMutex
	active    bool
	sessionID string
}

// New creates an App. Camera and Pipeline are required.
func New(config Config) (*App, error) {
	if config.Camera == nil {
		return nil, errors.New("app: camera is required")
	}
	if config.Pipeline == nil {
		return nil, errors.New("app: pipeline is required")
	}
	if config.ActiveFPS <= 0 {
		config.ActiveFPS = ActiveFPS
	}
	if config.IdleFPS <= 0 {
		config.IdleFPS = IdleFPS
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = IdleTimeout
	}
	if config.MotionThreshold <= 0 {
		config.MotionThreshold = 1.0 // 1% pixel change
	}

	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &App{
		config: config,
		log:    log,
		motion: capture.NewMotionDetector(config.MotionThreshold),
	}, nil
}

// Active reports whether the loop is in active (motion) mode.
func (a *App) Active() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

// SessionID returns the session being recorded, or "" without a store.
func (a *App) SessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionID
}

func (a *App) setActive(active bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = active
}

// startSession creates the session row when a store is configured.
func (a *App) startSession() error {
	if a.config.Store == nil {
		return nil
	}

	settings := "{}"
	if a.config.Settings != nil {
		b, err := json.Marshal(a.config.Settings)
		if err != nil {
			return fmt.Errorf("encode session settings: %w", err)
		}
		settings = string(b)
	}

	mode := a.config.Mode
	if mode == "" {
		mode = pipeline.ModeFull
	}

	sess := &store.Session{Source: a.config.Source, Mode: string(mode), Config: settings}
	if err := a.config.Store.Sessions().Create(sess); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	a.mu.Lock()
	a.sessionID = sess.ID
	a.mu.Unlock()

	a.log.Info("session started", zap.String("session", sess.ID), zap.String("source", sess.Source))
	return nil
}
