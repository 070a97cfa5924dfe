package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/holistic/internal/capture"
	"github.com/ayusman/holistic/internal/pipeline"
)

// Run opens the camera and processes frames until ctx is done, the source
// ends or MaxFrames is reached. The loop starts in idle mode; motion switches
// it to ActiveFPS and IdleTimeout without motion switches it back. Frames
// seen while idle are not processed.
func (a *App) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	cam := a.config.Camera
	if err := cam.Open(); err != nil {
		return stats, err
	}
	defer func() {
		if err := cam.Close(); err != nil {
			a.log.Warn("error closing camera", zap.Error(err))
		}
		a.motion.Close()
	}()

	if err := a.startSession(); err != nil {
		return stats, err
	}
	stats.SessionID = a.SessionID()

	completions := make(chan *pipeline.Completion, completionBacklog)
	sinkDone := make(chan int)
	go func() {
		sinkDone <- a.sink(completions)
	}()

	err := a.loop(ctx, cam, completions, &stats)

	close(completions)
	stats.Published = <-sinkDone

	if stats.SessionID != "" {
		if endErr := a.config.Store.Sessions().End(stats.SessionID, stats.Published); endErr != nil {
			a.log.Warn("failed to end session", zap.String("session", stats.SessionID), zap.Error(endErr))
		}
	}

	a.log.Info("capture stopped",
		zap.Int("read", stats.Read),
		zap.Int("processed", stats.Processed),
		zap.Int("published", stats.Published),
		zap.Int("skipped", stats.Skipped))

	return stats, err
}

func (a *App) loop(ctx context.Context, cam capture.Camera, completions chan<- *pipeline.Completion, stats *Stats) error {
	activeMode := a.config.DisableMotion
	a.setActive(activeMode)
	lastMotion := time.Now()

	fps := a.config.IdleFPS
	if activeMode {
		fps = a.config.ActiveFPS
	}
	cam.SetFPS(fps)

	var tick <-chan time.Time
	var ticker *time.Ticker
	if !a.config.Unpaced {
		ticker = time.NewTicker(time.Second / time.Duration(fps))
		defer ticker.Stop()
		tick = ticker.C
	}

	setRate := func(next int) {
		cam.SetFPS(next)
		if ticker != nil {
			ticker.Reset(time.Second / time.Duration(next))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		}

		frame, err := cam.ReadFrame()
		if err != nil {
			if errors.Is(err, capture.ErrEndOfStream) {
				return nil
			}
			if errors.Is(err, capture.ErrCameraNotOpen) {
				return err
			}
			stats.Errors++
			a.log.Warn("error reading frame", zap.Error(err))
			continue
		}
		stats.Read++

		if !a.config.DisableMotion {
			moved, pct := a.motion.Detect(frame)
			if moved {
				lastMotion = time.Now()
				if !activeMode {
					activeMode = true
					a.setActive(true)
					setRate(a.config.ActiveFPS)
					a.log.Info("switched to active mode", zap.Float64("change_pct", pct))
				}
			} else if activeMode && time.Since(lastMotion) > a.config.IdleTimeout {
				activeMode = false
				a.setActive(false)
				setRate(a.config.IdleFPS)
				a.log.Info("switched to idle mode")
			}
		}

		if !activeMode {
			stats.Skipped++
			frame.Close()
			continue
		}

		c, err := a.config.Pipeline.Process(frame, a.config.Mode)
		frame.Close()
		if err != nil {
			if errors.Is(err, pipeline.ErrShutdown) {
				return err
			}
			stats.Errors++
			a.log.Warn("error processing frame", zap.Error(err))
			continue
		}
		stats.Processed++
		completions <- c

		if a.config.MaxFrames > 0 && stats.Processed >= a.config.MaxFrames {
			return nil
		}
	}
}

// sink records and broadcasts completions in submission order and returns
// how many were published.
func (a *App) sink(completions <-chan *pipeline.Completion) int {
	published := 0
	sessionID := a.SessionID()

	for c := range completions {
		<-c.Done()
		if !c.Published() {
			continue
		}
		published++
		snap := c.Snapshot()

		if sessionID != "" {
			if err := a.config.Store.Frames().Append(sessionID, snap); err != nil {
				a.log.Warn("failed to record frame", zap.Uint64("seq", snap.Seq), zap.Error(err))
			}
		}
		if a.config.Publisher != nil {
			a.config.Publisher.Publish(snap)
		}
		a.log.Debug("frame published",
			zap.Uint64("seq", snap.Seq),
			zap.Bool("human", snap.HumanPresent),
			zap.Duration("total", snap.Timing.Total))
	}
	return published
}
