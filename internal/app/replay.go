package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ayusman/holistic/internal/store"
)

// ReplayOptions controls Replay.
type ReplayOptions struct {
	// Paced spaces snapshots by their recorded timestamps.
	Paced bool
	// Speed scales paced playback; values <= 0 mean 1.
	Speed float64
	// Progress, if set, is called after each snapshot is published.
	Progress func(done, total int)
}

// Replay publishes the snapshots recorded for sessionID in sequence order and
// returns how many were sent. It stops early when ctx is done.
func Replay(ctx context.Context, s *store.Store, sessionID string, pub Publisher, opts ReplayOptions) (int, error) {
	if _, err := s.Sessions().GetByID(sessionID); err != nil {
		return 0, fmt.Errorf("replay %s: %w", sessionID, err)
	}

	snaps, err := s.Frames().List(sessionID)
	if err != nil {
		return 0, fmt.Errorf("replay %s: %w", sessionID, err)
	}

	speed := opts.Speed
	if speed <= 0 {
		speed = 1
	}

	sent := 0
	for i, snap := range snaps {
		if opts.Paced && i > 0 {
			gap := time.Duration(float64(snap.Timestamp-snaps[i-1].Timestamp) / speed)
			if gap > 0 {
				timer := time.NewTimer(gap)
				select {
				case <-ctx.Done():
					timer.Stop()
					return sent, ctx.Err()
				case <-timer.C:
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		pub.Publish(snap)
		sent++
		if opts.Progress != nil {
			opts.Progress(sent, len(snaps))
		}
	}
	return sent, nil
}
