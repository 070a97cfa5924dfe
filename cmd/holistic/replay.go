package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/holistic/internal/app"
	"github.com/ayusman/holistic/internal/server"
)

type replayOptions struct {
	addr  string
	speed float64
	fast  bool
	wait  bool
}

var replayOpts replayOptions

var replayCmd = &cobra.Command{
	Use:   "replay <session-id>",
	Short: "Re-publish a recorded session on the landmark websocket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return replaySession(cmd.Context(), args[0], replayOpts)
	},
}

func init() {
	f := replayCmd.Flags()
	f.StringVar(&replayOpts.addr, "addr", "", "HTTP listen address (overrides server.addr)")
	f.Float64Var(&replayOpts.speed, "speed", 1, "playback speed multiplier")
	f.BoolVar(&replayOpts.fast, "fast", false, "publish as fast as possible instead of at recorded timing")
	f.BoolVar(&replayOpts.wait, "wait", false, "wait for a websocket client before starting")
	rootCmd.AddCommand(replayCmd)
}

func replaySession(ctx context.Context, sessionID string, opts replayOptions) error {
	sess, err := db.Sessions().GetByID(sessionID)
	if err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}

	addr := cfg.Server.Addr
	if opts.addr != "" {
		addr = opts.addr
	}

	hub := server.NewHub(logger.Named("ws"))
	srv := server.New(server.Config{
		StaticDir: findWebDir(),
		Store:     db,
		Hub:       hub,
		Logger:    logger.Named("http"),
	})

	bar := progressbar.NewOptions(sess.Frames,
		progressbar.OptionSetDescription("Replaying "+sess.ID[:min(8, len(sess.ID))]),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServer := context.WithCancel(gctx)

	g.Go(func() error {
		return srv.Run(serveCtx, addr)
	})
	g.Go(func() error {
		defer stopServer()

		if opts.wait {
			logger.Info("waiting for a websocket client", zap.String("addr", addr))
			if err := waitForClient(gctx, hub); err != nil {
				return nil
			}
		}

		n, err := app.Replay(gctx, db, sess.ID, hub, app.ReplayOptions{
			Paced: !opts.fast,
			Speed: opts.speed,
			Progress: func(done, total int) {
				bar.Set(done)
			},
		})
		bar.Finish()
		fmt.Fprintln(os.Stderr)
		logger.Info("replay finished", zap.String("session", sess.ID), zap.Int("published", n))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return g.Wait()
}

// waitForClient polls until hub has a client or ctx is done.
func waitForClient(ctx context.Context, hub *server.Hub) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for hub.Clients() == 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
