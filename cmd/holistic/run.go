package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/holistic/internal/app"
	"github.com/ayusman/holistic/internal/capture"
	"github.com/ayusman/holistic/internal/model"
	"github.com/ayusman/holistic/internal/pipeline"
	"github.com/ayusman/holistic/internal/server"
)

type runOptions struct {
	input      string
	mode       string
	addr       string
	mockModels bool
	noRecord   bool
	noMotion   bool
	maxFrames  int
	exitOnEnd  bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Capture frames, run the pipeline, record and stream landmarks",
	Long: `Reads frames from a camera (default) or a video file, runs them through
the pipeline and publishes every snapshot on the /api/landmarks websocket.
Snapshots are recorded as a session unless --no-record is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd.Context(), runOpts)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runOpts.input, "input", "i", "", "video file to process instead of the camera")
	f.StringVarP(&runOpts.mode, "mode", "m", "", "inference mode: full, pose_only, face_only, pose_and_face, pose_and_hand")
	f.StringVar(&runOpts.addr, "addr", "", "HTTP listen address (overrides server.addr)")
	f.BoolVar(&runOpts.mockModels, "mock-models", false, "use mock models instead of the model service")
	f.BoolVar(&runOpts.noRecord, "no-record", false, "do not record a session")
	f.BoolVar(&runOpts.noMotion, "no-motion", false, "process every frame regardless of motion")
	f.IntVar(&runOpts.maxFrames, "max-frames", 0, "stop after this many processed frames")
	f.BoolVar(&runOpts.exitOnEnd, "exit", false, "exit when capture ends instead of serving until interrupted")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(ctx context.Context, opts runOptions) error {
	if opts.mode != "" {
		cfg.Pipeline.InferenceMode = opts.mode
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}

	pc, err := cfg.PipelineConfig()
	if err != nil {
		return err
	}
	pc.Logger = logger.Named("pipeline")

	models, err := loadModels(opts.mockModels)
	if err != nil {
		return err
	}

	p, err := pipeline.New(pc, models)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Shutdown(); err != nil {
			logger.Warn("pipeline shutdown", zap.Error(err))
		}
	}()

	var cam capture.Camera
	source := fmt.Sprintf("camera:%d", cfg.Camera.DeviceID)
	if opts.input != "" {
		cam = capture.NewVideoFile(opts.input)
		source = "file:" + filepath.Base(opts.input)
	} else {
		cam = capture.NewCamera(cfg.Camera.DeviceID)
	}

	hub := server.NewHub(logger.Named("ws"))
	srv := server.New(server.Config{
		StaticDir: findWebDir(),
		Store:     db,
		Hub:       hub,
		Snapshots: p,
		Logger:    logger.Named("http"),
	})

	ac := app.Config{
		Camera:          cam,
		Pipeline:        p,
		Mode:            pc.InferenceMode,
		Publisher:       hub,
		Source:          source,
		Settings:        cfg.Pipeline,
		ActiveFPS:       cfg.Camera.FPS,
		IdleFPS:         cfg.Camera.IdleFPS,
		MotionThreshold: cfg.Camera.MotionThreshold,
		DisableMotion:   opts.noMotion || opts.input != "",
		Unpaced:         opts.input != "",
		MaxFrames:       opts.maxFrames,
		Logger:          logger.Named("capture"),
	}
	if !opts.noRecord {
		ac.Store = db
	}
	runner, err := app.New(ac)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServer := context.WithCancel(gctx)

	g.Go(func() error {
		return srv.Run(serveCtx, cfg.Server.Addr)
	})
	g.Go(func() error {
		stats, err := runner.Run(gctx)
		logger.Info("capture finished",
			zap.String("session", stats.SessionID),
			zap.Int("published", stats.Published))
		if err != nil || opts.exitOnEnd {
			stopServer()
		}
		return err
	})

	err = g.Wait()
	stopServer()
	return err
}

func loadModels(mock bool) (model.Set, error) {
	if mock {
		logger.Warn("using mock models")
		set, _, _, _, _ := model.NewMockSet()
		return set, nil
	}

	sc := cfg.ServiceConfig()
	sc.Logger = logger.Named("model")
	client, err := model.NewServiceClient(sc)
	if err != nil {
		return model.Set{}, err
	}
	return client.Models(), nil
}

// findWebDir returns the first of web, ../web and ~/.holistic/web that
// exists, or "".
func findWebDir() string {
	for _, p := range []string{"web", "../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(home, ".holistic", "web")
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return ""
}
