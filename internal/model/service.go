package model

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/holistic/internal/geometry"
	"github.com/ayusman/holistic/internal/imaging"
	"github.com/ayusman/holistic/internal/landmark"
)

// DefaultServiceScript is the model service entry point looked up relative
// to the working directory, the executable and ~/.holistic.
const DefaultServiceScript = "scripts/holistic_service.py"

// ServiceConfig configures the model service subprocess.
type ServiceConfig struct {
	// Python is the interpreter. Empty means a local venv if present, else python3.
	Python string
	// Script overrides the service script location.
	Script string
	// IdleTimeout stops the subprocess after this long without requests.
	IdleTimeout time.Duration
	// CropSize is the side of the square crops sent for face and hand models.
	CropSize int
	Logger   *zap.Logger
}

// DefaultServiceConfig returns a ServiceConfig with sensible default values.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		IdleTimeout: 30 * time.Second,
		CropSize:    224,
	}
}

// ServiceClient runs all four models in one Python subprocess. Each request
// is a length-prefixed JSON header followed by a length-prefixed JPEG; the
// reply is one JSON line. The process starts lazily on first use and stops
// after IdleTimeout.
type ServiceClient struct {
	config    ServiceConfig
	script    string
	python    string
	log       *zap.Logger
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	refs      int
	idleTimer *time.Timer
}

// NewServiceClient locates the service script. It fails with a
// ResourceLoadError when the script cannot be found.
func NewServiceClient(config ServiceConfig) (*ServiceClient, error) {
	script := config.Script
	if script == "" {
		script = findServiceScript()
	}
	if script == "" {
		return nil, &ResourceLoadError{Asset: DefaultServiceScript, Err: os.ErrNotExist}
	}
	if _, err := os.Stat(script); err != nil {
		return nil, &ResourceLoadError{Asset: script, Err: err}
	}

	python := config.Python
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	if config.CropSize <= 0 {
		config.CropSize = DefaultServiceConfig().CropSize
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &ServiceClient{
		config: config,
		script: script,
		python: python,
		log:    log.Named("model-service"),
	}, nil
}

// Models returns the four adapters backed by this client. The subprocess is
// shut down once every adapter has been closed.
func (c *ServiceClient) Models() Set {
	c.mu.Lock()
	c.refs += 4
	c.mu.Unlock()

	return Set{
		Pose: &servicePose{c: c},
		Face: &serviceFace{c: c},
		Palm: &servicePalm{c: c},
		Hand: &serviceHand{c: c},
	}
}

type serviceRequest struct {
	Model              string  `json:"model"`
	Variant            string  `json:"variant,omitempty"`
	DetectionThreshold float64 `json:"detection_threshold,omitempty"`
	IOUThreshold       float64 `json:"iou_threshold,omitempty"`
}

// call sends one request and decodes the JSON reply into out.
func (c *ServiceClient) call(req serviceRequest, img gocv.Mat, out any) error {
	data, err := imaging.EncodeJPEG(img)
	if err != nil {
		return err
	}
	header, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureStarted(); err != nil {
		return err
	}

	if err := writeFrame(c.stdin, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := writeFrame(c.stdin, data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}

	line, err := c.stdout.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if envelope.Error != "" {
		return fmt.Errorf("%s model: %s", req.Model, envelope.Error)
	}
	if err := json.Unmarshal(line, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	c.resetIdleTimer()
	return nil
}

// writeFrame writes a 4-byte big-endian length followed by data.
func writeFrame(w io.Writer, data []byte) error {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))
	if _, err := w.Write(length); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func (c *ServiceClient) ensureStarted() error {
	if c.started {
		return nil
	}

	c.cmd = exec.Command(c.python, c.script)

	stdin, err := c.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	c.cmd.Stderr = os.Stderr

	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("start model service: %w", err)
	}

	c.stdin = stdin
	c.stdout = bufio.NewReader(stdout)
	c.started = true
	c.log.Info("model service started", zap.String("python", c.python), zap.String("script", c.script))

	return nil
}

// release drops one adapter reference and stops the subprocess with the last.
func (c *ServiceClient) release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refs > 0 {
		c.refs--
	}
	if c.refs > 0 {
		return nil
	}
	return c.shutdown()
}

func (c *ServiceClient) shutdown() error {
	if !c.started {
		return nil
	}

	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}

	if c.stdin != nil {
		c.stdin.Close()
	}

	err := c.cmd.Wait()
	c.started = false
	c.cmd = nil
	c.stdin = nil
	c.stdout = nil
	c.log.Info("model service stopped")

	return err
}

func (c *ServiceClient) resetIdleTimer() {
	if c.config.IdleTimeout <= 0 {
		return
	}
	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}
	c.idleTimer = time.AfterFunc(c.config.IdleTimeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.shutdown(); err != nil {
			c.log.Warn("idle shutdown", zap.Error(err))
		}
	})
}

var errNoImage = errors.New("working frame has no image")

type servicePose struct{ c *ServiceClient }

type poseResponse struct {
	Landmarks [][4]float64 `json:"landmarks"`
	World     [][4]float64 `json:"world"`
	Score     float64      `json:"score"`
}

func (p *servicePose) Detect(wf WorkingFrame, opts PoseOptions) (PoseResult, error) {
	if wf.Image == nil {
		return PoseResult{}, errNoImage
	}
	var resp poseResponse
	req := serviceRequest{
		Model:              "pose",
		Variant:            string(opts.Variant),
		DetectionThreshold: opts.DetectionThreshold,
		IOUThreshold:       opts.IOUThreshold,
	}
	if err := p.c.call(req, *wf.Image, &resp); err != nil {
		return PoseResult{}, err
	}
	return resp.toResult(wf.Letterbox), nil
}

// toResult converts working-space model output into frame-relative sets.
func (r poseResponse) toResult(lb geometry.Letterbox) PoseResult {
	lm := landmark.NewSet(landmark.KindPose)
	for i := 0; i < landmark.NumPoseLandmarks && i < len(r.Landmarks); i++ {
		p := r.Landmarks[i]
		x, y := lb.ToFrame(p[0], p[1])
		lm.Points[i] = landmark.Landmark{X: x, Y: y, Z: p[2] * lb.ScaleX, W: p[3]}
	}
	lm.SetScore(r.Score)

	world := landmark.NewSet(landmark.KindPoseWorld)
	for i := 0; i < landmark.NumPoseLandmarks && i < len(r.World); i++ {
		p := r.World[i]
		world.Points[i] = landmark.Landmark{X: p[0], Y: p[1], Z: p[2], W: p[3]}
	}
	world.SetScore(r.Score)

	return PoseResult{Landmarks: lm, World: world}
}

func (p *servicePose) Close() error { return p.c.release() }

type serviceFace struct{ c *ServiceClient }

type faceResponse struct {
	Face           [][3]float64 `json:"face"`
	LeftEye        [][3]float64 `json:"left_eye"`
	RightEye       [][3]float64 `json:"right_eye"`
	LeftEyeMatrix  [16]float64  `json:"left_eye_matrix"`
	RightEyeMatrix [16]float64  `json:"right_eye_matrix"`
	Score          float64      `json:"score"`
}

func (f *serviceFace) Detect(wf WorkingFrame, region geometry.Region) (FaceResult, error) {
	if wf.Image == nil {
		return FaceResult{}, errNoImage
	}
	// The face model works on a mirrored frame; its crop matrices map into
	// mirrored working space and the reconciler undoes the mirror.
	mirrored, err := imaging.FlipHorizontal(*wf.Image)
	if err != nil {
		return FaceResult{}, err
	}
	defer mirrored.Close()

	region = region.MirrorX()
	crop, err := imaging.Crop(mirrored, region, f.c.config.CropSize, false)
	if err != nil {
		return FaceResult{}, err
	}
	defer crop.Close()

	var resp faceResponse
	if err := f.c.call(serviceRequest{Model: "face"}, crop, &resp); err != nil {
		return FaceResult{}, err
	}
	return resp.toResult(region), nil
}

// toResult attaches crop matrices. The service reports eye matrices relative
// to the face crop, so they are chained onto the face region.
func (r faceResponse) toResult(region geometry.Region) FaceResult {
	faceCrop := region.CropToWorking()
	return FaceResult{
		Face:         toLandmarks(r.Face, landmark.NumFaceLandmarks),
		FaceCrop:     faceCrop,
		LeftEye:      toLandmarks(r.LeftEye, landmark.NumEyeLandmarks),
		RightEye:     toLandmarks(r.RightEye, landmark.NumEyeLandmarks),
		LeftEyeCrop:  geometry.AffineFrom4x4(r.LeftEyeMatrix).Then(faceCrop),
		RightEyeCrop: geometry.AffineFrom4x4(r.RightEyeMatrix).Then(faceCrop),
		Score:        r.Score,
	}
}

func (f *serviceFace) Close() error { return f.c.release() }

type servicePalm struct{ c *ServiceClient }

type palmResponse struct {
	Candidates []struct {
		CenterX  float64 `json:"cx"`
		CenterY  float64 `json:"cy"`
		Width    float64 `json:"w"`
		Height   float64 `json:"h"`
		Rotation float64 `json:"rotation"`
		Score    float64 `json:"score"`
	} `json:"candidates"`
}

func (p *servicePalm) Detect(wf WorkingFrame) ([]Candidate, error) {
	if wf.Image == nil {
		return nil, errNoImage
	}
	var resp palmResponse
	if err := p.c.call(serviceRequest{Model: "palm"}, *wf.Image, &resp); err != nil {
		return nil, err
	}
	return resp.toCandidates(), nil
}

// toCandidates keeps at most the first two candidates.
func (r palmResponse) toCandidates() []Candidate {
	out := make([]Candidate, 0, 2)
	for _, c := range r.Candidates {
		if len(out) == 2 {
			break
		}
		out = append(out, Candidate{
			Region: geometry.Region{
				CenterX:  c.CenterX,
				CenterY:  c.CenterY,
				Width:    c.Width,
				Height:   c.Height,
				Rotation: c.Rotation,
			},
			Score: c.Score,
		})
	}
	return out
}

func (p *servicePalm) Close() error { return p.c.release() }

type serviceHand struct{ c *ServiceClient }

type handResponse struct {
	Landmarks  [][3]float64 `json:"landmarks"`
	Presence   float64      `json:"presence"`
	Handedness float64      `json:"handedness"`
}

func (h *serviceHand) Detect(wf WorkingFrame, region geometry.Region, palmDerived bool) (HandResult, error) {
	if wf.Image == nil {
		return HandResult{}, errNoImage
	}
	crop, err := imaging.Crop(*wf.Image, region, h.c.config.CropSize, palmDerived)
	if err != nil {
		return HandResult{}, err
	}
	defer crop.Close()

	var resp handResponse
	if err := h.c.call(serviceRequest{Model: "hand"}, crop, &resp); err != nil {
		return HandResult{}, err
	}
	return HandResult{
		Landmarks:  toLandmarks(resp.Landmarks, landmark.NumHandLandmarks),
		Presence:   resp.Presence,
		Handedness: resp.Handedness,
	}, nil
}

func (h *serviceHand) Close() error { return h.c.release() }

// toLandmarks copies up to n points, padding with zero landmarks. W is the
// fixed sentinel 1.0.
func toLandmarks(pts [][3]float64, n int) []landmark.Landmark {
	out := make([]landmark.Landmark, n)
	for i := 0; i < n && i < len(pts); i++ {
		out[i] = landmark.Landmark{X: pts[i][0], Y: pts[i][1], Z: pts[i][2], W: 1}
	}
	return out
}

func findServiceScript() string {
	// Get executable directory
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		DefaultServiceScript,
		filepath.Join("..", DefaultServiceScript),
		filepath.Join(execDir, DefaultServiceScript),
		filepath.Join(os.Getenv("HOME"), ".holistic", DefaultServiceScript),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".holistic/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
