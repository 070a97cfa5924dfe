// Package capture reads frames from cameras and video files using GoCV and
// gates processing on motion.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/holistic/internal/model"
)

// Default capture settings.
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when reading from a source that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrEndOfStream is returned once a finite source has no more frames.
	ErrEndOfStream = errors.New("end of stream")
)

// Camera is a frame source. ReadFrame returns frames whose Image the caller
// must close.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (model.Frame, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// videoSource captures from a camera device or a video file.
type videoSource struct {
	source   any
	isFile   bool
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int
	openedAt time.Time
}

// NewCamera creates a Camera for the given device ID.
func NewCamera(deviceID int) Camera {
	return &videoSource{source: deviceID, fps: DefaultFPS}
}

// NewVideoFile creates a Camera that plays back a video file. Frame
// timestamps come from the file position rather than the wall clock.
func NewVideoFile(path string) Camera {
	return &videoSource{source: path, isFile: true, fps: DefaultFPS}
}

// Open starts capture. Devices are asked for 640x480 at the configured FPS.
func (c *videoSource) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.source)
	if err != nil {
		return fmt.Errorf("open video source %v: %w", c.source, err)
	}

	if !c.isFile {
		capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
		capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
		capture.Set(gocv.VideoCaptureFPS, float64(c.fps))
	}

	c.capture = capture
	c.running = true
	c.openedAt = time.Now()

	return nil
}

// Close stops capture and releases the device.
func (c *videoSource) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads the next frame.
func (c *videoSource) ReadFrame() (model.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return model.Frame{}, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		if c.isFile {
			return model.Frame{}, ErrEndOfStream
		}
		return model.Frame{}, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		if c.isFile {
			return model.Frame{}, ErrEndOfStream
		}
		return model.Frame{}, errors.New("captured frame is empty")
	}

	ts := time.Since(c.openedAt)
	if c.isFile {
		ts = time.Duration(c.capture.Get(gocv.VideoCapturePosMsec) * float64(time.Millisecond))
	}

	return model.Frame{
		Image:     &mat,
		Width:     mat.Cols(),
		Height:    mat.Rows(),
		Timestamp: ts,
	}, nil
}

// SetFPS sets the capture rate. Values less than or equal to 0 are ignored.
func (c *videoSource) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil && !c.isFile {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current capture rate.
func (c *videoSource) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen reports whether capture is running.
func (c *videoSource) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
