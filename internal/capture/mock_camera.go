package capture

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/holistic/internal/model"
)

// MockCamera plays back a fixed frame sequence. Timestamps advance by one
// frame interval per read, so runs are reproducible.
type MockCamera struct {
	frames  []model.Frame
	index   int
	reads   int
	loop    bool
	fps     int
	mu      sync.Mutex
	running bool
}

// NewMockCamera plays back the given images.
func NewMockCamera(images []*gocv.Mat, loop bool) *MockCamera {
	frames := make([]model.Frame, len(images))
	for i, img := range images {
		frames[i] = model.Frame{Image: img, Width: img.Cols(), Height: img.Rows()}
	}
	return &MockCamera{frames: frames, loop: loop, fps: DefaultFPS}
}

// NewBlankMockCamera plays back count frames of the given size without
// pixels, for use with mock models.
func NewBlankMockCamera(width, height, count int, loop bool) *MockCamera {
	frames := make([]model.Frame, count)
	for i := range frames {
		frames[i] = model.Frame{Width: width, Height: height}
	}
	return &MockCamera{frames: frames, loop: loop, fps: DefaultFPS}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	c.reads = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *MockCamera) ReadFrame() (model.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return model.Frame{}, ErrCameraNotOpen
	}

	if len(c.frames) == 0 {
		return model.Frame{}, fmt.Errorf("no frames available")
	}

	if c.index >= len(c.frames) {
		if !c.loop {
			return model.Frame{}, ErrEndOfStream
		}
		c.index = 0
	}

	f := c.frames[c.index]
	// Clone the image so the caller can close it
	if f.Image != nil {
		img := f.Image.Clone()
		f.Image = &img
	}
	f.Timestamp = time.Duration(c.reads) * time.Second / time.Duration(c.fps)
	c.index++
	c.reads++

	return f, nil
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Reset restarts playback from the beginning
func (c *MockCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
	c.reads = 0
}
