package video

import (
	"io"
	"sync"

	"gocv.io/x/gocv"
)

// MockSource synthesizes blank frames for testing. Every ReadFrame
// returns a fresh Mat the caller must close, matching the file source
// contract.
type MockSource struct {
	meta   Meta
	frames int
	index  int
	err    error
	mu     sync.Mutex
	open   bool
}

// NewMockSource creates a source producing the given number of blank
// frames with timestamps derived from the meta FPS.
func NewMockSource(meta Meta, frames int) *MockSource {
	return &MockSource{meta: meta, frames: frames}
}

// SetError sets the error ReadFrame will return.
func (m *MockSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Open resets the playback position.
func (m *MockSource) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	m.index = 0
	return nil
}

// Close marks the source closed.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

// ReadFrame returns the next blank frame and its timestamp.
func (m *MockSource) ReadFrame() (*gocv.Mat, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return nil, 0, ErrSourceNotOpen
	}
	if m.err != nil {
		return nil, 0, m.err
	}
	if m.index >= m.frames {
		return nil, 0, io.EOF
	}

	mat := gocv.NewMatWithSize(m.meta.Height, m.meta.Width, gocv.MatTypeCV8UC3)
	fps := m.meta.FPS
	if fps <= 0 {
		fps = 30
	}
	ts := float64(m.index) / fps
	m.index++
	return &mat, ts, nil
}

// Meta returns the configured metadata.
func (m *MockSource) Meta() Meta {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta
}
