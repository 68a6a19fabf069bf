package capture

import (
	"context"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/roomcount/internal/occupancy"
)

// MockSource plays back pre-recorded frames for testing
type MockSource struct {
	frames  []*gocv.Mat
	index   int
	loop    bool
	mu      sync.Mutex
	running bool
}

func NewMockSource(frames []*gocv.Mat, loop bool) *MockSource {
	return &MockSource{
		frames:  frames,
		loop:    loop,
		running: true,
	}
}

func (s *MockSource) Next() (occupancy.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrSourceNotOpen
	}

	if s.index >= len(s.frames) {
		if !s.loop || len(s.frames) == 0 {
			return nil, occupancy.ErrEndOfStream
		}
		s.index = 0
	}

	// Clone the frame so the original isn't modified
	frame := s.frames[s.index].Clone()
	s.index++

	return &frame, nil
}

func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// IsOpen reports whether Close has not been called yet.
func (s *MockSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// MockOpener hands out a fresh MockSource over the same frames on every Open.
type MockOpener struct {
	mu      sync.Mutex
	frames  []*gocv.Mat
	loop    bool
	err     error
	opened  []occupancy.Descriptor
	sources []*MockSource
}

func NewMockOpener(frames []*gocv.Mat, loop bool) *MockOpener {
	return &MockOpener{frames: frames, loop: loop}
}

func (o *MockOpener) Open(ctx context.Context, d occupancy.Descriptor) (occupancy.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.opened = append(o.opened, d)
	if o.err != nil {
		return nil, o.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := NewMockSource(o.frames, o.loop)
	o.sources = append(o.sources, src)
	return src, nil
}

// SetError makes subsequent Open calls fail with err.
func (o *MockOpener) SetError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// Opened returns the descriptors passed to Open so far.
func (o *MockOpener) Opened() []occupancy.Descriptor {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]occupancy.Descriptor(nil), o.opened...)
}

// Sources returns the sources handed out so far.
func (o *MockOpener) Sources() []*MockSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*MockSource(nil), o.sources...)
}
