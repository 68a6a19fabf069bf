package occupancy

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
)

// fakeFrame carries its 1-based position in the stream.
type fakeFrame struct {
	index int
}

func (f *fakeFrame) Close() error { return nil }

// fakeSource yields n frames, or blocks between frames while gate is set.
type fakeSource struct {
	n      int
	next   int
	gate   chan struct{}
	closed atomic.Bool
}

func (s *fakeSource) Next() (Frame, error) {
	if s.gate != nil {
		<-s.gate
	}
	if s.n >= 0 && s.next >= s.n {
		return nil, ErrEndOfStream
	}
	s.next++
	return &fakeFrame{index: s.next}, nil
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

// fakeOpener hands out fakeSources. A negative frame count never ends.
type fakeOpener struct {
	mu      sync.Mutex
	frames  int
	gate    chan struct{}
	err     error
	opened  []Descriptor
	sources []*fakeSource
}

func (o *fakeOpener) Open(_ context.Context, d Descriptor) (Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.opened = append(o.opened, d)
	if o.err != nil {
		return nil, o.err
	}
	src := &fakeSource{n: o.frames, gate: o.gate}
	o.sources = append(o.sources, src)
	return src, nil
}

func (o *fakeOpener) lastSource() *fakeSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sources) == 0 {
		return nil
	}
	return o.sources[len(o.sources)-1]
}

// scriptDetector returns detections chosen per frame index.
type scriptDetector struct {
	script func(index int) ([]Detection, error)
	calls  atomic.Int32
}

func (d *scriptDetector) Detect(frame Frame, _ float64) ([]Detection, error) {
	d.calls.Add(1)
	return d.script(frame.(*fakeFrame).index)
}

// passthroughTracker reports every detection as a tracker-confirmed track
// whose identity is the detection's left edge.
type passthroughTracker struct {
	onUpdate func()
}

func (t *passthroughTracker) Update(detections []Detection, _ Frame) []Track {
	if t.onUpdate != nil {
		t.onUpdate()
	}
	tracks := make([]Track, 0, len(detections))
	for _, d := range detections {
		tracks = append(tracks, Track{
			ID:        strconv.FormatFloat(d.Box.X1, 'f', -1, 64),
			Confirmed: true,
			Box:       d.Box,
		})
	}
	return tracks
}

// person returns an accepted 40x100 person box with its left edge at x.
func person(x float64) Detection {
	return Detection{
		Box:        Box{X1: x, Y1: 10, X2: x + 40, Y2: 110},
		Confidence: 0.9,
		Label:      PersonLabel,
	}
}

var errDetect = errors.New("inference failed")
