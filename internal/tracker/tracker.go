// Package tracker assigns persistent identities to person detections across
// frames with a SORT-like greedy IoU matcher.
package tracker

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/ayusman/roomcount/internal/occupancy"
)

// Config holds tracker parameters.
type Config struct {
	// NInit is the number of consecutive matched frames before a track is
	// reported as confirmed.
	NInit int
	// MaxAge is the number of frames a confirmed track survives unmatched.
	MaxAge int
	// MinIoU is the minimum overlap for a detection to continue a track.
	MinIoU float64
}

// DefaultConfig returns the default tracker parameters.
func DefaultConfig() Config {
	return Config{
		NInit:  5,
		MaxAge: 18,
		MinIoU: 0.3,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.NInit < 1 {
		errs = append(errs, fmt.Errorf("tracker n_init must be at least 1, got %d", c.NInit))
	}
	if c.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("tracker max_age must be non-negative, got %d", c.MaxAge))
	}
	if !(c.MinIoU > 0 && c.MinIoU <= 1) {
		errs = append(errs, fmt.Errorf("tracker min_iou must be in (0, 1], got %v", c.MinIoU))
	}
	return errors.Join(errs...)
}

// track is the internal state of one identity.
type track struct {
	id              string
	box             occupancy.Box
	hits            int // consecutive matched frames
	timeSinceUpdate int
	confirmed       bool
}

// IOUTracker matches detections to tracks by box overlap. It is owned by a
// single job and is not safe for concurrent use.
type IOUTracker struct {
	cfg    Config
	tracks []*track
	nextID int
}

// New creates an empty tracker.
func New(cfg Config) *IOUTracker {
	return &IOUTracker{cfg: cfg}
}

// Factory returns a tracker factory that creates a fresh tracker per job.
func Factory(cfg Config) occupancy.TrackerFactory {
	return func() occupancy.Tracker {
		return New(cfg)
	}
}

// candidate is a track/detection pair eligible for matching.
type candidate struct {
	track, det int
	iou        float64
}

// Update advances the tracker by one frame and returns the tracks matched in
// it, in detection order.
//
// Matching is greedy on descending IoU. Unmatched detections start tentative
// tracks. A tentative track is dropped the first frame it goes unmatched; a
// confirmed track is dropped after more than MaxAge unmatched frames.
func (t *IOUTracker) Update(detections []occupancy.Detection, _ occupancy.Frame) []occupancy.Track {
	var pairs []candidate
	for ti, tr := range t.tracks {
		for di, d := range detections {
			if iou := tr.box.IoU(d.Box); iou >= t.cfg.MinIoU {
				pairs = append(pairs, candidate{track: ti, det: di, iou: iou})
			}
		}
	}
	slices.SortStableFunc(pairs, func(a, b candidate) int {
		return cmp.Compare(b.iou, a.iou)
	})

	trackFor := make([]*track, len(detections))
	usedTrack := make([]bool, len(t.tracks))
	for _, p := range pairs {
		if usedTrack[p.track] || trackFor[p.det] != nil {
			continue
		}
		usedTrack[p.track] = true
		trackFor[p.det] = t.tracks[p.track]
	}

	kept := t.tracks[:0]
	for ti, tr := range t.tracks {
		if usedTrack[ti] {
			kept = append(kept, tr)
			continue
		}
		tr.hits = 0
		tr.timeSinceUpdate++
		if tr.confirmed && tr.timeSinceUpdate <= t.cfg.MaxAge {
			kept = append(kept, tr)
		}
	}
	clear(t.tracks[len(kept):])
	t.tracks = kept

	out := make([]occupancy.Track, 0, len(detections))
	for di, d := range detections {
		tr := trackFor[di]
		if tr == nil {
			t.nextID++
			tr = &track{id: strconv.Itoa(t.nextID)}
			t.tracks = append(t.tracks, tr)
		}
		tr.box = d.Box
		tr.hits++
		tr.timeSinceUpdate = 0
		if tr.hits >= t.cfg.NInit {
			tr.confirmed = true
		}
		out = append(out, occupancy.Track{ID: tr.id, Confirmed: tr.confirmed, Box: tr.box})
	}
	return out
}

// Len returns the number of live tracks.
func (t *IOUTracker) Len() int {
	return len(t.tracks)
}
