package occupancy

import (
	"cmp"
	"math"
	"slices"
)

// FilterDetections screens raw detector output for the tracker.
//
// Only person detections survive, and only when the box area reaches
// MinBoxArea and height/max(1, width) lies within the aspect band. The result
// is stably sorted by left edge so identical detector output always produces
// identical tracker input.
func FilterDetections(raw []Detection, t Tunables) []Detection {
	accepted := make([]Detection, 0, len(raw))
	for _, d := range raw {
		if d.Label != PersonLabel {
			continue
		}
		if d.Box.Area() < t.MinBoxArea {
			continue
		}
		aspect := d.Box.Height() / math.Max(1, d.Box.Width())
		if aspect < t.MinAspectRatio || aspect > t.MaxAspectRatio {
			continue
		}
		accepted = append(accepted, d)
	}

	slices.SortStableFunc(accepted, func(a, b Detection) int {
		return cmp.Compare(a.Box.X1, b.Box.X1)
	})
	return accepted
}
