package detector

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/ayusman/roomcount/internal/occupancy"
)

// decodeOutput turns a raw YOLOv8 output tensor into detections in frame
// pixel coordinates. The tensor holds, per anchor, a centre box
// (cx, cy, w, h) in network input pixels followed by one score per class.
// Both [1, 4+classes, anchors] and [1, anchors, 4+classes] layouts are
// accepted; the smaller non-batch dimension is taken as the channel axis.
func decodeOutput(data []float32, dims []int, scaleX, scaleY, minConfidence float64, personClassID int) ([]occupancy.Detection, error) {
	if len(dims) == 3 {
		if dims[0] != 1 {
			return nil, fmt.Errorf("unexpected batch size %d", dims[0])
		}
		dims = dims[1:]
	}
	if len(dims) != 2 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}

	channelsFirst := dims[0] < dims[1]
	channels, anchors := dims[1], dims[0]
	if channelsFirst {
		channels, anchors = dims[0], dims[1]
	}
	if channels < 5 {
		return nil, fmt.Errorf("output has %d channels, need at least 5", channels)
	}
	if len(data) < channels*anchors {
		return nil, fmt.Errorf("output has %d values, shape %v needs %d", len(data), dims, channels*anchors)
	}

	at := func(ch, i int) float64 {
		if channelsFirst {
			return float64(data[ch*anchors+i])
		}
		return float64(data[i*channels+ch])
	}

	var out []occupancy.Detection
	for i := 0; i < anchors; i++ {
		classID, score := -1, 0.0
		for ch := 4; ch < channels; ch++ {
			if s := at(ch, i); s > score {
				classID, score = ch-4, s
			}
		}
		if classID < 0 || score < minConfidence {
			continue
		}

		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		out = append(out, occupancy.Detection{
			Box: occupancy.Box{
				X1: (cx - w/2) * scaleX,
				Y1: (cy - h/2) * scaleY,
				X2: (cx + w/2) * scaleX,
				Y2: (cy + h/2) * scaleY,
			},
			Confidence: score,
			Label:      label(classID, personClassID),
		})
	}
	return out, nil
}

// nonMaxSuppression greedily keeps the most confident box of each cluster of
// same-label boxes overlapping by more than threshold. Output is ordered by
// descending confidence; equal confidences keep their input order.
func nonMaxSuppression(dets []occupancy.Detection, threshold float64) []occupancy.Detection {
	order := slices.Clone(dets)
	slices.SortStableFunc(order, func(a, b occupancy.Detection) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})

	kept := make([]occupancy.Detection, 0, len(order))
	for _, d := range order {
		suppressed := false
		for _, k := range kept {
			if k.Label == d.Label && k.Box.IoU(d.Box) > threshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}

// clip limits b to a width x height frame.
func clip(b occupancy.Box, width, height float64) occupancy.Box {
	return occupancy.Box{
		X1: min(max(b.X1, 0), width),
		Y1: min(max(b.Y1, 0), height),
		X2: min(max(b.X2, 0), width),
		Y2: min(max(b.Y2, 0), height),
	}
}
