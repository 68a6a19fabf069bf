package occupancy

import "slices"

// entry is the bookkeeping kept for a track identity while it is visible or
// recently visible.
type entry struct {
	streak   int
	lastSeen int
}

// StepResult describes the outcome of one frame.
type StepResult struct {
	// Confirmed lists identities that reached the threshold on this frame.
	Confirmed []string
	// Visible is the number of distinct tracker-confirmed identities seen.
	Visible int
	// Evicted lists identities whose bookkeeping was dropped on this frame.
	Evicted []string
}

// Confirmer promotes track identities to confirmed once they have been seen
// in ConfirmFrames contiguous frames. Confirmation is permanent for the
// lifetime of the Confirmer, so Count never decreases.
//
// A Confirmer is owned by a single job goroutine and is not safe for
// concurrent use.
type Confirmer struct {
	confirmFrames int
	maxAge        int
	entries       map[string]*entry
	confirmed     map[string]struct{}
}

// NewConfirmer creates a Confirmer with empty bookkeeping.
func NewConfirmer(confirmFrames, maxAge int) *Confirmer {
	return &Confirmer{
		confirmFrames: confirmFrames,
		maxAge:        maxAge,
		entries:       make(map[string]*entry),
		confirmed:     make(map[string]struct{}),
	}
}

// Step applies the tracker output for frame index f. Frame indexes start at 1
// and must increase across calls. Tracks not confirmed by the tracker are
// ignored.
func (c *Confirmer) Step(f int, tracks []Track) StepResult {
	var res StepResult
	seen := make(map[string]struct{}, len(tracks))

	for _, t := range tracks {
		if !t.Confirmed {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}

		e, ok := c.entries[t.ID]
		if !ok {
			e = &entry{}
			c.entries[t.ID] = e
		}
		if ok && e.lastSeen == f-1 {
			e.streak++
		} else {
			e.streak = 1
		}
		e.lastSeen = f

		if e.streak >= c.confirmFrames {
			if _, done := c.confirmed[t.ID]; !done {
				c.confirmed[t.ID] = struct{}{}
				res.Confirmed = append(res.Confirmed, t.ID)
			}
		}
	}

	for id, e := range c.entries {
		if _, ok := seen[id]; ok {
			continue
		}
		if f-e.lastSeen > c.maxAge {
			delete(c.entries, id)
			res.Evicted = append(res.Evicted, id)
			continue
		}
		// Any later sighting is non-contiguous and restarts at 1.
		e.streak = 0
	}

	slices.Sort(res.Evicted)
	res.Visible = len(seen)
	return res
}

// Count returns the number of confirmed identities.
func (c *Confirmer) Count() int {
	return len(c.confirmed)
}

// IsConfirmed reports whether id has been confirmed.
func (c *Confirmer) IsConfirmed(id string) bool {
	_, ok := c.confirmed[id]
	return ok
}

// Streak returns the current contiguous streak for id and whether
// bookkeeping exists for it.
func (c *Confirmer) Streak(id string) (int, bool) {
	e, ok := c.entries[id]
	if !ok {
		return 0, false
	}
	return e.streak, true
}

// Tracked returns the number of identities with bookkeeping.
func (c *Confirmer) Tracked() int {
	return len(c.entries)
}
