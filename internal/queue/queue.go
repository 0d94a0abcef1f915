// Package queue implements the position-based repetition queue: per
// (user, learning path) an ordered set of stitches whose positions form
// a contiguous permutation of 1..N. Completing a stitch reinserts it at
// a performance-derived depth from the front, so position 1 always
// answers "what comes next".
package queue

import (
	"fmt"
	"time"
)

// Unit is one stitch reference inside a repetition queue.
type Unit struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// RepositionResult is the append-only audit record of one reposition.
type RepositionResult struct {
	ID               string    `json:"id"`
	StitchID         string    `json:"stitch_id"`
	PathID           string    `json:"path_id"`
	PreviousPosition int       `json:"previous_position"`
	NewPosition      int       `json:"new_position"`
	SkipNumber       int       `json:"skip_number"`
	Timestamp        time.Time `json:"timestamp"`
}

// Queue holds one learning path's stitches, sorted ascending by
// position. Mutations go through rebuild so readers never observe a
// half-shifted queue.
type Queue struct {
	pathID string
	units  []Unit
}

func newQueue(pathID string, unitIDs []string) *Queue {
	q := &Queue{pathID: pathID, units: make([]Unit, 0, len(unitIDs))}
	for i, id := range unitIDs {
		q.units = append(q.units, Unit{ID: id, Position: i + 1})
	}
	return q
}

// Len returns the number of stitches in the queue.
func (q *Queue) Len() int {
	return len(q.units)
}

// head returns the unit at position 1. The invariant puts it at index
// 0, but a minimum-position scan covers a corrupted queue defensively.
func (q *Queue) head() (Unit, bool) {
	if len(q.units) == 0 {
		return Unit{}, false
	}
	best := q.units[0]
	for _, u := range q.units[1:] {
		if u.Position < best.Position {
			best = u
		}
	}
	return best, true
}

// indexOf returns the index of the stitch, or -1.
func (q *Queue) indexOf(stitchID string) int {
	for i, u := range q.units {
		if u.ID == stitchID {
			return i
		}
	}
	return -1
}

// snapshot returns a copy of the units, ascending by position.
func (q *Queue) snapshot() []Unit {
	out := make([]Unit, len(q.units))
	copy(out, q.units)
	return out
}

// reinserted builds the queue state after removing the stitch at idx
// and reinserting it at depth skipNumber from the front. The receiver
// is not modified; the caller swaps in the result after verifying it.
//
// Survivors first close the gap left by the removal, then the stitch
// lands at position skipNumber, pushing survivors at that depth and
// beyond back by one. Positions stay a contiguous 1..N permutation by
// construction.
func (q *Queue) reinserted(idx, skipNumber int) []Unit {
	moved := q.units[idx]

	survivors := make([]Unit, 0, len(q.units))
	survivors = append(survivors, q.units[:idx]...)
	survivors = append(survivors, q.units[idx+1:]...)

	insertAt := skipNumber - 1
	if insertAt > len(survivors) {
		insertAt = len(survivors)
	}

	out := make([]Unit, 0, len(q.units))
	out = append(out, survivors[:insertAt]...)
	out = append(out, moved)
	out = append(out, survivors[insertAt:]...)

	for i := range out {
		out[i].Position = i + 1
	}
	return out
}

// verifyContiguous checks that units form a contiguous 1..N permutation
// with no duplicate IDs.
func verifyContiguous(units []Unit) error {
	seenPos := make(map[int]bool, len(units))
	seenID := make(map[string]bool, len(units))
	for _, u := range units {
		if u.Position < 1 || u.Position > len(units) {
			return fmt.Errorf("position %d outside 1..%d", u.Position, len(units))
		}
		if seenPos[u.Position] {
			return fmt.Errorf("duplicate position %d", u.Position)
		}
		if seenID[u.ID] {
			return fmt.Errorf("duplicate stitch %s", u.ID)
		}
		seenPos[u.Position] = true
		seenID[u.ID] = true
	}
	return nil
}
