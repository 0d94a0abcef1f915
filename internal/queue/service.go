package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zenlearn/helix/internal/logger"
	"github.com/zenlearn/helix/internal/perf"
	"github.com/zenlearn/helix/internal/skip"
	"github.com/zenlearn/helix/internal/store"
)

// Service manages repetition queues for all users, keyed by
// (userID, pathID). Mutations swap in fully built queue states under
// the write lock, so concurrent readers never see a mid-shift queue.
type Service struct {
	mu    sync.RWMutex
	users map[string]*userState

	calc   skip.Calculator
	events store.EventRepo
	log    *logger.Logger
	now    func() time.Time
}

type userState struct {
	queues  map[string]*Queue             // by pathID
	history map[string][]RepositionResult // by stitchID, most recent first
}

// NewService creates a queue service. events may be nil to skip audit
// logging.
func NewService(calc skip.Calculator, events store.EventRepo, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		users:  make(map[string]*userState),
		calc:   calc,
		events: events,
		log:    log.With("component", "queue"),
		now:    time.Now,
	}
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Initialize assigns sequential positions 1..N to unitIDs in input
// order, replacing any existing queue for (userID, pathID).
func (s *Service) Initialize(userID, pathID string, unitIDs []string) error {
	if userID == "" || pathID == "" {
		return fmt.Errorf("queue: initialize requires user and path ids")
	}
	seen := make(map[string]bool, len(unitIDs))
	for _, id := range unitIDs {
		if id == "" {
			return fmt.Errorf("queue: empty unit id in path %s", pathID)
		}
		if seen[id] {
			return fmt.Errorf("queue: duplicate unit id %s in path %s", id, pathID)
		}
		seen[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	us := s.users[userID]
	if us == nil {
		us = &userState{
			queues:  make(map[string]*Queue),
			history: make(map[string][]RepositionResult),
		}
		s.users[userID] = us
	}
	us.queues[pathID] = newQueue(pathID, unitIDs)

	s.log.Debug("queue initialized", "user", userID, "path", pathID, "units", len(unitIDs))
	return nil
}

// Next returns the stitch at position 1 of the user's path queue.
func (s *Service) Next(userID, pathID string) (Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, err := s.queueFor(userID, pathID)
	if err != nil {
		return Unit{}, err
	}
	u, ok := q.head()
	if !ok {
		return Unit{}, fmt.Errorf("%w: path %s", ErrNoStitches, pathID)
	}
	return u, nil
}

// Len returns the number of stitches in the user's path queue.
func (s *Service) Len(userID, pathID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, err := s.queueFor(userID, pathID)
	if err != nil {
		return 0, err
	}
	return q.Len(), nil
}

// Snapshot returns the queue contents ascending by position.
func (s *Service) Snapshot(userID, pathID string) ([]Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, err := s.queueFor(userID, pathID)
	if err != nil {
		return nil, err
	}
	return q.snapshot(), nil
}

// Paths returns the user's learning path IDs.
func (s *Service) Paths(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	us := s.users[userID]
	if us == nil {
		return nil
	}
	paths := make([]string, 0, len(us.queues))
	for id := range us.queues {
		paths = append(paths, id)
	}
	return paths
}

// Reposition removes the stitch from its queue, computes a skip number
// from the performance signal and the stitch's repositioning history,
// and reinserts it at that depth from the front. The mutation is
// all-or-nothing: on any error the queue is unchanged.
func (s *Service) Reposition(ctx context.Context, userID, stitchID string, d perf.Data) (*RepositionResult, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	us := s.users[userID]
	if us == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	q, idx := s.locate(us, stitchID)
	if q == nil {
		return nil, fmt.Errorf("%w: %s", ErrStitchNotFound, stitchID)
	}
	prev := q.units[idx].Position

	prevSkips := pastSkips(us.history[stitchID])
	skipNumber, err := s.calc.Calculate(d, prevSkips, q.Len())
	if err != nil {
		return nil, err
	}

	rebuilt := q.reinserted(idx, skipNumber)
	if err := verifyContiguous(rebuilt); err != nil {
		s.log.Error("reposition produced inconsistent queue",
			"user", userID, "path", q.pathID, "stitch", stitchID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrRepositionFailed, err)
	}
	q.units = rebuilt

	newPos := 0
	for _, u := range rebuilt {
		if u.ID == stitchID {
			newPos = u.Position
			break
		}
	}

	result := RepositionResult{
		ID:               uuid.NewString(),
		StitchID:         stitchID,
		PathID:           q.pathID,
		PreviousPosition: prev,
		NewPosition:      newPos,
		SkipNumber:       skipNumber,
		Timestamp:        d.Timestamp(s.now()),
	}
	us.history[stitchID] = append([]RepositionResult{result}, us.history[stitchID]...)

	if s.events != nil {
		if err := s.events.AppendReposition(ctx, store.RepositionEventData{
			EventID:           result.ID,
			UserID:            userID,
			PathID:            result.PathID,
			StitchID:          stitchID,
			PreviousPosition:  result.PreviousPosition,
			NewPosition:       result.NewPosition,
			SkipNumber:        result.SkipNumber,
			CorrectCount:      d.CorrectCount,
			TotalCount:        d.TotalCount,
			AvgResponseTimeMs: d.AvgResponseTime.Milliseconds(),
			Timestamp:         result.Timestamp,
		}); err != nil {
			s.log.Warn("reposition audit append failed", "user", userID, "stitch", stitchID, "err", err)
		}
	}

	s.log.Debug("stitch repositioned",
		"user", userID, "path", result.PathID, "stitch", stitchID,
		"from", prev, "to", newPos, "skip", skipNumber)
	return &result, nil
}

// History returns a stitch's reposition records, most recent first,
// capped at limit when positive.
func (s *Service) History(userID, stitchID string, limit int) ([]RepositionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	us := s.users[userID]
	if us == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	h := us.history[stitchID]
	if limit > 0 && len(h) > limit {
		h = h[:limit]
	}
	out := make([]RepositionResult, len(h))
	copy(out, h)
	return out, nil
}

// ExportSnapshot returns the user's queues as snapshot data, unit IDs
// in position order.
func (s *Service) ExportSnapshot(userID string) ([]store.QueueSnapshotData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	us := s.users[userID]
	if us == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	out := make([]store.QueueSnapshotData, 0, len(us.queues))
	for pathID, q := range us.queues {
		ids := make([]string, 0, q.Len())
		for _, u := range q.snapshot() {
			ids = append(ids, u.ID)
		}
		out = append(out, store.QueueSnapshotData{PathID: pathID, UnitIDs: ids})
	}
	return out, nil
}

// Restore rebuilds a user's queues and reposition history from
// persisted state, replacing whatever was in memory.
func (s *Service) Restore(userID string, snaps []store.QueueSnapshotData, history map[string][]RepositionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	us := &userState{
		queues:  make(map[string]*Queue, len(snaps)),
		history: make(map[string][]RepositionResult, len(history)),
	}
	for _, snap := range snaps {
		us.queues[snap.PathID] = newQueue(snap.PathID, snap.UnitIDs)
	}
	for stitchID, h := range history {
		cp := make([]RepositionResult, len(h))
		copy(cp, h)
		us.history[stitchID] = cp
	}
	s.users[userID] = us
}

// queueFor resolves a queue under a held lock.
func (s *Service) queueFor(userID, pathID string) (*Queue, error) {
	us := s.users[userID]
	if us == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	q := us.queues[pathID]
	if q == nil {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, pathID)
	}
	return q, nil
}

// locate finds which of the user's queues holds the stitch.
func (s *Service) locate(us *userState, stitchID string) (*Queue, int) {
	for _, q := range us.queues {
		if idx := q.indexOf(stitchID); idx >= 0 {
			return q, idx
		}
	}
	return nil, -1
}

func pastSkips(history []RepositionResult) []int {
	if len(history) == 0 {
		return nil
	}
	out := make([]int, len(history))
	for i, r := range history {
		out[i] = r.SkipNumber
	}
	return out
}
