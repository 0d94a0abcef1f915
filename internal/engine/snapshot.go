package engine

import (
	"context"
	"errors"

	"github.com/zenlearn/helix/internal/queue"
	"github.com/zenlearn/helix/internal/store"
)

// persist writes the user's current state to the snapshot repo.
// Best-effort: the live maps stay authoritative, so a failed save only
// costs restart convenience. Callers hold the user lock.
func (e *Engine) persist(ctx context.Context, userID string) {
	if e.snapshots == nil {
		return
	}

	snap := &store.UserSnapshotData{UserID: userID}

	queues, err := e.queues.svc.ExportSnapshot(userID)
	if err != nil && !errors.Is(err, queue.ErrUserNotFound) {
		e.log.Warn("snapshot export failed", "user", userID, "err", err)
		return
	}
	snap.Queues = queues

	if tubeState, err := e.queues.manager.ExportState(userID); err == nil {
		snap.Tubes = tubeState
	}

	e.mu.Lock()
	snap.BoundaryLevel = e.boundary[userID]
	e.mu.Unlock()

	if err := e.snapshots.SaveUser(ctx, snap); err != nil {
		e.log.Warn("snapshot save failed", "user", userID, "err", err)
	}
}

// RestoreUser rebuilds a user's scheduler state from the snapshot repo
// and the reposition audit log. Returns false when no snapshot exists.
func (e *Engine) RestoreUser(ctx context.Context, userID string) (bool, error) {
	if e.snapshots == nil {
		return false, nil
	}

	snap, err := e.snapshots.LoadUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}

	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	history := make(map[string][]queue.RepositionResult)
	if e.events != nil {
		records, err := e.events.RepositionsForUser(ctx, userID, 0)
		if err != nil {
			e.log.Warn("history restore failed", "user", userID, "err", err)
		}
		for _, rec := range records {
			history[rec.StitchID] = append(history[rec.StitchID], queue.RepositionResult{
				ID:               rec.EventID,
				StitchID:         rec.StitchID,
				PathID:           rec.PathID,
				PreviousPosition: rec.PreviousPosition,
				NewPosition:      rec.NewPosition,
				SkipNumber:       rec.SkipNumber,
				Timestamp:        rec.Timestamp,
			})
		}
	}

	e.queues.svc.Restore(userID, snap.Queues, history)
	if snap.Tubes != nil {
		e.queues.manager.Restore(userID, snap.Tubes)
	}

	e.mu.Lock()
	e.boundary[userID] = snap.BoundaryLevel
	e.mu.Unlock()

	e.log.Info("user restored", "user", userID,
		"queues", len(snap.Queues), "events", len(history))
	return true, nil
}
