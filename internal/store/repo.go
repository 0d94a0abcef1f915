package store

import (
	"context"
	"time"
)

// RepositionEventData captures one reposition for the audit log.
type RepositionEventData struct {
	EventID           string    `json:"event_id"`
	UserID            string    `json:"user_id"`
	PathID            string    `json:"path_id"`
	StitchID          string    `json:"stitch_id"`
	PreviousPosition  int       `json:"previous_position"`
	NewPosition       int       `json:"new_position"`
	SkipNumber        int       `json:"skip_number"`
	CorrectCount      int       `json:"correct_count"`
	TotalCount        int       `json:"total_count"`
	AvgResponseTimeMs int64     `json:"avg_response_time_ms"`
	Timestamp         time.Time `json:"timestamp"`
}

// RepositionEventRecord is a stored event with its assigned sequence.
type RepositionEventRecord struct {
	Sequence int64
	RepositionEventData
}

// EventRepo provides append access to the reposition audit log.
type EventRepo interface {
	// AppendReposition records one reposition event.
	AppendReposition(ctx context.Context, data RepositionEventData) error

	// RecentRepositions returns a stitch's events, most recent first.
	// limit <= 0 means unlimited.
	RecentRepositions(ctx context.Context, userID, stitchID string, limit int) ([]RepositionEventRecord, error)

	// RepositionsForUser returns all of a user's events, most recent
	// first, capped at limit when positive.
	RepositionsForUser(ctx context.Context, userID string, limit int) ([]RepositionEventRecord, error)
}

// QueueSnapshotData is one repetition queue's state: unit IDs in
// position order (index 0 holds position 1).
type QueueSnapshotData struct {
	PathID  string   `json:"path_id"`
	UnitIDs []string `json:"unit_ids"`
}

// TubeStateData is the rotation state across a user's three tubes.
type TubeStateData struct {
	ActiveTube string            `json:"active_tube"`
	States     map[string]string `json:"states"`
}

// UserSnapshotData captures one user's full scheduler state.
type UserSnapshotData struct {
	UserID        string              `json:"user_id"`
	Queues        []QueueSnapshotData `json:"queues"`
	Tubes         *TubeStateData      `json:"tubes,omitempty"`
	BoundaryLevel int                 `json:"boundary_level"`
}

// SnapshotRepo persists per-user scheduler snapshots. Snapshots are a
// restart convenience: the live queues stay authoritative for ordering.
type SnapshotRepo interface {
	// SaveUser stores (replacing) a user's snapshot.
	SaveUser(ctx context.Context, snap *UserSnapshotData) error

	// LoadUser returns a user's snapshot, or nil if none exists.
	LoadUser(ctx context.Context, userID string) (*UserSnapshotData, error)

	// DeleteUser removes a user's snapshot.
	DeleteUser(ctx context.Context, userID string) error

	// ListUsers returns all user IDs with snapshots.
	ListUsers(ctx context.Context) ([]string, error)
}
