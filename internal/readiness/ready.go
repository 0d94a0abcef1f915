// Package readiness caches fully assembled content bundles per
// (user, tube) so the next tube can be served instantly after a
// rotation. Cache state is derived and disposable: losing it costs
// assembly latency, never ordering correctness.
package readiness

import (
	"time"

	"github.com/zenlearn/helix/internal/tubes"
)

// Question is one prepared question inside a ready stitch. A valid
// question carries all four fields.
type Question struct {
	ID         string `json:"id"`
	Prompt     string `json:"prompt"`
	Answer     string `json:"answer"`
	Distractor string `json:"distractor"`
}

// Valid reports whether the question carries every required field.
func (q Question) Valid() bool {
	return q.ID != "" && q.Prompt != "" && q.Answer != "" && q.Distractor != ""
}

// ReadyStitch is a fully assembled bundle of prepared questions,
// immutable once cached.
type ReadyStitch struct {
	StitchID      string     `json:"stitch_id"`
	UserID        string     `json:"user_id"`
	TubeID        tubes.ID   `json:"tube_id"`
	BoundaryLevel int        `json:"boundary_level"`
	Questions     []Question `json:"questions"`
	AssembledAt   time.Time  `json:"assembled_at"`
}

// Complete reports whether the bundle passes the completeness check:
// at least one question, and every question valid.
func (rs *ReadyStitch) Complete() bool {
	if rs == nil || len(rs.Questions) == 0 {
		return false
	}
	for _, q := range rs.Questions {
		if !q.Valid() {
			return false
		}
	}
	return true
}

// Receipt confirms a cache write.
type Receipt struct {
	Cached         bool      `json:"cached"`
	CacheTimestamp time.Time `json:"cache_timestamp"`
	ValidUntil     time.Time `json:"valid_until"`
}

// Reason classifies why tubes are being invalidated.
type Reason string

const (
	// ReasonBoundaryChange: the learner's mastery level shifted; every
	// cached assumption about appropriate difficulty is void.
	ReasonBoundaryChange Reason = "boundary-level-changed"
	// ReasonMilestone: a major progression milestone on the active
	// tube.
	ReasonMilestone Reason = "progression-milestone"
	// ReasonForced: explicit refresh request.
	ReasonForced Reason = "forced-refresh"
	// ReasonAge: clear only tubes past their validity.
	ReasonAge Reason = "age-threshold"
)

// Criteria selects which tubes to invalidate.
type Criteria struct {
	Reason Reason

	// ActiveTube scopes ReasonMilestone to the live tube.
	ActiveTube tubes.ID
}

// InvalidationResult reports which tubes were cleared and why.
type InvalidationResult struct {
	InvalidatedTubes []tubes.ID `json:"invalidated_tubes"`
	Reason           Reason     `json:"reason"`
	Timestamp        time.Time  `json:"timestamp"`
}

// Availability is non-throwing introspection for UI and backoff
// decisions.
type Availability struct {
	IsReady             bool       `json:"is_ready"`
	PreparationProgress float64    `json:"preparation_progress"`
	EstimatedReadyTime  *time.Time `json:"estimated_ready_time,omitempty"`
}
