// Package perf defines the performance signal produced after a learner
// completes a stitch, with constructor-time range validation.
package perf

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPerformance indicates a performance record that violates
// its range constraints. Check with errors.Is.
var ErrInvalidPerformance = errors.New("perf: invalid performance data")

// Data is the per-completion performance signal. It is transient: the
// scheduler folds it into a reposition record and discards it.
type Data struct {
	CorrectCount    int
	TotalCount      int
	AvgResponseTime time.Duration

	// CompletedAt is when the learner finished the stitch. Zero means
	// "now" at the point the signal is consumed.
	CompletedAt time.Time
}

// New builds a validated Data.
func New(correct, total int, avgResponseTime time.Duration, completedAt time.Time) (Data, error) {
	d := Data{
		CorrectCount:    correct,
		TotalCount:      total,
		AvgResponseTime: avgResponseTime,
		CompletedAt:     completedAt,
	}
	if err := d.Validate(); err != nil {
		return Data{}, err
	}
	return d, nil
}

// Validate checks the range constraints: totalCount > 0,
// 0 <= correctCount <= totalCount, averageResponseTime > 0.
func (d Data) Validate() error {
	if d.TotalCount <= 0 {
		return fmt.Errorf("%w: total count %d must be positive", ErrInvalidPerformance, d.TotalCount)
	}
	if d.CorrectCount < 0 || d.CorrectCount > d.TotalCount {
		return fmt.Errorf("%w: correct count %d outside [0, %d]", ErrInvalidPerformance, d.CorrectCount, d.TotalCount)
	}
	if d.AvgResponseTime <= 0 {
		return fmt.Errorf("%w: average response time %v must be positive", ErrInvalidPerformance, d.AvgResponseTime)
	}
	return nil
}

// CorrectnessRatio returns correctCount/totalCount in [0, 1].
// Callers must Validate first; a zero TotalCount returns 0.
func (d Data) CorrectnessRatio() float64 {
	if d.TotalCount == 0 {
		return 0
	}
	return float64(d.CorrectCount) / float64(d.TotalCount)
}

// Timestamp returns CompletedAt, or now if unset.
func (d Data) Timestamp(now time.Time) time.Time {
	if d.CompletedAt.IsZero() {
		return now
	}
	return d.CompletedAt
}
