// Package skip computes the skip number: the queue depth, counted from
// the front, at which a just-completed stitch is reinserted. Sustained
// mastery yields expanding depths; a lapse pulls the stitch back toward
// the front.
package skip

import (
	"math"
	"time"

	"github.com/zenlearn/helix/internal/perf"
)

// DefaultExpectedResponseTime is the reference answer speed used when a
// Calculator is built without an explicit value.
const DefaultExpectedResponseTime = 3 * time.Second

// Response-time factor clamp. Answering twice as fast as expected still
// only counts 1.5x; arbitrarily slow answers bottom out at 0.5x.
const (
	minResponseFactor = 0.5
	maxResponseFactor = 1.5
)

// Base skip per correctness band, scaled by the response-time factor.
const (
	basePerfect = 5.0
	baseHigh    = 3.0 // ratio >= 0.9
	baseGood    = 2.0 // ratio >= 0.8
	baseFair    = 1.5 // ratio >= 0.7
	basePass    = 1.0 // ratio >= 0.6
	baseWeak    = 0.5
)

// Momentum multipliers applied to the previous skip number when the
// stitch has repositioning history.
const (
	trendPerfect = 1.2
	trendHigh    = 1.1 // ratio >= 0.9
	trendGood    = 1.0 // ratio >= 0.8
	trendFair    = 0.9 // ratio >= 0.7
	trendWeak    = 0.7
)

// Calculator computes skip numbers against a configured expected
// response time.
type Calculator struct {
	expectedResponseTime time.Duration
}

// NewCalculator builds a Calculator. A non-positive expected response
// time falls back to DefaultExpectedResponseTime.
func NewCalculator(expectedResponseTime time.Duration) Calculator {
	if expectedResponseTime <= 0 {
		expectedResponseTime = DefaultExpectedResponseTime
	}
	return Calculator{expectedResponseTime: expectedResponseTime}
}

// Calculate maps a performance signal to an integer skip number >= 1.
//
// prevSkips is the stitch's past skip numbers, most recent first; pass
// nil for a stitch with no repositioning history. queueLen, when
// positive, caps the result so the stitch never lands past the back of
// its queue.
func (c Calculator) Calculate(d perf.Data, prevSkips []int, queueLen int) (int, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}

	ratio := d.CorrectnessRatio()
	factor := clamp(
		float64(c.expectedResponseTime)/float64(d.AvgResponseTime),
		minResponseFactor, maxResponseFactor,
	)

	base := bandBase(ratio) * factor

	// With history, momentum on the previous skip number replaces the
	// band base: sustained mastery keeps expanding the interval, a
	// lapse contracts it from wherever it was.
	if len(prevSkips) > 0 {
		base = math.Max(1, float64(prevSkips[0])*trendMultiplier(ratio))
	}

	n := int(math.Round(base))
	if n < 1 {
		n = 1
	}
	if queueLen > 0 && n > queueLen {
		n = queueLen
	}
	return n, nil
}

func bandBase(ratio float64) float64 {
	switch {
	case ratio == 1:
		return basePerfect
	case ratio >= 0.9:
		return baseHigh
	case ratio >= 0.8:
		return baseGood
	case ratio >= 0.7:
		return baseFair
	case ratio >= 0.6:
		return basePass
	default:
		return baseWeak
	}
}

func trendMultiplier(ratio float64) float64 {
	switch {
	case ratio == 1:
		return trendPerfect
	case ratio >= 0.9:
		return trendHigh
	case ratio >= 0.8:
		return trendGood
	case ratio >= 0.7:
		return trendFair
	default:
		return trendWeak
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
