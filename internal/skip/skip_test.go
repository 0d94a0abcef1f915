package skip

import (
	"errors"
	"testing"
	"time"

	"github.com/zenlearn/helix/internal/perf"
)

func data(correct, total int, avg time.Duration) perf.Data {
	return perf.Data{CorrectCount: correct, TotalCount: total, AvgResponseTime: avg}
}

func TestCalculate_CorrectnessBands(t *testing.T) {
	// Response time equal to expected keeps the factor at 1.0, so the
	// result is the band base rounded.
	calc := NewCalculator(3 * time.Second)
	cases := []struct {
		name    string
		correct int
		total   int
		want    int
	}{
		{"perfect", 20, 20, 5},
		{"high", 18, 20, 3},  // 0.9
		{"good", 16, 20, 2},  // 0.8
		{"fair", 14, 20, 2},  // 0.7 -> 1.5 rounds to 2
		{"pass", 12, 20, 1},  // 0.6
		{"weak", 10, 20, 1},  // 0.5 -> 0.5 rounds up, floored at 1 regardless
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := calc.Calculate(data(tc.correct, tc.total, 3*time.Second), nil, 0)
			if err != nil {
				t.Fatalf("Calculate returned error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Calculate = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCalculate_ResponseTimeFactorClamped(t *testing.T) {
	calc := NewCalculator(3 * time.Second)

	// Twice as fast as expected clamps at 1.5: perfect -> 5*1.5 = 8.
	got, err := calc.Calculate(data(20, 20, 1500*time.Millisecond), nil, 0)
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}
	if got != 8 {
		t.Errorf("fast perfect = %d, want 8", got)
	}

	// Ten times slower clamps at 0.5: perfect -> 5*0.5 = 3 (rounded).
	got, err = calc.Calculate(data(20, 20, 30*time.Second), nil, 0)
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}
	if got != 3 {
		t.Errorf("slow perfect = %d, want 3", got)
	}
}

func TestCalculate_HistoryMomentum(t *testing.T) {
	calc := NewCalculator(3 * time.Second)
	cases := []struct {
		name     string
		correct  int
		total    int
		lastSkip int
		want     int
	}{
		{"perfect grows", 20, 20, 5, 6},   // 5*1.2
		{"high grows", 18, 20, 10, 11},    // 10*1.1
		{"good holds", 16, 20, 10, 10},    // 10*1.0
		{"fair shrinks", 14, 20, 10, 9},   // 10*0.9
		{"lapse collapses", 8, 20, 10, 7}, // 10*0.7
		{"floored at one", 5, 20, 1, 1},   // max(1, 0.7)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := calc.Calculate(data(tc.correct, tc.total, 3*time.Second), []int{tc.lastSkip}, 0)
			if err != nil {
				t.Fatalf("Calculate returned error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Calculate = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCalculate_PerfectMonotonic(t *testing.T) {
	// Two perfect repositions in a row: the second skip never shrinks.
	calc := NewCalculator(3 * time.Second)
	d := data(20, 20, 1500*time.Millisecond)

	first, err := calc.Calculate(d, nil, 0)
	if err != nil {
		t.Fatalf("first Calculate: %v", err)
	}
	second, err := calc.Calculate(d, []int{first}, 0)
	if err != nil {
		t.Fatalf("second Calculate: %v", err)
	}
	if second < first {
		t.Errorf("second skip %d < first skip %d", second, first)
	}
}

func TestCalculate_Bounds(t *testing.T) {
	calc := NewCalculator(3 * time.Second)

	// Never below 1, even for the worst signal.
	got, err := calc.Calculate(data(0, 20, time.Minute), nil, 0)
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}
	if got < 1 {
		t.Errorf("Calculate = %d, want >= 1", got)
	}

	// Capped at queue length.
	got, err = calc.Calculate(data(20, 20, 1500*time.Millisecond), nil, 3)
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}
	if got != 3 {
		t.Errorf("capped Calculate = %d, want 3", got)
	}
}

func TestCalculate_InvalidPerformance(t *testing.T) {
	calc := NewCalculator(0) // falls back to the default expected time

	_, err := calc.Calculate(data(5, 0, time.Second), nil, 0)
	if !errors.Is(err, perf.ErrInvalidPerformance) {
		t.Errorf("Calculate = %v, want ErrInvalidPerformance", err)
	}
}
