package perf

import (
	"errors"
	"testing"
	"time"
)

func TestNew_Valid(t *testing.T) {
	d, err := New(18, 20, 1500*time.Millisecond, time.Time{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if got := d.CorrectnessRatio(); got != 0.9 {
		t.Errorf("CorrectnessRatio = %v, want 0.9", got)
	}
}

func TestValidate_Ranges(t *testing.T) {
	cases := []struct {
		name    string
		correct int
		total   int
		avg     time.Duration
		wantErr bool
	}{
		{"perfect", 20, 20, time.Second, false},
		{"zero correct", 0, 20, time.Second, false},
		{"zero total", 5, 0, time.Second, true},
		{"negative total", 5, -1, time.Second, true},
		{"negative correct", -1, 20, time.Second, true},
		{"correct above total", 21, 20, time.Second, true},
		{"zero response time", 10, 20, 0, true},
		{"negative response time", 10, 20, -time.Second, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Data{CorrectCount: tc.correct, TotalCount: tc.total, AvgResponseTime: tc.avg}
			err := d.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidPerformance) {
					t.Errorf("Validate = %v, want ErrInvalidPerformance", err)
				}
			} else if err != nil {
				t.Errorf("Validate returned unexpected error: %v", err)
			}
		})
	}
}

func TestTimestamp_DefaultsToNow(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var d Data
	if got := d.Timestamp(now); !got.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", got, now)
	}

	completed := now.Add(-time.Hour)
	d.CompletedAt = completed
	if got := d.Timestamp(now); !got.Equal(completed) {
		t.Errorf("Timestamp = %v, want %v", got, completed)
	}
}
