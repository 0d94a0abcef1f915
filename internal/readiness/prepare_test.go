package readiness

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zenlearn/helix/internal/queue"
	"github.com/zenlearn/helix/internal/skip"
	"github.com/zenlearn/helix/internal/tubes"
)

func testAssembler(calls *atomic.Int32) AssembleFunc {
	return func(_ context.Context, userID string, tube tubes.ID) (*ReadyStitch, error) {
		calls.Add(1)
		return &ReadyStitch{
			StitchID:      "stitch-" + string(tube),
			UserID:        userID,
			TubeID:        tube,
			BoundaryLevel: 1,
			Questions: []Question{
				{ID: "q1", Prompt: "p", Answer: "a", Distractor: "d"},
			},
		}, nil
	}
}

func newTestManagerForPrep(t *testing.T) *tubes.Manager {
	t.Helper()
	svc := queue.NewService(skip.NewCalculator(3*time.Second), nil, nil)
	m := tubes.NewManager(svc, nil)
	if err := m.Initialize(testUser, nil); err != nil {
		t.Fatalf("Initialize tubes: %v", err)
	}
	return m
}

func TestPrepare_CachesAndPromotes(t *testing.T) {
	cache, _ := newTestCache(nil)
	manager := newTestManagerForPrep(t)
	var calls atomic.Int32
	p := NewPreparer(cache, manager, testAssembler(&calls), nil)

	rs, err := p.Prepare(context.Background(), testUser, tubes.Tube2)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if rs.TubeID != tubes.Tube2 {
		t.Errorf("TubeID = %s, want tube2", rs.TubeID)
	}

	got, err := cache.Get(context.Background(), testUser, tubes.Tube2)
	if err != nil {
		t.Fatalf("Get after prepare: %v", err)
	}
	if got.StitchID != "stitch-tube2" {
		t.Errorf("StitchID = %s, want stitch-tube2", got.StitchID)
	}

	st, err := manager.State(testUser, tubes.Tube2)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if st != tubes.StateReady {
		t.Errorf("tube2 state = %s, want ready", st)
	}
}

func TestPrepare_AssemblerError(t *testing.T) {
	cache, _ := newTestCache(nil)
	boom := errors.New("content service down")
	p := NewPreparer(cache, nil, func(context.Context, string, tubes.ID) (*ReadyStitch, error) {
		return nil, boom
	}, nil)

	_, err := p.Prepare(context.Background(), testUser, tubes.Tube1)
	if !errors.Is(err, boom) {
		t.Errorf("Prepare = %v, want wrapped assembler error", err)
	}
	if _, err := cache.Get(context.Background(), testUser, tubes.Tube1); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get = %v, want ErrCacheMiss after failed preparation", err)
	}
}

// An invalidation racing the assembly wins: the prepared bundle is
// dropped instead of cached.
func TestPrepare_InvalidatedMidFlight(t *testing.T) {
	cache, _ := newTestCache(nil)
	assemble := func(ctx context.Context, userID string, tube tubes.ID) (*ReadyStitch, error) {
		if _, err := cache.Invalidate(ctx, userID, Criteria{Reason: ReasonForced}); err != nil {
			return nil, fmt.Errorf("invalidate during assembly: %w", err)
		}
		return &ReadyStitch{
			StitchID: "late",
			UserID:   userID,
			TubeID:   tube,
			Questions: []Question{
				{ID: "q1", Prompt: "p", Answer: "a", Distractor: "d"},
			},
		}, nil
	}
	p := NewPreparer(cache, nil, assemble, nil)

	_, err := p.Prepare(context.Background(), testUser, tubes.Tube1)
	if !errors.Is(err, ErrStalePreparation) {
		t.Fatalf("Prepare = %v, want ErrStalePreparation", err)
	}
	if _, err := cache.Get(context.Background(), testUser, tubes.Tube1); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get = %v, want ErrCacheMiss", err)
	}
}

func TestWarmUp_PreparesAllTubes(t *testing.T) {
	cache, _ := newTestCache(nil)
	manager := newTestManagerForPrep(t)
	var calls atomic.Int32
	p := NewPreparer(cache, manager, testAssembler(&calls), nil)

	if err := p.WarmUp(context.Background(), testUser); err != nil {
		t.Fatalf("WarmUp: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("assembler calls = %d, want 3", got)
	}
	for _, id := range tubes.All() {
		if _, err := cache.Get(context.Background(), testUser, id); err != nil {
			t.Errorf("Get %s after warm-up: %v", id, err)
		}
	}
}
