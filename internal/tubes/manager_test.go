package tubes

import (
	"errors"
	"testing"
	"time"

	"github.com/zenlearn/helix/internal/queue"
	"github.com/zenlearn/helix/internal/skip"
)

const testUser = "user-1"

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	svc := queue.NewService(skip.NewCalculator(3*time.Second), nil, nil)
	m := NewManager(svc, nil)
	err := m.Initialize(testUser, map[ID][]string{
		Tube1: {"a1", "a2"},
		Tube2: {"b1", "b2"},
		Tube3: {"c1", "c2"},
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return m
}

func TestInitialize_TubeOneLive(t *testing.T) {
	m := newTestManager(t)

	active, err := m.Active(testUser)
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if active != Tube1 {
		t.Errorf("active = %s, want tube1", active)
	}

	states, err := m.States(testUser)
	if err != nil {
		t.Fatalf("States: %v", err)
	}
	if states[Tube1] != StateLive {
		t.Errorf("tube1 state = %s, want live", states[Tube1])
	}
	if states[Tube2] != StatePreparing || states[Tube3] != StatePreparing {
		t.Errorf("inactive tubes = %s/%s, want preparing", states[Tube2], states[Tube3])
	}
}

func TestRotate_RoundRobin(t *testing.T) {
	m := newTestManager(t)

	want := []ID{Tube2, Tube3, Tube1, Tube2}
	for i, expected := range want {
		got, err := m.Rotate(testUser)
		if err != nil {
			t.Fatalf("Rotate %d: %v", i, err)
		}
		if got != expected {
			t.Errorf("Rotate %d = %s, want %s", i, got, expected)
		}
	}
}

func TestRotate_ExactlyOneLive(t *testing.T) {
	m := newTestManager(t)

	for i := 0; i < 5; i++ {
		if _, err := m.Rotate(testUser); err != nil {
			t.Fatalf("Rotate: %v", err)
		}
		states, err := m.States(testUser)
		if err != nil {
			t.Fatalf("States: %v", err)
		}
		live := 0
		for _, st := range states {
			if st == StateLive {
				live++
			}
		}
		if live != 1 {
			t.Fatalf("after rotation %d: %d live tubes, want 1", i, live)
		}
	}
}

func TestRotate_DemotedTubeGoesPreparing(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Rotate(testUser); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	st, err := m.State(testUser, Tube1)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if st != StatePreparing {
		t.Errorf("demoted tube state = %s, want preparing", st)
	}
}

func TestMarkReady_PromotesPreparingOnly(t *testing.T) {
	m := newTestManager(t)

	if err := m.MarkReady(testUser, Tube2); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	st, _ := m.State(testUser, Tube2)
	if st != StateReady {
		t.Errorf("tube2 state = %s, want ready", st)
	}

	// The live tube stays live.
	if err := m.MarkReady(testUser, Tube1); err != nil {
		t.Fatalf("MarkReady live: %v", err)
	}
	st, _ = m.State(testUser, Tube1)
	if st != StateLive {
		t.Errorf("tube1 state = %s, want live", st)
	}
}

func TestActiveHead_ServesLiveTubeQueue(t *testing.T) {
	m := newTestManager(t)

	u, err := m.ActiveHead(testUser)
	if err != nil {
		t.Fatalf("ActiveHead: %v", err)
	}
	if u.ID != "a1" {
		t.Errorf("head = %s, want a1", u.ID)
	}

	if _, err := m.Rotate(testUser); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	u, err = m.ActiveHead(testUser)
	if err != nil {
		t.Fatalf("ActiveHead after rotate: %v", err)
	}
	if u.ID != "b1" {
		t.Errorf("head after rotate = %s, want b1", u.ID)
	}
}

func TestUninitializedUser(t *testing.T) {
	svc := queue.NewService(skip.NewCalculator(3*time.Second), nil, nil)
	m := NewManager(svc, nil)

	if _, err := m.Active("ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Active = %v, want ErrUserNotFound", err)
	}
	if _, err := m.Rotate("ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Rotate = %v, want ErrUserNotFound", err)
	}
}

func TestParseID(t *testing.T) {
	for _, id := range All() {
		got, err := ParseID(string(id))
		if err != nil || got != id {
			t.Errorf("ParseID(%s) = %s, %v", id, got, err)
		}
	}
	if _, err := ParseID("tube4"); err == nil {
		t.Error("ParseID(tube4) should fail")
	}
}

func TestExportRestore_RoundTrip(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Rotate(testUser); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if err := m.MarkReady(testUser, Tube3); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}

	data, err := m.ExportState(testUser)
	if err != nil {
		t.Fatalf("ExportState: %v", err)
	}

	svc := queue.NewService(skip.NewCalculator(3*time.Second), nil, nil)
	restored := NewManager(svc, nil)
	restored.Restore(testUser, data)

	active, err := restored.Active(testUser)
	if err != nil {
		t.Fatalf("restored Active: %v", err)
	}
	if active != Tube2 {
		t.Errorf("restored active = %s, want tube2", active)
	}
	st, err := restored.State(testUser, Tube3)
	if err != nil {
		t.Fatalf("restored State: %v", err)
	}
	if st != StateReady {
		t.Errorf("restored tube3 state = %s, want ready", st)
	}
}
