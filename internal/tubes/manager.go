package tubes

import (
	"fmt"
	"sync"

	"github.com/zenlearn/helix/internal/logger"
	"github.com/zenlearn/helix/internal/queue"
	"github.com/zenlearn/helix/internal/store"
)

// Manager tracks each user's active tube and per-tube lifecycle state.
// Every tube is backed by its own repetition queue in the shared queue
// service, keyed by the tube ID as the path ID, so mastery and spacing
// never cross tubes.
type Manager struct {
	mu    sync.RWMutex
	users map[string]*rotation

	queues *queue.Service
	log    *logger.Logger
}

type rotation struct {
	active ID
	states map[ID]State
}

// NewManager creates a tube manager over the given queue service.
func NewManager(queues *queue.Service, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		users:  make(map[string]*rotation),
		queues: queues,
		log:    log.With("component", "tubes"),
	}
}

// Initialize sets up the user's three tubes, seeding each tube's queue
// with the given unit IDs (missing tubes start empty). Tube1 starts
// live; the others start preparing. Re-initializing resets rotation
// state and all three queues.
func (m *Manager) Initialize(userID string, seed map[ID][]string) error {
	if userID == "" {
		return fmt.Errorf("tubes: initialize requires a user id")
	}

	for _, id := range All() {
		if err := m.queues.Initialize(userID, string(id), seed[id]); err != nil {
			return fmt.Errorf("seed %s: %w", id, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = &rotation{
		active: Tube1,
		states: map[ID]State{
			Tube1: StateLive,
			Tube2: StatePreparing,
			Tube3: StatePreparing,
		},
	}
	m.log.Debug("tubes initialized", "user", userID)
	return nil
}

// Active returns the user's live tube.
func (m *Manager) Active(userID string) (ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r := m.users[userID]
	if r == nil {
		return "", fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return r.active, nil
}

// ActiveHead returns the stitch at position 1 of the live tube's queue.
func (m *Manager) ActiveHead(userID string) (queue.Unit, error) {
	active, err := m.Active(userID)
	if err != nil {
		return queue.Unit{}, err
	}
	return m.queues.Next(userID, string(active))
}

// Rotate advances the round-robin: the live tube drops back to
// preparing (its content must be reassembled after the completion
// cycle) and the next tube in the cycle goes live. Returns the newly
// live tube.
func (m *Manager) Rotate(userID string) (ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.users[userID]
	if r == nil {
		return "", fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	prev := r.active
	r.states[prev] = StatePreparing
	r.active = Next(prev)
	r.states[r.active] = StateLive

	m.log.Debug("tubes rotated", "user", userID, "from", prev, "to", r.active)
	return r.active, nil
}

// State returns one tube's lifecycle state.
func (m *Manager) State(userID string, tube ID) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r := m.users[userID]
	if r == nil {
		return "", fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	st, ok := r.states[tube]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTubeNotFound, tube)
	}
	return st, nil
}

// States returns a copy of all three tube states.
func (m *Manager) States(userID string) (map[ID]State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r := m.users[userID]
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	out := make(map[ID]State, len(r.states))
	for id, st := range r.states {
		out[id] = st
	}
	return out, nil
}

// MarkReady promotes a preparing tube to ready once its bundle is
// cached. The live tube is left alone.
func (m *Manager) MarkReady(userID string, tube ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.users[userID]
	if r == nil {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if r.states[tube] == StatePreparing {
		r.states[tube] = StateReady
	}
	return nil
}

// ExportState returns the user's rotation state for persistence.
func (m *Manager) ExportState(userID string) (*store.TubeStateData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r := m.users[userID]
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	states := make(map[string]string, len(r.states))
	for id, st := range r.states {
		states[string(id)] = string(st)
	}
	return &store.TubeStateData{ActiveTube: string(r.active), States: states}, nil
}

// Restore rebuilds rotation state from a snapshot. Unknown or missing
// fields fall back to the initialize defaults.
func (m *Manager) Restore(userID string, data *store.TubeStateData) {
	r := &rotation{
		active: Tube1,
		states: map[ID]State{
			Tube1: StateLive,
			Tube2: StatePreparing,
			Tube3: StatePreparing,
		},
	}
	if data != nil {
		if id, err := ParseID(data.ActiveTube); err == nil {
			r.active = id
		}
		for _, id := range All() {
			switch State(data.States[string(id)]) {
			case StatePreparing, StateReady, StateLive:
				r.states[id] = State(data.States[string(id)])
			}
		}
		// The snapshot may predate the invariant check; force exactly
		// one live tube.
		for _, id := range All() {
			if id != r.active && r.states[id] == StateLive {
				r.states[id] = StateReady
			}
		}
		r.states[r.active] = StateLive
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = r
}
