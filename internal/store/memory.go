package store

import (
	"context"
	"sync"
)

// MemoryEventRepo is an in-memory EventRepo for tests and the
// simulator.
type MemoryEventRepo struct {
	mu     sync.Mutex
	seq    int64
	events []RepositionEventRecord
}

// NewMemoryEventRepo returns an empty in-memory event log.
func NewMemoryEventRepo() *MemoryEventRepo {
	return &MemoryEventRepo{}
}

func (m *MemoryEventRepo) AppendReposition(_ context.Context, data RepositionEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.events = append(m.events, RepositionEventRecord{Sequence: m.seq, RepositionEventData: data})
	return nil
}

func (m *MemoryEventRepo) RecentRepositions(_ context.Context, userID, stitchID string, limit int) ([]RepositionEventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []RepositionEventRecord
	for i := len(m.events) - 1; i >= 0; i-- {
		ev := m.events[i]
		if ev.UserID != userID || ev.StitchID != stitchID {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryEventRepo) RepositionsForUser(_ context.Context, userID string, limit int) ([]RepositionEventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []RepositionEventRecord
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].UserID != userID {
			continue
		}
		out = append(out, m.events[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of stored events.
func (m *MemoryEventRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// MemorySnapshotRepo is an in-memory SnapshotRepo for tests and the
// simulator.
type MemorySnapshotRepo struct {
	mu    sync.Mutex
	snaps map[string]*UserSnapshotData
}

// NewMemorySnapshotRepo returns an empty in-memory snapshot repo.
func NewMemorySnapshotRepo() *MemorySnapshotRepo {
	return &MemorySnapshotRepo{snaps: make(map[string]*UserSnapshotData)}
}

func (m *MemorySnapshotRepo) SaveUser(_ context.Context, snap *UserSnapshotData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *snap
	m.snaps[snap.UserID] = &cp
	return nil
}

func (m *MemorySnapshotRepo) LoadUser(_ context.Context, userID string) (*UserSnapshotData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[userID]
	if !ok {
		return nil, nil
	}
	cp := *snap
	return &cp, nil
}

func (m *MemorySnapshotRepo) DeleteUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, userID)
	return nil
}

func (m *MemorySnapshotRepo) ListUsers(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.snaps))
	for id := range m.snaps {
		ids = append(ids, id)
	}
	return ids, nil
}
