package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "helix-test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func event(userID, stitchID string, skipNumber int) RepositionEventData {
	return RepositionEventData{
		EventID:           uuid.NewString(),
		UserID:            userID,
		PathID:            "tube1",
		StitchID:          stitchID,
		PreviousPosition:  1,
		NewPosition:       skipNumber,
		SkipNumber:        skipNumber,
		CorrectCount:      18,
		TotalCount:        20,
		AvgResponseTimeMs: 1500,
		Timestamp:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestEventRepo_AppendAndQuery(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	require.NoError(t, repo.AppendReposition(ctx, event("u1", "s1", 3)))
	require.NoError(t, repo.AppendReposition(ctx, event("u1", "s1", 5)))
	require.NoError(t, repo.AppendReposition(ctx, event("u1", "s2", 2)))
	require.NoError(t, repo.AppendReposition(ctx, event("u2", "s1", 4)))

	records, err := repo.RecentRepositions(ctx, "u1", "s1", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Most recent first.
	assert.Equal(t, 5, records[0].SkipNumber)
	assert.Equal(t, 3, records[1].SkipNumber)

	capped, err := repo.RecentRepositions(ctx, "u1", "s1", 1)
	require.NoError(t, err)
	require.Len(t, capped, 1)
	assert.Equal(t, 5, capped[0].SkipNumber)

	all, err := repo.RepositionsForUser(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := repo.RecentRepositions(ctx, "u3", "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSnapshotRepo_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	snap := &UserSnapshotData{
		UserID: "u1",
		Queues: []QueueSnapshotData{
			{PathID: "tube1", UnitIDs: []string{"a2", "a3", "a1"}},
			{PathID: "tube2", UnitIDs: []string{"b1"}},
		},
		Tubes: &TubeStateData{
			ActiveTube: "tube2",
			States: map[string]string{
				"tube1": "preparing",
				"tube2": "live",
				"tube3": "ready",
			},
		},
		BoundaryLevel: 2,
	}
	require.NoError(t, repo.SaveUser(ctx, snap))

	got, err := repo.LoadUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap.Queues, got.Queues)
	assert.Equal(t, snap.Tubes, got.Tubes)
	assert.Equal(t, 2, got.BoundaryLevel)
}

func TestSnapshotRepo_SaveReplaces(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	require.NoError(t, repo.SaveUser(ctx, &UserSnapshotData{UserID: "u1", BoundaryLevel: 1}))
	require.NoError(t, repo.SaveUser(ctx, &UserSnapshotData{UserID: "u1", BoundaryLevel: 4}))

	got, err := repo.LoadUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 4, got.BoundaryLevel)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)
}

func TestSnapshotRepo_MissingUser(t *testing.T) {
	s := openTestStore(t)
	got, err := s.SnapshotRepo().LoadUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSnapshotRepo_Delete(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	require.NoError(t, repo.SaveUser(ctx, &UserSnapshotData{UserID: "u1"}))
	require.NoError(t, repo.DeleteUser(ctx, "u1"))

	got, err := repo.LoadUser(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReset_ClearsEverything(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EventRepo().AppendReposition(ctx, event("u1", "s1", 3)))
	require.NoError(t, s.SnapshotRepo().SaveUser(ctx, &UserSnapshotData{UserID: "u1"}))

	require.NoError(t, s.Reset())

	records, err := s.EventRepo().RepositionsForUser(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, records)
	snap, err := s.SnapshotRepo().LoadUser(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, snap)
}
