package registry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autumnhq/autumn/internal/proc"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New(filepath.Join(t.TempDir(), "reminders.json"))
	// Tests control liveness explicitly; default everything to alive.
	r.CheckLiveness = func(int) proc.Liveness { return proc.Alive }
	return r
}

func intPtr(n int) *int { return &n }

func TestAddAndLoad(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	added, err := r.Add(ctx, Entry{
		PID:       1234,
		SessionID: intPtr(7),
		Project:   "autumn",
		Mode:      "remind-in",
		RemindIn:  "5m",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.False(t, added.CreatedAt.IsZero())
	assert.Equal(t, StatusPending, added.Status)

	entries, err := r.Load(ctx, false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1234, entries[0].PID)
	assert.Equal(t, "remind-in", entries[0].Mode)
}

func TestLoad_MissingFile(t *testing.T) {
	r := testRegistry(t)
	entries, err := r.Load(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoad_CorruptRootRepairsToEmpty(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, os.WriteFile(r.Path(), []byte(`{"reminders": "oops"}`), 0o644))

	entries, err := r.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// The file was repaired to an empty array.
	raw, err := os.ReadFile(r.Path())
	require.NoError(t, err)
	var arr []Entry
	require.NoError(t, json.Unmarshal(raw, &arr))
	assert.Empty(t, arr)
}

func TestLoad_DedupKeepsLatest(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	older := Entry{ID: "older", PID: 100, SessionID: intPtr(1), CreatedAt: time.Now().Add(-time.Hour), Status: StatusPending}
	newer := Entry{ID: "newer", PID: 100, SessionID: intPtr(1), CreatedAt: time.Now(), Status: StatusPending}
	other := Entry{ID: "other", PID: 200, SessionID: intPtr(1), CreatedAt: time.Now(), Status: StatusPending}

	data, err := json.Marshal([]Entry{older, newer, other})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(r.Path(), data, 0o644))

	entries, err := r.Load(ctx, false)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "newer", entries[0].ID)
	assert.Equal(t, "other", entries[1].ID)
}

func TestLoad_PruneSentinel(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	_, err := r.Add(ctx, Entry{PID: proc.SentinelPID, Project: "scaffolding"})
	require.NoError(t, err)
	_, err = r.Add(ctx, Entry{PID: 4321, Project: "real"})
	require.NoError(t, err)

	entries, err := r.Load(ctx, true)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 4321, entries[0].PID)
}

func TestLoad_PruneDeadInactiveSession(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	r.CheckLiveness = func(int) proc.Liveness { return proc.Dead }
	r.SessionActive = func(context.Context, *int) bool { return false }

	_, err := r.Add(ctx, Entry{PID: 555, SessionID: intPtr(9)})
	require.NoError(t, err)

	entries, err := r.Load(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoad_KeepDeadWithActiveSession(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	r.CheckLiveness = func(int) proc.Liveness { return proc.Dead }
	r.SessionActive = func(context.Context, *int) bool { return true }

	_, err := r.Add(ctx, Entry{PID: 555, SessionID: intPtr(9)})
	require.NoError(t, err)

	entries, err := r.Load(ctx, true)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "dead process with a live session is the health checker's job, not prune's")
}

func TestLoad_UncertainLivenessNeverPrunes(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	r.CheckLiveness = func(int) proc.Liveness { return proc.Unknown }
	r.SessionActive = func(context.Context, *int) bool { return false }

	_, err := r.Add(ctx, Entry{PID: 555, SessionID: intPtr(9)})
	require.NoError(t, err)

	entries, err := r.Load(ctx, true)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRemoveByPID(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	_, err := r.Add(ctx, Entry{PID: 1})
	require.NoError(t, err)
	_, err = r.Add(ctx, Entry{PID: 2})
	require.NoError(t, err)

	removed, err := r.RemoveByPID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = r.RemoveByPID(ctx, 1)
	require.NoError(t, err)
	assert.False(t, removed)

	entries, err := r.Load(ctx, false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].PID)
}

func TestClear(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	_, err := r.Add(ctx, Entry{PID: 1})
	require.NoError(t, err)
	require.NoError(t, r.Clear())

	entries, err := r.Load(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpdateNextFire(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	_, err := r.Add(ctx, Entry{PID: 77, Status: StatusPending})
	require.NoError(t, err)

	next := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second)
	firing := StatusFiring
	require.NoError(t, r.UpdateNextFire(ctx, 77, &next, &firing))

	entries, err := r.Load(ctx, false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].NextFireAt)
	assert.True(t, entries[0].NextFireAt.Equal(next))
	assert.Equal(t, StatusFiring, entries[0].Status)

	// Clearing the next fire time leaves status alone.
	require.NoError(t, r.UpdateNextFire(ctx, 77, nil, nil))
	entries, err = r.Load(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, entries[0].NextFireAt)
	assert.Equal(t, StatusFiring, entries[0].Status)
}

func TestModeFor(t *testing.T) {
	assert.Equal(t, "remind-in", ModeFor("5m", "", ""))
	assert.Equal(t, "remind-every", ModeFor("", "10m", ""))
	assert.Equal(t, "auto-stop", ModeFor("", "", "1h"))
	assert.Equal(t, "remind-in+auto-stop", ModeFor("5m", "", "1h"))
	assert.Equal(t, "remind-every+auto-stop", ModeFor("", "10m", "1h"))
	assert.Equal(t, "unknown", ModeFor("", "", ""))
}
