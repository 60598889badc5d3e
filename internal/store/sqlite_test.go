package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "autumn.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestRecordAndList(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sid := 7
	n := &Notification{
		Kind:      KindRemind,
		Project:   "autumn",
		SessionID: &sid,
		Title:     "Autumn",
		Message:   "Timer running: autumn (1h30m)",
		Delivered: true,
	}
	require.NoError(t, s.RecordNotification(ctx, n))
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.FiredAt.IsZero())

	got, err := s.ListNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, KindRemind, got[0].Kind)
	assert.Equal(t, "autumn", got[0].Project)
	require.NotNil(t, got[0].SessionID)
	assert.Equal(t, 7, *got[0].SessionID)
	assert.True(t, got[0].Delivered)
}

func TestList_NewestFirstAndLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordNotification(ctx, &Notification{
			Kind:    KindRemind,
			Project: "p",
			FiredAt: base.Add(time.Duration(i) * time.Minute),
			Message: string(rune('a' + i)),
		}))
	}

	got, err := s.ListNotifications(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e", got[0].Message)
	assert.Equal(t, "d", got[1].Message)
	assert.Equal(t, "c", got[2].Message)
}

func TestRecord_StandaloneNoSession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordNotification(ctx, &Notification{
		Kind:    KindMissed,
		Project: "standalone",
	}))

	got, err := s.ListNotifications(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].SessionID)
	assert.False(t, got[0].Delivered)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}
