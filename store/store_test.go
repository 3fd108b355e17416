package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func recordSession(t *testing.T, s *SQLiteStore, ctx context.Context, sess Session) {
	t.Helper()
	_, err := s.Record(ctx, sess)
	require.NoError(t, err)
}

func TestRecordAndFind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created := time.Unix(1700000000, 0)
	recordSession(t, s, ctx, Session{User: "alice", Environment: "web", Container: "web-alice", CreatedAt: created})

	got, err := s.Find(ctx, "alice", "web")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "web-alice", got.Container)
	assert.True(t, created.Equal(got.CreatedAt))

	missing, err := s.Find(ctx, "alice", "shell")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRecord_DuplicateTolerated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	inserted, err := s.Record(ctx, Session{User: "bob", Environment: "lab", Container: "lab-bob"})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.Record(ctx, Session{User: "bob", Environment: "lab", Container: "lab-bob"})
	require.NoError(t, err)
	assert.False(t, inserted, "second record for the same pair writes nothing")

	sessions, err := s.List(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestRemove(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	recordSession(t, s, ctx, Session{User: "carol", Environment: "lab", Container: "lab-carol"})
	require.NoError(t, s.Remove(ctx, "carol", "lab"))
	require.NoError(t, s.Remove(ctx, "carol", "lab"), "removing twice is not an error")

	got, err := s.Find(ctx, "carol", "lab")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestList_ScopedToUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	recordSession(t, s, ctx, Session{User: "dave", Environment: "b", Container: "b-dave", CreatedAt: time.Unix(2, 0)})
	recordSession(t, s, ctx, Session{User: "dave", Environment: "a", Container: "a-dave", CreatedAt: time.Unix(1, 0)})
	recordSession(t, s, ctx, Session{User: "erin", Environment: "a", Container: "a-erin"})

	sessions, err := s.List(ctx, "dave")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "a", sessions[0].Environment)
	assert.Equal(t, "b", sessions[1].Environment)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	recordSession(t, s, ctx, Session{User: "frank", Environment: "lab", Container: "lab-frank"})
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Find(ctx, "frank", "lab")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
