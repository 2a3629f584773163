package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"huddle/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(connID, participantID, name string) *domain.ConnectionRecord {
	return &domain.ConnectionRecord{
		ConnID:        domain.ConnID(connID),
		ParticipantID: domain.ParticipantID(participantID),
		DisplayName:   name,
		RoomID:        "room-1",
		RegisteredAt:  time.Now(),
	}
}

func TestLiveParticipantsDeduplicates(t *testing.T) {
	repo := NewRoomRepository(0)
	ctx := context.Background()

	require.NoError(t, repo.AddConnection(ctx, "room-1", record("c1", "alice", "Alice")))
	require.NoError(t, repo.AddConnection(ctx, "room-1", record("c2", "alice", "Alice (work)")))
	require.NoError(t, repo.AddConnection(ctx, "room-1", record("c3", "bob", "Bob")))

	participants, err := repo.LiveParticipants(ctx, "room-1")
	require.NoError(t, err)
	// One entry per participant id, latest display name wins.
	assert.Equal(t, []domain.Participant{
		{ID: "alice", Name: "Alice (work)"},
		{ID: "bob", Name: "Bob"},
	}, participants)
}

func TestParticipantConnectionsCount(t *testing.T) {
	repo := NewRoomRepository(0)
	ctx := context.Background()

	count, err := repo.ParticipantConnections(ctx, "room-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, repo.AddConnection(ctx, "room-1", record("c1", "alice", "Alice")))
	require.NoError(t, repo.AddConnection(ctx, "room-1", record("c2", "alice", "Alice")))

	count, err = repo.ParticipantConnections(ctx, "room-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repo.RemoveConnection(ctx, "room-1", "c1"))
	count, err = repo.ParticipantConnections(ctx, "room-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repo.RemoveConnection(ctx, "room-1", "c2"))
	count, err = repo.ParticipantConnections(ctx, "room-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRemoveConnectionIdempotent(t *testing.T) {
	repo := NewRoomRepository(0)
	ctx := context.Background()

	assert.NoError(t, repo.RemoveConnection(ctx, "no-such-room", "c1"))

	require.NoError(t, repo.AddConnection(ctx, "room-1", record("c1", "alice", "Alice")))
	assert.NoError(t, repo.RemoveConnection(ctx, "room-1", "c1"))
	assert.NoError(t, repo.RemoveConnection(ctx, "room-1", "c1"))

	count, err := repo.ParticipantConnections(ctx, "room-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestAddConnectionRejectsDuplicateConnID(t *testing.T) {
	repo := NewRoomRepository(0)
	ctx := context.Background()

	require.NoError(t, repo.AddConnection(ctx, "room-1", record("c1", "alice", "Alice")))
	err := repo.AddConnection(ctx, "room-1", record("c1", "alice", "Alice"))
	assert.ErrorIs(t, err, domain.ErrDuplicateRegistration)
}

func TestChatLogEvictsOldestBeyondLimit(t *testing.T) {
	repo := NewRoomRepository(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.AppendChat(ctx, "room-1", domain.ChatMessage{
			Sender: "alice",
			Text:   fmt.Sprintf("msg-%d", i),
		}))
	}

	log, err := repo.ChatLog(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, log, 3)
	assert.Equal(t, "msg-2", log[0].Text)
	assert.Equal(t, "msg-4", log[2].Text)
}

func TestChatLogReturnsCopy(t *testing.T) {
	repo := NewRoomRepository(0)
	ctx := context.Background()

	require.NoError(t, repo.AppendChat(ctx, "room-1", domain.ChatMessage{Text: "original"}))
	log, err := repo.ChatLog(ctx, "room-1")
	require.NoError(t, err)
	log[0].Text = "mutated"

	again, err := repo.ChatLog(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Text)
}

func TestRoomCountGrowsLazily(t *testing.T) {
	repo := NewRoomRepository(0)
	ctx := context.Background()

	count, err := repo.RoomCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, repo.AddConnection(ctx, "room-1", record("c1", "alice", "Alice")))
	require.NoError(t, repo.AddConnection(ctx, "room-2", record("c2", "bob", "Bob")))
	require.NoError(t, repo.RemoveConnection(ctx, "room-1", "c1"))

	// Rooms outlive their last connection.
	count, err = repo.RoomCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestConnectionsSnapshotPreservesOrder(t *testing.T) {
	repo := NewRoomRepository(0)
	ctx := context.Background()

	require.NoError(t, repo.AddConnection(ctx, "room-1", record("c1", "alice", "Alice")))
	require.NoError(t, repo.AddConnection(ctx, "room-1", record("c2", "bob", "Bob")))
	require.NoError(t, repo.AddConnection(ctx, "room-1", record("c3", "carol", "Carol")))
	require.NoError(t, repo.RemoveConnection(ctx, "room-1", "c2"))

	records, err := repo.Connections(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.ConnID("c1"), records[0].ConnID)
	assert.Equal(t, domain.ConnID("c3"), records[1].ConnID)
}
