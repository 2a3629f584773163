package services

import (
	"context"
	"testing"

	"huddle/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRelaysToEveryoneButSender(t *testing.T) {
	f := newPresenceFixture(t)
	alice := &recordingSender{}
	bob := &recordingSender{}
	carol := &recordingSender{}
	ctx := context.Background()

	_, err := f.presence.Join(ctx, "c1", "room-1", "alice", "Alice", alice)
	require.NoError(t, err)
	_, err = f.presence.Join(ctx, "c2", "room-1", "bob", "Bob", bob)
	require.NoError(t, err)
	_, err = f.presence.Join(ctx, "c3", "room-1", "carol", "Carol", carol)
	require.NoError(t, err)

	require.NoError(t, f.chat.Post(ctx, "c2", "hello"))

	assert.Empty(t, bob.messages)
	require.Len(t, alice.messages, 1)
	require.Len(t, carol.messages, 1)
	assert.Equal(t, domain.ParticipantID("bob"), alice.messages[0].Sender)
	assert.Equal(t, "Bob", alice.messages[0].SenderName)
	assert.Equal(t, "hello", alice.messages[0].Text)
	assert.False(t, alice.messages[0].Timestamp.IsZero())
	assert.Equal(t, []int{2}, f.metrics.relayed)
}

func TestPostFromUnknownConnection(t *testing.T) {
	f := newPresenceFixture(t)
	err := f.chat.Post(context.Background(), "never-joined", "hello")
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)
}

func TestPostAppendsToHistoryForLateJoiners(t *testing.T) {
	f := newPresenceFixture(t)
	ctx := context.Background()

	_, err := f.presence.Join(ctx, "c1", "room-1", "alice", "Alice", &recordingSender{})
	require.NoError(t, err)
	require.NoError(t, f.chat.Post(ctx, "c1", "first"))
	require.NoError(t, f.chat.Post(ctx, "c1", "second"))

	late := &recordingSender{}
	_, err = f.presence.Join(ctx, "c2", "room-1", "bob", "Bob", late)
	require.NoError(t, err)

	require.Len(t, late.history, 1)
	require.Len(t, late.history[0], 2)
	assert.Equal(t, "first", late.history[0][0].Text)
	assert.Equal(t, "second", late.history[0][1].Text)
}

func TestPostReachesDuplicateTabsOfOtherParticipants(t *testing.T) {
	f := newPresenceFixture(t)
	tab1 := &recordingSender{}
	tab2 := &recordingSender{}
	ctx := context.Background()

	_, err := f.presence.Join(ctx, "c1", "room-1", "alice", "Alice", tab1)
	require.NoError(t, err)
	_, err = f.presence.Join(ctx, "c2", "room-1", "alice", "Alice", tab2)
	require.NoError(t, err)
	_, err = f.presence.Join(ctx, "c3", "room-1", "bob", "Bob", &recordingSender{})
	require.NoError(t, err)

	require.NoError(t, f.chat.Post(ctx, "c3", "hi both tabs"))

	// Delivery is per connection, not per participant.
	assert.Len(t, tab1.messages, 1)
	assert.Len(t, tab2.messages, 1)
}
