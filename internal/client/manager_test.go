package client

import (
	"errors"
	"sync"
	"testing"
	"time"

	"huddle/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStream struct{ closed bool }

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeCall struct {
	mu        sync.Mutex
	remoteID  string
	onStream  func(MediaStream)
	onClose   func()
	onError   func(error)
	closed    bool
	answered  chan MediaStream
	answerErr error
}

func newFakeCall(remoteID string) *fakeCall {
	return &fakeCall{remoteID: remoteID, answered: make(chan MediaStream, 1)}
}

func (c *fakeCall) RemoteID() string { return c.remoteID }

func (c *fakeCall) OnStream(fn func(MediaStream)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStream = fn
}

func (c *fakeCall) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

func (c *fakeCall) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

func (c *fakeCall) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeCall) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeCall) fireStream(stream MediaStream) {
	c.mu.Lock()
	fn := c.onStream
	c.mu.Unlock()
	if fn != nil {
		fn(stream)
	}
}

func (c *fakeCall) fireClose() {
	c.mu.Lock()
	fn := c.onClose
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *fakeCall) Answer(local MediaStream) error {
	if c.answerErr != nil {
		return c.answerErr
	}
	c.answered <- local
	return nil
}

type fakeTransport struct {
	mu       sync.Mutex
	calls    []*fakeCall
	callErr  error
	incoming func(IncomingCall)
	closed   bool
}

func (t *fakeTransport) Call(remoteID string, local MediaStream) (Call, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.callErr != nil {
		return nil, t.callErr
	}
	call := newFakeCall(remoteID)
	t.calls = append(t.calls, call)
	return call, nil
}

func (t *fakeTransport) OnIncomingCall(fn func(IncomingCall)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.incoming = fn
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) placedCalls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.calls))
	for _, c := range t.calls {
		ids = append(ids, c.remoteID)
	}
	return ids
}

type fakeRenderer struct {
	mu       sync.Mutex
	binds    []string
	releases []string
}

func (r *fakeRenderer) Bind(remoteID string, stream MediaStream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.binds = append(r.binds, remoteID)
}

func (r *fakeRenderer) Release(remoteID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releases = append(r.releases, remoteID)
}

func (r *fakeRenderer) boundIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.binds...)
}

func newManagerFixture() (*Manager, *fakeTransport, *fakeRenderer) {
	transport := &fakeTransport{}
	renderer := &fakeRenderer{}
	m := NewManager("self", transport, renderer, zap.NewNop().Sugar())
	return m, transport, renderer
}

func TestPendingAnnouncementsDrainInOrderOnMediaReady(t *testing.T) {
	m, transport, _ := newManagerFixture()

	m.HandleUserConnected("alice", "Alice")
	m.HandleUserConnected("bob", "Bob")
	m.HandleUserConnected("carol", "Carol")
	assert.Empty(t, transport.placedCalls())

	m.MediaReady(&fakeStream{})
	assert.Equal(t, []string{"alice", "bob", "carol"}, transport.placedCalls())
}

func TestAnnouncementsAfterMediaReadyCallImmediately(t *testing.T) {
	m, transport, _ := newManagerFixture()

	m.MediaReady(&fakeStream{})
	m.HandleUserConnected("alice", "Alice")
	assert.Equal(t, []string{"alice"}, transport.placedCalls())
}

func TestMediaFailureKeepsRosterWithoutCalls(t *testing.T) {
	m, transport, _ := newManagerFixture()

	m.HandleUserConnected("alice", "Alice")
	m.MediaFailed(errors.New("permission denied"))
	m.HandleUserConnected("bob", "Bob")

	assert.Empty(t, transport.placedCalls())
	assert.Equal(t, []domain.Participant{
		{ID: "alice", Name: "Alice"},
		{ID: "bob", Name: "Bob"},
	}, m.Roster())
}

func TestRoomUsersSnapshotSkipsOwnID(t *testing.T) {
	m, transport, _ := newManagerFixture()
	m.MediaReady(&fakeStream{})

	m.HandleRoomUsers([]domain.Participant{
		{ID: "alice", Name: "Alice"},
		{ID: "self", Name: "Me"},
	}, "Me")

	assert.Equal(t, []string{"alice"}, transport.placedCalls())
	assert.Equal(t, []domain.Participant{{ID: "alice", Name: "Alice"}}, m.Roster())
}

func TestStreamArrivalBindsRenderer(t *testing.T) {
	m, transport, renderer := newManagerFixture()
	m.MediaReady(&fakeStream{})
	m.HandleUserConnected("alice", "Alice")

	require.Len(t, transport.calls, 1)
	transport.calls[0].fireStream(&fakeStream{})

	assert.Equal(t, []string{"alice"}, renderer.boundIDs())
	assert.Equal(t, StateLinked, m.LinkStates()["alice"])
}

func TestDisconnectTearsDownLinkAndRoster(t *testing.T) {
	m, transport, renderer := newManagerFixture()
	m.MediaReady(&fakeStream{})
	m.HandleUserConnected("alice", "Alice")
	require.Len(t, transport.calls, 1)

	m.HandleUserDisconnected("alice")

	assert.True(t, transport.calls[0].isClosed())
	assert.Equal(t, []string{"alice"}, renderer.releases)
	assert.Empty(t, m.Roster())
	assert.Empty(t, m.LinkStates())
}

func TestDisconnectPurgesPendingQueue(t *testing.T) {
	m, transport, _ := newManagerFixture()

	m.HandleUserConnected("alice", "Alice")
	m.HandleUserConnected("bob", "Bob")
	m.HandleUserDisconnected("alice")
	m.MediaReady(&fakeStream{})

	assert.Equal(t, []string{"bob"}, transport.placedCalls())
}

func TestReannounceReplacesStaleLink(t *testing.T) {
	m, transport, _ := newManagerFixture()
	m.MediaReady(&fakeStream{})

	m.HandleUserConnected("alice", "Alice")
	m.HandleUserConnected("alice", "Alice")

	require.Len(t, transport.calls, 2)
	assert.True(t, transport.calls[0].isClosed())
	assert.False(t, transport.calls[1].isClosed())
	assert.Len(t, m.LinkStates(), 1)
}

func TestStaleCallbackAfterReplacementIsIgnored(t *testing.T) {
	m, transport, renderer := newManagerFixture()
	m.MediaReady(&fakeStream{})

	m.HandleUserConnected("alice", "Alice")
	m.HandleUserConnected("alice", "Alice")
	require.Len(t, transport.calls, 2)

	// The replaced call's stream must not bind a surface.
	transport.calls[0].fireStream(&fakeStream{})
	assert.Empty(t, renderer.boundIDs())

	transport.calls[1].fireStream(&fakeStream{})
	assert.Equal(t, []string{"alice"}, renderer.boundIDs())
}

func TestRemoteCloseDowngradesToRosterOnly(t *testing.T) {
	m, transport, renderer := newManagerFixture()
	m.MediaReady(&fakeStream{})
	m.HandleUserConnected("alice", "Alice")
	require.Len(t, transport.calls, 1)

	transport.calls[0].fireStream(&fakeStream{})
	transport.calls[0].fireClose()

	assert.Empty(t, m.LinkStates())
	assert.Equal(t, []string{"alice"}, renderer.releases)
	// Still on the roster until the coordinator says otherwise.
	assert.Equal(t, []domain.Participant{{ID: "alice", Name: "Alice"}}, m.Roster())
}

func TestCallFailureLeavesParticipantRosterOnly(t *testing.T) {
	m, transport, _ := newManagerFixture()
	transport.callErr = errors.New("negotiation failed")
	m.MediaReady(&fakeStream{})

	m.HandleUserConnected("alice", "Alice")

	assert.Empty(t, m.LinkStates())
	assert.Equal(t, []domain.Participant{{ID: "alice", Name: "Alice"}}, m.Roster())
}

func TestIncomingCallAnsweredAfterMediaReady(t *testing.T) {
	m, transport, _ := newManagerFixture()
	in := newFakeCall("alice")
	transport.incoming(in)

	local := &fakeStream{}
	m.MediaReady(local)

	select {
	case got := <-in.answered:
		assert.Same(t, local, got)
	case <-time.After(time.Second):
		t.Fatal("inbound call was not answered")
	}
	assert.Eventually(t, func() bool {
		_, linked := m.LinkStates()["alice"]
		return linked
	}, time.Second, 10*time.Millisecond)
}

func TestIncomingCallRejectedWhenMediaFailed(t *testing.T) {
	m, transport, _ := newManagerFixture()
	in := newFakeCall("alice")
	transport.incoming(in)

	m.MediaFailed(errors.New("permission denied"))

	assert.Eventually(t, in.isClosed, time.Second, 10*time.Millisecond)
	assert.Empty(t, in.answered)
}

func TestIncomingCallDoesNotDoubleBindExistingLink(t *testing.T) {
	m, transport, _ := newManagerFixture()
	m.MediaReady(&fakeStream{})
	m.HandleUserConnected("alice", "Alice")
	require.Len(t, transport.calls, 1)

	in := newFakeCall("alice")
	transport.incoming(in)

	select {
	case <-in.answered:
	case <-time.After(time.Second):
		t.Fatal("inbound call was not answered")
	}
	// The outbound link stays the current one.
	assert.Len(t, m.LinkStates(), 1)
	assert.False(t, transport.calls[0].isClosed())
}

func TestChatHistoryAndMessages(t *testing.T) {
	m, _, _ := newManagerFixture()

	m.HandleChatHistory([]domain.ChatMessage{{Text: "old"}})
	m.HandleChatMessage(domain.ChatMessage{Text: "new"})

	log := m.ChatLog()
	require.Len(t, log, 2)
	assert.Equal(t, "old", log[0].Text)
	assert.Equal(t, "new", log[1].Text)
}

func TestCloseTearsDownEverything(t *testing.T) {
	m, transport, renderer := newManagerFixture()
	local := &fakeStream{}
	m.MediaReady(local)
	m.HandleUserConnected("alice", "Alice")
	require.Len(t, transport.calls, 1)

	m.Close()

	assert.True(t, transport.calls[0].isClosed())
	assert.Equal(t, []string{"alice"}, renderer.releases)
	assert.True(t, local.closed)
	assert.True(t, transport.closed)

	// Events after close are dropped.
	m.HandleUserConnected("bob", "Bob")
	assert.Len(t, transport.placedCalls(), 1)
}
