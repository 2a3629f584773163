package client

import (
	"sync"

	"huddle/internal/core/domain"

	"go.uber.org/zap"
)

// LinkState tracks one remote participant's lifecycle on this client.
type LinkState int

const (
	// StateRosterOnly: the participant is listed but no media link exists
	// (media not ready yet, or negotiation failed).
	StateRosterOnly LinkState = iota
	// StateLinked: a live media session is bound to a display surface.
	StateLinked
)

// peerLink binds a remote participant id to its media session. At most one
// peerLink exists per remote id; establishing a new one tears the old one
// down first.
type peerLink struct {
	remoteID domain.ParticipantID
	call     Call
	state    LinkState
}

// Manager drives the client-side state machine that turns presence events
// into established media links. It consumes events from the signaling channel
// and from the media transport, which can arrive in either order relative to
// local media readiness; announcements that arrive early are queued and
// replayed once, in arrival order, when the local stream becomes available.
type Manager struct {
	transport Transport
	renderer  Renderer
	logger    *zap.SugaredLogger

	mu       sync.Mutex
	ownID    domain.ParticipantID
	ownName  string
	local    MediaStream
	mediaErr error
	ready    chan struct{} // closed once local media is available
	failed   chan struct{} // closed once local capture has failed
	done     chan struct{} // closed on manager teardown
	pending  []domain.Participant
	links    map[domain.ParticipantID]*peerLink
	roster   []domain.Participant
	chatLog  []domain.ChatMessage
	closed   bool
}

func NewManager(ownID domain.ParticipantID, transport Transport, renderer Renderer, logger *zap.SugaredLogger) *Manager {
	m := &Manager{
		transport: transport,
		renderer:  renderer,
		logger:    logger,
		ownID:     ownID,
		ready:     make(chan struct{}),
		failed:    make(chan struct{}),
		done:      make(chan struct{}),
		links:     make(map[domain.ParticipantID]*peerLink),
	}
	transport.OnIncomingCall(m.handleIncomingCall)
	return m
}

// MediaReady provides the local capture stream and drains the pending queue
// in arrival order. Subsequent calls are ignored.
func (m *Manager) MediaReady(local MediaStream) {
	m.mu.Lock()
	if m.closed || m.local != nil || m.mediaErr != nil {
		m.mu.Unlock()
		return
	}
	m.local = local
	close(m.ready)
	queued := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, p := range queued {
		m.establishLink(p.ID, p.Name)
	}
}

// MediaFailed records a capture failure. Non-fatal: the roster keeps
// populating from presence events, but no media links are established.
func (m *Manager) MediaFailed(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.local != nil || m.mediaErr != nil {
		return
	}
	m.mediaErr = err
	m.pending = nil
	close(m.failed)
	m.logger.Warnw("local media unavailable, continuing view-only", "error", err)
}

// HandleRoomUsers applies the one-shot snapshot sent on join.
func (m *Manager) HandleRoomUsers(users []domain.Participant, ownName string) {
	m.mu.Lock()
	m.ownName = ownName
	m.mu.Unlock()

	for _, user := range users {
		if user.ID == m.ownID {
			continue
		}
		m.HandleUserConnected(user.ID, user.Name)
	}
}

// HandleUserConnected reacts to a remote participant joining the room.
func (m *Manager) HandleUserConnected(id domain.ParticipantID, name string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.upsertRosterLocked(id, name)

	if m.local == nil {
		if m.mediaErr == nil {
			m.pending = append(m.pending, domain.Participant{ID: id, Name: name})
		}
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.establishLink(id, name)
}

// HandleUserDisconnected tears down the participant's media link and roster
// entry.
func (m *Manager) HandleUserDisconnected(id domain.ParticipantID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if link, exists := m.links[id]; exists {
		m.teardownLinkLocked(id, link)
	}
	for i, p := range m.roster {
		if p.ID == id {
			m.roster = append(m.roster[:i], m.roster[i+1:]...)
			break
		}
	}
	// Drop any queued announcement for a participant that already left.
	for i := 0; i < len(m.pending); {
		if m.pending[i].ID == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			continue
		}
		i++
	}
}

// HandleChatHistory replaces the local chat view with the server snapshot.
func (m *Manager) HandleChatHistory(messages []domain.ChatMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatLog = append([]domain.ChatMessage(nil), messages...)
}

func (m *Manager) HandleChatMessage(msg domain.ChatMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatLog = append(m.chatLog, msg)
}

// establishLink tears down any stale link for the id (rapid reconnects can
// announce a participant before the old link's close event fired), then
// places an outbound call.
func (m *Manager) establishLink(id domain.ParticipantID, name string) {
	m.mu.Lock()
	if m.closed || m.local == nil {
		m.mu.Unlock()
		return
	}
	if old, exists := m.links[id]; exists {
		m.teardownLinkLocked(id, old)
	}
	link := &peerLink{remoteID: id, state: StateRosterOnly}
	m.links[id] = link
	m.upsertRosterLocked(id, name)
	local := m.local
	m.mu.Unlock()

	call, err := m.transport.Call(string(id), local)
	if err != nil {
		// Negotiation failure leaves the participant roster-only; no retry.
		m.logger.Infow("call failed", "remote_id", id, "error", err)
		m.mu.Lock()
		if m.links[id] == link {
			delete(m.links, id)
		}
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	if m.closed || m.links[id] != link {
		m.mu.Unlock()
		call.Close()
		return
	}
	link.call = call
	m.mu.Unlock()

	m.wireCall(id, link, call)
}

// wireCall attaches stream/close/error callbacks. Each callback verifies the
// link is still current; stray callbacks from a replaced link are ignored.
func (m *Manager) wireCall(id domain.ParticipantID, link *peerLink, call Call) {
	call.OnStream(func(stream MediaStream) {
		m.mu.Lock()
		if m.closed || m.links[id] != link {
			m.mu.Unlock()
			return
		}
		link.state = StateLinked
		m.mu.Unlock()
		m.renderer.Bind(string(id), stream)
	})
	call.OnClose(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.links[id] != link {
			return
		}
		m.teardownLinkLocked(id, link)
	})
	call.OnError(func(err error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.links[id] != link {
			return
		}
		m.logger.Infow("media link error", "remote_id", id, "error", err)
		link.state = StateRosterOnly
	})
}

// handleIncomingCall answers a remote-initiated call once local media is
// available. The resulting stream is bound only when no link already exists
// for the caller, which covers both sides racing to call each other.
func (m *Manager) handleIncomingCall(in IncomingCall) {
	go func() {
		select {
		case <-m.ready:
		case <-m.failed:
			m.logger.Infow("rejecting inbound call, no local media", "remote_id", in.RemoteID())
			in.Close()
			return
		case <-m.done:
			in.Close()
			return
		}

		id := domain.ParticipantID(in.RemoteID())

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			in.Close()
			return
		}
		local := m.local
		_, alreadyLinked := m.links[id]
		var link *peerLink
		if !alreadyLinked {
			link = &peerLink{remoteID: id, state: StateRosterOnly, call: in}
			m.links[id] = link
			m.upsertRosterLocked(id, "")
		}
		m.mu.Unlock()

		if err := in.Answer(local); err != nil {
			m.logger.Infow("failed to answer inbound call", "remote_id", id, "error", err)
			m.mu.Lock()
			if link != nil && m.links[id] == link {
				delete(m.links, id)
			}
			m.mu.Unlock()
			return
		}

		if alreadyLinked {
			// The outbound link already owns this remote's display surface.
			return
		}
		m.wireCall(id, link, in)
	}()
}

// teardownLinkLocked closes the call and releases the display surface.
// Closing an already-closed call is a no-op by Call's contract.
func (m *Manager) teardownLinkLocked(id domain.ParticipantID, link *peerLink) {
	if link.call != nil {
		link.call.Close()
	}
	m.renderer.Release(string(id))
	delete(m.links, id)
}

// upsertRosterLocked is idempotent: an existing entry is never duplicated,
// and only a non-empty name refreshes the stored display name.
func (m *Manager) upsertRosterLocked(id domain.ParticipantID, name string) {
	for i, p := range m.roster {
		if p.ID == id {
			if name != "" {
				m.roster[i].Name = name
			}
			return
		}
	}
	m.roster = append(m.roster, domain.Participant{ID: id, Name: name})
}

// Roster returns the current participant list in arrival order.
func (m *Manager) Roster() []domain.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Participant(nil), m.roster...)
}

// ChatLog returns a snapshot of the local chat view.
func (m *Manager) ChatLog() []domain.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ChatMessage(nil), m.chatLog...)
}

// LinkStates reports the current state per linked remote id.
func (m *Manager) LinkStates() map[domain.ParticipantID]LinkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	states := make(map[domain.ParticipantID]LinkState, len(m.links))
	for id, link := range m.links {
		states[id] = link.state
	}
	return states
}

// Close tears down every link and the transport, best-effort.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	links := m.links
	m.links = make(map[domain.ParticipantID]*peerLink)
	local := m.local
	m.mu.Unlock()

	for id, link := range links {
		if link.call != nil {
			link.call.Close()
		}
		m.renderer.Release(string(id))
	}
	if local != nil {
		local.Close()
	}
	m.transport.Close()
}
