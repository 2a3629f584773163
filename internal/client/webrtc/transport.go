package webrtc

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"huddle/internal/client"
	"huddle/internal/core/domain"
	"huddle/internal/infrastructure/signal"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// SignalSender relays opaque negotiation payloads to a target participant
// through the coordinator.
type SignalSender interface {
	SendRTC(eventType string, target string, data json.RawMessage) error
}

type Config struct {
	ICEServers []webrtc.ICEServer
}

func DefaultConfig() Config {
	return Config{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

// Transport negotiates pion peer connections keyed by participant id, with
// SDP offers/answers and ICE candidates exchanged over the signaling relay.
type Transport struct {
	config    webrtc.Configuration
	signaling SignalSender
	logger    *zap.SugaredLogger

	mu         sync.Mutex
	sessions   map[string]*session
	onIncoming func(client.IncomingCall)
	closed     bool
}

func NewTransport(cfg Config, signaling SignalSender, logger *zap.SugaredLogger) *Transport {
	return &Transport{
		config:    webrtc.Configuration{ICEServers: cfg.ICEServers},
		signaling: signaling,
		logger:    logger,
		sessions:  make(map[string]*session),
	}
}

func (t *Transport) OnIncomingCall(fn func(client.IncomingCall)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onIncoming = fn
}

// Call places an outbound call: creates a peer connection carrying the local
// tracks and sends the offer through the relay.
func (t *Transport) Call(remoteID string, local client.MediaStream) (client.Call, error) {
	localStream, ok := local.(*LocalStream)
	if !ok {
		return nil, fmt.Errorf("local stream is not a webrtc stream")
	}

	s, err := t.newSession(remoteID, true)
	if err != nil {
		return nil, err
	}
	if err := s.addLocalTracks(localStream); err != nil {
		s.Close()
		return nil, err
	}

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}

	data, err := json.Marshal(offer)
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := t.signaling.SendRTC(signal.EventRTCOffer, remoteID, data); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to send offer: %w", err)
	}

	t.mu.Lock()
	t.sessions[remoteID] = s
	t.mu.Unlock()
	return s, nil
}

// HandleRTC consumes relayed negotiation events; wire it to the signaling
// client's rtc handler.
func (t *Transport) HandleRTC(eventType string, from domain.ParticipantID, data json.RawMessage) {
	remoteID := string(from)
	switch eventType {
	case signal.EventRTCOffer:
		t.handleOffer(remoteID, data)
	case signal.EventRTCAnswer:
		t.handleAnswer(remoteID, data)
	case signal.EventRTCIce:
		t.handleICE(remoteID, data)
	}
}

func (t *Transport) handleOffer(remoteID string, data json.RawMessage) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(data, &offer); err != nil {
		t.logger.Warnw("invalid offer", "remote_id", remoteID, "error", err)
		return
	}

	s, err := t.newSession(remoteID, false)
	if err != nil {
		t.logger.Errorw("failed to create inbound session", "remote_id", remoteID, "error", err)
		return
	}
	s.pendingOffer = &offer

	t.mu.Lock()
	if old, exists := t.sessions[remoteID]; exists {
		// A newer offer supersedes the stale session.
		go old.Close()
	}
	t.sessions[remoteID] = s
	onIncoming := t.onIncoming
	t.mu.Unlock()

	if onIncoming == nil {
		t.logger.Warnw("no incoming call handler, dropping offer", "remote_id", remoteID)
		s.Close()
		return
	}
	onIncoming(s)
}

func (t *Transport) handleAnswer(remoteID string, data json.RawMessage) {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(data, &answer); err != nil {
		t.logger.Warnw("invalid answer", "remote_id", remoteID, "error", err)
		return
	}

	t.mu.Lock()
	s, exists := t.sessions[remoteID]
	t.mu.Unlock()
	if !exists {
		return
	}
	if err := s.setRemoteDescription(answer); err != nil {
		t.logger.Infow("failed to apply answer", "remote_id", remoteID, "error", err)
	}
}

func (t *Transport) handleICE(remoteID string, data json.RawMessage) {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(data, &candidate); err != nil {
		t.logger.Warnw("invalid ice candidate", "remote_id", remoteID, "error", err)
		return
	}

	t.mu.Lock()
	s, exists := t.sessions[remoteID]
	t.mu.Unlock()
	if !exists {
		return
	}
	s.addICECandidate(candidate)
}

func (t *Transport) newSession(remoteID string, outbound bool) (*session, error) {
	pc, err := webrtc.NewPeerConnection(t.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	s := &session{
		t:        t,
		remoteID: remoteID,
		pc:       pc,
		outbound: outbound,
		remote:   newRemoteStream(),
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		if err := t.signaling.SendRTC(signal.EventRTCIce, remoteID, data); err != nil {
			t.logger.Debugw("failed to send ice candidate", "remote_id", remoteID, "error", err)
		}
	})

	pc.OnTrack(s.handleTrack)

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed:
			s.fireError(fmt.Errorf("peer connection failed"))
			s.Close()
		case webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			s.fireClose()
		}
	})

	return s, nil
}

func (t *Transport) dropSession(s *session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessions[s.remoteID] == s {
		delete(t.sessions, s.remoteID)
	}
}

// Close tears down every session, best-effort.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	sessions := t.sessions
	t.sessions = make(map[string]*session)
	t.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	return nil
}

// session implements client.Call and client.IncomingCall for one remote
// participant.
type session struct {
	t        *Transport
	remoteID string
	pc       *webrtc.PeerConnection
	outbound bool
	remote   *RemoteStream

	pendingOffer *webrtc.SessionDescription

	mu          sync.Mutex
	onStream    func(client.MediaStream)
	onClose     func()
	onError     func(error)
	streamFired bool
	closeFired  bool
	closed      bool
	pendingICE  []webrtc.ICECandidateInit
	remoteSet   bool
}

func (s *session) RemoteID() string {
	return s.remoteID
}

func (s *session) OnStream(fn func(client.MediaStream)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStream = fn
}

func (s *session) OnClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = fn
}

func (s *session) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// Answer accepts an inbound call with the local stream.
func (s *session) Answer(local client.MediaStream) error {
	localStream, ok := local.(*LocalStream)
	if !ok {
		return fmt.Errorf("local stream is not a webrtc stream")
	}
	if s.pendingOffer == nil {
		return fmt.Errorf("no pending offer to answer")
	}

	if err := s.addLocalTracks(localStream); err != nil {
		return err
	}
	if err := s.setRemoteDescription(*s.pendingOffer); err != nil {
		return err
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}

	data, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return s.t.signaling.SendRTC(signal.EventRTCAnswer, s.remoteID, data)
}

func (s *session) addLocalTracks(local *LocalStream) error {
	for _, track := range local.Tracks() {
		if _, err := s.pc.AddTrack(track); err != nil {
			return fmt.Errorf("failed to add local track: %w", err)
		}
	}
	return nil
}

func (s *session) setRemoteDescription(desc webrtc.SessionDescription) error {
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return err
	}

	s.mu.Lock()
	s.remoteSet = true
	buffered := s.pendingICE
	s.pendingICE = nil
	s.mu.Unlock()

	for _, candidate := range buffered {
		if err := s.pc.AddICECandidate(candidate); err != nil {
			s.t.logger.Debugw("failed to add buffered ice candidate", "remote_id", s.remoteID, "error", err)
		}
	}
	return nil
}

// addICECandidate buffers candidates that race ahead of the remote
// description.
func (s *session) addICECandidate(candidate webrtc.ICECandidateInit) {
	s.mu.Lock()
	if !s.remoteSet {
		s.pendingICE = append(s.pendingICE, candidate)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.pc.AddICECandidate(candidate); err != nil {
		s.t.logger.Debugw("failed to add ice candidate", "remote_id", s.remoteID, "error", err)
	}
}

// handleTrack drains inbound RTP and, for video, nudges the sender with PLI
// so a late subscriber gets a keyframe.
func (s *session) handleTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	s.t.logger.Infow("remote track started",
		"remote_id", s.remoteID,
		"track_id", track.ID(),
		"codec", track.Codec().MimeType,
	)

	s.remote.addTrack(track)

	if track.Kind() == webrtc.RTPCodecTypeVideo {
		go s.sendPLI(track)
	}
	go s.drainTrack(track)

	s.mu.Lock()
	fire := !s.streamFired && s.onStream != nil && !s.closed
	s.streamFired = s.streamFired || fire
	onStream := s.onStream
	s.mu.Unlock()

	if fire {
		onStream(s.remote)
	}
}

func (s *session) sendPLI(track *webrtc.TrackRemote) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pli := &rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}
			if err := s.pc.WriteRTCP([]rtcp.Packet{pli}); err != nil {
				return
			}
		case <-s.remote.Done():
			return
		}
	}
}

func (s *session) drainTrack(track *webrtc.TrackRemote) {
	var pkt *rtp.Packet
	var err error
	received := 0
	for {
		pkt, _, err = track.ReadRTP()
		if err != nil {
			s.t.logger.Debugw("remote track ended",
				"remote_id", s.remoteID,
				"track_id", track.ID(),
				"bytes", received,
			)
			return
		}
		received += len(pkt.Payload)
		select {
		case <-s.remote.Done():
			return
		default:
		}
	}
}

func (s *session) fireClose() {
	s.mu.Lock()
	fire := !s.closeFired
	s.closeFired = true
	onClose := s.onClose
	s.mu.Unlock()

	if fire && onClose != nil {
		onClose()
	}
}

func (s *session) fireError(err error) {
	s.mu.Lock()
	onError := s.onError
	closed := s.closed
	s.mu.Unlock()

	if !closed && onError != nil {
		onError(err)
	}
}

// Close is idempotent; a closed session stops emitting callbacks.
func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.onStream = nil
	s.onError = nil
	s.mu.Unlock()

	s.t.dropSession(s)
	s.remote.Close()
	return s.pc.Close()
}
