package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"
	"huddle/pkg/config"
	"huddle/pkg/tracing"
	"huddle/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocketServer accepts signaling connections and dispatches wire events to
// the presence and chat services. It also relays peer negotiation payloads
// between participants of a room.
type WebSocketServer struct {
	presence ports.PresenceService
	chat     ports.ChatService
	registry ports.ConnectionRegistry
	rooms    ports.RoomRepository

	conns map[domain.ConnID]*wsConn
	mu    sync.RWMutex

	pingInterval   time.Duration
	pongTimeout    time.Duration
	writeTimeout   time.Duration
	outboundBuffer int

	msgRate  rate.Limit
	msgBurst int

	metrics ConnectionMetrics
	logger  *zap.SugaredLogger
}

// ConnectionMetrics receives transport-level accounting events.
type ConnectionMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
}

func NewWebSocketServer(
	presence ports.PresenceService,
	chat ports.ChatService,
	registry ports.ConnectionRegistry,
	rooms ports.RoomRepository,
	cfg *config.Config,
	metrics ConnectionMetrics,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	s := &WebSocketServer{
		presence:       presence,
		chat:           chat,
		registry:       registry,
		rooms:          rooms,
		conns:          make(map[domain.ConnID]*wsConn),
		pingInterval:   cfg.Signal.PingInterval,
		pongTimeout:    cfg.Signal.PongTimeout,
		writeTimeout:   cfg.Signal.WriteTimeout,
		outboundBuffer: cfg.Signal.OutboundBuffer,
		metrics:        metrics,
		logger:         logger,
	}
	if cfg.RateLimiting.Enabled {
		s.msgRate = rate.Limit(cfg.RateLimiting.WebSocket.MessagesPerSecond)
		s.msgBurst = cfg.RateLimiting.WebSocket.Burst
	}
	return s
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	connID := domain.ConnID(utils.GenerateConnID())
	c := newWSConn(connID, conn, s.outboundBuffer, s.pingInterval, s.writeTimeout, s.logger)

	s.mu.Lock()
	s.conns[connID] = c
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ConnectionOpened()
	}
	s.logger.Infow("connection opened", "conn_id", connID, "remote", r.RemoteAddr)

	go c.writeLoop()
	s.readLoop(c)

	// Cleanup. Leave is idempotent; a connection that never joined is a no-op.
	c.close()
	s.mu.Lock()
	delete(s.conns, connID)
	s.mu.Unlock()

	if err := s.presence.Leave(context.Background(), connID); err != nil {
		s.logger.Errorw("leave failed during cleanup", "conn_id", connID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.ConnectionClosed()
	}
	s.logger.Infow("connection closed", "conn_id", connID)
}

func (s *WebSocketServer) readLoop(c *wsConn) {
	conn := c.conn
	conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	var limiter *rate.Limiter
	if s.msgRate > 0 {
		limiter = rate.NewLimiter(s.msgRate, s.msgBurst)
	}

	for {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("read failed", "conn_id", c.id, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))

		if limiter != nil && !limiter.Allow() {
			s.logger.Warnw("message rate limit exceeded, dropping event", "conn_id", c.id, "event", event.Type)
			continue
		}

		fatal, err := s.handleEvent(context.Background(), c, event)
		if err != nil {
			s.logger.Infow("error handling event", "conn_id", c.id, "event", event.Type, "error", err)
			c.send(EventError, ErrorPayload{Message: err.Error()})
		}
		if fatal {
			return
		}
	}
}

// handleEvent dispatches one inbound event. A true first return value drops
// the connection.
func (s *WebSocketServer) handleEvent(ctx context.Context, c *wsConn, event Event) (bool, error) {
	if event.Type == "" {
		return false, fmt.Errorf("event type is required")
	}

	ctx, span := tracing.TraceSignalEvent(ctx, event.Type, string(c.id))
	defer span.End()

	var err error
	fatal := false
	switch event.Type {
	case EventJoinRoom:
		fatal, err = s.handleJoinRoom(ctx, c, event)
	case EventChatMessage:
		err = s.handleChatMessage(ctx, c, event)
	case EventRTCOffer, EventRTCAnswer, EventRTCIce:
		err = s.handleRTCRelay(ctx, c, event)
	default:
		err = fmt.Errorf("unknown event type: %s", event.Type)
	}
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return fatal, err
}

func (s *WebSocketServer) handleJoinRoom(ctx context.Context, c *wsConn, event Event) (bool, error) {
	var payload JoinRoomPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return false, fmt.Errorf("invalid join-room payload: %w", err)
	}

	displayName := utils.SanitizeString(payload.DisplayName)
	_, err := s.presence.Join(ctx, c.id, payload.RoomID, payload.ParticipantID, displayName, c)
	if err == domain.ErrDuplicateRegistration {
		// A connection handle registering twice is a protocol violation;
		// log and drop the connection.
		return true, err
	}
	return false, err
}

func (s *WebSocketServer) handleChatMessage(ctx context.Context, c *wsConn, event Event) error {
	var payload ChatPostPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("invalid chat-message payload: %w", err)
	}

	text := utils.SanitizeString(payload.Text)
	if text == "" {
		return nil
	}
	return s.chat.Post(ctx, c.id, text)
}

// handleRTCRelay forwards offers, answers and ICE candidates to every live
// connection of the target participant within the sender's room. The data is
// opaque to the coordinator.
func (s *WebSocketServer) handleRTCRelay(ctx context.Context, c *wsConn, event Event) error {
	var payload RTCPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("invalid %s payload: %w", event.Type, err)
	}
	if payload.Target == "" {
		return fmt.Errorf("%s requires a target participant", event.Type)
	}

	record, err := s.registry.Lookup(ctx, c.id)
	if err != nil {
		return fmt.Errorf("connection has not joined a room")
	}

	payload.From = record.ParticipantID
	records, err := s.rooms.Connections(ctx, record.RoomID)
	if err != nil {
		return fmt.Errorf("failed to list room connections: %w", err)
	}

	delivered := 0
	for _, target := range records {
		if target.ParticipantID != payload.Target || target.ConnID == c.id {
			continue
		}
		s.mu.RLock()
		targetConn, ok := s.conns[target.ConnID]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		if err := targetConn.send(event.Type, payload); err != nil {
			s.logger.Infow("failed to relay rtc event", "conn_id", target.ConnID, "error", err)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return fmt.Errorf("target participant %s is not connected", payload.Target)
	}

	s.logger.Debugw("relayed rtc event",
		"event", event.Type,
		"from", payload.From,
		"target", payload.Target,
		"room_id", record.RoomID,
		"delivered", delivered,
	)
	return nil
}

// ConnectionCount reports the number of live websocket connections.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
