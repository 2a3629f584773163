package signal

import (
	"encoding/json"
	"sync"
	"time"

	"huddle/internal/core/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsConn owns the write side of one websocket connection. All outbound events
// go through a buffered channel drained by a single writer goroutine, so
// room event handling never blocks on a slow transport; when the buffer is
// full the event is dropped.
type wsConn struct {
	id   domain.ConnID
	conn *websocket.Conn

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once

	pingInterval time.Duration
	writeTimeout time.Duration

	logger *zap.SugaredLogger
}

func newWSConn(id domain.ConnID, conn *websocket.Conn, buffer int, pingInterval, writeTimeout time.Duration, logger *zap.SugaredLogger) *wsConn {
	return &wsConn{
		id:           id,
		conn:         conn,
		out:          make(chan []byte, buffer),
		done:         make(chan struct{}),
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// writeLoop is the only goroutine allowed to write to the websocket. It also
// owns the ping ticker.
func (c *wsConn) writeLoop() {
	pingTicker := time.NewTicker(c.pingInterval)
	defer pingTicker.Stop()
	defer c.conn.Close()

	for {
		select {
		case data := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Infow("write failed, closing connection", "conn_id", c.id, "error", err)
				return
			}

		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Infow("ping failed, closing connection", "conn_id", c.id, "error", err)
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// send marshals and enqueues an event, dropping it when the outbound buffer
// is full. Transport writes are fire-and-forget.
func (c *wsConn) send(eventType string, payload interface{}) error {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	select {
	case c.out <- data:
		return nil
	case <-c.done:
		return nil
	default:
		c.logger.Warnw("outbound buffer full, dropping event", "conn_id", c.id, "event", eventType)
		return nil
	}
}

// ports.EventSender implementation.

func (c *wsConn) SendRoomUsers(users []domain.Participant, ownName string) error {
	if users == nil {
		users = []domain.Participant{}
	}
	return c.send(EventRoomUsers, RoomUsersPayload{Users: users, You: ownName})
}

func (c *wsConn) SendChatHistory(history []domain.ChatMessage) error {
	if history == nil {
		history = []domain.ChatMessage{}
	}
	return c.send(EventChatHistory, ChatHistoryPayload{Messages: history})
}

func (c *wsConn) SendUserConnected(id domain.ParticipantID, name string) error {
	return c.send(EventUserConnected, UserConnectedPayload{ID: id, Name: name})
}

func (c *wsConn) SendUserDisconnected(id domain.ParticipantID) error {
	return c.send(EventUserDisconnected, UserDisconnectedPayload{ID: id})
}

func (c *wsConn) SendChatMessage(msg domain.ChatMessage) error {
	return c.send(EventChatMessage, msg)
}
