package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"huddle/internal/core/domain"
	"huddle/internal/infrastructure/signal"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RTCHandler receives relayed peer negotiation events for the media
// transport.
type RTCHandler func(eventType string, from domain.ParticipantID, data json.RawMessage)

// SignalingClient speaks the coordinator's wire protocol over one websocket
// and feeds presence and chat events into a Manager.
type SignalingClient struct {
	conn    *websocket.Conn
	manager *Manager
	logger  *zap.SugaredLogger

	writeMu sync.Mutex

	rtcMu      sync.RWMutex
	rtcHandler RTCHandler
}

// DialSignaling connects to the coordinator's websocket endpoint.
func DialSignaling(ctx context.Context, url string, manager *Manager, logger *zap.SugaredLogger) (*SignalingClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial signaling server: %w", err)
	}
	return &SignalingClient{
		conn:    conn,
		manager: manager,
		logger:  logger,
	}, nil
}

// OnRTC registers the handler for relayed rtc-offer/rtc-answer/rtc-ice
// events.
func (c *SignalingClient) OnRTC(handler RTCHandler) {
	c.rtcMu.Lock()
	defer c.rtcMu.Unlock()
	c.rtcHandler = handler
}

func (c *SignalingClient) sendEvent(eventType string, payload interface{}) error {
	event, err := signal.NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(event)
}

// JoinRoom announces this participant to the coordinator.
func (c *SignalingClient) JoinRoom(roomID domain.RoomID, participantID domain.ParticipantID, displayName string) error {
	return c.sendEvent(signal.EventJoinRoom, signal.JoinRoomPayload{
		RoomID:        roomID,
		ParticipantID: participantID,
		DisplayName:   displayName,
	})
}

// SendChat posts a chat message; the local view renders it optimistically
// since the server never echoes it back.
func (c *SignalingClient) SendChat(text string) error {
	return c.sendEvent(signal.EventChatMessage, signal.ChatPostPayload{Text: text})
}

// SendRTC relays opaque negotiation data to a target participant.
func (c *SignalingClient) SendRTC(eventType string, target string, data json.RawMessage) error {
	return c.sendEvent(eventType, signal.RTCPayload{
		Target: domain.ParticipantID(target),
		Data:   data,
	})
}

// Run reads and dispatches events until the connection closes or ctx is
// cancelled.
func (c *SignalingClient) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	for {
		var event signal.Event
		if err := c.conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("signaling read failed: %w", err)
		}
		c.dispatch(event)
	}
}

func (c *SignalingClient) dispatch(event signal.Event) {
	switch event.Type {
	case signal.EventRoomUsers:
		var payload signal.RoomUsersPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			c.logger.Warnw("invalid room-users payload", "error", err)
			return
		}
		c.manager.HandleRoomUsers(payload.Users, payload.You)

	case signal.EventChatHistory:
		var payload signal.ChatHistoryPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			c.logger.Warnw("invalid chat-history payload", "error", err)
			return
		}
		c.manager.HandleChatHistory(payload.Messages)

	case signal.EventUserConnected:
		var payload signal.UserConnectedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			c.logger.Warnw("invalid user-connected payload", "error", err)
			return
		}
		c.manager.HandleUserConnected(payload.ID, payload.Name)

	case signal.EventUserDisconnected:
		var payload signal.UserDisconnectedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			c.logger.Warnw("invalid user-disconnected payload", "error", err)
			return
		}
		c.manager.HandleUserDisconnected(payload.ID)

	case signal.EventChatMessage:
		var msg domain.ChatMessage
		if err := json.Unmarshal(event.Payload, &msg); err != nil {
			c.logger.Warnw("invalid chat-message payload", "error", err)
			return
		}
		c.manager.HandleChatMessage(msg)

	case signal.EventRTCOffer, signal.EventRTCAnswer, signal.EventRTCIce:
		var payload signal.RTCPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			c.logger.Warnw("invalid rtc payload", "error", err)
			return
		}
		c.rtcMu.RLock()
		handler := c.rtcHandler
		c.rtcMu.RUnlock()
		if handler != nil {
			handler(event.Type, payload.From, payload.Data)
		}

	case signal.EventError:
		var payload signal.ErrorPayload
		if err := json.Unmarshal(event.Payload, &payload); err == nil {
			c.logger.Warnw("server error", "message", payload.Message)
		}

	default:
		c.logger.Debugw("ignoring unknown event", "type", event.Type)
	}
}

// Close shuts the signaling channel, best-effort.
func (c *SignalingClient) Close() error {
	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}
