package ports

import (
	"context"

	"huddle/internal/core/domain"
)

// EventSender delivers server-authoritative events to one connection.
// Implementations are fire-and-forget: a slow or dead transport must not
// block the room's event handling.
type EventSender interface {
	SendRoomUsers(users []domain.Participant, ownName string) error
	SendChatHistory(history []domain.ChatMessage) error
	SendUserConnected(id domain.ParticipantID, name string) error
	SendUserDisconnected(id domain.ParticipantID) error
	SendChatMessage(msg domain.ChatMessage) error
}

// SenderRegistry maps live connections to their event senders.
type SenderRegistry interface {
	Attach(connID domain.ConnID, sender EventSender)
	Detach(connID domain.ConnID)
	Sender(connID domain.ConnID) (EventSender, bool)
}

type PresenceService interface {
	// Join registers the connection, sends the joiner the deduplicated
	// participant list (excluding itself), its resolved display name and the
	// room's chat history, and broadcasts user-connected to the rest of the
	// room unless another live connection already carries the participant id.
	Join(ctx context.Context, connID domain.ConnID, roomID domain.RoomID, participantID domain.ParticipantID, displayName string, sender EventSender) (*domain.ConnectionRecord, error)
	// Leave removes the connection and broadcasts user-disconnected unless
	// another connection still carries the participant id. Idempotent for
	// unknown connections.
	Leave(ctx context.Context, connID domain.ConnID) error
}

type ChatService interface {
	// Post relays text from the given connection to every other connection in
	// its room and appends it to the room's bounded chat log. The sender does
	// not receive its own broadcast.
	Post(ctx context.Context, connID domain.ConnID, text string) error
}

// PresenceMetrics receives presence and chat accounting events. All methods
// must be cheap and non-blocking.
type PresenceMetrics interface {
	ConnectionJoined(duplicate bool)
	ConnectionLeft(suppressed bool)
	ChatMessageRelayed(recipients int)
}
