package ports

import (
	"context"

	"huddle/internal/core/domain"
)

type ConnectionRegistry interface {
	// Register creates the record for a live connection. Returns
	// domain.ErrDuplicateRegistration if the connection id is already taken.
	Register(ctx context.Context, record *domain.ConnectionRecord) error
	// Unregister is idempotent: removing an absent connection is a no-op,
	// since teardown may race with transport disconnect.
	Unregister(ctx context.Context, connID domain.ConnID) error
	Lookup(ctx context.Context, connID domain.ConnID) (*domain.ConnectionRecord, error)
}

type RoomRepository interface {
	// AddConnection creates the room lazily on first use.
	AddConnection(ctx context.Context, roomID domain.RoomID, record *domain.ConnectionRecord) error
	RemoveConnection(ctx context.Context, roomID domain.RoomID, connID domain.ConnID) error
	// Connections returns a snapshot of the live connection records in the room.
	Connections(ctx context.Context, roomID domain.RoomID) ([]*domain.ConnectionRecord, error)
	// LiveParticipants is the deduplicated participant view: each participant
	// id appears at most once, the last registered display name wins.
	LiveParticipants(ctx context.Context, roomID domain.RoomID) ([]domain.Participant, error)
	// ParticipantConnections reports how many live connections in the room
	// carry the given participant id.
	ParticipantConnections(ctx context.Context, roomID domain.RoomID, participantID domain.ParticipantID) (int, error)
	// RoomCount reports how many rooms exist. Rooms are created lazily and
	// never destroyed, so this only grows within a process lifetime.
	RoomCount(ctx context.Context) (int, error)
	AppendChat(ctx context.Context, roomID domain.RoomID, msg domain.ChatMessage) error
	// ChatLog returns a snapshot copy of the bounded chat log, oldest first.
	ChatLog(ctx context.Context, roomID domain.RoomID) ([]domain.ChatMessage, error)
}
