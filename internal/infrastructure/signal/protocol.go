package signal

import (
	"encoding/json"
	"fmt"

	"huddle/internal/core/domain"
)

// Wire event names. Server-authoritative; shared by server and client.
const (
	EventJoinRoom         = "join-room"
	EventRoomUsers        = "room-users"
	EventChatHistory      = "chat-history"
	EventUserConnected    = "user-connected"
	EventUserDisconnected = "user-disconnected"
	EventChatMessage      = "chat-message"
	EventRTCOffer         = "rtc-offer"
	EventRTCAnswer        = "rtc-answer"
	EventRTCIce           = "rtc-ice"
	EventError            = "error"
)

// Event is the JSON envelope carried in both directions over the websocket.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinRoomPayload struct {
	RoomID        domain.RoomID        `json:"roomId"`
	ParticipantID domain.ParticipantID `json:"participantId"`
	DisplayName   string               `json:"displayName,omitempty"`
}

// RoomUsersPayload is sent once per join, to the joiner only. Users is the
// deduplicated participant list excluding the joiner; You is the joiner's
// resolved display name.
type RoomUsersPayload struct {
	Users []domain.Participant `json:"users"`
	You   string               `json:"you"`
}

type ChatHistoryPayload struct {
	Messages []domain.ChatMessage `json:"messages"`
}

type UserConnectedPayload struct {
	ID   domain.ParticipantID `json:"id"`
	Name string               `json:"name"`
}

type UserDisconnectedPayload struct {
	ID domain.ParticipantID `json:"id"`
}

// ChatPostPayload is the client-to-server form; the relayed form is a full
// domain.ChatMessage.
type ChatPostPayload struct {
	Text string `json:"text"`
}

// RTCPayload carries opaque peer negotiation data (SDP or ICE candidates)
// relayed between two participants in the same room. From is filled in by the
// server from the sending connection's record.
type RTCPayload struct {
	From   domain.ParticipantID `json:"from,omitempty"`
	Target domain.ParticipantID `json:"target"`
	Data   json.RawMessage      `json:"data"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewEvent marshals payload into an envelope.
func NewEvent(eventType string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Payload: data}, nil
}
