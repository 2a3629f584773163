package domain

import "time"

// ChatMessage is immutable once created.
type ChatMessage struct {
	Sender     ParticipantID `json:"sender"`
	SenderName string        `json:"senderName"`
	Text       string        `json:"text"`
	Timestamp  time.Time     `json:"timestamp"`
}

// DefaultChatHistoryLimit bounds a room's chat log; the oldest message is
// evicted first.
const DefaultChatHistoryLimit = 100
