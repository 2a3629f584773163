package domain

import "time"

type RoomID string
type ParticipantID string
type ConnID string

// Participant is the deduplicated, observer-facing view of a logical user.
// Several live connections (tab duplicate, quick reconnect) may collapse
// into one Participant.
type Participant struct {
	ID   ParticipantID `json:"id"`
	Name string        `json:"name"`
}

// ConnectionRecord describes one live transport connection. Exactly one
// record exists per live connection; it is created on join and destroyed on
// disconnect.
type ConnectionRecord struct {
	ConnID        ConnID
	ParticipantID ParticipantID
	DisplayName   string
	RoomID        RoomID
	RegisteredAt  time.Time
}
