package domain

import "errors"

var (
	ErrDuplicateRegistration = errors.New("connection already registered")
	ErrConnectionNotFound    = errors.New("connection not found")
	ErrRoomNotFound          = errors.New("room not found")
	ErrEmptyParticipantID    = errors.New("participant id must not be empty")
	ErrEmptyRoomID           = errors.New("room id must not be empty")
)
