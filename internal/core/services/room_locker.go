package services

import (
	"sync"

	"huddle/internal/core/domain"
)

// RoomLocker serializes event handling per room: every join, disconnect and
// chat event for a room runs to completion before the next one starts, so no
// concurrent mutation of a room's state is possible. Events for different
// rooms proceed in parallel.
//
// Locks are never removed; the per-room cost is one mutex, and the room id
// space in one process stays small.
type RoomLocker struct {
	locks map[domain.RoomID]*sync.Mutex
	mu    sync.Mutex
}

func NewRoomLocker() *RoomLocker {
	return &RoomLocker{
		locks: make(map[domain.RoomID]*sync.Mutex),
	}
}

func (l *RoomLocker) Lock(roomID domain.RoomID) func() {
	l.mu.Lock()
	lock, exists := l.locks[roomID]
	if !exists {
		lock = &sync.Mutex{}
		l.locks[roomID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
