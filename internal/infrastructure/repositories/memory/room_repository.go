package memory

import (
	"context"
	"sync"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"
)

// room holds the live connection set and the bounded chat log for one room id.
// participantConns keeps a per-participant connection count so presence dedup
// is O(1) instead of scanning every connection on each join and disconnect.
type room struct {
	connections      map[domain.ConnID]*domain.ConnectionRecord
	order            []domain.ConnID // registration order, for last-name-wins dedup
	participantConns map[domain.ParticipantID]int
	chatLog          []domain.ChatMessage
}

type RoomRepository struct {
	rooms     map[domain.RoomID]*room
	chatLimit int
	mu        sync.RWMutex
}

func NewRoomRepository(chatLimit int) ports.RoomRepository {
	if chatLimit <= 0 {
		chatLimit = domain.DefaultChatHistoryLimit
	}
	return &RoomRepository{
		rooms:     make(map[domain.RoomID]*room),
		chatLimit: chatLimit,
	}
}

// getOrCreate must be called with r.mu held.
func (r *RoomRepository) getOrCreate(roomID domain.RoomID) *room {
	rm, exists := r.rooms[roomID]
	if !exists {
		rm = &room{
			connections:      make(map[domain.ConnID]*domain.ConnectionRecord),
			participantConns: make(map[domain.ParticipantID]int),
		}
		r.rooms[roomID] = rm
	}
	return rm
}

func (r *RoomRepository) AddConnection(ctx context.Context, roomID domain.RoomID, record *domain.ConnectionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.getOrCreate(roomID)
	if _, exists := rm.connections[record.ConnID]; exists {
		return domain.ErrDuplicateRegistration
	}

	rm.connections[record.ConnID] = record
	rm.order = append(rm.order, record.ConnID)
	rm.participantConns[record.ParticipantID]++
	return nil
}

func (r *RoomRepository) RemoveConnection(ctx context.Context, roomID domain.RoomID, connID domain.ConnID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, exists := r.rooms[roomID]
	if !exists {
		return nil
	}

	record, exists := rm.connections[connID]
	if !exists {
		return nil
	}

	delete(rm.connections, connID)
	for i, id := range rm.order {
		if id == connID {
			rm.order = append(rm.order[:i], rm.order[i+1:]...)
			break
		}
	}

	if rm.participantConns[record.ParticipantID] <= 1 {
		delete(rm.participantConns, record.ParticipantID)
	} else {
		rm.participantConns[record.ParticipantID]--
	}
	return nil
}

func (r *RoomRepository) Connections(ctx context.Context, roomID domain.RoomID) ([]*domain.ConnectionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, exists := r.rooms[roomID]
	if !exists {
		return nil, nil
	}

	records := make([]*domain.ConnectionRecord, 0, len(rm.connections))
	for _, connID := range rm.order {
		records = append(records, rm.connections[connID])
	}
	return records, nil
}

func (r *RoomRepository) LiveParticipants(ctx context.Context, roomID domain.RoomID) ([]domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, exists := r.rooms[roomID]
	if !exists {
		return nil, nil
	}

	// Walk in registration order so the last registered display name wins.
	index := make(map[domain.ParticipantID]int, len(rm.participantConns))
	participants := make([]domain.Participant, 0, len(rm.participantConns))
	for _, connID := range rm.order {
		record := rm.connections[connID]
		if i, seen := index[record.ParticipantID]; seen {
			participants[i].Name = record.DisplayName
			continue
		}
		index[record.ParticipantID] = len(participants)
		participants = append(participants, domain.Participant{
			ID:   record.ParticipantID,
			Name: record.DisplayName,
		})
	}
	return participants, nil
}

func (r *RoomRepository) ParticipantConnections(ctx context.Context, roomID domain.RoomID, participantID domain.ParticipantID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, exists := r.rooms[roomID]
	if !exists {
		return 0, nil
	}
	return rm.participantConns[participantID], nil
}

func (r *RoomRepository) RoomCount(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms), nil
}

func (r *RoomRepository) AppendChat(ctx context.Context, roomID domain.RoomID, msg domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.getOrCreate(roomID)
	rm.chatLog = append(rm.chatLog, msg)
	if len(rm.chatLog) > r.chatLimit {
		rm.chatLog = rm.chatLog[len(rm.chatLog)-r.chatLimit:]
	}
	return nil
}

func (r *RoomRepository) ChatLog(ctx context.Context, roomID domain.RoomID) ([]domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, exists := r.rooms[roomID]
	if !exists {
		return nil, nil
	}

	log := make([]domain.ChatMessage, len(rm.chatLog))
	copy(log, rm.chatLog)
	return log, nil
}
