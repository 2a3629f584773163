package services

import (
	"context"
	"fmt"
	"time"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"
	"huddle/pkg/utils"

	"go.uber.org/zap"
)

type presenceService struct {
	registry ports.ConnectionRegistry
	rooms    ports.RoomRepository
	senders  ports.SenderRegistry
	locker   *RoomLocker
	metrics  ports.PresenceMetrics
	logger   *zap.SugaredLogger
}

func NewPresenceService(
	registry ports.ConnectionRegistry,
	rooms ports.RoomRepository,
	senders ports.SenderRegistry,
	locker *RoomLocker,
	metrics ports.PresenceMetrics,
	logger *zap.SugaredLogger,
) ports.PresenceService {
	return &presenceService{
		registry: registry,
		rooms:    rooms,
		senders:  senders,
		locker:   locker,
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *presenceService) Join(ctx context.Context, connID domain.ConnID, roomID domain.RoomID, participantID domain.ParticipantID, displayName string, sender ports.EventSender) (*domain.ConnectionRecord, error) {
	if roomID == "" {
		return nil, domain.ErrEmptyRoomID
	}
	if participantID == "" {
		return nil, domain.ErrEmptyParticipantID
	}
	if displayName == "" {
		displayName = utils.ShortID(string(participantID))
	}

	unlock := s.locker.Lock(roomID)
	defer unlock()

	// Duplicate presence must be decided before this connection is added.
	existing, err := s.rooms.ParticipantConnections(ctx, roomID, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count participant connections: %w", err)
	}
	isDuplicate := existing > 0

	record := &domain.ConnectionRecord{
		ConnID:        connID,
		ParticipantID: participantID,
		DisplayName:   displayName,
		RoomID:        roomID,
		RegisteredAt:  time.Now(),
	}

	if err := s.registry.Register(ctx, record); err != nil {
		return nil, err
	}
	if err := s.rooms.AddConnection(ctx, roomID, record); err != nil {
		s.registry.Unregister(ctx, connID)
		return nil, fmt.Errorf("failed to add connection to room: %w", err)
	}
	s.senders.Attach(connID, sender)

	// Snapshot for the joiner excludes the joiner's own participant id.
	participants, err := s.rooms.LiveParticipants(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	users := make([]domain.Participant, 0, len(participants))
	for _, p := range participants {
		if p.ID != participantID {
			users = append(users, p)
		}
	}

	if err := sender.SendRoomUsers(users, displayName); err != nil {
		s.logger.Infow("failed to send room users", "conn_id", connID, "error", err)
	}

	history, err := s.rooms.ChatLog(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat log: %w", err)
	}
	if err := sender.SendChatHistory(history); err != nil {
		s.logger.Infow("failed to send chat history", "conn_id", connID, "error", err)
	}

	// A reconnect or duplicated tab stays invisible to the rest of the room.
	if !isDuplicate {
		s.broadcastJoined(ctx, roomID, connID, participantID, displayName)
	}

	if s.metrics != nil {
		s.metrics.ConnectionJoined(isDuplicate)
	}

	s.logger.Infow("connection joined room",
		"conn_id", connID,
		"room_id", roomID,
		"participant_id", participantID,
		"duplicate", isDuplicate,
	)
	return record, nil
}

func (s *presenceService) Leave(ctx context.Context, connID domain.ConnID) error {
	record, err := s.registry.Lookup(ctx, connID)
	if err != nil {
		// Never joined, or teardown already ran.
		return nil
	}

	unlock := s.locker.Lock(record.RoomID)
	defer unlock()

	// Record removal first, then decide whether the participant is gone.
	if err := s.rooms.RemoveConnection(ctx, record.RoomID, connID); err != nil {
		return fmt.Errorf("failed to remove connection from room: %w", err)
	}
	if err := s.registry.Unregister(ctx, connID); err != nil {
		return err
	}
	s.senders.Detach(connID)

	remaining, err := s.rooms.ParticipantConnections(ctx, record.RoomID, record.ParticipantID)
	if err != nil {
		return fmt.Errorf("failed to count participant connections: %w", err)
	}
	suppressed := remaining > 0

	if !suppressed {
		s.broadcastLeft(ctx, record.RoomID, record.ParticipantID)
	}

	if s.metrics != nil {
		s.metrics.ConnectionLeft(suppressed)
	}

	s.logger.Infow("connection left room",
		"conn_id", connID,
		"room_id", record.RoomID,
		"participant_id", record.ParticipantID,
		"suppressed", suppressed,
	)
	return nil
}

func (s *presenceService) broadcastJoined(ctx context.Context, roomID domain.RoomID, exceptConn domain.ConnID, participantID domain.ParticipantID, displayName string) {
	records, err := s.rooms.Connections(ctx, roomID)
	if err != nil {
		s.logger.Errorw("failed to list room connections", "room_id", roomID, "error", err)
		return
	}
	for _, record := range records {
		if record.ConnID == exceptConn {
			continue
		}
		sender, ok := s.senders.Sender(record.ConnID)
		if !ok {
			continue
		}
		if err := sender.SendUserConnected(participantID, displayName); err != nil {
			s.logger.Infow("failed to send user-connected", "conn_id", record.ConnID, "error", err)
		}
	}
}

func (s *presenceService) broadcastLeft(ctx context.Context, roomID domain.RoomID, participantID domain.ParticipantID) {
	records, err := s.rooms.Connections(ctx, roomID)
	if err != nil {
		s.logger.Errorw("failed to list room connections", "room_id", roomID, "error", err)
		return
	}
	for _, record := range records {
		sender, ok := s.senders.Sender(record.ConnID)
		if !ok {
			continue
		}
		if err := sender.SendUserDisconnected(participantID); err != nil {
			s.logger.Infow("failed to send user-disconnected", "conn_id", record.ConnID, "error", err)
		}
	}
}
