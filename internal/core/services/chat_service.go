package services

import (
	"context"
	"fmt"
	"time"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"

	"go.uber.org/zap"
)

type chatService struct {
	registry ports.ConnectionRegistry
	rooms    ports.RoomRepository
	senders  ports.SenderRegistry
	locker   *RoomLocker
	metrics  ports.PresenceMetrics
	logger   *zap.SugaredLogger
}

func NewChatService(
	registry ports.ConnectionRegistry,
	rooms ports.RoomRepository,
	senders ports.SenderRegistry,
	locker *RoomLocker,
	metrics ports.PresenceMetrics,
	logger *zap.SugaredLogger,
) ports.ChatService {
	return &chatService{
		registry: registry,
		rooms:    rooms,
		senders:  senders,
		locker:   locker,
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *chatService) Post(ctx context.Context, connID domain.ConnID, text string) error {
	record, err := s.registry.Lookup(ctx, connID)
	if err != nil {
		return err
	}

	msg := domain.ChatMessage{
		Sender:     record.ParticipantID,
		SenderName: record.DisplayName,
		Text:       text,
		Timestamp:  time.Now(),
	}

	unlock := s.locker.Lock(record.RoomID)
	defer unlock()

	if err := s.rooms.AppendChat(ctx, record.RoomID, msg); err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}

	// The sender renders its own message optimistically; no echo.
	records, err := s.rooms.Connections(ctx, record.RoomID)
	if err != nil {
		return fmt.Errorf("failed to list room connections: %w", err)
	}
	recipients := 0
	for _, target := range records {
		if target.ConnID == connID {
			continue
		}
		sender, ok := s.senders.Sender(target.ConnID)
		if !ok {
			continue
		}
		if err := sender.SendChatMessage(msg); err != nil {
			s.logger.Infow("failed to relay chat message", "conn_id", target.ConnID, "error", err)
			continue
		}
		recipients++
	}

	if s.metrics != nil {
		s.metrics.ChatMessageRelayed(recipients)
	}
	return nil
}
