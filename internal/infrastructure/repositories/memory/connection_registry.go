package memory

import (
	"context"
	"sync"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"
)

type ConnectionRegistry struct {
	records map[domain.ConnID]*domain.ConnectionRecord
	mu      sync.RWMutex
}

func NewConnectionRegistry() ports.ConnectionRegistry {
	return &ConnectionRegistry{
		records: make(map[domain.ConnID]*domain.ConnectionRecord),
	}
}

func (r *ConnectionRegistry) Register(ctx context.Context, record *domain.ConnectionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.ConnID]; exists {
		return domain.ErrDuplicateRegistration
	}

	r.records[record.ConnID] = record
	return nil
}

func (r *ConnectionRegistry) Unregister(ctx context.Context, connID domain.ConnID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, connID)
	return nil
}

func (r *ConnectionRegistry) Lookup(ctx context.Context, connID domain.ConnID) (*domain.ConnectionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[connID]
	if !exists {
		return nil, domain.ErrConnectionNotFound
	}

	return record, nil
}
