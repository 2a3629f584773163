package memory

import (
	"sync"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"
)

type SenderRegistry struct {
	senders map[domain.ConnID]ports.EventSender
	mu      sync.RWMutex
}

func NewSenderRegistry() ports.SenderRegistry {
	return &SenderRegistry{
		senders: make(map[domain.ConnID]ports.EventSender),
	}
}

func (r *SenderRegistry) Attach(connID domain.ConnID, sender ports.EventSender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[connID] = sender
}

func (r *SenderRegistry) Detach(connID domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.senders, connID)
}

func (r *SenderRegistry) Sender(connID domain.ConnID) (ports.EventSender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sender, exists := r.senders[connID]
	return sender, exists
}
