package session

import (
	"context"
	"sync"

	"field-review/backend/internal/models"
)

// Slot is the single persisted key holding the current identity. It is read
// once at startup, written on login and cleared on logout.
type Slot interface {
	Load(ctx context.Context) (*models.Identity, error)
	Save(ctx context.Context, identity models.Identity) error
	Clear(ctx context.Context) error
}

// MemorySlot keeps the identity in process. Used when no redis is configured
// and in tests.
type MemorySlot struct {
	mu       sync.Mutex
	identity *models.Identity
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

func (m *MemorySlot) Load(ctx context.Context) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.identity == nil {
		return nil, nil
	}
	identity := *m.identity
	return &identity, nil
}

func (m *MemorySlot) Save(ctx context.Context, identity models.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = &identity
	return nil
}

func (m *MemorySlot) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = nil
	return nil
}
