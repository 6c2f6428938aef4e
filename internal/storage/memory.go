package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/lingua/internal/domain"
)

// MemoryBackend keeps records in process. Records are stored as JSON so
// callers never share memory with the backend.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string][]byte)}
}

func (m *MemoryBackend) Load(ctx context.Context, userID string) (*domain.UserProgress, error) {
	m.mu.RLock()
	data, ok := m.records[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	var p domain.UserProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return &p, nil
}

func (m *MemoryBackend) Save(ctx context.Context, p *domain.UserProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	m.mu.Lock()
	m.records[p.UserID] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Users(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]string, 0, len(m.records))
	for id := range m.records {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}
