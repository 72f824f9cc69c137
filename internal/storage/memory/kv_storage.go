package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

// KeyValueStorage хранит сессию в памяти процесса, значения теряются при выходе.
type KeyValueStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewKeyValueStorage создаёт пустое хранилище.
func NewKeyValueStorage() *KeyValueStorage {
	return &KeyValueStorage{items: make(map[string]string)}
}

func (s *KeyValueStorage) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return value, nil
}

func (s *KeyValueStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

func (s *KeyValueStorage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *KeyValueStorage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]string)
	return nil
}

var _ domain.KeyValueStorage = (*KeyValueStorage)(nil)
