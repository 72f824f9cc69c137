package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

const storageTimeout = 5 * time.Second

// Session хранит токен и текущего пользователя в памяти и в key-value хранилище.
type Session struct {
	storage domain.KeyValueStorage
	logger  *log.Entry

	mu    sync.RWMutex
	token string
	user  *domain.User
}

// NewSession создаёт сессию и восстанавливает её из хранилища.
func NewSession(ctx context.Context, storage domain.KeyValueStorage, logger *log.Entry) *Session {
	if logger == nil {
		logger = log.WithField("component", "session")
	}
	s := &Session{storage: storage, logger: logger}
	s.Restore(ctx)
	return s
}

// Restore читает auth_token и current_user. Повреждённый current_user удаляет обе записи.
func (s *Session) Restore(ctx context.Context) {
	token, err := s.storage.Get(ctx, domain.StorageKeyAuthToken)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.WithError(err).Warn("не удалось прочитать токен сессии")
		}
		return
	}
	rawUser, err := s.storage.Get(ctx, domain.StorageKeyCurrentUser)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.WithError(err).Warn("не удалось прочитать пользователя сессии")
		}
		return
	}

	var user domain.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		s.logger.WithError(err).Warn("сохранённый пользователь повреждён, сессия сброшена")
		s.removeKeys(ctx)
		return
	}

	s.mu.Lock()
	s.token = token
	s.user = &user
	s.mu.Unlock()
	s.logger.WithField("email", user.Email).Debug("сессия восстановлена")
}

// Start сохраняет ответ входа/регистрации.
func (s *Session) Start(ctx context.Context, resp domain.AuthResponse) error {
	rawUser, err := json.Marshal(resp.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if err := s.storage.Set(ctx, domain.StorageKeyAuthToken, resp.AccessToken); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if err := s.storage.Set(ctx, domain.StorageKeyCurrentUser, string(rawUser)); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}

	user := resp.User
	s.mu.Lock()
	s.token = resp.AccessToken
	s.user = &user
	s.mu.Unlock()
	return nil
}

// Invalidate сбрасывает сессию в памяти и в хранилище.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	s.removeKeys(ctx)
}

// Token возвращает текущий токен или пустую строку.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User возвращает текущего пользователя.
func (s *Session) User() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

// IsAuthenticated истинно, если есть токен и пользователь.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

func (s *Session) removeKeys(ctx context.Context) {
	for _, key := range []string{domain.StorageKeyAuthToken, domain.StorageKeyCurrentUser} {
		if err := s.storage.Remove(ctx, key); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("не удалось удалить ключ сессии")
		}
	}
}
