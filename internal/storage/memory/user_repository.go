package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

type userRepositoryInMemory struct {
	mu      sync.RWMutex
	byEmail map[string]domain.StoredUser
	nextID  int64
}

// NewUserRepository создаёт in-memory реализацию UserRepository.
func NewUserRepository() domain.UserRepository {
	return &userRepositoryInMemory{
		byEmail: make(map[string]domain.StoredUser),
		nextID:  1,
	}
}

func (r *userRepositoryInMemory) Create(user domain.StoredUser) (domain.StoredUser, error) {
	email := strings.ToLower(strings.TrimSpace(user.Email))

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[email]; exists {
		return domain.StoredUser{}, domain.ErrEmailAlreadyExists
	}

	user.ID = r.nextID
	r.nextID++
	user.Email = email
	user.PasswordHash = append([]byte(nil), user.PasswordHash...)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.byEmail[email] = user
	return user, nil
}

func (r *userRepositoryInMemory) GetByEmail(email string) (domain.StoredUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domain.StoredUser{}, domain.ErrUserNotFound
	}
	user.PasswordHash = append([]byte(nil), user.PasswordHash...)
	return user, nil
}

var _ domain.UserRepository = (*userRepositoryInMemory)(nil)
