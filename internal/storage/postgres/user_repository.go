package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

type userRepository struct {
	db *sql.DB
}

// NewUserRepository создаёт PostgreSQL-реализацию UserRepository.
func NewUserRepository(store *Store) domain.UserRepository {
	return &userRepository{db: store.DB()}
}

func (r *userRepository) Create(user domain.StoredUser) (domain.StoredUser, error) {
	ctx, cancel := withTimeout()
	defer cancel()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, user.Email, user.PasswordHash, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.StoredUser{}, domain.ErrEmailAlreadyExists
		}
		return domain.StoredUser{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *userRepository) GetByEmail(email string) (domain.StoredUser, error) {
	ctx, cancel := withTimeout()
	defer cancel()

	var user domain.StoredUser
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StoredUser{}, domain.ErrUserNotFound
		}
		return domain.StoredUser{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

var _ domain.UserRepository = (*userRepository)(nil)
