package domain

import (
	"strings"
	"time"
)

// MinPasswordLength — минимальная длина пароля при регистрации и входе.
const MinPasswordLength = 4

// User — пользователь mini-crm. Пароль наружу не отдаётся.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// StoredUser — пользователь вместе с bcrypt-хешем пароля (только серверная сторона).
type StoredUser struct {
	User
	PasswordHash []byte
	CreatedAt    time.Time
}

// Credentials — тело запросов POST /login и POST /register.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse — ответ сервера на успешный вход или регистрацию.
type AuthResponse struct {
	AccessToken string `json:"accessToken"`
	User        User   `json:"user"`
}

// Normalize приводит email к каноничному виду.
func (c Credentials) Normalize() Credentials {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	return c
}

// Validate проверяет формат email и длину пароля.
func (c Credentials) Validate() error {
	var errs []error
	email := strings.TrimSpace(c.Email)
	if at := strings.Index(email, "@"); at <= 0 || at == len(email)-1 {
		errs = append(errs, ErrEmailInvalid)
	}
	if len(c.Password) < MinPasswordLength {
		errs = append(errs, ErrPasswordTooShort)
	}
	return newValidationError(errs)
}
