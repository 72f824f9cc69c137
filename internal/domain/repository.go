package domain

import "time"

// OrderRepository описывает серверное хранилище заказов.
type OrderRepository interface {
	// List возвращает все заказы в порядке создания.
	List() ([]Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id int64) (Order, error)
	// Create присваивает заказу новый ID и сохраняет его.
	Create(order Order) (Order, error)
	// Save заменяет существующий заказ; ErrOrderNotFound, если его нет.
	Save(order Order) error
	// Delete удаляет заказ; ErrOrderNotFound, если его нет.
	Delete(id int64) error
}

// UserRepository хранит зарегистрированных пользователей.
type UserRepository interface {
	// Create присваивает ID; ErrEmailAlreadyExists для занятого email.
	Create(user StoredUser) (StoredUser, error)
	// GetByEmail возвращает пользователя или ErrUserNotFound.
	GetByEmail(email string) (StoredUser, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	Release(key string) error
	DeleteExpired(before time.Time, limit int) (int, error)
}
