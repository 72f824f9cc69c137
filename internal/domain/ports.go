package domain

import (
	"context"
	"strconv"
	"strings"
)

// Маршруты клиента, на которые ссылаются store, interceptors и guard.
const (
	RouteOrders     = "/orders"
	RouteOrdersAdd  = "/orders/add"
	RouteOrdersEdit = "/orders/edit/"
	RouteSignIn     = "/auth/sign-in"
	RouteSignUp     = "/auth/sign-up"
)

// OrderEditRoute возвращает маршрут формы редактирования заказа.
func OrderEditRoute(id int64) string {
	return RouteOrdersEdit + strconv.FormatInt(id, 10)
}

// ParseOrderEditRoute разбирает /orders/edit/:id. isEdit=true и id=0 означает
// маршрут редактирования с некорректным идентификатором.
func ParseOrderEditRoute(path string) (id int64, isEdit bool) {
	raw, ok := strings.CutPrefix(path, RouteOrdersEdit)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, true
	}
	return id, true
}

// Ключи key-value хранилища для сессии.
const (
	StorageKeyAuthToken   = "auth_token"
	StorageKeyCurrentUser = "current_user"
)

// OrdersGateway — удалённый источник истины для заказов.
type OrdersGateway interface {
	ListOrders(ctx context.Context) ([]Order, error)
	GetOrder(ctx context.Context, id int64) (Order, error)
	CreateOrder(ctx context.Context, order CreateOrder) (Order, error)
	UpdateOrder(ctx context.Context, order UpdateOrder) (Order, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// AuthGateway — эндпоинты входа и регистрации.
type AuthGateway interface {
	SignIn(ctx context.Context, creds Credentials) (AuthResponse, error)
	SignUp(ctx context.Context, creds Credentials) (AuthResponse, error)
}

// KeyValueStorage — персистентное хранилище строк по ключу.
type KeyValueStorage interface {
	// Get возвращает значение или ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Remove не считает отсутствие ключа ошибкой.
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Navigator принимает запрос на переход к маршруту клиента.
type Navigator interface {
	Navigate(target string)
}

// NavigatorFunc адаптирует функцию к Navigator.
type NavigatorFunc func(target string)

// Navigate вызывает f(target).
func (f NavigatorFunc) Navigate(target string) { f(target) }

// OrderEventType — тип события жизненного цикла заказа.
type OrderEventType string

const (
	OrderEventCreated OrderEventType = "order.created"
	OrderEventUpdated OrderEventType = "order.updated"
	OrderEventDeleted OrderEventType = "order.deleted"
)

// EventPublisher публикует события заказов наружу (Kafka или no-op).
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, eventType OrderEventType, order Order) error
}

// NoopPublisher ничего не публикует.
type NoopPublisher struct{}

// PublishOrderEvent всегда возвращает nil.
func (NoopPublisher) PublishOrderEvent(context.Context, OrderEventType, Order) error { return nil }
