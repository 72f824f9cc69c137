package kafka

import (
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

// TopicOrderEvents — топик по умолчанию для событий заказов.
const TopicOrderEvents = "minicrm.order.events"

// Заголовки сообщения.
const (
	HeaderEventType = "x-event-type"
	HeaderEventID   = "x-event-id"
)

// OrderEvent — сообщение о создании, изменении или удалении заказа.
type OrderEvent struct {
	EventID   string                `json:"event_id"`
	EventType domain.OrderEventType `json:"event_type"`
	OrderID   int64                 `json:"order_id"`
	Order     *domain.Order         `json:"order,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// NewOrderEvent собирает событие; для order.deleted тело заказа не передаётся.
func NewOrderEvent(eventType domain.OrderEventType, order domain.Order) OrderEvent {
	event := OrderEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		OrderID:   order.ID,
		Timestamp: time.Now().UTC(),
	}
	if eventType != domain.OrderEventDeleted {
		o := order
		event.Order = &o
	}
	return event
}
