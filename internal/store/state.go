package store

import (
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

// OrdersState — снимок состояния заказов. Потребители получают только копии.
type OrdersState struct {
	Orders        []domain.Order
	SelectedOrder *domain.Order
	Loading       bool
	// Error пустой, если ошибки нет.
	Error string
}

func (s OrdersState) clone() OrdersState {
	out := OrdersState{
		Orders:  append([]domain.Order(nil), s.Orders...),
		Loading: s.Loading,
		Error:   s.Error,
	}
	if s.SelectedOrder != nil {
		selected := *s.SelectedOrder
		out.SelectedOrder = &selected
	}
	if out.Orders == nil {
		out.Orders = []domain.Order{}
	}
	return out
}

// OrdersCount возвращает количество загруженных заказов.
func (s OrdersState) OrdersCount() int {
	return len(s.Orders)
}

// TotalRevenue возвращает сумму TotalTtc по всем заказам.
func (s OrdersState) TotalRevenue() float64 {
	return sumOrders(s.Orders, func(o domain.Order) float64 { return o.TotalTtc })
}

// TotalRevenueHt возвращает сумму TotalHt по всем заказам.
func (s OrdersState) TotalRevenueHt() float64 {
	return sumOrders(s.Orders, func(o domain.Order) float64 { return o.TotalHt })
}

// HasError сообщает, что последняя операция завершилась ошибкой.
func (s OrdersState) HasError() bool {
	return s.Error != ""
}

// IsEmpty истинно, когда загрузка не идёт и заказов нет.
func (s OrdersState) IsEmpty() bool {
	return !s.Loading && len(s.Orders) == 0
}

// FindOrderByID ищет заказ в загруженном списке без сетевого вызова.
func (s OrdersState) FindOrderByID(id int64) (domain.Order, bool) {
	for _, order := range s.Orders {
		if order.ID == id {
			return order, true
		}
	}
	return domain.Order{}, false
}

func sumOrders(orders []domain.Order, field func(domain.Order) float64) float64 {
	total := decimal.Zero
	for _, order := range orders {
		total = total.Add(decimal.NewFromFloat(field(order)))
	}
	result, _ := total.Round(2).Float64()
	return result
}

// uniqueByID убирает повторные ID, первое вхождение побеждает.
func uniqueByID(orders []domain.Order) []domain.Order {
	seen := make(map[int64]struct{}, len(orders))
	out := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		if _, ok := seen[order.ID]; ok {
			continue
		}
		seen[order.ID] = struct{}{}
		out = append(out, order)
	}
	return out
}

func upsertOrder(orders []domain.Order, order domain.Order) []domain.Order {
	out := make([]domain.Order, 0, len(orders)+1)
	replaced := false
	for _, existing := range orders {
		if existing.ID == order.ID {
			out = append(out, order)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, order)
	}
	return out
}

func replaceOrder(orders []domain.Order, order domain.Order) []domain.Order {
	out := make([]domain.Order, len(orders))
	for i, existing := range orders {
		if existing.ID == order.ID {
			out[i] = order
			continue
		}
		out[i] = existing
	}
	return out
}

func removeOrder(orders []domain.Order, id int64) []domain.Order {
	out := make([]domain.Order, 0, len(orders))
	for _, existing := range orders {
		if existing.ID != id {
			out = append(out, existing)
		}
	}
	return out
}
