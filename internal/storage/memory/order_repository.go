package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

// orderRepositoryInMemory — in-memory реализация OrderRepository с автоинкрементом ID.
type orderRepositoryInMemory struct {
	mu     sync.RWMutex
	items  map[int64]domain.Order
	nextID int64
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository(seed ...domain.Order) domain.OrderRepository {
	repo := &orderRepositoryInMemory{
		items:  make(map[int64]domain.Order),
		nextID: 1,
	}
	for _, order := range seed {
		if order.ID <= 0 {
			order.ID = repo.nextID
		}
		repo.items[order.ID] = order.WithTotals()
		if order.ID >= repo.nextID {
			repo.nextID = order.ID + 1
		}
	}
	return repo
}

// List возвращает заказы по возрастанию ID (порядок создания).
func (r *orderRepositoryInMemory) List() ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		result = append(result, order)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(id int64) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// Create назначает следующий ID; ID из входа игнорируется.
func (r *orderRepositoryInMemory) Create(order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order.ID = r.nextID
	r.nextID++
	r.items[order.ID] = order
	return order, nil
}

// Save заменяет существующий заказ целиком.
func (r *orderRepositoryInMemory) Save(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[order.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	r.items[order.ID] = order
	return nil
}

// Delete удаляет заказ. ID после удаления не переиспользуются.
func (r *orderRepositoryInMemory) Delete(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(r.items, id)
	return nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
