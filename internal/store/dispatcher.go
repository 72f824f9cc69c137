package store

import (
	"context"
	"errors"
	"sync"
)

// Kind — вид операции над заказами. Диспетчер держит не больше одного запроса на вид.
type Kind string

const (
	KindLoadAll Kind = "load_all"
	KindGetByID Kind = "get_by_id"
	KindCreate  Kind = "create"
	KindUpdate  Kind = "update"
	KindDelete  Kind = "delete"
)

// Policy определяет, что происходит с повторным вызовом, пока запрос того же вида в полёте.
type Policy int

const (
	// PolicyCollapse — повторный вызов разделяет результат запроса в полёте.
	PolicyCollapse Policy = iota
	// PolicyExhaust — повторный вызов отклоняется, второй отправки не будет.
	PolicyExhaust
)

// ErrSubmissionInFlight возвращает отклонённый вызов create/update.
var ErrSubmissionInFlight = errors.New("submission already in flight")

// Policy возвращает политику схлопывания для вида операции.
func (k Kind) Policy() Policy {
	switch k {
	case KindCreate, KindUpdate:
		return PolicyExhaust
	default:
		return PolicyCollapse
	}
}

// Call — handle вызова операции store. Закрывается после применения перехода состояния.
type Call struct {
	kind      Kind
	done      chan struct{}
	err       error
	collapsed bool
	owner     *Call
}

func newCall(kind Kind) *Call {
	return &Call{kind: kind, done: make(chan struct{})}
}

// Kind возвращает вид операции.
func (c *Call) Kind() Kind { return c.kind }

// Collapsed сообщает, что вызов не породил собственный сетевой запрос.
// Схлопывание идёт по виду операции, а не по аргументу: Delete(2), пришедший
// во время Delete(1), получает результат Delete(1), и заказ 2 остаётся на месте.
func (c *Call) Collapsed() bool { return c.collapsed }

// Done закрывается, когда результат применён к состоянию.
func (c *Call) Done() <-chan struct{} {
	if c.owner != nil {
		return c.owner.done
	}
	return c.done
}

// Err возвращает ошибку операции; nil, пока вызов не завершён.
// Для схлопнутого вызова это ошибка владельца того же вида (см. Collapsed).
func (c *Call) Err() error {
	if c.owner != nil {
		return c.owner.Err()
	}
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait блокируется до завершения вызова или отмены ctx.
// Отмена ctx не прерывает сам запрос.
func (c *Call) Wait(ctx context.Context) error {
	select {
	case <-c.Done():
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Call) resolve(err error) {
	c.err = err
	close(c.done)
}

// Dispatcher — реестр запросов в полёте по видам операций.
// Состояния вида: Idle -> Pending -> Idle; отмены нет.
type Dispatcher struct {
	mu       sync.Mutex
	inflight map[Kind]*Call
}

// NewDispatcher создаёт пустой диспетчер.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{inflight: make(map[Kind]*Call)}
}

// Acquire регистрирует вызов. owner=true означает, что вызывающий обязан выполнить запрос
// и затем вызвать Finish и Resolve.
func (d *Dispatcher) Acquire(kind Kind) (call *Call, owner bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if current, ok := d.inflight[kind]; ok {
		if kind.Policy() == PolicyExhaust {
			ignored := newCall(kind)
			ignored.collapsed = true
			ignored.resolve(ErrSubmissionInFlight)
			return ignored, false
		}
		return &Call{kind: kind, collapsed: true, owner: current}, false
	}

	call = newCall(kind)
	d.inflight[kind] = call
	return call, true
}

// Finish освобождает слот вида. Новые вызовы после Finish становятся владельцами.
func (d *Dispatcher) Finish(call *Call) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inflight[call.kind] == call {
		delete(d.inflight, call.kind)
	}
}

// Resolve завершает вызов владельца и всех схлопнутых с ним.
func (d *Dispatcher) Resolve(call *Call, err error) {
	call.resolve(err)
}

// InFlight сообщает, есть ли запрос вида kind в полёте.
func (d *Dispatcher) InFlight(kind Kind) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inflight[kind]
	return ok
}
