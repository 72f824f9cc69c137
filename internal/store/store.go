package store

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

const tracerName = "github.com/vladislavdragonenkov/minicrm/internal/store"

// Recorder принимает события о ходе операций (метрики).
type Recorder interface {
	ObserveStarted(kind string)
	ObserveCollapsed(kind string)
	ObserveFinished(kind string, err error, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveStarted(string) {}

func (noopRecorder) ObserveCollapsed(string) {}

func (noopRecorder) ObserveFinished(string, error, time.Duration) {}

// Options задаёт зависимости OrdersStore.
type Options struct {
	Navigator domain.Navigator
	Logger    *log.Entry
	Recorder  Recorder
	Tracer    trace.Tracer
}

// Option настраивает OrdersStore.
type Option func(*Options)

// WithNavigator задаёт получателя redirect после успешных create/update.
func WithNavigator(nav domain.Navigator) Option {
	return func(opts *Options) {
		opts.Navigator = nav
	}
}

// WithLogger задаёт logger для store.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithRecorder задаёт приёмник метрик.
func WithRecorder(recorder Recorder) Option {
	return func(opts *Options) {
		opts.Recorder = recorder
	}
}

// WithTracer задаёт tracer для спанов запросов.
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *Options) {
		opts.Tracer = tracer
	}
}

// OrdersStore — единственный владелец состояния заказов на клиенте.
// Все переходы выполняются под одним мьютексом, наружу отдаются только копии.
type OrdersStore struct {
	gateway    domain.OrdersGateway
	navigator  domain.Navigator
	dispatcher *Dispatcher
	recorder   Recorder
	tracer     trace.Tracer
	logger     *log.Entry

	mu       sync.Mutex
	state    OrdersState
	inflight int
	active   int
	idle     chan struct{}
	subs     map[int]chan OrdersState
	nextSub  int
}

type request struct {
	kind       Kind
	orderID    int64
	redirectTo string
	validate   func() error
	exec       func(ctx context.Context) (func(*OrdersState), error)
	onFailure  func(*OrdersState)
}

// New создаёт store с пустым состоянием.
func New(gateway domain.OrdersGateway, options ...Option) *OrdersStore {
	var opts Options
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "orders-store")
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	idle := make(chan struct{})
	close(idle)

	return &OrdersStore{
		gateway:    gateway,
		navigator:  opts.Navigator,
		dispatcher: NewDispatcher(),
		recorder:   recorder,
		tracer:     tracer,
		logger:     logger,
		state:      OrdersState{Orders: []domain.Order{}},
		idle:       idle,
		subs:       make(map[int]chan OrdersState),
	}
}

// LoadAll заменяет список заказов ответом GET /orders.
func (s *OrdersStore) LoadAll(ctx context.Context) *Call {
	return s.dispatch(ctx, request{
		kind: KindLoadAll,
		exec: func(ctx context.Context) (func(*OrdersState), error) {
			orders, err := s.gateway.ListOrders(ctx)
			if err != nil {
				return nil, err
			}
			return func(st *OrdersState) {
				st.Orders = uniqueByID(orders)
			}, nil
		},
	})
}

// GetByID загружает заказ в SelectedOrder. При ошибке SelectedOrder сбрасывается.
func (s *OrdersStore) GetByID(ctx context.Context, id int64) *Call {
	return s.dispatch(ctx, request{
		kind:     KindGetByID,
		orderID:  id,
		validate: func() error { return validateID(id) },
		exec: func(ctx context.Context) (func(*OrdersState), error) {
			order, err := s.gateway.GetOrder(ctx, id)
			if err != nil {
				return nil, err
			}
			return func(st *OrdersState) {
				st.SelectedOrder = &order
			}, nil
		},
		onFailure: func(st *OrdersState) {
			st.SelectedOrder = nil
		},
	})
}

// Create отправляет новый заказ и добавляет ответ сервера в список.
// redirectTo, если не пуст, запрашивается у navigator после успеха.
func (s *OrdersStore) Create(ctx context.Context, order domain.CreateOrder, redirectTo string) *Call {
	return s.dispatch(ctx, request{
		kind:       KindCreate,
		redirectTo: redirectTo,
		validate:   order.Validate,
		exec: func(ctx context.Context) (func(*OrdersState), error) {
			created, err := s.gateway.CreateOrder(ctx, order)
			if err != nil {
				return nil, err
			}
			return func(st *OrdersState) {
				st.Orders = upsertOrder(st.Orders, created)
			}, nil
		},
	})
}

// Update отправляет PATCH и заменяет совпадающий заказ в списке и в SelectedOrder.
func (s *OrdersStore) Update(ctx context.Context, order domain.UpdateOrder, redirectTo string) *Call {
	return s.dispatch(ctx, request{
		kind:       KindUpdate,
		orderID:    order.ID,
		redirectTo: redirectTo,
		validate:   order.Validate,
		exec: func(ctx context.Context) (func(*OrdersState), error) {
			updated, err := s.gateway.UpdateOrder(ctx, order)
			if err != nil {
				return nil, err
			}
			return func(st *OrdersState) {
				st.Orders = replaceOrder(st.Orders, updated)
				if st.SelectedOrder != nil && st.SelectedOrder.ID == updated.ID {
					st.SelectedOrder = &updated
				}
			}, nil
		},
	})
}

// Delete удаляет заказ на сервере, затем из списка и из SelectedOrder.
func (s *OrdersStore) Delete(ctx context.Context, id int64) *Call {
	return s.dispatch(ctx, request{
		kind:     KindDelete,
		orderID:  id,
		validate: func() error { return validateID(id) },
		exec: func(ctx context.Context) (func(*OrdersState), error) {
			if err := s.gateway.DeleteOrder(ctx, id); err != nil {
				return nil, err
			}
			return func(st *OrdersState) {
				st.Orders = removeOrder(st.Orders, id)
				if st.SelectedOrder != nil && st.SelectedOrder.ID == id {
					st.SelectedOrder = nil
				}
			}, nil
		},
	})
}

// ClearError сбрасывает сообщение об ошибке.
func (s *OrdersStore) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Error = ""
	s.publishLocked()
}

// ClearSelectedOrder сбрасывает выбранный заказ.
func (s *OrdersStore) ClearSelectedOrder() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SelectedOrder = nil
	s.publishLocked()
}

// FindOrderByID ищет заказ в текущем списке.
func (s *OrdersStore) FindOrderByID(id int64) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.FindOrderByID(id)
}

// State возвращает копию текущего состояния.
func (s *OrdersStore) State() OrdersState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe возвращает канал снимков состояния. В канале всегда лежит последний снимок:
// медленный потребитель пропускает промежуточные. cancel закрывает канал.
func (s *OrdersStore) Subscribe() (<-chan OrdersState, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan OrdersState, 1)
	ch <- s.state.clone()
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Drain ждёт, пока не останется запросов в полёте.
func (s *OrdersStore) Drain(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *OrdersStore) dispatch(ctx context.Context, req request) *Call {
	s.mu.Lock()
	s.state.Loading = true
	s.state.Error = ""
	call, owner := s.dispatcher.Acquire(req.kind)
	if owner {
		s.inflight++
		if s.active == 0 {
			s.idle = make(chan struct{})
		}
		s.active++
	}
	s.publishLocked()
	s.mu.Unlock()

	entry := s.logger.WithField("kind", req.kind)
	if req.orderID != 0 {
		entry = entry.WithField("order_id", req.orderID)
	}

	if !owner {
		s.recorder.ObserveCollapsed(string(req.kind))
		entry.Debug("запрос уже в полёте, вызов схлопнут")
		return call
	}

	s.recorder.ObserveStarted(string(req.kind))
	go s.run(context.WithoutCancel(ctx), call, req, entry)
	return call
}

func (s *OrdersStore) run(ctx context.Context, call *Call, req request, entry *log.Entry) {
	started := time.Now()

	attrs := []attribute.KeyValue{attribute.String("order.kind", string(req.kind))}
	if req.orderID != 0 {
		attrs = append(attrs, attribute.Int64("order.id", req.orderID))
	}
	ctx, span := s.tracer.Start(ctx, "orders-store."+string(req.kind), trace.WithAttributes(attrs...))

	var (
		apply func(*OrdersState)
		err   error
	)
	if req.validate != nil {
		err = req.validate()
	}
	if err == nil {
		apply, err = req.exec(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.ErrorMessage(err))
	}
	span.End()

	s.mu.Lock()
	s.inflight--
	if err != nil {
		s.state.Error = domain.ErrorMessage(err)
		if req.onFailure != nil {
			req.onFailure(&s.state)
		}
	} else {
		apply(&s.state)
	}
	s.state.Loading = s.inflight > 0
	s.dispatcher.Finish(call)
	s.publishLocked()
	s.mu.Unlock()

	duration := time.Since(started)
	s.recorder.ObserveFinished(string(req.kind), err, duration)
	if err != nil {
		entry.WithError(err).WithField("error_kind", domain.KindOf(err)).Warn("операция над заказами завершилась ошибкой")
	} else {
		entry.WithField("duration", duration).Debug("операция над заказами выполнена")
	}

	if err == nil && req.redirectTo != "" && s.navigator != nil {
		s.navigator.Navigate(req.redirectTo)
	}

	s.dispatcher.Resolve(call, err)

	s.mu.Lock()
	s.active--
	if s.active == 0 {
		close(s.idle)
	}
	s.mu.Unlock()
}

func (s *OrdersStore) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.state.clone()
	}
}

func validateID(id int64) error {
	if id <= 0 {
		return domain.ErrInvalidOrderID
	}
	return nil
}
