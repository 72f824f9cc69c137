package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls map[string]int
	gate  chan struct{}
	ctxs  []context.Context

	listFn   func() ([]domain.Order, error)
	getFn    func(id int64) (domain.Order, error)
	createFn func(in domain.CreateOrder) (domain.Order, error)
	updateFn func(in domain.UpdateOrder) (domain.Order, error)
	deleteFn func(id int64) error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{calls: make(map[string]int)}
}

// blocking заставляет каждый вызов ждать close(gate).
func (g *fakeGateway) blocking() chan struct{} {
	g.gate = make(chan struct{})
	return g.gate
}

func (g *fakeGateway) enter(ctx context.Context, name string) {
	g.mu.Lock()
	g.calls[name]++
	g.ctxs = append(g.ctxs, ctx)
	gate := g.gate
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (g *fakeGateway) count(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

func (g *fakeGateway) ListOrders(ctx context.Context) ([]domain.Order, error) {
	g.enter(ctx, "list")
	if g.listFn == nil {
		return nil, nil
	}
	return g.listFn()
}

func (g *fakeGateway) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	g.enter(ctx, "get")
	if g.getFn == nil {
		return domain.Order{}, errors.New("unexpected GetOrder call")
	}
	return g.getFn(id)
}

func (g *fakeGateway) CreateOrder(ctx context.Context, in domain.CreateOrder) (domain.Order, error) {
	g.enter(ctx, "create")
	if g.createFn == nil {
		return domain.Order{}, errors.New("unexpected CreateOrder call")
	}
	return g.createFn(in)
}

func (g *fakeGateway) UpdateOrder(ctx context.Context, in domain.UpdateOrder) (domain.Order, error) {
	g.enter(ctx, "update")
	if g.updateFn == nil {
		return domain.Order{}, errors.New("unexpected UpdateOrder call")
	}
	return g.updateFn(in)
}

func (g *fakeGateway) DeleteOrder(ctx context.Context, id int64) error {
	g.enter(ctx, "delete")
	if g.deleteFn == nil {
		return nil
	}
	return g.deleteFn(id)
}

type recordingNavigator struct {
	mu      sync.Mutex
	targets []string
}

func (n *recordingNavigator) Navigate(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
}

func (n *recordingNavigator) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.targets...)
}

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.WarnLevel)
	return logger.WithField("component", "orders-store-test")
}

func newTestStore(gw *fakeGateway, nav domain.Navigator) *OrdersStore {
	opts := []Option{WithLogger(testLogger())}
	if nav != nil {
		opts = append(opts, WithNavigator(nav))
	}
	return New(gw, opts...)
}

func acme(id int64) domain.Order {
	order := domain.NewOrder(domain.CreateOrder{Customer: "Acme", NbDays: 5, Tjm: 500, TauxTva: 20})
	order.ID = id
	return order
}

func waitCall(t *testing.T, call *Call) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := call.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "call did not finish")
	return err
}

func seed(t *testing.T, s *OrdersStore, gw *fakeGateway, orders ...domain.Order) {
	t.Helper()
	gw.listFn = func() ([]domain.Order, error) { return orders, nil }
	require.NoError(t, waitCall(t, s.LoadAll(context.Background())))
}

func TestOrdersStore_InitialState(t *testing.T) {
	s := newTestStore(newFakeGateway(), nil)

	st := s.State()
	require.Empty(t, st.Orders)
	require.Nil(t, st.SelectedOrder)
	require.False(t, st.Loading)
	require.False(t, st.HasError())
	require.True(t, st.IsEmpty())
}

func TestOrdersStore_LoadAll_ReplacesOrders(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)
	gw.listFn = func() ([]domain.Order, error) {
		return []domain.Order{acme(1)}, nil
	}

	require.NoError(t, waitCall(t, s.LoadAll(context.Background())))

	st := s.State()
	require.Equal(t, []domain.Order{acme(1)}, st.Orders)
	require.False(t, st.Loading)
	require.Empty(t, st.Error)
	require.Equal(t, 1, st.OrdersCount())
	require.Equal(t, 3000.0, st.TotalRevenue())
	require.Equal(t, 2500.0, st.TotalRevenueHt())
}

func TestOrdersStore_LoadAll_DropsDuplicateIDs(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)
	dup := acme(1)
	dup.Customer = "Other"

	seed(t, s, gw, acme(1), dup, acme(2))

	st := s.State()
	require.Len(t, st.Orders, 2)
	require.Equal(t, "Acme", st.Orders[0].Customer)
}

func TestOrdersStore_LoadAll_FailureKeepsOrders(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)
	seed(t, s, gw, acme(1))

	gw.listFn = func() ([]domain.Order, error) {
		return nil, domain.NewGatewayError(domain.KindServerError, 500, "Server error. Please try again later.")
	}
	err := waitCall(t, s.LoadAll(context.Background()))
	require.ErrorIs(t, err, domain.ErrServerError)

	st := s.State()
	require.Equal(t, []domain.Order{acme(1)}, st.Orders)
	require.Equal(t, "Server error. Please try again later.", st.Error)
	require.False(t, st.Loading)
}

func TestOrdersStore_InvocationSetsLoadingAndClearsError(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)

	gw.listFn = func() ([]domain.Order, error) { return nil, errors.New("boom") }
	_ = waitCall(t, s.LoadAll(context.Background()))
	require.Equal(t, "boom", s.State().Error)

	gate := gw.blocking()
	gw.listFn = func() ([]domain.Order, error) { return nil, nil }
	call := s.LoadAll(context.Background())

	st := s.State()
	require.True(t, st.Loading)
	require.Empty(t, st.Error)
	require.False(t, st.IsEmpty())

	close(gate)
	require.NoError(t, waitCall(t, call))
	require.False(t, s.State().Loading)
}

func TestOrdersStore_LoadAll_Collapses(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)
	gate := gw.blocking()
	gw.listFn = func() ([]domain.Order, error) { return []domain.Order{acme(1)}, nil }

	first := s.LoadAll(context.Background())
	second := s.LoadAll(context.Background())

	require.False(t, first.Collapsed())
	require.True(t, second.Collapsed())

	close(gate)
	require.NoError(t, waitCall(t, first))
	require.NoError(t, waitCall(t, second))

	require.Equal(t, 1, gw.count("list"))
	require.Len(t, s.State().Orders, 1)
}

func TestOrdersStore_Collapse_SharesFailure(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)
	gate := gw.blocking()
	gw.listFn = func() ([]domain.Order, error) {
		return nil, domain.NewGatewayError(domain.KindForbidden, 403, "You do not have the required permissions.")
	}

	first := s.LoadAll(context.Background())
	second := s.LoadAll(context.Background())
	close(gate)

	require.ErrorIs(t, waitCall(t, first), domain.ErrForbidden)
	require.ErrorIs(t, waitCall(t, second), domain.ErrForbidden)
	require.Equal(t, 1, gw.count("list"))
}

func TestOrdersStore_Create_NoDoubleSubmit(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)
	gate := gw.blocking()
	gw.createFn = func(in domain.CreateOrder) (domain.Order, error) {
		order := domain.NewOrder(in)
		order.ID = 7
		return order, nil
	}
	in := domain.CreateOrder{Customer: "X", NbDays: 1, Tjm: 100, TauxTva: 20}

	first := s.Create(context.Background(), in, "")
	second := s.Create(context.Background(), in, "")

	require.ErrorIs(t, waitCall(t, second), ErrSubmissionInFlight)
	require.True(t, second.Collapsed())
	require.True(t, s.State().Loading)

	close(gate)
	require.NoError(t, waitCall(t, first))

	require.Equal(t, 1, gw.count("create"))
	st := s.State()
	require.Len(t, st.Orders, 1)
	require.False(t, st.Loading)
	require.Empty(t, st.Error)
}

func TestOrdersStore_Create_AppendsAndNavigates(t *testing.T) {
	gw := newFakeGateway()
	nav := &recordingNavigator{}
	s := newTestStore(gw, nav)
	seed(t, s, gw, acme(1))
	gw.createFn = func(in domain.CreateOrder) (domain.Order, error) {
		order := domain.NewOrder(in)
		order.ID = 7
		return order, nil
	}

	err := waitCall(t, s.Create(context.Background(), domain.CreateOrder{Customer: "X", NbDays: 1, Tjm: 100, TauxTva: 20}, domain.RouteOrders))
	require.NoError(t, err)

	st := s.State()
	require.Len(t, st.Orders, 2)
	require.Equal(t, int64(7), st.Orders[1].ID)
	require.Equal(t, 120.0, st.Orders[1].TotalTtc)
	require.Equal(t, []string{domain.RouteOrders}, nav.all())
}

func TestOrdersStore_Create_FailureDoesNotNavigate(t *testing.T) {
	gw := newFakeGateway()
	nav := &recordingNavigator{}
	s := newTestStore(gw, nav)
	gw.createFn = func(domain.CreateOrder) (domain.Order, error) {
		return domain.Order{}, domain.NewGatewayError(domain.KindValidationFailed, 422, "Invalid data.")
	}

	err := waitCall(t, s.Create(context.Background(), domain.CreateOrder{Customer: "X", NbDays: 1, Tjm: 100}, domain.RouteOrders))
	require.ErrorIs(t, err, domain.ErrValidationFailed)

	st := s.State()
	require.Empty(t, st.Orders)
	require.Equal(t, "Invalid data.", st.Error)
	require.Empty(t, nav.all())
}

func TestOrdersStore_Create_SameIDReplacesExisting(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)
	seed(t, s, gw, acme(1), acme(2))
	gw.createFn = func(in domain.CreateOrder) (domain.Order, error) {
		order := domain.NewOrder(in)
		order.ID = 2
		return order, nil
	}

	require.NoError(t, waitCall(t, s.Create(context.Background(), domain.CreateOrder{Customer: "Dup", NbDays: 1, Tjm: 1}, "")))

	st := s.State()
	require.Len(t, st.Orders, 2)
	require.Equal(t, "Dup", st.Orders[1].Customer)
}

func TestOrdersStore_Create_InvalidInputSkipsNetwork(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)

	err := waitCall(t, s.Create(context.Background(), domain.CreateOrder{Customer: ""}, ""))
	require.ErrorIs(t, err, domain.ErrValidationFailed)
	require.Zero(t, gw.count("create"))
	require.NotEmpty(t, s.State().Error)
	require.False(t, s.State().Loading)
}

func TestOrdersStore_GetByID_SetsSelected(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)
	gw.getFn = func(id int64) (domain.Order, error) { return acme(id), nil }

	require.NoError(t, waitCall(t, s.GetByID(context.Background(), 4)))

	st := s.State()
	require.NotNil(t, st.SelectedOrder)
	require.Equal(t, int64(4), st.SelectedOrder.ID)
	require.False(t, st.Loading)
}

func TestOrdersStore_GetByID_NotFoundClearsSelected(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)
	gw.getFn = func(id int64) (domain.Order, error) { return acme(id), nil }
	require.NoError(t, waitCall(t, s.GetByID(context.Background(), 4)))

	gw.getFn = func(int64) (domain.Order, error) {
		return domain.Order{}, domain.NewGatewayError(domain.KindNotFound, 404, "The requested resource does not exist.")
	}
	err := waitCall(t, s.GetByID(context.Background(), 99))
	require.ErrorIs(t, err, domain.ErrNotFound)

	st := s.State()
	require.Nil(t, st.SelectedOrder)
	require.Equal(t, "The requested resource does not exist.", st.Error)
	require.False(t, st.Loading)
}

func TestOrdersStore_InvalidIDSkipsNetwork(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)

	require.ErrorIs(t, waitCall(t, s.GetByID(context.Background(), 0)), domain.ErrInvalidOrderID)
	require.ErrorIs(t, waitCall(t, s.Delete(context.Background(), -3)), domain.ErrInvalidOrderID)

	require.Zero(t, gw.count("get"))
	require.Zero(t, gw.count("delete"))
	require.Equal(t, domain.ErrInvalidOrderID.Error(), s.State().Error)
}

func TestOrdersStore_Update_ReplacesOnlyMatch(t *testing.T) {
	gw := newFakeGateway()
	nav := &recordingNavigator{}
	s := newTestStore(gw, nav)
	seed(t, s, gw, acme(1), acme(2), acme(3))
	gw.getFn = func(id int64) (domain.Order, error) { return acme(id), nil }
	require.NoError(t, waitCall(t, s.GetByID(context.Background(), 2)))

	gw.updateFn = func(in domain.UpdateOrder) (domain.Order, error) {
		return in.Patch().Apply(domain.Order{ID: in.ID}), nil
	}
	upd := domain.UpdateOrder{ID: 2, Customer: "Beta", NbDays: 2, Tjm: 100, TauxTva: 0}
	require.NoError(t, waitCall(t, s.Update(context.Background(), upd, domain.RouteOrders)))

	st := s.State()
	require.Equal(t, acme(1), st.Orders[0])
	require.Equal(t, "Beta", st.Orders[1].Customer)
	require.Equal(t, 200.0, st.Orders[1].TotalTtc)
	require.Equal(t, acme(3), st.Orders[2])
	require.Equal(t, "Beta", st.SelectedOrder.Customer)
	require.Equal(t, []string{domain.RouteOrders}, nav.all())
}

func TestOrdersStore_Update_KeepsUnrelatedSelected(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)
	seed(t, s, gw, acme(1), acme(2))
	gw.getFn = func(id int64) (domain.Order, error) { return acme(id), nil }
	require.NoError(t, waitCall(t, s.GetByID(context.Background(), 1)))

	gw.updateFn = func(in domain.UpdateOrder) (domain.Order, error) {
		return in.Patch().Apply(domain.Order{ID: in.ID}), nil
	}
	require.NoError(t, waitCall(t, s.Update(context.Background(), domain.UpdateOrder{ID: 2, Customer: "B", NbDays: 1, Tjm: 1}, "")))

	require.Equal(t, acme(1), *s.State().SelectedOrder)
}

func TestOrdersStore_Update_FailureLeavesState(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)
	seed(t, s, gw, acme(1))
	before := s.State()

	gw.updateFn = func(domain.UpdateOrder) (domain.Order, error) {
		return domain.Order{}, domain.NewGatewayError(domain.KindServerError, 500, "Server error. Please try again later.")
	}
	err := waitCall(t, s.Update(context.Background(), domain.UpdateOrder{ID: 1, Customer: "Z", NbDays: 1, Tjm: 1}, domain.RouteOrders))
	require.Error(t, err)

	st := s.State()
	require.Equal(t, before.Orders, st.Orders)
	require.Equal(t, before.SelectedOrder, st.SelectedOrder)
	require.Equal(t, "Server error. Please try again later.", st.Error)
	require.False(t, st.Loading)
}

func TestOrdersStore_Delete_RemovesEverywhere(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)
	seed(t, s, gw, acme(1), acme(2))
	gw.getFn = func(id int64) (domain.Order, error) { return acme(id), nil }
	require.NoError(t, waitCall(t, s.GetByID(context.Background(), 2)))

	require.NoError(t, waitCall(t, s.Delete(context.Background(), 2)))

	st := s.State()
	require.Equal(t, []domain.Order{acme(1)}, st.Orders)
	require.Nil(t, st.SelectedOrder)
	_, found := st.FindOrderByID(2)
	require.False(t, found)
}

func TestOrdersStore_Delete_FailureKeepsOrder(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)
	seed(t, s, gw, acme(1))
	gw.deleteFn = func(int64) error {
		return domain.NewGatewayError(domain.KindNetworkUnreachable, 0, "Unable to reach the server. Check your connection.")
	}

	require.ErrorIs(t, waitCall(t, s.Delete(context.Background(), 1)), domain.ErrNetworkUnreachable)
	require.Len(t, s.State().Orders, 1)
}

func TestOrdersStore_Delete_CollapsesAcrossIDs(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)
	seed(t, s, gw, acme(1), acme(2))
	gate := gw.blocking()

	first := s.Delete(context.Background(), 1)
	second := s.Delete(context.Background(), 2)
	require.False(t, first.Collapsed())
	require.True(t, second.Collapsed())
	require.Equal(t, KindDelete, second.Kind())

	close(gate)
	require.NoError(t, waitCall(t, first))
	require.NoError(t, waitCall(t, second))

	require.Equal(t, 1, gw.count("delete"))
	require.Equal(t, []domain.Order{acme(2)}, s.State().Orders)
}

func TestOrdersStore_LoadingStaysWhileAnotherKindInFlight(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)

	listGate := make(chan struct{})
	gw.listFn = func() ([]domain.Order, error) {
		<-listGate
		return []domain.Order{acme(1)}, nil
	}
	gw.getFn = func(id int64) (domain.Order, error) { return acme(id), nil }

	load := s.LoadAll(context.Background())
	require.NoError(t, waitCall(t, s.GetByID(context.Background(), 5)))
	require.True(t, s.State().Loading)

	close(listGate)
	require.NoError(t, waitCall(t, load))
	require.False(t, s.State().Loading)
}

func TestOrdersStore_CallerCancelDoesNotAbortRequest(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)
	gate := gw.blocking()
	gw.listFn = func() ([]domain.Order, error) { return []domain.Order{acme(1)}, nil }

	ctx, cancel := context.WithCancel(context.Background())
	call := s.LoadAll(ctx)
	cancel()
	require.ErrorIs(t, call.Wait(ctx), context.Canceled)

	close(gate)
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer drainCancel()
	require.NoError(t, s.Drain(drainCtx))

	require.NoError(t, call.Err())
	require.Len(t, s.State().Orders, 1)
	gw.mu.Lock()
	require.NoError(t, gw.ctxs[0].Err())
	gw.mu.Unlock()
}

func TestOrdersStore_SubscribeReceivesSnapshots(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)
	updates, cancel := s.Subscribe()
	defer cancel()

	initial := <-updates
	require.False(t, initial.Loading)

	seed(t, s, gw, acme(1))

	latest := <-updates
	require.False(t, latest.Loading)
	require.Len(t, latest.Orders, 1)

	latest.Orders[0].Customer = "mutated"
	require.Equal(t, "Acme", s.State().Orders[0].Customer)
}

func TestOrdersStore_SubscribeCancelClosesChannel(t *testing.T) {
	s := newTestStore(newFakeGateway(), nil)
	updates, cancel := s.Subscribe()
	<-updates
	cancel()
	cancel()

	_, ok := <-updates
	require.False(t, ok)
	s.ClearError()
}

func TestOrdersStore_ClearHelpers(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(gw, nil)
	gw.getFn = func(id int64) (domain.Order, error) { return acme(id), nil }
	require.NoError(t, waitCall(t, s.GetByID(context.Background(), 1)))
	gw.listFn = func() ([]domain.Order, error) { return nil, errors.New("boom") }
	_ = waitCall(t, s.LoadAll(context.Background()))

	s.ClearError()
	s.ClearSelectedOrder()

	st := s.State()
	require.Empty(t, st.Error)
	require.Nil(t, st.SelectedOrder)
}

type countingRecorder struct {
	mu        sync.Mutex
	started   map[string]int
	collapsed map[string]int
	failed    map[string]int
}

func (r *countingRecorder) ObserveStarted(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started[kind]++
}

func (r *countingRecorder) ObserveCollapsed(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collapsed[kind]++
}

func (r *countingRecorder) ObserveFinished(kind string, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed[kind]++
	}
}

func TestOrdersStore_RecorderObservesOperations(t *testing.T) {
	gw := newFakeGateway()
	rec := &countingRecorder{started: map[string]int{}, collapsed: map[string]int{}, failed: map[string]int{}}
	s := New(gw, WithLogger(testLogger()), WithRecorder(rec))
	gate := gw.blocking()
	gw.deleteFn = func(int64) error { return errors.New("boom") }

	first := s.Delete(context.Background(), 1)
	second := s.Delete(context.Background(), 1)
	close(gate)
	_ = waitCall(t, first)
	_ = waitCall(t, second)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, 1, rec.started[string(KindDelete)])
	require.Equal(t, 1, rec.collapsed[string(KindDelete)])
	require.Equal(t, 1, rec.failed[string(KindDelete)])
}
