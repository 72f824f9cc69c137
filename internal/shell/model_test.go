package shell

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
	"github.com/vladislavdragonenkov/minicrm/internal/navigation"
	"github.com/vladislavdragonenkov/minicrm/internal/store"
)

type fakeGateway struct {
	mu     sync.Mutex
	orders map[int64]domain.Order
	nextID int64
}

func newFakeGateway(seed ...domain.Order) *fakeGateway {
	g := &fakeGateway{orders: map[int64]domain.Order{}, nextID: 1}
	for _, o := range seed {
		g.orders[o.ID] = o.WithTotals()
		if o.ID >= g.nextID {
			g.nextID = o.ID + 1
		}
	}
	return g
}

func (g *fakeGateway) ListOrders(context.Context) ([]domain.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.Order, 0, len(g.orders))
	for id := int64(1); id < g.nextID; id++ {
		if o, ok := g.orders[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (g *fakeGateway) GetOrder(_ context.Context, id int64) (domain.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	if !ok {
		return domain.Order{}, domain.NewGatewayError(domain.KindNotFound, 404, "Order not found")
	}
	return o, nil
}

func (g *fakeGateway) CreateOrder(_ context.Context, in domain.CreateOrder) (domain.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o := domain.NewOrder(in)
	o.ID = g.nextID
	g.nextID++
	g.orders[o.ID] = o
	return o, nil
}

func (g *fakeGateway) UpdateOrder(_ context.Context, in domain.UpdateOrder) (domain.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.orders[in.ID]; !ok {
		return domain.Order{}, domain.NewGatewayError(domain.KindNotFound, 404, "Order not found")
	}
	o := in.Patch().Apply(domain.Order{ID: in.ID})
	g.orders[in.ID] = o
	return o, nil
}

func (g *fakeGateway) DeleteOrder(_ context.Context, id int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.orders, id)
	return nil
}

type fakeAuth struct {
	nav       domain.Navigator
	signedIn  bool
	err       error
	lastCreds domain.Credentials
	signUps   int
}

func (a *fakeAuth) IsAuthenticated() bool { return a.signedIn }

func (a *fakeAuth) SignIn(_ context.Context, creds domain.Credentials) (domain.User, error) {
	a.lastCreds = creds
	if a.err != nil {
		return domain.User{}, a.err
	}
	a.signedIn = true
	a.nav.Navigate(domain.RouteOrders)
	return domain.User{ID: 1, Email: creds.Email}, nil
}

func (a *fakeAuth) SignUp(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	a.signUps++
	return a.SignIn(ctx, creds)
}

func (a *fakeAuth) Logout() {
	a.signedIn = false
	a.nav.Navigate(domain.RouteSignIn)
}

type harness struct {
	t       *testing.T
	model   Model
	orders  *store.OrdersStore
	gateway *fakeGateway
	auth    *fakeAuth
	router  *navigation.Router
}

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "shell-test")
}

func newHarness(t *testing.T, signedIn bool, seed ...domain.Order) *harness {
	t.Helper()
	h := &harness{t: t, gateway: newFakeGateway(seed...), auth: &fakeAuth{signedIn: signedIn}}

	initial := domain.RouteSignIn
	if signedIn {
		initial = domain.RouteOrders
	}
	guard := navigation.Guard(guardFunc(func(string) (string, bool) {
		if h.auth.signedIn {
			return "", true
		}
		return domain.RouteSignIn, false
	}))
	h.router = navigation.New(initial, navigation.WithGuard(domain.RouteOrders, guard), navigation.WithLogger(quietLogger()))
	h.auth.nav = h.router
	h.orders = store.New(h.gateway, store.WithNavigator(h.router), store.WithLogger(quietLogger()))

	h.model = New(context.Background(), h.orders, h.auth, h.router, nil)
	h.send(routeMsg(h.router.Current()))
	h.settle()
	return h
}

type guardFunc func(string) (string, bool)

func (f guardFunc) CanActivate(path string) (string, bool) { return f(path) }

func (h *harness) send(msg tea.Msg) tea.Cmd {
	h.t.Helper()
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

// settle дожидается запросов store и доставляет модели финальные состояние и маршрут.
func (h *harness) settle() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(h.t, h.orders.Drain(ctx))
	h.send(stateMsg(h.orders.State()))
	h.send(routeMsg(h.router.Current()))
	require.NoError(h.t, h.orders.Drain(ctx))
	h.send(stateMsg(h.orders.State()))
}

func (h *harness) typeText(s string) {
	for _, r := range s {
		h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func (h *harness) press(t tea.KeyType) tea.Cmd {
	return h.send(tea.KeyMsg{Type: t})
}

func TestModel_ListShowsOrdersAndTotals(t *testing.T) {
	h := newHarness(t, true,
		domain.Order{ID: 1, Customer: "Acme", NbDays: 5, Tjm: 500, TauxTva: 20},
		domain.Order{ID: 2, Customer: "Globex", NbDays: 1, Tjm: 100, TauxTva: 0},
	)

	view := h.model.View()
	require.Contains(t, view, "Acme")
	require.Contains(t, view, "Globex")
	require.Contains(t, view, "2 orders, revenue HT 2600.00, TTC 3100.00")
}

func TestModel_EmptyList(t *testing.T) {
	h := newHarness(t, true)
	require.Contains(t, h.model.View(), "No orders yet")
}

func TestModel_SignInNavigatesToOrders(t *testing.T) {
	h := newHarness(t, false, domain.Order{ID: 1, Customer: "Acme", NbDays: 1, Tjm: 100, TauxTva: 20})
	require.Contains(t, h.model.View(), "Sign in")

	h.typeText("ada@example.com")
	h.press(tea.KeyTab)
	h.typeText("secret")
	require.Contains(t, h.model.View(), "******")

	cmd := h.press(tea.KeyEnter)
	require.NotNil(t, cmd)
	h.send(cmd())
	h.settle()

	require.Equal(t, domain.Credentials{Email: "ada@example.com", Password: "secret"}, h.auth.lastCreds)
	require.Equal(t, domain.RouteOrders, h.model.route)
	require.Contains(t, h.model.View(), "Acme")
}

func TestModel_SignInErrorIsShown(t *testing.T) {
	h := newHarness(t, false)
	h.auth.err = domain.NewGatewayError(domain.KindValidationFailed, 400, "Incorrect email or password")

	cmd := h.press(tea.KeyEnter)
	h.send(cmd())

	require.Equal(t, domain.RouteSignIn, h.model.route)
	require.Contains(t, h.model.View(), "Error: Incorrect email or password")
}

func TestModel_SignUpToggle(t *testing.T) {
	h := newHarness(t, false)
	h.send(tea.KeyMsg{Type: tea.KeyCtrlN})
	require.Equal(t, domain.RouteSignUp, h.model.route)
	require.Contains(t, h.model.View(), "Sign up")

	h.typeText("new@example.com")
	h.press(tea.KeyTab)
	h.typeText("secret")
	cmd := h.press(tea.KeyEnter)
	h.send(cmd())
	require.Equal(t, 1, h.auth.signUps)
}

func TestModel_AddOrderRedirectsToList(t *testing.T) {
	h := newHarness(t, true)

	h.typeText("a")
	require.Equal(t, domain.RouteOrdersAdd, h.model.route)
	require.Contains(t, h.model.View(), "New order")

	h.typeText("Initech")
	h.press(tea.KeyTab)
	h.typeText("3")
	h.press(tea.KeyTab)
	h.typeText("250")
	require.Contains(t, h.model.View(), "Total HT 750.00, TTC 900.00")

	h.press(tea.KeyEnter)
	h.settle()

	require.Equal(t, domain.RouteOrders, h.model.route)
	require.Len(t, h.orders.State().Orders, 1)
	require.Contains(t, h.model.View(), "Initech")
}

func TestModel_AddOrderParseError(t *testing.T) {
	h := newHarness(t, true)
	h.typeText("a")
	h.typeText("Initech")
	h.press(tea.KeyTab)
	h.typeText("three")

	h.press(tea.KeyEnter)
	require.Equal(t, domain.RouteOrdersAdd, h.model.route)
	require.Contains(t, h.model.View(), "days must be a whole number")
	require.Empty(t, h.orders.State().Orders)
}

func TestModel_EditPrefillsAndSaves(t *testing.T) {
	h := newHarness(t, true, domain.Order{ID: 1, Customer: "Acme", NbDays: 5, Tjm: 500, TauxTva: 20})

	h.typeText("e")
	h.settle()
	require.Equal(t, domain.OrderEditRoute(1), h.model.route)
	require.True(t, h.model.form.filled)
	require.Equal(t, "5", h.model.form.fields[fieldNbDays].value)

	h.press(tea.KeyTab)
	h.press(tea.KeyBackspace)
	h.typeText("10")
	h.press(tea.KeyEnter)
	h.settle()

	require.Equal(t, domain.RouteOrders, h.model.route)
	order, ok := h.orders.FindOrderByID(1)
	require.True(t, ok)
	require.Equal(t, 10, order.NbDays)
	require.Equal(t, 6000.0, order.TotalTtc)
}

func TestModel_EditInvalidIDReturnsToList(t *testing.T) {
	h := newHarness(t, true)
	h.router.Navigate("/orders/edit/abc")
	h.send(routeMsg(h.router.Current()))

	require.Equal(t, domain.RouteOrders, h.model.route)
	require.Equal(t, domain.RouteOrders, h.router.Current())
}

func TestModel_EditNotFoundReturnsToList(t *testing.T) {
	h := newHarness(t, true)
	h.router.Navigate(domain.OrderEditRoute(99))
	h.send(routeMsg(h.router.Current()))
	h.settle()

	require.Equal(t, domain.RouteOrders, h.model.route)
	require.Nil(t, h.orders.State().SelectedOrder)
}

func TestModel_DeleteSelectedOrder(t *testing.T) {
	h := newHarness(t, true,
		domain.Order{ID: 1, Customer: "Acme", NbDays: 1, Tjm: 100},
		domain.Order{ID: 2, Customer: "Globex", NbDays: 1, Tjm: 100},
	)

	h.press(tea.KeyDown)
	h.typeText("d")
	h.settle()

	orders := h.orders.State().Orders
	require.Len(t, orders, 1)
	require.Equal(t, int64(1), orders[0].ID)
	require.Equal(t, 0, h.model.list.cursor)
}

func TestModel_LogoutAndGuard(t *testing.T) {
	h := newHarness(t, true)
	h.typeText("l")
	require.Equal(t, domain.RouteSignIn, h.model.route)

	h.router.Navigate(domain.RouteOrders)
	h.send(routeMsg(h.router.Current()))
	require.Equal(t, domain.RouteSignIn, h.model.route)
}

func TestModel_QuitKeys(t *testing.T) {
	h := newHarness(t, true)
	cmd := h.send(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}
