// Package shell — консольный интерфейс mini-crm на bubbletea: вход, список заказов и форма.
// Все изменения состояния идут через OrdersStore, модель только отображает снимки.
package shell

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
	"github.com/vladislavdragonenkov/minicrm/internal/store"
)

// OrdersStore — операции store, которые вызывает интерфейс.
type OrdersStore interface {
	LoadAll(ctx context.Context) *store.Call
	GetByID(ctx context.Context, id int64) *store.Call
	Create(ctx context.Context, order domain.CreateOrder, redirectTo string) *store.Call
	Update(ctx context.Context, order domain.UpdateOrder, redirectTo string) *store.Call
	Delete(ctx context.Context, id int64) *store.Call
	ClearError()
	ClearSelectedOrder()
	State() store.OrdersState
}

// Authenticator — вход, регистрация и выход.
type Authenticator interface {
	SignIn(ctx context.Context, creds domain.Credentials) (domain.User, error)
	SignUp(ctx context.Context, creds domain.Credentials) (domain.User, error)
	Logout()
}

// Router — текущий маршрут и поток его изменений.
type Router interface {
	domain.Navigator
	Current() string
	Changes() <-chan string
}

type stateMsg store.OrdersState

type routeMsg string

type authDoneMsg struct {
	err error
}

// Model — корневая модель bubbletea.
type Model struct {
	ctx    context.Context
	orders OrdersStore
	auth   Authenticator
	router Router
	states <-chan store.OrdersState

	route string
	state store.OrdersState

	signIn signInView
	list   listView
	form   formView
}

// New создаёт модель. states приходит из OrdersStore.Subscribe.
func New(ctx context.Context, orders OrdersStore, auth Authenticator, router Router, states <-chan store.OrdersState) Model {
	return Model{
		ctx:    ctx,
		orders: orders,
		auth:   auth,
		router: router,
		states: states,
		state:  orders.State(),
		signIn: newSignInView(),
	}
}

// Init открывает начальный маршрут и подписывается на состояние и маршруты.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForState(), m.waitForRoute(), func() tea.Msg {
		return routeMsg(m.router.Current())
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m.handleKey(msg)

	case stateMsg:
		m.state = store.OrdersState(msg)
		m.onState()
		return m, m.waitForState()

	case routeMsg:
		m.enter(string(msg))
		return m, m.waitForRoute()

	case authDoneMsg:
		m.signIn.busy = false
		if msg.err != nil {
			m.signIn.err = domain.ErrorMessage(msg.err)
		} else {
			m.signIn.reset()
		}
		m.syncRoute()
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case isSignInRoute(m.route):
		return m.updateSignIn(msg)
	case m.route == domain.RouteOrders:
		return m.updateList(msg)
	case m.route == domain.RouteOrdersAdd || isEditRoute(m.route):
		return m.updateForm(msg)
	}
	if msg.String() == "q" {
		return m, tea.Quit
	}
	return m, nil
}

// enter выполняет действия при открытии маршрута. Повторный вход в текущий маршрут игнорируется.
func (m *Model) enter(route string) {
	if route == "" || route == m.route {
		return
	}
	m.route = route

	switch {
	case route == domain.RouteOrders:
		m.list.clampCursor(len(m.state.Orders))
		m.orders.LoadAll(m.ctx)
	case route == domain.RouteOrdersAdd:
		m.form = newFormView(0)
	case isEditRoute(route):
		id, _ := domain.ParseOrderEditRoute(route)
		if id <= 0 {
			m.navigate(domain.RouteOrders)
			return
		}
		m.form = newFormView(id)
		if order, ok := m.orders.State().FindOrderByID(id); ok {
			m.form.fill(order)
		}
		m.orders.GetByID(m.ctx, id)
	case route == domain.RouteSignUp:
		m.signIn.signUp = true
	case route == domain.RouteSignIn:
		m.signIn.signUp = false
	}
}

// onState реагирует на новый снимок: форма редактирования заполняется загруженным
// заказом, а ошибка загрузки возвращает к списку.
func (m *Model) onState() {
	if m.route == domain.RouteOrders {
		m.list.clampCursor(len(m.state.Orders))
	}
	if !isEditRoute(m.route) {
		return
	}
	// Снимок из канала мог устареть: решение принимается по текущему состоянию store.
	current := m.orders.State()
	selected := current.SelectedOrder
	switch {
	case selected != nil && selected.ID == m.form.id && !m.form.filled:
		m.form.fill(*selected)
	case selected == nil && current.HasError() && !current.Loading && !m.form.submitted:
		m.navigate(domain.RouteOrders)
	}
}

func (m *Model) navigate(route string) {
	m.router.Navigate(route)
	m.syncRoute()
}

// syncRoute применяет маршрут роутера сразу, не дожидаясь сообщения из Changes.
func (m *Model) syncRoute() {
	m.enter(m.router.Current())
}

func (m Model) waitForState() tea.Cmd {
	if m.states == nil {
		return nil
	}
	ch := m.states
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return stateMsg(st)
	}
}

func (m Model) waitForRoute() tea.Cmd {
	ch := m.router.Changes()
	return func() tea.Msg {
		route, ok := <-ch
		if !ok {
			return nil
		}
		return routeMsg(route)
	}
}

func (m Model) View() string {
	b := &strings.Builder{}
	b.WriteString("mini-crm\n\n")

	switch {
	case isSignInRoute(m.route):
		m.signIn.render(b)
	case m.route == domain.RouteOrders:
		m.list.render(b, m.state)
	case m.route == domain.RouteOrdersAdd || isEditRoute(m.route):
		m.form.render(b, m.state)
	case m.route == "":
		b.WriteString("Loading...\n")
	default:
		b.WriteString("Unknown route " + m.route + "\n")
	}
	return b.String()
}

func isSignInRoute(route string) bool {
	return route == domain.RouteSignIn || route == domain.RouteSignUp
}

func isEditRoute(route string) bool {
	_, ok := domain.ParseOrderEditRoute(route)
	return ok
}
