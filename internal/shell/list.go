package shell

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
	"github.com/vladislavdragonenkov/minicrm/internal/store"
)

type listView struct {
	cursor int
}

func (v *listView) clampCursor(n int) {
	switch {
	case n == 0:
		v.cursor = 0
	case v.cursor >= n:
		v.cursor = n - 1
	case v.cursor < 0:
		v.cursor = 0
	}
}

func (m Model) selectedOrder() (domain.Order, bool) {
	orders := m.state.Orders
	if m.list.cursor < 0 || m.list.cursor >= len(orders) {
		return domain.Order{}, false
	}
	return orders[m.list.cursor], true
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.list.cursor > 0 {
			m.list.cursor--
		}
	case "down", "j":
		if m.list.cursor < len(m.state.Orders)-1 {
			m.list.cursor++
		}
	case "r":
		m.orders.LoadAll(m.ctx)
	case "a":
		m.navigate(domain.RouteOrdersAdd)
	case "e", "enter":
		if order, ok := m.selectedOrder(); ok {
			m.navigate(domain.OrderEditRoute(order.ID))
		}
	case "d":
		if order, ok := m.selectedOrder(); ok {
			m.orders.Delete(m.ctx, order.ID)
		}
	case "l":
		m.auth.Logout()
		m.syncRoute()
	case "esc":
		m.orders.ClearError()
	}
	return m, nil
}

func (v listView) render(b *strings.Builder, st store.OrdersState) {
	b.WriteString("Orders\n\n")
	if st.IsEmpty() {
		b.WriteString("  No orders yet. Press a to add one.\n")
	} else {
		fmt.Fprintf(b, "   %-4s %-24s %6s %10s %6s %12s %12s\n", "ID", "Customer", "Days", "TJM", "VAT%", "Total HT", "Total TTC")
		for i, o := range st.Orders {
			marker := " "
			if i == v.cursor {
				marker = ">"
			}
			fmt.Fprintf(b, " %s %-4d %-24s %6d %10.2f %6.2f %12.2f %12.2f\n",
				marker, o.ID, truncate(o.Customer, 24), o.NbDays, o.Tjm, o.TauxTva, o.TotalHt, o.TotalTtc)
		}
	}

	fmt.Fprintf(b, "\n%d orders, revenue HT %.2f, TTC %.2f\n", st.OrdersCount(), st.TotalRevenueHt(), st.TotalRevenue())
	if st.Loading {
		b.WriteString("Loading...\n")
	}
	if st.HasError() {
		fmt.Fprintf(b, "Error: %s (esc to dismiss)\n", st.Error)
	}
	b.WriteString("\nControls: up/down select, r reload, a add, e edit, d delete, l logout, q quit\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
