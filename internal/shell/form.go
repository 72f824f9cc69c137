package shell

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
	"github.com/vladislavdragonenkov/minicrm/internal/store"
)

const (
	fieldCustomer = iota
	fieldNbDays
	fieldTjm
	fieldTauxTva
	fieldCount
)

// formView — форма добавления (id == 0) или редактирования заказа.
type formView struct {
	id        int64
	fields    [fieldCount]field
	focus     focusRing
	filled    bool
	submitted bool
	err       string
}

func newFormView(id int64) formView {
	return formView{
		id: id,
		fields: [fieldCount]field{
			{label: "Customer"},
			{label: "Days"},
			{label: "TJM"},
			{label: "VAT %", value: "20"},
		},
		focus: focusRing{size: fieldCount},
	}
}

func (v *formView) fill(o domain.Order) {
	v.fields[fieldCustomer].value = o.Customer
	v.fields[fieldNbDays].value = strconv.Itoa(o.NbDays)
	v.fields[fieldTjm].value = strconv.FormatFloat(o.Tjm, 'f', -1, 64)
	v.fields[fieldTauxTva].value = strconv.FormatFloat(o.TauxTva, 'f', -1, 64)
	v.filled = true
}

// parse читает поля формы; ошибки разбора чисел собираются вместе.
func (v formView) parse() (domain.CreateOrder, error) {
	var errs []error
	nbDays, err := strconv.Atoi(strings.TrimSpace(v.fields[fieldNbDays].value))
	if err != nil {
		errs = append(errs, errors.New("days must be a whole number"))
	}
	tjm, err := parseDecimal(v.fields[fieldTjm].value)
	if err != nil {
		errs = append(errs, errors.New("TJM must be a number"))
	}
	tva, err := parseDecimal(v.fields[fieldTauxTva].value)
	if err != nil {
		errs = append(errs, errors.New("VAT must be a number"))
	}
	if len(errs) > 0 {
		return domain.CreateOrder{}, errors.Join(errs...)
	}

	in := domain.CreateOrder{
		Customer: strings.TrimSpace(v.fields[fieldCustomer].value),
		NbDays:   nbDays,
		Tjm:      tjm,
		TauxTva:  tva,
	}
	return in, in.Validate()
}

// parseDecimal принимает и запятую как десятичный разделитель.
func parseDecimal(raw string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."), 64)
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := &m.form
	switch msg.String() {
	case "tab", "down":
		v.focus.next()
	case "shift+tab", "up":
		v.focus.prev()
	case "esc":
		m.orders.ClearSelectedOrder()
		m.orders.ClearError()
		m.navigate(domain.RouteOrders)
	case "enter":
		in, err := v.parse()
		if err != nil {
			v.err = strings.ReplaceAll(err.Error(), "\n", "; ")
			return m, nil
		}
		v.err = ""
		v.submitted = true
		if v.id == 0 {
			m.orders.Create(m.ctx, in, domain.RouteOrders)
		} else {
			m.orders.Update(m.ctx, domain.UpdateOrder{
				ID:       v.id,
				Customer: in.Customer,
				NbDays:   in.NbDays,
				Tjm:      in.Tjm,
				TauxTva:  in.TauxTva,
			}, domain.RouteOrders)
		}
	default:
		v.fields[v.focus.index].handle(msg)
	}
	return m, nil
}

func (v formView) render(b *strings.Builder, st store.OrdersState) {
	if v.id == 0 {
		b.WriteString("New order\n\n")
	} else {
		fmt.Fprintf(b, "Edit order #%d\n\n", v.id)
	}
	if v.id != 0 && !v.filled && st.Loading {
		b.WriteString("Loading order...\n")
		return
	}

	for i, f := range v.fields {
		f.render(b, v.focus.index == i)
	}
	if in, err := v.parse(); err == nil {
		ht, ttc := domain.ComputeTotals(in.NbDays, in.Tjm, in.TauxTva)
		fmt.Fprintf(b, "\n  Total HT %.2f, TTC %.2f\n", ht, ttc)
	}

	b.WriteString("\n")
	switch {
	case v.err != "":
		fmt.Fprintf(b, "Error: %s\n", v.err)
	case st.HasError():
		fmt.Fprintf(b, "Error: %s\n", st.Error)
	case st.Loading && v.submitted:
		b.WriteString("Saving...\n")
	}
	b.WriteString("\nControls: tab next field, enter save, esc back to list\n")
}
