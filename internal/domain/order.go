package domain

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Order описывает заказ клиента в mini-crm: количество дней по дневной ставке (TJM) и НДС.
// Значения неизменяемы на клиенте: обновление заменяет заказ целиком.
type Order struct {
	// ID присваивается сервером и не меняется.
	ID       int64  `json:"id"`
	Customer string `json:"customer"`
	NbDays   int    `json:"nbDays"`
	// Tjm — дневная ставка (taux journalier moyen).
	Tjm float64 `json:"tjm"`
	// TauxTva — ставка НДС в процентах, 0..100.
	TauxTva float64 `json:"tauxTva"`
	// TotalHt и TotalTtc вычисляет сервер.
	TotalHt  float64 `json:"totalHt"`
	TotalTtc float64 `json:"totalTtc"`
}

// CreateOrder — данные нового заказа без идентификатора и итогов.
type CreateOrder struct {
	Customer string  `json:"customer"`
	NbDays   int     `json:"nbDays"`
	Tjm      float64 `json:"tjm"`
	TauxTva  float64 `json:"tauxTva"`
}

// UpdateOrder — заказ с идентификатором, но без итогов.
type UpdateOrder struct {
	ID       int64   `json:"id"`
	Customer string  `json:"customer"`
	NbDays   int     `json:"nbDays"`
	Tjm      float64 `json:"tjm"`
	TauxTva  float64 `json:"tauxTva"`
}

// OrderPatch — частичное обновление для PATCH /orders/:id. nil означает "поле не менялось".
type OrderPatch struct {
	Customer *string  `json:"customer,omitempty"`
	NbDays   *int     `json:"nbDays,omitempty"`
	Tjm      *float64 `json:"tjm,omitempty"`
	TauxTva  *float64 `json:"tauxTva,omitempty"`
}

// Validate проверяет поля нового заказа.
func (c CreateOrder) Validate() error {
	return validateFields(c.Customer, c.NbDays, c.Tjm, c.TauxTva)
}

// Validate проверяет идентификатор и поля обновления.
func (u UpdateOrder) Validate() error {
	var errs []error
	if u.ID <= 0 {
		errs = append(errs, ErrInvalidOrderID)
	}
	var verr *ValidationError
	if err := validateFields(u.Customer, u.NbDays, u.Tjm, u.TauxTva); errors.As(err, &verr) {
		errs = append(errs, verr.Errs...)
	}
	return newValidationError(errs)
}

// Patch превращает обновление в набор полей для PATCH.
func (u UpdateOrder) Patch() OrderPatch {
	customer, nbDays, tjm, tva := u.Customer, u.NbDays, u.Tjm, u.TauxTva
	return OrderPatch{Customer: &customer, NbDays: &nbDays, Tjm: &tjm, TauxTva: &tva}
}

// Apply накладывает patch на заказ и пересчитывает итоги.
func (p OrderPatch) Apply(order Order) Order {
	if p.Customer != nil {
		order.Customer = *p.Customer
	}
	if p.NbDays != nil {
		order.NbDays = *p.NbDays
	}
	if p.Tjm != nil {
		order.Tjm = *p.Tjm
	}
	if p.TauxTva != nil {
		order.TauxTva = *p.TauxTva
	}
	return order.WithTotals()
}

// NewOrder собирает заказ из входных данных и считает итоги. ID назначает хранилище.
func NewOrder(in CreateOrder) Order {
	return Order{
		Customer: strings.TrimSpace(in.Customer),
		NbDays:   in.NbDays,
		Tjm:      in.Tjm,
		TauxTva:  in.TauxTva,
	}.WithTotals()
}

// Validate проверяет инварианты сохранённого заказа.
func (o Order) Validate() error {
	return validateFields(o.Customer, o.NbDays, o.Tjm, o.TauxTva)
}

// WithTotals возвращает копию заказа с пересчитанными TotalHt и TotalTtc.
func (o Order) WithTotals() Order {
	o.TotalHt, o.TotalTtc = ComputeTotals(o.NbDays, o.Tjm, o.TauxTva)
	return o
}

// ComputeTotals считает totalHt = nbDays*tjm и totalTtc = totalHt*(1+tauxTva/100).
// Округление до центов, half-up. Для NaN и бесконечностей возвращает нули:
// такие значения отсекает Validate.
func ComputeTotals(nbDays int, tjm, tauxTva float64) (totalHt, totalTtc float64) {
	if !isFinite(tjm) || !isFinite(tauxTva) {
		return 0, 0
	}
	ht := decimal.NewFromInt(int64(nbDays)).Mul(decimal.NewFromFloat(tjm))
	rate := decimal.NewFromFloat(tauxTva).Div(decimal.NewFromInt(100))
	ttc := ht.Mul(decimal.NewFromInt(1).Add(rate))

	totalHt, _ = ht.Round(2).Float64()
	totalTtc, _ = ttc.Round(2).Float64()
	return totalHt, totalTtc
}

func validateFields(customer string, nbDays int, tjm, tauxTva float64) error {
	var errs []error
	if strings.TrimSpace(customer) == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if nbDays <= 0 {
		errs = append(errs, ErrNbDaysInvalid)
	}
	if !isFinite(tjm) || tjm <= 0 {
		errs = append(errs, ErrTjmInvalid)
	}
	if !isFinite(tauxTva) || tauxTva < 0 || tauxTva > 100 {
		errs = append(errs, ErrTauxTvaInvalid)
	}
	if len(errs) == 0 {
		// Итоги должны помещаться в float64, иначе JSON-ответ не сериализуется.
		if ht, ttc := ComputeTotals(nbDays, tjm, tauxTva); !isFinite(ht) || !isFinite(ttc) {
			errs = append(errs, ErrTotalsOverflow)
		}
	}
	return newValidationError(errs)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
