package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

const orderColumns = `id, customer, nb_days, tjm, taux_tva, total_ht, total_ttc`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) List() ([]domain.Order, error) {
	ctx, cancel := withTimeout()
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) Get(id int64) (domain.Order, error) {
	ctx, cancel := withTimeout()
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, err
}

// Create вставляет заказ; ID назначает BIGSERIAL.
func (r *orderRepository) Create(order domain.Order) (domain.Order, error) {
	ctx, cancel := withTimeout()
	defer cancel()

	now := time.Now().UTC()
	created, err := scanOrder(r.db.QueryRowContext(ctx, `
		INSERT INTO orders (customer, nb_days, tjm, taux_tva, total_ht, total_ttc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+orderColumns,
		order.Customer,
		order.NbDays,
		decimal.NewFromFloat(order.Tjm),
		decimal.NewFromFloat(order.TauxTva),
		decimal.NewFromFloat(order.TotalHt),
		decimal.NewFromFloat(order.TotalTtc),
		now,
	))
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return created, nil
}

func (r *orderRepository) Save(order domain.Order) error {
	ctx, cancel := withTimeout()
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET customer = $1,
		    nb_days = $2,
		    tjm = $3,
		    taux_tva = $4,
		    total_ht = $5,
		    total_ttc = $6,
		    updated_at = $7
		WHERE id = $8
	`,
		order.Customer,
		order.NbDays,
		decimal.NewFromFloat(order.Tjm),
		decimal.NewFromFloat(order.TauxTva),
		decimal.NewFromFloat(order.TotalHt),
		decimal.NewFromFloat(order.TotalTtc),
		time.Now().UTC(),
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return requireAffected(res, domain.ErrOrderNotFound)
}

func (r *orderRepository) Delete(id int64) error {
	ctx, cancel := withTimeout()
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return requireAffected(res, domain.ErrOrderNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order             domain.Order
		tjm, tva, ht, ttc decimal.Decimal
	)
	if err := row.Scan(&order.ID, &order.Customer, &order.NbDays, &tjm, &tva, &ht, &ttc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("scan order: %w", err)
	}
	order.Tjm = tjm.InexactFloat64()
	order.TauxTva = tva.InexactFloat64()
	order.TotalHt = ht.InexactFloat64()
	order.TotalTtc = ttc.InexactFloat64()
	return order, nil
}

func requireAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ domain.OrderRepository = (*orderRepository)(nil)
