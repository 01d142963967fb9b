package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/xeno-crm-backend/internal/model"
)

type OrderRepositoryInterface interface {
	Create(o *model.Order) error
	List(customerID, offset, limit int) ([]model.Order, int, error)
	AggregatesForCustomer(customerID int) (OrderAggregates, error)
}

// OrderAggregates summarizes a customer's completed orders.
type OrderAggregates struct {
	TotalSpend float64
	VisitCount int
	LastVisit  time.Time
}

type OrderRepository struct {
	DB *sql.DB
}

func (r *OrderRepository) Create(o *model.Order) error {
	if o.OrderDate.IsZero() {
		o.OrderDate = time.Now()
	}
	if o.Status == "" {
		o.Status = "completed"
	}
	query := `
        INSERT INTO orders (customer_id, amount, order_date, status)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `
	return r.DB.QueryRow(query, o.CustomerID, o.Amount, o.OrderDate, o.Status).
		Scan(&o.ID, &o.CreatedAt)
}

func (r *OrderRepository) List(customerID, offset, limit int) ([]model.Order, int, error) {
	query := `SELECT id, customer_id, amount, order_date, status, created_at FROM orders`
	countQuery := `SELECT COUNT(*) FROM orders`
	args := []interface{}{}
	countArgs := []interface{}{}
	if customerID > 0 {
		query += ` WHERE customer_id=$1 ORDER BY order_date DESC LIMIT $2 OFFSET $3`
		countQuery += ` WHERE customer_id=$1`
		args = append(args, customerID, limit, offset)
		countArgs = append(countArgs, customerID)
	} else {
		query += ` ORDER BY order_date DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Amount, &o.OrderDate, &o.Status, &o.CreatedAt); err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// AggregatesForCustomer sums completed orders: total amount, order count,
// most recent order date.
func (r *OrderRepository) AggregatesForCustomer(customerID int) (OrderAggregates, error) {
	query := `
        SELECT COALESCE(SUM(amount), 0), COUNT(*), MAX(order_date)
        FROM orders
        WHERE customer_id=$1 AND status='completed'
    `
	var agg OrderAggregates
	var last sql.NullTime
	if err := r.DB.QueryRow(query, customerID).Scan(&agg.TotalSpend, &agg.VisitCount, &last); err != nil {
		return OrderAggregates{}, err
	}
	if last.Valid {
		agg.LastVisit = last.Time
	}
	return agg, nil
}

var _ OrderRepositoryInterface = (*OrderRepository)(nil)
