// internal/model/order.go
package model

import "time"

type Order struct {
	ID         int       `db:"id" json:"id"`
	CustomerID int       `db:"customer_id" json:"customer_id"`
	Amount     float64   `db:"amount" json:"amount"`
	OrderDate  time.Time `db:"order_date" json:"order_date"`
	Status     string    `db:"status" json:"status"` // completed, cancelled
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
