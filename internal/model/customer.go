// internal/model/customer.go
package model

import "time"

type Customer struct {
	ID         int       `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email"`
	Phone      string    `db:"phone" json:"phone"`
	TotalSpend float64   `db:"total_spend" json:"total_spend"`
	VisitCount int       `db:"visit_count" json:"visit_count"`
	LastVisit  time.Time `db:"last_visit" json:"last_visit"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DaysSinceLastVisit is derived at query time and never stored.
func (c *Customer) DaysSinceLastVisit(now time.Time) float64 {
	return now.Sub(c.LastVisit).Hours() / 24
}
