package repository

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/xeno-crm-backend/internal/errors"
	"github.com/unclebandit/xeno-crm-backend/internal/model"
	"github.com/unclebandit/xeno-crm-backend/internal/segment"
)

// CustomerRepositoryInterface defines the customer store used by services.
type CustomerRepositoryInterface interface {
	Create(c *model.Customer) error
	GetByID(id int) (*model.Customer, error)
	List(offset, limit int) ([]model.Customer, int, error)
	FindBySegment(p *segment.Predicate) ([]model.Customer, error)
	CountBySegment(p *segment.Predicate) (int, error)
	BulkCreate(customers []model.Customer) (int, error)
	UpdateAggregates(customerID int, totalSpend float64, visitCount int, lastVisit time.Time) error
}

type CustomerRepository struct {
	DB *sql.DB
}

const customerColumns = `id, name, email, phone, total_spend, visit_count, last_visit, created_at`

func scanCustomer(row interface{ Scan(...interface{}) error }) (*model.Customer, error) {
	var c model.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.TotalSpend, &c.VisitCount, &c.LastVisit, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepository) Create(c *model.Customer) error {
	if c.LastVisit.IsZero() {
		c.LastVisit = time.Now()
	}
	query := `
        INSERT INTO customers (name, email, phone, total_spend, visit_count, last_visit)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at
    `
	err := r.DB.QueryRow(query, c.Name, c.Email, c.Phone, c.TotalSpend, c.VisitCount, c.LastVisit).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return appErrors.NewDuplicateCustomer(c.Email)
		}
		return err
	}
	return nil
}

func (r *CustomerRepository) GetByID(id int) (*model.Customer, error) {
	row := r.DB.QueryRow(`SELECT `+customerColumns+` FROM customers WHERE id=$1`, id)
	c, err := scanCustomer(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *CustomerRepository) List(offset, limit int) ([]model.Customer, int, error) {
	rows, err := r.DB.Query(`SELECT `+customerColumns+` FROM customers ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	customers := []model.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		customers = append(customers, *c)
	}

	var total int
	if err := r.DB.QueryRow(`SELECT COUNT(*) FROM customers`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

// FindBySegment materializes the audience for a predicate. Must agree
// exactly with CountBySegment; both render the same WHERE clause.
func (r *CustomerRepository) FindBySegment(p *segment.Predicate) ([]model.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers`
	where, args := p.WhereSQL(1)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY id"

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := []model.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

func (r *CustomerRepository) CountBySegment(p *segment.Predicate) (int, error) {
	query := `SELECT COUNT(*) FROM customers`
	where, args := p.WhereSQL(1)
	if where != "" {
		query += " WHERE " + where
	}
	var count int
	if err := r.DB.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// BulkCreate inserts a batch, skipping duplicate emails. Returns how many
// rows were actually inserted (partial-success semantics).
func (r *CustomerRepository) BulkCreate(customers []model.Customer) (int, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
        INSERT INTO customers (name, email, phone, total_spend, visit_count, last_visit)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (email) DO NOTHING
    `)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, c := range customers {
		if c.LastVisit.IsZero() {
			c.LastVisit = time.Now()
		}
		res, err := stmt.Exec(c.Name, c.Email, c.Phone, c.TotalSpend, c.VisitCount, c.LastVisit)
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// UpdateAggregates is the only mutation path for customer stats; values are
// recomputed from the customer's orders.
func (r *CustomerRepository) UpdateAggregates(customerID int, totalSpend float64, visitCount int, lastVisit time.Time) error {
	query := `UPDATE customers SET total_spend=$1, visit_count=$2, last_visit=$3 WHERE id=$4`
	res, err := r.DB.Exec(query, totalSpend, visitCount, lastVisit, customerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewCustomerNotFound(customerID)
	}
	return nil
}

var _ CustomerRepositoryInterface = (*CustomerRepository)(nil)
