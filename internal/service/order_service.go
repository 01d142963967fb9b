// internal/service/order_service.go
package service

import (
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/xeno-crm-backend/internal/errors"
	"github.com/unclebandit/xeno-crm-backend/internal/model"
	"github.com/unclebandit/xeno-crm-backend/internal/repository"
)

type OrderService struct {
	OrderRepo    repository.OrderRepositoryInterface
	CustomerRepo repository.CustomerRepositoryInterface
	Log          *zap.Logger
}

// Create records an order and refreshes the owning customer's aggregates,
// the only mutation path for total_spend/visit_count/last_visit.
func (s *OrderService) Create(o *model.Order) error {
	customer, err := s.CustomerRepo.GetByID(o.CustomerID)
	if err != nil {
		return err
	}
	if customer == nil {
		return appErrors.NewCustomerNotFound(o.CustomerID)
	}

	if err := s.OrderRepo.Create(o); err != nil {
		return err
	}
	return s.refreshAggregates(o.CustomerID)
}

// BulkIngest inserts orders with partial success: orders referencing unknown
// customers are skipped. Aggregates refresh once per affected customer.
func (s *OrderService) BulkIngest(orders []model.Order) (int, error) {
	inserted := 0
	affected := map[int]bool{}

	for i := range orders {
		o := &orders[i]
		customer, err := s.CustomerRepo.GetByID(o.CustomerID)
		if err != nil {
			return inserted, err
		}
		if customer == nil {
			s.Log.Warn("skipping order for unknown customer", zap.Int("customer_id", o.CustomerID))
			continue
		}
		if err := s.OrderRepo.Create(o); err != nil {
			return inserted, err
		}
		inserted++
		affected[o.CustomerID] = true
	}

	for customerID := range affected {
		if err := s.refreshAggregates(customerID); err != nil {
			s.Log.Error("failed to refresh customer aggregates",
				zap.Int("customer_id", customerID), zap.Error(err))
		}
	}
	return inserted, nil
}

func (s *OrderService) List(customerID, page, pageSize int) ([]model.Order, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	orders, total, err := s.OrderRepo.List(customerID, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}
	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return orders, pagination, nil
}

func (s *OrderService) refreshAggregates(customerID int) error {
	agg, err := s.OrderRepo.AggregatesForCustomer(customerID)
	if err != nil {
		return err
	}
	lastVisit := agg.LastVisit
	if lastVisit.IsZero() {
		// No completed orders; keep the customer's existing last_visit.
		customer, err := s.CustomerRepo.GetByID(customerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return appErrors.NewCustomerNotFound(customerID)
		}
		lastVisit = customer.LastVisit
	}
	return s.CustomerRepo.UpdateAggregates(customerID, agg.TotalSpend, agg.VisitCount, lastVisit)
}
