// internal/service/customer_service.go
package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/xeno-crm-backend/internal/cache"
	"github.com/unclebandit/xeno-crm-backend/internal/model"
	"github.com/unclebandit/xeno-crm-backend/internal/repository"
	"github.com/unclebandit/xeno-crm-backend/internal/segment"
)

type CustomerService struct {
	CustomerRepo repository.CustomerRepositoryInterface
	PreviewCache *cache.PreviewCache
	Log          *zap.Logger
}

func (s *CustomerService) Create(c *model.Customer) error {
	return s.CustomerRepo.Create(c)
}

func (s *CustomerService) GetByID(id int) (*model.Customer, error) {
	return s.CustomerRepo.GetByID(id)
}

func (s *CustomerService) List(page, pageSize int) ([]model.Customer, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}
	offset := (page - 1) * pageSize

	customers, total, err := s.CustomerRepo.List(offset, pageSize)
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
	return customers, pagination, nil
}

// BulkIngest inserts a batch with partial-success semantics: duplicates are
// skipped, the rest proceed.
func (s *CustomerService) BulkIngest(customers []model.Customer) (inserted, skipped int, err error) {
	inserted, err = s.CustomerRepo.BulkCreate(customers)
	if err != nil {
		return 0, 0, err
	}
	skipped = len(customers) - inserted
	if skipped > 0 {
		s.Log.Info("bulk ingest skipped duplicates",
			zap.Int("inserted", inserted), zap.Int("skipped", skipped))
	}
	return inserted, skipped, nil
}

// PreviewAudience counts the customers a predicate would match without
// materializing them. Counts are cached briefly under the raw rules.
func (s *CustomerService) PreviewAudience(ctx context.Context, rules json.RawMessage) (int, error) {
	if count, ok := s.PreviewCache.Get(ctx, rules); ok {
		return count, nil
	}

	pred, err := segment.Parse(rules, time.Now())
	if err != nil {
		return 0, err
	}
	count, err := s.CustomerRepo.CountBySegment(pred)
	if err != nil {
		return 0, err
	}

	s.PreviewCache.Set(ctx, rules, count)
	return count, nil
}
