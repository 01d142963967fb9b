package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/xeno-crm-backend/internal/errors"
	"github.com/unclebandit/xeno-crm-backend/internal/model"
	"github.com/unclebandit/xeno-crm-backend/internal/repository"
)

type fakeOrderRepo struct {
	orders []model.Order
	nextID int
}

func (f *fakeOrderRepo) Create(o *model.Order) error {
	f.nextID++
	o.ID = f.nextID
	f.orders = append(f.orders, *o)
	return nil
}

func (f *fakeOrderRepo) List(customerID, offset, limit int) ([]model.Order, int, error) {
	out := []model.Order{}
	for _, o := range f.orders {
		if customerID == 0 || o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, len(out), nil
}

func (f *fakeOrderRepo) AggregatesForCustomer(customerID int) (repository.OrderAggregates, error) {
	agg := repository.OrderAggregates{}
	for _, o := range f.orders {
		if o.CustomerID != customerID || o.Status != "completed" {
			continue
		}
		agg.TotalSpend += o.Amount
		agg.VisitCount++
		if o.OrderDate.After(agg.LastVisit) {
			agg.LastVisit = o.OrderDate
		}
	}
	return agg, nil
}

type aggCustomerRepo struct {
	fakeCustomerRepo
	updates map[int]repository.OrderAggregates
}

func (f *aggCustomerRepo) UpdateAggregates(customerID int, totalSpend float64, visitCount int, lastVisit time.Time) error {
	if f.updates == nil {
		f.updates = map[int]repository.OrderAggregates{}
	}
	f.updates[customerID] = repository.OrderAggregates{
		TotalSpend: totalSpend,
		VisitCount: visitCount,
		LastVisit:  lastVisit,
	}
	return nil
}

func newOrderService() (*OrderService, *fakeOrderRepo, *aggCustomerRepo) {
	orders := &fakeOrderRepo{}
	customers := &aggCustomerRepo{fakeCustomerRepo: fakeCustomerRepo{customers: testCustomers()}}
	svc := &OrderService{OrderRepo: orders, CustomerRepo: customers, Log: zap.NewNop()}
	return svc, orders, customers
}

func TestCreateOrderRefreshesAggregates(t *testing.T) {
	svc, _, customers := newOrderService()

	visit := time.Now().Add(-time.Hour)
	err := svc.Create(&model.Order{CustomerID: 1, Amount: 1200, OrderDate: visit, Status: "completed"})
	require.NoError(t, err)

	agg, ok := customers.updates[1]
	require.True(t, ok)
	assert.Equal(t, 1200.0, agg.TotalSpend)
	assert.Equal(t, 1, agg.VisitCount)
	assert.True(t, agg.LastVisit.Equal(visit))
}

func TestCreateOrderUnknownCustomer(t *testing.T) {
	svc, orders, _ := newOrderService()

	err := svc.Create(&model.Order{CustomerID: 999, Amount: 100, Status: "completed"})
	var notFound *appErrors.ErrCustomerNotFound
	assert.True(t, errors.As(err, &notFound))
	assert.Empty(t, orders.orders)
}

// Cancelled orders are stored but excluded from spend and visit aggregates.
func TestCancelledOrdersExcludedFromAggregates(t *testing.T) {
	svc, orders, customers := newOrderService()

	require.NoError(t, svc.Create(&model.Order{CustomerID: 1, Amount: 500, OrderDate: time.Now(), Status: "completed"}))
	require.NoError(t, svc.Create(&model.Order{CustomerID: 1, Amount: 9000, OrderDate: time.Now(), Status: "cancelled"}))

	assert.Len(t, orders.orders, 2)
	agg := customers.updates[1]
	assert.Equal(t, 500.0, agg.TotalSpend)
	assert.Equal(t, 1, agg.VisitCount)
}

func TestBulkIngestOrdersSkipsUnknownCustomers(t *testing.T) {
	svc, orders, customers := newOrderService()

	inserted, err := svc.BulkIngest([]model.Order{
		{CustomerID: 1, Amount: 100, OrderDate: time.Now(), Status: "completed"},
		{CustomerID: 999, Amount: 100, OrderDate: time.Now(), Status: "completed"},
		{CustomerID: 2, Amount: 300, OrderDate: time.Now(), Status: "completed"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Len(t, orders.orders, 2)

	// Aggregates refreshed only for customers that got orders.
	assert.Contains(t, customers.updates, 1)
	assert.Contains(t, customers.updates, 2)
	assert.NotContains(t, customers.updates, 999)
}

func TestOrderListPagination(t *testing.T) {
	svc, _, _ := newOrderService()

	require.NoError(t, svc.Create(&model.Order{CustomerID: 1, Amount: 100, OrderDate: time.Now(), Status: "completed"}))
	require.NoError(t, svc.Create(&model.Order{CustomerID: 2, Amount: 200, OrderDate: time.Now(), Status: "completed"}))

	out, pagination, err := svc.List(1, 1, 50)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, 1, pagination["total_count"])
}
