// cmd/seeder/main.go
package main

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/xeno-crm-backend/internal/config"
	"github.com/unclebandit/xeno-crm-backend/internal/db"
	appErrors "github.com/unclebandit/xeno-crm-backend/internal/errors"
	"github.com/unclebandit/xeno-crm-backend/internal/model"
	"github.com/unclebandit/xeno-crm-backend/internal/repository"
	"github.com/unclebandit/xeno-crm-backend/internal/service"
)

const customerCount = 100

var names = []string{"Rajesh", "Priya", "Amit", "Sneha", "Vikram", "Anita", "Rohit", "Kavya", "Arjun", "Meera"}

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()

	conn, err := db.Open(cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	if err := db.Migrate(conn, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	customerRepo := &repository.CustomerRepository{DB: conn}
	orderRepo := &repository.OrderRepository{DB: conn}
	orderService := &service.OrderService{
		OrderRepo:    orderRepo,
		CustomerRepo: customerRepo,
		Log:          log,
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	created := []model.Customer{}
	for i := 1; i <= customerCount; i++ {
		c := model.Customer{
			Name:      fmt.Sprintf("%s %d", names[rng.Intn(len(names))], i),
			Email:     fmt.Sprintf("customer%d@example.com", i),
			Phone:     fmt.Sprintf("+91%d", 1000000000+rng.Int63n(9000000000)),
			LastVisit: time.Now().Add(-time.Duration(rng.Intn(365*24)) * time.Hour),
		}
		if err := customerRepo.Create(&c); err != nil {
			var dup *appErrors.ErrDuplicateCustomer
			if errors.As(err, &dup) {
				continue
			}
			log.Fatal("failed to create customer", zap.Error(err))
		}
		created = append(created, c)
	}
	log.Info("customers created", zap.Int("count", len(created)))

	orders := []model.Order{}
	for _, c := range created {
		for j := 0; j < rng.Intn(10)+1; j++ {
			status := "completed"
			if rng.Float64() < 0.1 {
				status = "cancelled"
			}
			orders = append(orders, model.Order{
				CustomerID: c.ID,
				Amount:     float64(rng.Intn(10000) + 500),
				OrderDate:  time.Now().Add(-time.Duration(rng.Intn(365*24)) * time.Hour),
				Status:     status,
			})
		}
	}

	inserted, err := orderService.BulkIngest(orders)
	if err != nil {
		log.Fatal("failed to seed orders", zap.Error(err))
	}
	log.Info("seeding complete",
		zap.Int("customers", len(created)),
		zap.Int("orders", inserted))
}
