// cmd/worker/main.go
package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/unclebandit/xeno-crm-backend/internal/config"
	"github.com/unclebandit/xeno-crm-backend/internal/db"
	"github.com/unclebandit/xeno-crm-backend/internal/dispatch"
	"github.com/unclebandit/xeno-crm-backend/internal/queue"
	"github.com/unclebandit/xeno-crm-backend/internal/reconcile"
	"github.com/unclebandit/xeno-crm-backend/internal/repository"
	"github.com/unclebandit/xeno-crm-backend/internal/vendor"
)

// The worker drains campaign dispatch jobs from RabbitMQ. It runs only in
// queue mode; with no AMQP_URL the server dispatches in-process and this
// binary has nothing to do.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if cfg.AMQPURL == "" {
		log.Fatal("AMQP_URL is required for the worker")
	}

	conn, err := db.Open(cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	customerRepo := &repository.CustomerRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	messageLogRepo := &repository.MessageLogRepository{DB: conn}

	dispatcher := &dispatch.Dispatcher{
		Logs:          messageLogRepo,
		Customers:     customerRepo,
		Vendor:        vendor.NewHTTPClient(cfg.VendorBaseURL, cfg.AcceptTimeout),
		Stats:         reconcile.NewReconciler(messageLogRepo, campaignRepo, log),
		Delay:         cfg.DispatchDelay,
		AcceptTimeout: cfg.AcceptTimeout,
		Log:           log,
	}

	amqpQueue, err := queue.NewAMQPQueue(cfg.AMQPURL, log)
	if err != nil {
		log.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer amqpQueue.Close()

	if err := queue.StartDispatchSubscriber(amqpQueue, cfg.DispatchQueue, dispatcher, log); err != nil {
		log.Fatal("failed to start dispatch subscriber", zap.Error(err))
	}

	log.Info("worker running, waiting for dispatch jobs", zap.String("queue", cfg.DispatchQueue))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("worker stopped")
}
