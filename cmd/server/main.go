// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/xeno-crm-backend/internal/ai"
	"github.com/unclebandit/xeno-crm-backend/internal/cache"
	"github.com/unclebandit/xeno-crm-backend/internal/config"
	"github.com/unclebandit/xeno-crm-backend/internal/db"
	"github.com/unclebandit/xeno-crm-backend/internal/dispatch"
	"github.com/unclebandit/xeno-crm-backend/internal/handler"
	appmw "github.com/unclebandit/xeno-crm-backend/internal/middleware"
	"github.com/unclebandit/xeno-crm-backend/internal/queue"
	"github.com/unclebandit/xeno-crm-backend/internal/reconcile"
	"github.com/unclebandit/xeno-crm-backend/internal/repository"
	"github.com/unclebandit/xeno-crm-backend/internal/scheduler"
	"github.com/unclebandit/xeno-crm-backend/internal/service"
	"github.com/unclebandit/xeno-crm-backend/internal/vendor"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	if err := db.Migrate(conn, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis is optional; without it audience previews just skip the cache.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
	}
	previewCache := cache.NewPreviewCache(rdb, 30*time.Second, log)

	// Repositories
	customerRepo := &repository.CustomerRepository{DB: conn}
	orderRepo := &repository.OrderRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	messageLogRepo := &repository.MessageLogRepository{DB: conn}

	// Receipt reconciliation
	reconciler := reconcile.NewReconciler(messageLogRepo, campaignRepo, log)

	// Simulated vendor: receipts flow straight back into the reconciler.
	simulator := vendor.NewSimulator(vendor.SimulatorConfig{
		MinAccept:   cfg.VendorMinAccept,
		MaxAccept:   cfg.VendorMaxAccept,
		MinReceipt:  cfg.VendorMinReceipt,
		MaxReceipt:  cfg.VendorMaxReceipt,
		SuccessRate: cfg.VendorSuccessRate,
	}, func(_ context.Context, rc vendor.Receipt) {
		if err := reconciler.ApplyReceipt(rc); err != nil {
			log.Error("receipt reconciliation failed",
				zap.Int("message_id", rc.MessageID), zap.Error(err))
		}
	}, log)
	defer simulator.Close()

	// Dispatch
	dispatcher := &dispatch.Dispatcher{
		Logs:          messageLogRepo,
		Customers:     customerRepo,
		Vendor:        vendor.NewHTTPClient(cfg.VendorBaseURL, cfg.AcceptTimeout),
		Stats:         reconciler,
		Delay:         cfg.DispatchDelay,
		AcceptTimeout: cfg.AcceptTimeout,
		Log:           log,
	}

	var launcher service.DispatchLauncher
	if cfg.AMQPURL != "" {
		amqpQueue, err := queue.NewAMQPQueue(cfg.AMQPURL, log)
		if err != nil {
			log.Fatal("failed to connect to RabbitMQ", zap.Error(err))
		}
		defer amqpQueue.Close()
		launcher = &queue.Launcher{Queue: amqpQueue, Topic: cfg.DispatchQueue, Log: log}
		log.Info("dispatch jobs will be handled by the worker", zap.String("queue", cfg.DispatchQueue))
	} else {
		launcher = dispatch.NewSupervisor(dispatcher, log)
	}

	// Services
	campaignService := &service.CampaignService{
		CampaignRepo:   campaignRepo,
		CustomerRepo:   customerRepo,
		MessageLogRepo: messageLogRepo,
		Launcher:       launcher,
		Log:            log,
	}
	customerService := &service.CustomerService{
		CustomerRepo: customerRepo,
		PreviewCache: previewCache,
		Log:          log,
	}
	orderService := &service.OrderService{
		OrderRepo:    orderRepo,
		CustomerRepo: customerRepo,
		Log:          log,
	}
	translator := ai.NewTranslator(cfg.HFAPIKey, cfg.HFBaseURL, cfg.AITimeout, log)

	// Scheduled campaigns
	sched := scheduler.New(campaignService, log)
	if err := sched.Start(); err != nil {
		log.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	// Handlers
	authHandler := &handler.AuthHandler{Secret: cfg.JWTSecret, Expiration: cfg.JWTExpiration, Log: log}
	customerHandler := &handler.CustomerHandler{Service: customerService, Log: log}
	orderHandler := &handler.OrderHandler{Service: orderService, Log: log}
	campaignHandler := &handler.CampaignHandler{Service: campaignService, Log: log}
	aiHandler := &handler.AIHandler{Translator: translator, Log: log}
	vendorHandler := &handler.VendorHandler{Simulator: simulator, Reconciler: reconciler, Log: log}

	r := chi.NewRouter()
	r.Use(appmw.RequestID)
	r.Use(appmw.Logger(log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"OK"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		// Vendor callbacks stay open; the vendor holds no credential.
		r.Post("/vendor/send-message", vendorHandler.SendMessage)
		r.Post("/vendor/delivery-receipt", vendorHandler.DeliveryReceipt)

		r.Group(func(r chi.Router) {
			r.Use(appmw.Auth(cfg.JWTSecret))

			r.Get("/auth/me", authHandler.Me)

			r.Get("/customers", customerHandler.List)
			r.Post("/customers", customerHandler.Create)
			r.Post("/customers/bulk", customerHandler.Bulk)
			r.Post("/customers/preview", customerHandler.Preview)

			r.Get("/orders", orderHandler.List)
			r.Post("/orders", orderHandler.Create)
			r.Post("/orders/bulk", orderHandler.Bulk)

			r.Get("/campaigns", campaignHandler.List)
			r.Post("/campaigns", campaignHandler.Create)
			r.Get("/campaigns/{id}", campaignHandler.Get)
			r.Post("/campaigns/{id}/preview", campaignHandler.Preview)

			r.Post("/ai/natural-to-rules", aiHandler.NaturalToRules)
			r.Post("/ai/generate-messages", aiHandler.GenerateMessages)
			r.Post("/ai/campaign-summary", aiHandler.CampaignSummary)
		})
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server running", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
	log.Info("server stopped")
}
