package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storebot/config"
	"storebot/internal/api"
	"storebot/internal/broker"
	"storebot/internal/notify"
	"storebot/internal/redisclient"
	"storebot/internal/service"
	"storebot/internal/store"
	"storebot/internal/util"
	"storebot/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storebot")

	tp, err := util.InitTracer("storebot", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSales)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)
	gateway := notify.NewHTTPGateway(cfg.Notifier.BaseURL, cfg.Notifier.Token, cfg.Notifier.Timeout)

	ledgerService := service.NewLedgerService(db, gateway, eventPublisher, cfg.Business.PointExchangeRate)
	orderService := service.NewOrderService(db, db, db, gateway, eventPublisher, redisClient)
	preorderService := service.NewPreorderService(db, db, db, gateway, cfg.Business.PreorderCap)
	allocator := service.NewAllocator(db, db, db, gateway, eventPublisher, redisClient)

	allocationWorker := worker.NewAllocationWorker(allocator, redisClient, cfg.Business.AllocationInterval)
	inventoryService := service.NewInventoryService(db, redisClient, eventPublisher, allocationWorker.Notify)

	ctx := context.Background()
	if err := inventoryService.SyncStockCache(ctx); err != nil {
		log.Printf("Failed to sync stock cache: %v", err)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go func() {
		if err := allocationWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
			log.Printf("Allocation worker error: %v", err)
		}
	}()

	topupConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicTopup, cfg.Kafka.ConsumerGroup)
	topupWorker := worker.NewTopupWorker(topupConsumer, ledgerService)
	go func() {
		if err := topupWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
			log.Printf("Topup worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(
		ledgerService,
		orderService,
		preorderService,
		inventoryService,
		redisClient,
		allocationWorker.Notify,
		cfg.Server.AdminToken,
		cfg.Business.PurchaseRetryLimit,
	)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	topupWorker.Stop()

	log.Println("Server exited")
}
