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

	"ticketeer/config"
	"ticketeer/internal/api"
	"ticketeer/internal/broker"
	"ticketeer/internal/credential"
	"ticketeer/internal/redisclient"
	"ticketeer/internal/service"
	"ticketeer/internal/store"
	"ticketeer/internal/util"
	"ticketeer/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting ticketeer service")

	tp, err := util.InitTracer("ticketeer", cfg.Observ.JaegerEndpoint)
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

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicTickets)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	pricer, err := service.NewPricer(cfg.Business.ServiceFeePercent)
	if err != nil {
		log.Fatalf("Invalid service fee configuration: %v", err)
	}

	issuer := credential.NewIssuer(cfg.Business.QRSize)

	purchaseService := service.NewPurchaseService(db, redisClient, eventPublisher, issuer, pricer)
	ticketTypeService := service.NewTicketTypeService(db, eventPublisher, cfg.Business.MaxTicketTypes)
	ticketService := service.NewTicketService(db)

	claimTTL := time.Duration(cfg.Business.FulfillmentTTLHours) * time.Hour
	reconciler := service.NewReconciler(db, redisClient, purchaseService, eventPublisher,
		cfg.Payment.WebhookSecret, claimTTL)
	reconciler.RegisterVerifier(service.NewPaystackVerifier(cfg.Payment.PaystackSecretKey))
	reconciler.RegisterVerifier(service.NewFlutterwaveVerifier(cfg.Payment.FlutterwaveSecretKey))

	ctx := context.Background()
	if err := purchaseService.SyncAvailabilityToRedis(ctx); err != nil {
		log.Printf("Failed to warm availability cache: %v", err)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicTickets, cfg.Kafka.ConsumerGroup)
	notificationWorker := worker.NewNotificationWorker(consumer, worker.NewLogNotifier())
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	closeInterval := time.Duration(cfg.Business.SalesCloseIntervalSec) * time.Second
	scheduler, err := worker.NewScheduler(ticketTypeService, closeInterval)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	scheduler.Start()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(purchaseService, ticketTypeService, ticketService, reconciler)
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

	if err := scheduler.Shutdown(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}

	workerCancel()
	notificationWorker.Stop()

	log.Println("Server exited")
}
