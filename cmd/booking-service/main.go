package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/booking/booking_api"
	bookingdb "ms-booking/internal/booking/db"
	"ms-booking/internal/config"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/purchaser"
	"ms-booking/internal/qr"
	"ms-booking/internal/zonelock"
)

func openDatabase(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal("DATABASE", "failed to open postgres: "+err.Error())
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", "failed to connect to postgres: "+err.Error())
	}
	log.Info("DATABASE", "postgres connection established")

	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	bunDB := openDatabase(cfg.Database, log)
	defer bunDB.Close()

	if err := migrations.Up(bunDB, migrations.DefaultDir); err != nil {
		log.Fatal("DATABASE", "migrations failed: "+err.Error())
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("REDIS", "failed to connect to redis: "+err.Error())
	}
	log.Info("REDIS", "redis connection established")

	var publisher booking.EventPublisher
	if cfg.Kafka.Enabled {
		if !cfg.Kafka.MockMode {
			topics := []string{
				cfg.Kafka.Topics.TicketsIssued,
				cfg.Kafka.Topics.PaymentConfirmed,
				cfg.Kafka.Topics.TicketCheckedIn,
				cfg.Kafka.Topics.GroupCancelled,
			}
			if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
				log.Warn("KAFKA", "topic bootstrap failed: "+err.Error())
			}
		}
		producer := kafka.NewProducer(cfg.Kafka, log)
		defer producer.Close()
		publisher = producer
	}

	qrGen := qr.NewGenerator(os.Getenv("QR_SECRET_KEY"))
	locker := zonelock.NewLocker(redisClient, cfg.Booking.ZoneLockTTL)
	resolver := purchaser.NewResolver(bunDB)
	store := bookingdb.New(bunDB)

	service := booking.NewService(store, resolver, locker, publisher, qrGen, log, cfg.Booking.HoldWindow)

	ctx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	if cfg.Booking.SweepEnabled {
		sweeper := booking.NewSweeper(service, cfg.Booking.SweepInterval)
		go sweeper.Run(ctx)
	}

	if cfg.Kafka.Enabled && !cfg.Kafka.MockMode {
		paymentTopic := os.Getenv("KAFKA_TOPIC_PAYMENT_EVENTS")
		if paymentTopic != "" {
			consumer := kafka.NewConsumer(cfg.Kafka.Brokers, paymentTopic, "booking-service", log)
			defer consumer.Close()
			go consumer.Start(ctx, func(ctx context.Context, event kafka.PaymentEvent) {
				if event.Status != "succeeded" {
					return
				}
				if _, _, err := service.ConfirmPayment(ctx, event.PaymentGroupRef); err != nil {
					log.Warn("KAFKA", fmt.Sprintf("confirm %s from payment event: %v", event.PaymentGroupRef, err))
				}
			})
		}
	}

	handler := booking_api.NewHandler(service)

	if cfg.Booking.JWTSecret == "" {
		log.Warn("AUTH", "JWT_SECRET is not set; staff check-in requests will all be rejected")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	handler.Routes(r, auth.Middleware(cfg.Booking.JWTSecret))

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", "booking service listening on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "http error: "+err.Error())
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	stopSweeper()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	log.Info("SERVER", "booking service shut down")
}
