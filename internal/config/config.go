package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Booking  BookingConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Database DatabaseConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type BookingConfig struct {
	// HoldWindow is how long an unpaid ticket reserves capacity.
	HoldWindow time.Duration
	// ZoneLockTTL bounds how long a purchase may hold a zone's admission lock.
	ZoneLockTTL time.Duration
	// SweepEnabled turns on the background cancellation of expired holds.
	// Off by default: stale holds then keep counting against capacity.
	SweepEnabled  bool
	SweepInterval time.Duration
	JWTSecret     string
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers  []string
	Enabled  bool
	MockMode bool
	Topics   TopicConfig
}

type TopicConfig struct {
	TicketsIssued    string
	PaymentConfirmed string
	TicketCheckedIn  string
	GroupCancelled   string
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Booking: BookingConfig{
			HoldWindow:    time.Duration(getEnvInt("HOLD_WINDOW_MINUTES", 10)) * time.Minute,
			ZoneLockTTL:   time.Duration(getEnvInt("ZONE_LOCK_TTL_SECONDS", 30)) * time.Second,
			SweepEnabled:  getEnvBool("HOLD_SWEEP_ENABLED", false),
			SweepInterval: time.Duration(getEnvInt("HOLD_SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
			JWTSecret:     getEnv("JWT_SECRET", ""),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers:  []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Enabled:  getEnvBool("KAFKA_ENABLED", true),
			MockMode: getEnvBool("KAFKA_MOCK_MODE", false),
			Topics: TopicConfig{
				TicketsIssued:    getEnv("KAFKA_TOPIC_TICKETS_ISSUED", "tickets-issued"),
				PaymentConfirmed: getEnv("KAFKA_TOPIC_PAYMENT_CONFIRMED", "payment-confirmed"),
				TicketCheckedIn:  getEnv("KAFKA_TOPIC_TICKET_CHECKED_IN", "ticket-checked-in"),
				GroupCancelled:   getEnv("KAFKA_TOPIC_GROUP_CANCELLED", "payment-group-cancelled"),
			},
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "booking_user"),
			Password:     getEnv("DB_PASSWORD", "booking_pass"),
			Database:     getEnv("DB_NAME", "booking"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
