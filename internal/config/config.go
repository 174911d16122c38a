package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Kafka    KafkaConfig
	Chain    ChainConfig
	Payment  PaymentConfig
	Notify   NotifyConfig
}

// ServerConfig holds the ops HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// RedisConfig holds the shared cache / lock backend settings.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// DatabaseConfig holds Postgres connection settings for the durable store.
type DatabaseConfig struct {
	Host           string `envconfig:"DB_HOST" default:"localhost"`
	Port           int    `envconfig:"DB_PORT" default:"5432"`
	User           string `envconfig:"DB_USER" default:"postgres"`
	Password       string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name           string `envconfig:"DB_NAME" default:"solshop"`
	MigrationsPath string `envconfig:"DB_MIGRATIONS_PATH" default:"./internal/repository/migrations"`
}

// MongoConfig holds the notification history store settings.
type MongoConfig struct {
	URI    string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	DBName string `envconfig:"MONGO_DB_NAME" default:"solshop"`
}

// KafkaConfig holds the verdict bus settings.
type KafkaConfig struct {
	Brokers        []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	CompletedTopic string   `envconfig:"KAFKA_PAYMENT_COMPLETED_TOPIC" default:"payment-completed"`
	FailedTopic    string   `envconfig:"KAFKA_PAYMENT_FAILED_TOPIC" default:"payment-failed"`
	ConsumerGroup  string   `envconfig:"KAFKA_CONSUMER_GROUP" default:"settlement-saga"`
}

// ChainConfig holds the external-ledger endpoints and the watched account.
type ChainConfig struct {
	RPCURL        string        `envconfig:"CHAIN_RPC_URL" default:"https://api.devnet.solana.com"`
	WebsocketURL  string        `envconfig:"CHAIN_WS_URL" default:"wss://api.devnet.solana.com"`
	CompanyWallet string        `envconfig:"CHAIN_COMPANY_WALLET" required:"true"`
	TokenMint     string        `envconfig:"CHAIN_TOKEN_MINT" required:"true"`
	RPCTimeout    time.Duration `envconfig:"CHAIN_RPC_TIMEOUT" default:"30s"`
	HealthCheck   time.Duration `envconfig:"CHAIN_HEALTH_CHECK_INTERVAL" default:"5m"`
}

// PaymentConfig holds the settlement timing knobs.
type PaymentConfig struct {
	SweepInterval    time.Duration `envconfig:"PAYMENT_SWEEP_INTERVAL" default:"1m"`
	PendingTimeout   time.Duration `envconfig:"PAYMENT_PENDING_TIMEOUT" default:"2m"`
	FlushInterval    time.Duration `envconfig:"INVENTORY_FLUSH_INTERVAL" default:"5m"`
	SignatureCleanup time.Duration `envconfig:"SIGNATURE_CLEANUP_INTERVAL" default:"60s"`
	AmountTolerance  float64       `envconfig:"PAYMENT_AMOUNT_TOLERANCE" default:"0.001"`
}

// NotifyConfig holds the push-gateway settings for outbound notifications.
type NotifyConfig struct {
	GatewayURL string        `envconfig:"NOTIFY_GATEWAY_URL" default:"http://localhost:3000/push"`
	Timeout    time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"5s"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}
