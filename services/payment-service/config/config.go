package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDynamoDB = "dynamodb"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

type Config struct {
	Env     string
	Port    string
	LogFile string

	StripeSecretKey  string
	StripeWebhookKey string
	AppBaseURL       string
	Currency         string

	StoreDriver            string
	PaymentsTable          string
	TransactionsTable      string
	EnsureTables           bool
	MongoURI               string
	MongoDatabase          string
	ReceiptsBucket         string
	ReceiptURLExpiry       time.Duration
	PaymentRequestQueueURL string // SQS queue URL for payment requests
	PaymentSNSTopicARN     string // SNS topic ARN for payment events

	JWTSecret           string
	TrustGatewayHeaders bool
	AllowedOrigins      []string
	SessionRatePerMin   int
	SessionRateBurst    int

	UseSecretsManager bool
	SecretName        string
	CloudWatchLogs    bool
	LogGroup          string
	MetricsEnabled    bool
	MetricsNamespace  string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Env:     getEnv("ENV", "development"),
		Port:    getEnv("PORT", "8087"),
		LogFile: os.Getenv("LOG_FILE"),

		StripeSecretKey:  os.Getenv("STRIPE_API_KEY"),
		StripeWebhookKey: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		AppBaseURL:       os.Getenv("APP_BASE_URL"),
		Currency:         strings.ToLower(getEnv("PAYMENT_CURRENCY", "brl")),

		StoreDriver:            strings.ToLower(getEnv("STORE_DRIVER", StoreDynamoDB)),
		PaymentsTable:          getEnv("PAYMENTS_TABLE", "Payments"),
		TransactionsTable:      getEnv("TRANSACTIONS_TABLE", "Transactions"),
		EnsureTables:           getBool("DYNAMODB_ENSURE_TABLES", false),
		MongoURI:               getEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDatabase:          getEnv("MONGO_DATABASE", "praiativa"),
		ReceiptsBucket:         os.Getenv("RECEIPTS_BUCKET"),
		ReceiptURLExpiry:       getDuration("RECEIPT_URL_EXPIRY", 15*time.Minute),
		PaymentRequestQueueURL: os.Getenv("PAYMENT_REQUEST_QUEUE_URL"),
		PaymentSNSTopicARN:     os.Getenv("PAYMENT_SNS_TOPIC_ARN"),

		JWTSecret:           os.Getenv("JWT_SECRET"),
		TrustGatewayHeaders: getBool("TRUST_GATEWAY_HEADERS", false),
		AllowedOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		SessionRatePerMin:   getInt("SESSION_RATE_PER_MIN", 30),
		SessionRateBurst:    getInt("SESSION_RATE_BURST", 10),

		UseSecretsManager: getBool("AWS_USE_SECRETS", false),
		SecretName:        getEnv("AWS_SECRET_NAME", "praiativa/payment-service"),
		CloudWatchLogs:    getBool("CLOUDWATCH_LOGS_ENABLED", false),
		LogGroup:          getEnv("CLOUDWATCH_LOG_GROUP", "/praiativa/payment-service"),
		MetricsEnabled:    getBool("METRICS_ENABLED", false),
		MetricsNamespace:  getEnv("METRICS_NAMESPACE", "PraiAtiva/Payments"),
	}

	switch cfg.StoreDriver {
	case StoreDynamoDB, StoreMongo, StoreMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	return cfg, nil
}

// SecretSource returns a JSON secret as a flat key/value map.
type SecretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// ApplySecrets overrides credentials with the values stored in Secrets
// Manager. Keys absent from the secret keep their environment value.
func (c *Config) ApplySecrets(ctx context.Context, src SecretSource) error {
	values, err := src.GetSecretMap(ctx, c.SecretName)
	if err != nil {
		return fmt.Errorf("load secret %s: %w", c.SecretName, err)
	}
	override := func(dst *string, key string) {
		if v := values[key]; v != "" {
			*dst = v
		}
	}
	override(&c.StripeSecretKey, "STRIPE_API_KEY")
	override(&c.StripeWebhookKey, "STRIPE_WEBHOOK_SECRET")
	override(&c.JWTSecret, "JWT_SECRET")
	override(&c.MongoURI, "MONGO_URI")
	return nil
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	var missing []string
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_API_KEY")
	}
	if c.StripeWebhookKey == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.AppBaseURL == "" {
		missing = append(missing, "APP_BASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
