package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds process configuration. Values come from an optional YAML file
// and are overridden by environment variables (.env is loaded first).
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	MongoURI          string `yaml:"mongoURI"`
	DBUser            string `yaml:"dbUser"`
	DBPass            string `yaml:"dbPass"`
	DBHost            string `yaml:"dbHost"`
	DBName            string `yaml:"dbName"`
	MongoTransactions bool   `yaml:"mongoTransactions"`

	PaymentProvider     string `yaml:"paymentProvider"`
	StripeSecretKey     string `yaml:"stripeSecretKey"`
	StripeWebhookSecret string `yaml:"stripeWebhookSecret"`
	StripeBaseURL       string `yaml:"stripeBaseURL"`
	Currency            string `yaml:"currency"`
	SiteDomain          string `yaml:"siteDomain"`

	JWTSecret string `yaml:"jwtSecret"`
	JWTIssuer string `yaml:"jwtIssuer"`

	RedisAddr         string `yaml:"redisAddr"`
	RedisPassword     string `yaml:"redisPassword"`
	CheckoutRateLimit int    `yaml:"checkoutRateLimit"`
}

func defaults() Config {
	return Config{
		Port:              "5000",
		LogLevel:          "info",
		DBName:            "contestHubDB",
		PaymentProvider:   "stripe",
		StripeBaseURL:     "https://api.stripe.com",
		Currency:          "usd",
		SiteDomain:        "http://localhost:5173",
		JWTIssuer:         "contesthub",
		CheckoutRateLimit: 10,
	}
}

// Load builds the configuration. path may be empty, in which case only the
// environment is consulted.
func Load(path string) (Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("error loading .env", "error", err)
	}

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)

	if cfg.MongoURI == "" && cfg.DBUser != "" && cfg.DBHost != "" {
		cfg.MongoURI = fmt.Sprintf("mongodb+srv://%s:%s@%s/?retryWrites=true&w=majority",
			url.QueryEscape(cfg.DBUser), url.QueryEscape(cfg.DBPass), cfg.DBHost)
	}
	cfg.SiteDomain = strings.TrimRight(cfg.SiteDomain, "/")
	cfg.Currency = strings.ToLower(cfg.Currency)

	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	str("PORT", &cfg.Port)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("MONGOURI", &cfg.MongoURI)
	str("DB_USER", &cfg.DBUser)
	str("DB_PASS", &cfg.DBPass)
	str("DB_HOST", &cfg.DBHost)
	str("DB_NAME", &cfg.DBName)
	str("PAYMENT_PROVIDER", &cfg.PaymentProvider)
	str("STRIPE_SECRET_KEY", &cfg.StripeSecretKey)
	str("STRIPE_WEBHOOK_SECRET", &cfg.StripeWebhookSecret)
	str("STRIPE_BASE_URL", &cfg.StripeBaseURL)
	str("CURRENCY", &cfg.Currency)
	str("SITE_DOMAIN", &cfg.SiteDomain)
	str("JWT_SECRET", &cfg.JWTSecret)
	str("JWT_ISSUER", &cfg.JWTIssuer)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("REDIS_PASSWORD", &cfg.RedisPassword)

	if v := os.Getenv("MONGO_TRANSACTIONS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MongoTransactions = b
		}
	}
	if v := os.Getenv("CHECKOUT_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CheckoutRateLimit = n
		}
	}
}

// Validate reports missing required settings.
func (c Config) Validate() error {
	var errs []error
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGOURI (or DB_USER/DB_PASS/DB_HOST) is not set"))
	}
	switch c.PaymentProvider {
	case "stripe":
		if c.StripeSecretKey == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY is not set"))
		}
	case "stub":
	default:
		errs = append(errs, fmt.Errorf("unknown payment provider: %s", c.PaymentProvider))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return "0.0.0.0:" + c.Port
}
