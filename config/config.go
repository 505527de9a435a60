package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	extErrors "github.com/pkg/errors"
)

var validate *validator.Validate = validator.New()

// Environment is the type for defining the running environment
type Environment string

// define constants
const (
	EnvDevelopment Environment = "Dev"
	EnvProduction  Environment = "Prod"
)

// Directory backends
const (
	BackendShopify = "shopify"
	BackendStripe  = "stripe"
)

// ShopifyConfig holds the private app credentials for the Admin API
type ShopifyConfig struct {
	ShopName   string `validate:"required"`
	APIKey     string `validate:"required"`
	Password   string `validate:"required"`
	APIVersion string `validate:"required"`
}

// StripeConfig holds the Stripe secret key
type StripeConfig struct {
	Key string `validate:"required"`
}

// Config is the process-wide configuration, read once at startup
type Config struct {
	Environment Environment
	ListenAddr  string   `validate:"required"`
	StaticDir   string   `validate:"required"`
	CORSOrigins []string `validate:"required,min=1"`

	Backend string `validate:"required,oneof=shopify stripe"`
	Shopify ShopifyConfig `validate:"-"`
	Stripe  StripeConfig  `validate:"-"`

	// optional infrastructure, disabled when empty
	PostgresURI       string
	RedisURI          string
	RedisPassword     string
	SubmissionLockTTL time.Duration `validate:"gt=0"`
	AMQPURI           string
	SentryDSN         string
}

// DotFile returns the .env file for the environment named by API_ENV
func DotFile() (string, Environment) {
	if os.Getenv("API_ENV") == "production" {
		return ".env.production", EnvProduction
	}
	return ".env.development", EnvDevelopment
}

// Load reads the configuration from the process environment
func Load() (*Config, error) {
	_, env := DotFile()

	ttl, err := time.ParseDuration(getEnvOrDefault("SUBMISSION_LOCK_TTL", "30s"))
	if err != nil {
		return nil, extErrors.Wrap(err, "Invalid SUBMISSION_LOCK_TTL")
	}

	c := &Config{
		Environment: env,
		ListenAddr:  getEnvOrDefault("LISTEN_ADDR", ":8080"),
		StaticDir:   getEnvOrDefault("STATIC_DIR", "public"),
		CORSOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		Backend:     strings.ToLower(getEnvOrDefault("DIRECTORY_BACKEND", BackendShopify)),
		Shopify: ShopifyConfig{
			ShopName:   os.Getenv("SHOP_NAME"),
			APIKey:     os.Getenv("SHOPIFY_API_KEY"),
			Password:   os.Getenv("SHOPIFY_PASSWORD"),
			APIVersion: getEnvOrDefault("SHOPIFY_API_VERSION", "2024-01"),
		},
		Stripe: StripeConfig{
			Key: os.Getenv("STRIPE_KEY"),
		},
		PostgresURI:       os.Getenv("POSTGRES_URI"),
		RedisURI:          os.Getenv("REDIS_URI"),
		RedisPassword:     os.Getenv("REDIS_PW"),
		SubmissionLockTTL: ttl,
		AMQPURI:           os.Getenv("AMQP_URI"),
		SentryDSN:         os.Getenv("SENTRY_DSN"),
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the general settings and the credentials of the selected backend
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return extErrors.Wrap(err, "Invalid configuration")
	}
	var err error
	switch c.Backend {
	case BackendShopify:
		err = validate.Struct(&c.Shopify)
	case BackendStripe:
		err = validate.Struct(&c.Stripe)
	}
	if err != nil {
		return extErrors.Wrapf(err, "Invalid %s configuration", c.Backend)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
