package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables or config files.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DatabaseDriver string `mapstructure:"DATABASE_DRIVER" validate:"required,oneof=postgres sqlite"`
	DatabaseURL    string `mapstructure:"DATABASE_URL" validate:"required"`
	AutoMigrate    bool   `mapstructure:"AUTO_MIGRATE"`

	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL" validate:"required"`

	SignupBonusPoints  int64         `mapstructure:"SIGNUP_BONUS_POINTS" validate:"gte=0"`
	PublishCostPercent int64         `mapstructure:"PUBLISH_COST_PERCENT" validate:"gte=0,lte=1000"`
	PublishCostFlat    int64         `mapstructure:"PUBLISH_COST_FLAT" validate:"gte=0"`
	MaxFillDuration    time.Duration `mapstructure:"MAX_FILL_DURATION" validate:"required"`
	CreditOnApprove    int           `mapstructure:"CREDIT_ON_APPROVE" validate:"gte=-100,lte=100"`
	CreditOnReject     int           `mapstructure:"CREDIT_ON_REJECT" validate:"gte=-100,lte=100"`
	HonorThreshold     int           `mapstructure:"HONOR_THRESHOLD" validate:"gte=0,lte=100"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS" validate:"gt=0"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST" validate:"gte=1"`
	// TrustProxy trusts X-Forwarded-For and X-Real-IP for client addresses.
	TrustProxy bool `mapstructure:"TRUST_PROXY"`

	AsynqConcurrency int           `mapstructure:"ASYNQ_CONCURRENCY" validate:"gte=1,lte=1000"`
	ExpireInterval   time.Duration `mapstructure:"EXPIRE_INTERVAL" validate:"required"`
	AuditInterval    time.Duration `mapstructure:"AUDIT_INTERVAL" validate:"required"`

	GoMaxProcs int `mapstructure:"GOMAXPROCS" validate:"gte=0,lte=4096"`
}

var (
	cfg      *Config
	validate = validator.New(validator.WithRequiredStructEnabled())
)

var durationKeys = []string{
	"SHUTDOWN_TIMEOUT",
	"REQUEST_TIMEOUT",
	"TOKEN_TTL",
	"MAX_FILL_DURATION",
	"EXPIRE_INTERVAL",
	"AUDIT_INTERVAL",
}

// Load initializes configuration using Viper. It loads from .env if present,
// applies defaults, binds env vars, and validates the result.
func Load() (*Config, error) {
	// Load .env if present (non-fatal)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	setDefaults(v)

	// Optional config file
	_ = v.ReadInConfig()

	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key)
	}
	for _, key := range []string{"DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD", "JWT_SECRET"} {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	// Parse duration types that may come as string
	for _, key := range durationKeys {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		switch key {
		case "SHUTDOWN_TIMEOUT":
			c.ShutdownTimeout = d
		case "REQUEST_TIMEOUT":
			c.RequestTimeout = d
		case "TOKEN_TTL":
			c.TokenTTL = d
		case "MAX_FILL_DURATION":
			c.MaxFillDuration = d
		case "EXPIRE_INTERVAL":
			c.ExpireInterval = d
		case "AUDIT_INTERVAL":
			c.AuditInterval = d
		}
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if c.AppEnv == "production" && len(c.JWTSecret) < 32 {
		return nil, fmt.Errorf("invalid configuration: JWT_SECRET must be at least 32 bytes in production")
	}

	if c.GoMaxProcs > 0 {
		runtime.GOMAXPROCS(c.GoMaxProcs)
	}

	cfg = &c
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("AUTO_MIGRATE", false)
	v.SetDefault("TOKEN_TTL", "1h")
	v.SetDefault("SIGNUP_BONUS_POINTS", 20)
	v.SetDefault("PUBLISH_COST_PERCENT", 100)
	v.SetDefault("PUBLISH_COST_FLAT", 0)
	v.SetDefault("MAX_FILL_DURATION", "4h")
	v.SetDefault("CREDIT_ON_APPROVE", 1)
	v.SetDefault("CREDIT_ON_REJECT", -2)
	v.SetDefault("HONOR_THRESHOLD", 85)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("ASYNQ_CONCURRENCY", 10)
	v.SetDefault("EXPIRE_INTERVAL", "1m")
	v.SetDefault("AUDIT_INTERVAL", "1h")
	v.SetDefault("GOMAXPROCS", 0)
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}
