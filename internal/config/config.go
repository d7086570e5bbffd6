package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Gateway GatewayConfig
	Payment PaymentConfig
	Cart    CartConfig
}

type ServerConfig struct {
	Addr    string
	BaseURL string // absolute, used to build the gateway return URL
	Env     string
}

type DBConfig struct {
	DSN string
}

type GatewayConfig struct {
	APIKey      string
	InitiateURL string
	VerifyURL   string
	RedirectURL string // hosted payment page; session id is appended
	Timeout     time.Duration
}

type PaymentConfig struct {
	// RialPerToman converts store amounts (toman) into the gateway's
	// minor unit (rial). Policy constant, not a gateway detail.
	RialPerToman int64
}

type CartConfig struct {
	CookieName   string
	CookieSecret string
	Secure       bool
}

// Load reads configuration from the environment. A .env file is honored
// when present (dev convenience; prod uses real env vars).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Server: ServerConfig{
			Addr:    getEnv("SERVER_ADDR", ":8080"),
			BaseURL: getEnv("BASE_URL", "http://localhost:8080"),
			Env:     getEnv("APP_ENV", "development"),
		},
		DB: DBConfig{
			DSN: os.Getenv("DB_DSN"),
		},
		Gateway: GatewayConfig{
			APIKey:      os.Getenv("GATEWAY_API_KEY"),
			InitiateURL: getEnv("GATEWAY_INITIATE_URL", "https://pay.example.com/send"),
			VerifyURL:   getEnv("GATEWAY_VERIFY_URL", "https://pay.example.com/verify"),
			RedirectURL: getEnv("GATEWAY_REDIRECT_URL", "https://pay.example.com/gateway"),
			Timeout:     getEnvDuration("GATEWAY_TIMEOUT", 15*time.Second),
		},
		Payment: PaymentConfig{
			RialPerToman: getEnvInt64("PAYMENT_RIAL_PER_TOMAN", 10),
		},
		Cart: CartConfig{
			CookieName:   getEnv("CART_COOKIE_NAME", "cart"),
			CookieSecret: os.Getenv("CART_COOKIE_SECRET"),
			Secure:       getEnv("APP_ENV", "development") == "production",
		},
	}

	if cfg.DB.DSN == "" {
		return Config{}, fmt.Errorf("config: DB_DSN is required")
	}
	if cfg.Gateway.APIKey == "" {
		return Config{}, fmt.Errorf("config: GATEWAY_API_KEY is required")
	}
	if cfg.Cart.CookieSecret == "" {
		return Config{}, fmt.Errorf("config: CART_COOKIE_SECRET is required")
	}
	if cfg.Payment.RialPerToman < 1 {
		return Config{}, fmt.Errorf("config: PAYMENT_RIAL_PER_TOMAN must be positive")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
