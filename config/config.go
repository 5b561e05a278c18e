package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Runtime environments. Dev-mode OTP shortcuts must never activate in production.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

// Config holds application configuration loaded from environment.
type Config struct {
	AppEnv    string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	AWS       AWSConfig
	Hydra     HydraConfig
	Email     EmailConfig
	Marketing MarketingConfig
	Stripe    StripeConfig
	Wallet    WalletConfig
	Printing  PrintingConfig
	Scoping   ScopingConfig
	Admin     AdminConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// JWTConfig holds admin bearer-token signing settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and S3 bucket names.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	PassesBucket         string
	AssetsBucket         string
	PresignExpireMinutes int
}

// HydraConfig selects the OTP identity provider endpoint by runtime mode.
type HydraConfig struct {
	ProductionURL string
	SandboxURL    string
	TimeoutSec    int
	DevCode       string // fixed code accepted outside production
}

// BaseURL returns the provider endpoint for the given runtime environment.
func (c HydraConfig) BaseURL(appEnv string) string {
	if appEnv == EnvProduction {
		return c.ProductionURL
	}
	return c.SandboxURL
}

// EmailConfig for SMTP delivery of confirmation mail.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// Enabled reports whether outbound email is configured.
func (c EmailConfig) Enabled() bool { return c.SMTPHost != "" }

// MarketingConfig for the external marketing platform sync (Iterable-style API).
type MarketingConfig struct {
	BaseURL string
	APIKey  string
}

// Enabled reports whether marketing sync is configured.
func (c MarketingConfig) Enabled() bool { return c.APIKey != "" }

// StripeConfig for paid-event checkout.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// Enabled reports whether payments are configured.
func (c StripeConfig) Enabled() bool { return c.SecretKey != "" }

// WalletConfig for the Apple Wallet pass signing service.
type WalletConfig struct {
	SignerURL        string
	PassTypeID       string
	TeamID           string
	OrganizationName string
}

// Enabled reports whether wallet passes are configured.
func (c WalletConfig) Enabled() bool { return c.SignerURL != "" }

// PrintingConfig for the network badge printer bridge.
type PrintingConfig struct {
	BridgeURL  string
	TimeoutSec int
}

// Enabled reports whether badge printing is configured.
func (c PrintingConfig) Enabled() bool { return c.BridgeURL != "" }

// ScopingConfig controls market-based admin visibility restrictions.
type ScopingConfig struct {
	MarketScopingEnabled bool
}

// AdminConfig carries the bootstrap admin allowlist used before any admin
// rows exist in the database.
type AdminConfig struct {
	BootstrapEmails []string
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool { return c.AppEnv == EnvProduction }

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "12"))

	cfg := &Config{
		AppEnv: getEnv("APP_ENV", EnvDevelopment),
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/events?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "events"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
			MinConns: getEnvInt("DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			PassesBucket:         getEnv("AWS_S3_PASSES_BUCKET", "event-wallet-passes"),
			AssetsBucket:         getEnv("AWS_S3_ASSETS_BUCKET", "event-badge-assets"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Hydra: HydraConfig{
			ProductionURL: getEnv("HYDRA_URL", ""),
			SandboxURL:    getEnv("HYDRA_SANDBOX_URL", ""),
			TimeoutSec:    getEnvInt("HYDRA_TIMEOUT_SEC", 10),
			DevCode:       getEnv("OTP_DEV_CODE", "000000"),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Lumen Events"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
		Marketing: MarketingConfig{
			BaseURL: getEnv("MARKETING_API_URL", "https://api.iterable.com"),
			APIKey:  getEnv("MARKETING_API_KEY", ""),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Wallet: WalletConfig{
			SignerURL:        getEnv("WALLET_SIGNER_URL", ""),
			PassTypeID:       getEnv("WALLET_PASS_TYPE_ID", ""),
			TeamID:           getEnv("WALLET_TEAM_ID", ""),
			OrganizationName: getEnv("WALLET_ORG_NAME", "Lumen Events"),
		},
		Printing: PrintingConfig{
			BridgeURL:  getEnv("PRINTER_BRIDGE_URL", ""),
			TimeoutSec: getEnvInt("PRINTER_BRIDGE_TIMEOUT_SEC", 5),
		},
		Scoping: ScopingConfig{
			MarketScopingEnabled: getEnvBool("MARKET_SCOPING_ENABLED", false),
		},
		Admin: AdminConfig{
			BootstrapEmails: splitTrim(getEnv("BOOTSTRAP_ADMIN_EMAILS", ""), ","),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
