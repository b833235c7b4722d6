package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration assembled from the environment.
type Config struct {
	Port string
	Env  string

	DB    DBConfig
	Redis RedisConfig

	ServiceJWTSecret string

	AdapterMaxPages   int
	AdapterRatePerSec float64
	AdapterTimeout    time.Duration
	AdapterRetries    int
	CacheTTL          time.Duration

	OTLPEndpoint    string
	DefaultTimezone string
	WindowDays      int
	IngestPerMinute int
}

// DBConfig holds the Postgres connection and pool settings.
type DBConfig struct {
	Host            string
	User            string
	Password        string
	Name            string
	Port            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN renders the key/value connection string the postgres driver expects.
func (c DBConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode
}

// RedisConfig holds the cache connection settings.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// Load reads the configuration. Call LoadEnv first to pick up a .env file.
func Load() Config {
	return Config{
		Port: GetEnv("PORT", "8080"),
		Env:  GetEnv("ENV", "development"),
		DB: DBConfig{
			Host:            GetEnv("DB_HOST", "localhost"),
			User:            GetEnv("DB_USER", "postgres"),
			Password:        GetEnv("DB_PASSWORD", "postgres"),
			Name:            GetEnv("DB_NAME", "revattest"),
			Port:            GetEnv("DB_PORT", "5432"),
			SSLMode:         GetEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    GetIntEnv("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    GetIntEnv("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetIntEnv("REDIS_DB", 0),
		},
		ServiceJWTSecret:  GetEnv("SERVICE_JWT_SECRET", ""),
		AdapterMaxPages:   GetIntEnv("ADAPTER_MAX_PAGES", 100),
		AdapterRatePerSec: GetFloatEnv("ADAPTER_RATE_PER_SEC", 5),
		AdapterTimeout:    GetDurationEnv("ADAPTER_TIMEOUT", 30*time.Second),
		AdapterRetries:    GetIntEnv("ADAPTER_MAX_RETRIES", 3),
		CacheTTL:          GetDurationEnv("CACHE_TTL", 24*time.Hour),
		OTLPEndpoint:      GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		DefaultTimezone:   GetEnv("DEFAULT_TIMEZONE", "UTC"),
		WindowDays:        GetIntEnv("WINDOW_DAYS", 30),
		IngestPerMinute:   GetIntEnv("INGEST_PER_MINUTE", 10),
	}
}

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetFloatEnv returns a float environment variable or a default value.
func GetFloatEnv(key string, defaultVal float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// GetDurationEnv parses values like "30s" or "1h". Bare integers are seconds.
func GetDurationEnv(key string, defaultVal time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}

// GetBoolEnv accepts the forms strconv.ParseBool does.
func GetBoolEnv(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
	}
	return defaultVal
}

// IsProduction checks if the app runs in production mode.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}
