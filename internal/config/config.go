package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// Config stores runtime configuration for the draft server.
type Config struct {
	HTTPAddr            string
	DatabaseURL         string
	DBMaxOpenConns      int
	DBMaxIdleConns      int
	DBConnMaxLifetime   time.Duration
	CatalogPath         string
	DefaultPickDuration time.Duration
	DefaultRounds       int
	AutoPickRetry       time.Duration
	SaveTimeout         time.Duration
	SubscriberQueueSize int
	BroadcastWorkers    int
	WriteTimeout        time.Duration
	ReadTimeout         time.Duration
	WSOriginPatterns    []string
	RecoverWorkers      int
	ShutdownTimeout     time.Duration
	LogLevel            string
}

func Default() Config {
	return Config{
		HTTPAddr:            ":8080",
		DBMaxOpenConns:      10,
		DBMaxIdleConns:      10,
		DBConnMaxLifetime:   5 * time.Minute,
		CatalogPath:         "data/players.yaml",
		DefaultPickDuration: 90 * time.Second,
		DefaultRounds:       15,
		AutoPickRetry:       5 * time.Second,
		SaveTimeout:         5 * time.Second,
		SubscriberQueueSize: 32,
		BroadcastWorkers:    256,
		WriteTimeout:        3 * time.Second,
		ReadTimeout:         60 * time.Second,
		RecoverWorkers:      8,
		ShutdownTimeout:     10 * time.Second,
		LogLevel:            "info",
	}
}

func Load() (Config, error) {
	cfg := Default()
	var err error

	cfg.HTTPAddr = readString("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DatabaseURL = readString("DATABASE_URL", cfg.DatabaseURL)
	cfg.CatalogPath = readString("CATALOG_PATH", cfg.CatalogPath)
	cfg.LogLevel = strings.ToLower(readString("LOG_LEVEL", cfg.LogLevel))
	cfg.WSOriginPatterns = readList("WS_ORIGIN_PATTERNS")

	if cfg.DBMaxOpenConns, err = readPositiveInt("DB_MAX_OPEN_CONNS", cfg.DBMaxOpenConns); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxIdleConns, err = readPositiveInt("DB_MAX_IDLE_CONNS", cfg.DBMaxIdleConns); err != nil {
		return Config{}, err
	}
	if cfg.DBConnMaxLifetime, err = readDuration("DB_CONN_MAX_LIFETIME", cfg.DBConnMaxLifetime); err != nil {
		return Config{}, err
	}
	if cfg.DefaultRounds, err = readPositiveInt("DEFAULT_ROUNDS", cfg.DefaultRounds); err != nil {
		return Config{}, err
	}
	pickSeconds, err := readPositiveInt("DEFAULT_PICK_SECONDS", int(cfg.DefaultPickDuration/time.Second))
	if err != nil {
		return Config{}, err
	}
	cfg.DefaultPickDuration = time.Duration(pickSeconds) * time.Second

	if cfg.AutoPickRetry, err = readDuration("AUTOPICK_RETRY", cfg.AutoPickRetry); err != nil {
		return Config{}, err
	}
	if cfg.SaveTimeout, err = readDuration("SAVE_TIMEOUT", cfg.SaveTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SubscriberQueueSize, err = readPositiveInt("SUBSCRIBER_QUEUE_SIZE", cfg.SubscriberQueueSize); err != nil {
		return Config{}, err
	}
	if cfg.BroadcastWorkers, err = readPositiveInt("BROADCAST_WORKERS", cfg.BroadcastWorkers); err != nil {
		return Config{}, err
	}
	if cfg.WriteTimeout, err = readDuration("WRITE_TIMEOUT", cfg.WriteTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ReadTimeout, err = readDuration("READ_TIMEOUT", cfg.ReadTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RecoverWorkers, err = readPositiveInt("RECOVER_WORKERS", cfg.RecoverWorkers); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = readDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("invalid LOG_LEVEL %q", cfg.LogLevel)
	}
	return cfg, nil
}

func readString(key, fallback string) string {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		return raw
	}
	return fallback
}

// readList splits a comma separated variable, dropping empty entries.
func readList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func readPositiveInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("parse %s: must be positive", key)
	}
	return value, nil
}

func readDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("parse %s: must be positive", key)
	}
	return value, nil
}
