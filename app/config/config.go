package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"example/cpl-trainer/app/models"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Logs     LogConfig
	DB       PostgresConfig
	Engine   EngineConfig
	Tiers    TierConfig
	Selector SelectorConfig
	HTTP     HTTPConfig
	Sessions SessionConfig
	QueueURL string
}

type LogConfig struct {
	Style string // "console" or "json"
	Level string
}

type PostgresConfig struct {
	Username string
	Password string
	URL      string
	Port     string
}

// Enabled reports whether a database host was configured.
func (p PostgresConfig) Enabled() bool {
	return p.URL != ""
}

type EngineConfig struct {
	Path     string
	Threads  int
	HashMB   int
	PoolSize int
}

type TierConfig struct {
	File    string // optional JSON tier table
	Default string
}

type SelectorConfig struct {
	Seed   uint64 // 0 = seeded from the clock
	Params models.SelectorParams
}

type HTTPConfig struct {
	Addr string
}

type SessionConfig struct {
	IdleTTL time.Duration // 0 keeps sessions until deleted
}

func LoadConfig() (*Config, error) {
	threads, err := intEnv("ENGINE_THREADS", 2)
	if err != nil {
		return nil, err
	}
	hash, err := intEnv("ENGINE_HASH_MB", 256)
	if err != nil {
		return nil, err
	}
	poolSize, err := intEnv("ENGINE_POOL_SIZE", runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	if poolSize <= 0 {
		return nil, fmt.Errorf("ENGINE_POOL_SIZE must be positive, got %d", poolSize)
	}

	var seed uint64
	if v := os.Getenv("SELECTOR_SEED"); v != "" {
		seed, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing SELECTOR_SEED: %w", err)
		}
	}

	params := models.DefaultSelectorParams()
	if params.TiltThreshold, err = intEnv("SELECTOR_TILT_THRESHOLD", params.TiltThreshold); err != nil {
		return nil, err
	}
	if params.TiltBonus, err = floatEnv("SELECTOR_TILT_BONUS", params.TiltBonus); err != nil {
		return nil, err
	}
	if params.SpreadCap, err = floatEnv("SELECTOR_SPREAD_CAP", params.SpreadCap); err != nil {
		return nil, err
	}
	if params.TiltThreshold < 0 || params.TiltBonus < 0 || params.SpreadCap < 0 {
		return nil, fmt.Errorf("selector overrides must be non-negative")
	}

	idleTTL := 2 * time.Hour
	if v := os.Getenv("SESSION_IDLE_TTL"); v != "" {
		if idleTTL, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("parsing SESSION_IDLE_TTL: %w", err)
		}
		if idleTTL < 0 {
			return nil, fmt.Errorf("SESSION_IDLE_TTL must not be negative, got %s", v)
		}
	}

	cfg := &Config{
		QueueURL: os.Getenv("QUEUE_URL"),
		Logs: LogConfig{
			Style: os.Getenv("LOG_STYLE"),
			Level: os.Getenv("LOG_LEVEL"),
		},
		DB: PostgresConfig{
			Username: os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PWD"),
			URL:      os.Getenv("POSTGRES_URL"),
			Port:     os.Getenv("POSTGRES_PORT"),
		},
		Engine: EngineConfig{
			Path:     stringEnv("ENGINE_PATH", "stockfish"),
			Threads:  threads,
			HashMB:   hash,
			PoolSize: poolSize,
		},
		Tiers: TierConfig{
			File:    os.Getenv("TIERS_FILE"),
			Default: stringEnv("DEFAULT_TIER", "cpl30"),
		},
		Selector: SelectorConfig{
			Seed:   seed,
			Params: params,
		},
		HTTP: HTTPConfig{
			Addr: stringEnv("HTTP_ADDR", "0.0.0.0:8080"),
		},
		Sessions: SessionConfig{
			IdleTTL: idleTTL,
		},
	}

	return cfg, nil
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("converting string to int: %s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("converting string to float: %s: %w", key, err)
	}
	return f, nil
}
