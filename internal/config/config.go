package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full engine configuration, loaded from the environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Logging   LoggingConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Engine    EngineConfig
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Environment  string
}

// DatabaseConfig holds the journal database settings. An empty URL
// selects the in-memory journal, which loses state on restart.
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds the rate limiter backend settings.
type RedisConfig struct {
	URL string
}

// LoggingConfig controls log level and format.
type LoggingConfig struct {
	Level  string
	Format string
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// RateLimitConfig toggles request rate limiting and sets the window
// budgets. The token endpoint carries its own, tighter budget.
type RateLimitConfig struct {
	Enabled       bool
	Requests      int
	Window        time.Duration
	TokenRequests int
	TokenWindow   time.Duration
	BlockDuration time.Duration
}

// EngineConfig holds domain wiring settings.
type EngineConfig struct {
	// StakeDenomination backs default vote weights: a voter's weight is
	// their spendable balance in this denomination.
	StakeDenomination string
	// Operators configures API callers as id|bcrypt-hash|cap,cap entries
	// separated by semicolons.
	Operators []OperatorConfig
}

// OperatorConfig is one configured API caller.
type OperatorConfig struct {
	ID           string
	SecretHash   string
	Capabilities []string
}

var (
	ErrMissingJWTSecret   = errors.New("JWT_SECRET is required")
	ErrInvalidOperatorDef = errors.New("invalid OPERATORS entry, want id|hash|cap,cap")
)

// Load reads configuration from the environment, honouring a local
// .env file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvOrDefault("SERVER_PORT", "8080"),
			ReadTimeout:  getEnvOrDefaultDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvOrDefaultDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvOrDefaultDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			Environment:  getEnvOrDefault("ENV", "development"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL: getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			TTL:    getEnvOrDefaultDuration("JWT_TTL", 15*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvOrDefaultBool("RATE_LIMIT_ENABLED", true),
			Requests:      getEnvOrDefaultInt("RATE_LIMIT_REQUESTS", 300),
			Window:        getEnvOrDefaultDuration("RATE_LIMIT_WINDOW", time.Minute),
			TokenRequests: getEnvOrDefaultInt("RATE_LIMIT_TOKEN_REQUESTS", 10),
			TokenWindow:   getEnvOrDefaultDuration("RATE_LIMIT_TOKEN_WINDOW", 15*time.Minute),
			BlockDuration: getEnvOrDefaultDuration("RATE_LIMIT_BLOCK_DURATION", 15*time.Minute),
		},
		Engine: EngineConfig{
			StakeDenomination: getEnvOrDefault("STAKE_DENOMINATION", "CORE"),
		},
	}

	if cfg.JWT.Secret == "" {
		return nil, ErrMissingJWTSecret
	}

	operators, err := parseOperators(os.Getenv("OPERATORS"))
	if err != nil {
		return nil, err
	}
	cfg.Engine.Operators = operators

	return cfg, nil
}

// parseOperators splits "id|hash|cap,cap;id2|hash2|" into operator
// definitions. Capabilities may be empty.
func parseOperators(value string) ([]OperatorConfig, error) {
	if value == "" {
		return nil, nil
	}
	entries := strings.Split(value, ";")
	operators := make([]OperatorConfig, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.SplitN(entry, "|", 3)
		if len(fields) != 3 || fields[0] == "" || fields[1] == "" {
			return nil, ErrInvalidOperatorDef
		}
		var caps []string
		for _, c := range strings.Split(fields[2], ",") {
			if c = strings.TrimSpace(c); c != "" {
				caps = append(caps, c)
			}
		}
		operators = append(operators, OperatorConfig{
			ID:           fields[0],
			SecretHash:   fields[1],
			Capabilities: caps,
		})
	}
	return operators, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvOrDefaultDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Second
		}
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
