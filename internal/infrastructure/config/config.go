package config

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Credential store backends.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreMongo  = "mongo"
)

type Config struct {
	BackendURL     string        `env:"BACKEND_URL,     default=http://localhost:7878/api" validate:"required,url"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT, default=10s"                       validate:"gt=0"`
	LogLevel       string        `env:"LOG_LEVEL,       default=info"                      validate:"oneof=trace debug info warn warning error"`
	LogPretty      bool          `env:"LOG_PRETTY,      default=true"`
	PollInterval   time.Duration `env:"POLL_INTERVAL,   default=5s"                        validate:"gt=0"`
	MetricsAddr    string        `env:"METRICS_ADDR"                                       validate:"omitempty,hostname_port"`

	Credentials CredentialConfig
	Redis       RedisConfig
	Mongo       MongoConfig
}

type CredentialConfig struct {
	Store string `env:"CREDENTIAL_STORE, default=file"  validate:"oneof=file memory redis mongo"`
	Key   string `env:"CREDENTIAL_KEY,   default=token" validate:"required"`
	File  string `env:"CREDENTIAL_FILE"`
}

type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR,       default=localhost:6379"`
	DB        int    `env:"REDIS_DB,         default=0"              validate:"gte=0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX, default=presencectl:"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=presencectl"`
}

// Load reads configuration from the process environment and validates it.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through l. Tests pass envconfig.MapLookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the settings the selected
// credential store depends on.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Credentials.Store {
	case StoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: REDIS_ADDR is required for the redis credential store")
		}
	case StoreMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return fmt.Errorf("config: MONGO_URI and MONGO_DB are required for the mongo credential store")
		}
	}
	return nil
}
