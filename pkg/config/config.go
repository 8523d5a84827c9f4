package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "PETSHOP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv               = "PETSHOP_APP_ENV"
	EnvPort                 = "PETSHOP_APP_PORT"
	EnvLogLevel             = "PETSHOP_LOG_LEVEL"
	EnvStoreDriver          = "PETSHOP_STORE_DRIVER"
	EnvStoreSQLitePath      = "PETSHOP_STORE_SQLITE_PATH"
	EnvStoreDSN             = "PETSHOP_STORE_DSN"
	EnvRedisURL             = "PETSHOP_REDIS_URL"
	EnvRedisAddr            = "PETSHOP_REDIS_ADDR"
	EnvFirebaseEnabled      = "PETSHOP_FIREBASE_ENABLED"
	EnvFirebaseProjectID    = "PETSHOP_FIREBASE_PROJECT_ID"
	EnvFirebaseAPIKey       = "PETSHOP_FIREBASE_WEB_API_KEY"
	EnvCreditsStartingGrant = "PETSHOP_CREDITS_STARTING_GRANT"
	EnvBookingRefund        = "PETSHOP_BOOKING_REFUND_CREDITS_ON_CANCEL"
	EnvLocalAdminEmail      = "PETSHOP_LOCAL_ADMIN_EMAIL"
	EnvLocalAdminPassword   = "PETSHOP_LOCAL_ADMIN_PASSWORD"
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
)

type Config struct {
	App      AppConfig
	Store    StoreConfig
	Redis    RedisConfig
	Firebase FirebaseConfig
	Local    LocalBackendConfig
	Password PasswordConfig
	Credits  CreditsConfig
	Booking  BookingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if err := c.Store.validate(); err != nil {
		return err
	}
	if c.Store.NormalizedDriver() == StoreDriverRedis && c.Redis.URL == "" && c.Redis.Address == "" {
		return fmt.Errorf("%s or %s is required for the redis store driver", EnvRedisURL, EnvRedisAddr)
	}
	if c.Firebase.Enabled {
		if c.Firebase.ProjectID == "" {
			return fmt.Errorf("%s is required when firebase is enabled", EnvFirebaseProjectID)
		}
		if c.Firebase.WebAPIKey == "" {
			return fmt.Errorf("%s is required when firebase is enabled", EnvFirebaseAPIKey)
		}
	}
	if (c.Local.AdminEmail == "") != (c.Local.AdminPassword == "") {
		return fmt.Errorf("%s and %s must be set together", EnvLocalAdminEmail, EnvLocalAdminPassword)
	}
	if c.Credits.StartingGrant < 0 {
		return fmt.Errorf("%s must not be negative", EnvCreditsStartingGrant)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"PETSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"PETSHOP_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PETSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PETSHOP_LOG_WARN_STACK" default:"false"`

	CORSOrigins     []string      `envconfig:"PETSHOP_CORS_ORIGINS"`
	ShutdownTimeout time.Duration `envconfig:"PETSHOP_SHUTDOWN_TIMEOUT" default:"10s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// StoreConfig selects the durable key-value backend that holds session state.
type StoreConfig struct {
	Driver     string `envconfig:"PETSHOP_STORE_DRIVER" default:"sqlite"`
	SQLitePath string `envconfig:"PETSHOP_STORE_SQLITE_PATH" default:"petshop.db"`
	DSN        string `envconfig:"PETSHOP_STORE_DSN"`
	Namespace  string `envconfig:"PETSHOP_STORE_NAMESPACE" default:"default"`

	AutoMigrate     bool          `envconfig:"PETSHOP_STORE_AUTO_MIGRATE" default:"true"`
	MaxOpenConns    int           `envconfig:"PETSHOP_STORE_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"PETSHOP_STORE_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"PETSHOP_STORE_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PETSHOP_STORE_CONN_MAX_IDLE_TIME" default:"10m"`
}

// NormalizedDriver returns the lower-cased driver name.
func (s StoreConfig) NormalizedDriver() string {
	return strings.ToLower(strings.TrimSpace(s.Driver))
}

// IsSQL reports whether the store is backed by gorm.
func (s StoreConfig) IsSQL() bool {
	driver := s.NormalizedDriver()
	return driver == StoreDriverSQLite || driver == StoreDriverPostgres
}

func (s StoreConfig) validate() error {
	switch s.NormalizedDriver() {
	case StoreDriverMemory, StoreDriverRedis:
		return nil
	case StoreDriverSQLite:
		if strings.TrimSpace(s.SQLitePath) == "" {
			return fmt.Errorf("%s is required for the sqlite store driver", EnvStoreSQLitePath)
		}
		return nil
	case StoreDriverPostgres:
		if strings.TrimSpace(s.DSN) == "" {
			return fmt.Errorf("%s is required for the postgres store driver", EnvStoreDSN)
		}
		return nil
	}
	return fmt.Errorf("unsupported %s %q", EnvStoreDriver, s.Driver)
}

type RedisConfig struct {
	URL          string        `envconfig:"PETSHOP_REDIS_URL"`
	Address      string        `envconfig:"PETSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"PETSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"PETSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PETSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PETSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PETSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PETSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PETSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// FirebaseConfig configures the remote auth/document collaborator.
type FirebaseConfig struct {
	Enabled         bool          `envconfig:"PETSHOP_FIREBASE_ENABLED" default:"false"`
	ProjectID       string        `envconfig:"PETSHOP_FIREBASE_PROJECT_ID"`
	CredentialsFile string        `envconfig:"PETSHOP_FIREBASE_CREDENTIALS_FILE"`
	WebAPIKey       string        `envconfig:"PETSHOP_FIREBASE_WEB_API_KEY"`
	UsersCollection string        `envconfig:"PETSHOP_FIREBASE_USERS_COLLECTION" default:"users"`
	Bookings        string        `envconfig:"PETSHOP_FIREBASE_BOOKINGS_COLLECTION" default:"bookings"`
	RequestTimeout  time.Duration `envconfig:"PETSHOP_FIREBASE_REQUEST_TIMEOUT" default:"10s"`
}

// LocalBackendConfig seeds the offline backend used when firebase is disabled.
type LocalBackendConfig struct {
	AdminEmail    string `envconfig:"PETSHOP_LOCAL_ADMIN_EMAIL"`
	AdminPassword string `envconfig:"PETSHOP_LOCAL_ADMIN_PASSWORD"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PETSHOP_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PETSHOP_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PETSHOP_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PETSHOP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PETSHOP_ARGON_KEY_LEN" default:"32"`
}

// CreditsConfig holds LuckCoins policy.
type CreditsConfig struct {
	StartingGrant int64 `envconfig:"PETSHOP_CREDITS_STARTING_GRANT" default:"50"`
}

// BookingConfig holds booking policy knobs.
type BookingConfig struct {
	RefundCreditsOnCancel bool `envconfig:"PETSHOP_BOOKING_REFUND_CREDITS_ON_CANCEL" default:"false"`
}
