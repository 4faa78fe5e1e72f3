package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	Service ServiceConfig
	DB      DBConfig
	Redis   RedisConfig
	Catalog CatalogConfig
	Restock RestockConfig
	Session SessionConfig
	Cron    CronConfig

	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CAJA_APP_ENV" required:"true"`
	Port         string `envconfig:"CAJA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CAJA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CAJA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CAJA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CAJA_DB_DSN"`
	Driver string `envconfig:"CAJA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CAJA_DB_HOST"`
	LegacyPort     int    `envconfig:"CAJA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CAJA_DB_USER"`
	LegacyPassword string `envconfig:"CAJA_DB_PASSWORD"`
	LegacyName     string `envconfig:"CAJA_DB_NAME"`
	LegacySSLMode  string `envconfig:"CAJA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CAJA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CAJA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CAJA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CAJA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CAJA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CAJA_REDIS_ADDR"`
	Password     string        `envconfig:"CAJA_REDIS_PASSWORD"`
	DB           int           `envconfig:"CAJA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CAJA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CAJA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CAJA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CAJA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CAJA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CatalogConfig tunes the background catalog snapshot refresher.
type CatalogConfig struct {
	RefreshInterval time.Duration `envconfig:"CAJA_CATALOG_REFRESH_INTERVAL" default:"30s"`
	RefreshTimeout  time.Duration `envconfig:"CAJA_CATALOG_REFRESH_TIMEOUT" default:"10s"`
}

// RestockConfig tunes the restock advisor thresholds.
type RestockConfig struct {
	DefaultThreshold int `envconfig:"CAJA_RESTOCK_DEFAULT_THRESHOLD" default:"5"`
	WindowDays       int `envconfig:"CAJA_RESTOCK_WINDOW_DAYS" default:"30"`
}

// SessionConfig tunes checkout session housekeeping.
type SessionConfig struct {
	IdleTTL time.Duration `envconfig:"CAJA_SESSION_IDLE_TTL" default:"4h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"CAJA_CRON_INTERVAL" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CAJA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CAJA_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
