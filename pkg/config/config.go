package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Quota        QuotaConfig
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
	Env          string `envconfig:"BALCAO_APP_ENV" required:"true"`
	Port         string `envconfig:"BALCAO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BALCAO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BALCAO_LOG_WARN_STACK" default:"false"`
	Timezone     string `envconfig:"BALCAO_APP_TIMEZONE" default:"America/Sao_Paulo"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Location resolves the configured timezone, falling back to UTC.
func (a AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type DBConfig struct {
	DSN    string `envconfig:"BALCAO_DB_DSN"`
	Driver string `envconfig:"BALCAO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BALCAO_DB_HOST"`
	LegacyPort     int    `envconfig:"BALCAO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BALCAO_DB_USER"`
	LegacyPassword string `envconfig:"BALCAO_DB_PASSWORD"`
	LegacyName     string `envconfig:"BALCAO_DB_NAME"`
	LegacySSLMode  string `envconfig:"BALCAO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BALCAO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BALCAO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BALCAO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BALCAO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BALCAO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BALCAO_REDIS_ADDR"`
	Password     string        `envconfig:"BALCAO_REDIS_PASSWORD"`
	DB           int           `envconfig:"BALCAO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BALCAO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BALCAO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BALCAO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BALCAO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BALCAO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BALCAO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BALCAO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BALCAO_JWT_EXPIRATION_MINUTES" default:"480"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BALCAO_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BALCAO_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BALCAO_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BALCAO_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BALCAO_ARGON_KEY_LEN" default:"32"`
}

type QuotaConfig struct {
	ManagerDailyLimit int           `envconfig:"BALCAO_QUOTA_MANAGER_DAILY_LIMIT" default:"20"`
	ClerkDailyLimit   int           `envconfig:"BALCAO_QUOTA_CLERK_DAILY_LIMIT" default:"5"`
	ReturnWindow      time.Duration `envconfig:"BALCAO_QUOTA_RETURN_WINDOW" default:"48h"`
	ReturnWindowLimit int           `envconfig:"BALCAO_QUOTA_RETURN_WINDOW_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BALCAO_AUTO_MIGRATE" default:"false"`
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
