package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Session  SessionConfig
	Redis    RedisConfig
	Auth     AuthConfig
	CSRF     CSRFConfig
	Log      LogConfig
}

type ServerConfig struct {
	Addr            string
	Secure          bool
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN builds the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type SessionConfig struct {
	Name     string
	Backend  string
	HashKey  string
	BlockKey string
	// MaxAge is the cookie and server-side lifetime in seconds.
	MaxAge int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig carries the reserved admin identity used while no admin
// record exists, and the first-run setup token settings.
type AuthConfig struct {
	AdminName      string
	AdminEmail     string
	AdminPassword  string
	LegacyFallback bool
	BcryptCost     int
	SetupSecret    string
	SetupTokenTTL  time.Duration
}

type CSRFConfig struct {
	Enabled bool
	Key     string
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	BackendCookie   = "cookie"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.secure", false)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("db.driver", DriverPostgres)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "department_portal")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 25)
	v.SetDefault("db.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("session.name", "portal-session")
	v.SetDefault("session.backend", BackendCookie)
	v.SetDefault("session.hash_key", "")
	v.SetDefault("session.block_key", "")
	v.SetDefault("session.max_age", 24*60*60)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.admin_name", "Admin")
	v.SetDefault("auth.admin_email", "admin@college.edu")
	v.SetDefault("auth.admin_password", "admin123")
	v.SetDefault("auth.legacy_fallback", true)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.setup_secret", "")
	v.SetDefault("auth.setup_token_ttl", time.Hour)

	v.SetDefault("csrf.enabled", true)
	v.SetDefault("csrf.key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// db.host is read from DB_HOST, session.max_age from SESSION_MAX_AGE.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .env (when present) and the environment into a Config.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("config: load .env: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: stat .env: %w", err)
	}

	v := newViper()
	cfg := &Config{
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			Secure:          v.GetBool("server.secure"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("db.driver")),
			Host:            v.GetString("db.host"),
			Port:            v.GetString("db.port"),
			User:            v.GetString("db.user"),
			Password:        v.GetString("db.password"),
			Name:            v.GetString("db.name"),
			SSLMode:         v.GetString("db.sslmode"),
			MaxOpenConns:    v.GetInt("db.max_open_conns"),
			MaxIdleConns:    v.GetInt("db.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db.conn_max_lifetime"),
		},
		Session: SessionConfig{
			Name:     v.GetString("session.name"),
			Backend:  strings.ToLower(v.GetString("session.backend")),
			HashKey:  v.GetString("session.hash_key"),
			BlockKey: v.GetString("session.block_key"),
			MaxAge:   v.GetInt("session.max_age"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Auth: AuthConfig{
			AdminName:      v.GetString("auth.admin_name"),
			AdminEmail:     strings.ToLower(strings.TrimSpace(v.GetString("auth.admin_email"))),
			AdminPassword:  v.GetString("auth.admin_password"),
			LegacyFallback: v.GetBool("auth.legacy_fallback"),
			BcryptCost:     v.GetInt("auth.bcrypt_cost"),
			SetupSecret:    v.GetString("auth.setup_secret"),
			SetupTokenTTL:  v.GetDuration("auth.setup_token_ttl"),
		},
		CSRF: CSRFConfig{
			Enabled: v.GetBool("csrf.enabled"),
			Key:     v.GetString("csrf.key"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.Database.Driver)
	}
	switch c.Session.Backend {
	case BackendCookie, BackendRedis, BackendMemory:
	case BackendPostgres:
		if c.Database.Driver != DriverPostgres {
			return fmt.Errorf("config: SESSION_BACKEND=postgres requires DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("config: unknown SESSION_BACKEND %q", c.Session.Backend)
	}
	if c.Auth.AdminEmail == "" {
		return fmt.Errorf("config: AUTH_ADMIN_EMAIL must not be empty")
	}
	return nil
}
