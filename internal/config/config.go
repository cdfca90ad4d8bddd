package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Server configuration
type ServerConfig struct {
	Port               string `toml:"port"`
	Host               string `toml:"host"`
	ShutdownTimeoutSec int    `toml:"shutdown_timeout_sec"`
}

// MongoDB configuration
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	TimeoutSec int    `toml:"timeout_sec"`
}

// Token and registration settings
type AuthConfig struct {
	JWTSecret            string `toml:"jwt_secret"`
	JWTRefreshSecret     string `toml:"jwt_refresh_secret"`
	AccessTTLHours       int    `toml:"access_ttl_hours"`
	RefreshTTLHours      int    `toml:"refresh_ttl_hours"`
	OpenRoleRegistration bool   `toml:"open_role_registration"`
}

// Outbound mail. An empty Host logs messages instead of sending them.
type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

type AppConfig struct {
	Name        string `toml:"name"`
	FrontendURL string `toml:"frontend_url"`
}

// Bootstrap CEO account created on first start when no user has this email.
type SystemUserConfig struct {
	Name     string `toml:"name"`
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

// Assignee reconciler configuration
type ReconcileConfig struct {
	Enabled     bool `toml:"enabled"`
	IntervalSec int  `toml:"interval_sec"`
	BatchSize   int  `toml:"batch_size"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Mongo      MongoConfig      `toml:"mongo"`
	Auth       AuthConfig       `toml:"auth"`
	SMTP       SMTPConfig       `toml:"smtp"`
	App        AppConfig        `toml:"app"`
	SystemUser SystemUserConfig `toml:"system_user"`
	Reconcile  ReconcileConfig  `toml:"reconcile"`
	Log        LogConfig        `toml:"log"`
}

// Default configuration values
const (
	DefaultServerPort         = "5000"
	DefaultServerHost         = ""
	DefaultShutdownTimeoutSec = 15
	DefaultMongoURI           = "mongodb://localhost:27017/taskflow"
	DefaultMongoDB            = "taskflow"
	DefaultMongoTimeoutSec    = 10
	DefaultAccessTTLHours     = 7 * 24
	DefaultRefreshTTLHours    = 30 * 24
	DefaultSMTPPort           = 587
	DefaultMailFrom           = "noreply@taskflow.local"
	DefaultAppName            = "Taskflow"
	DefaultFrontendURL        = "http://localhost:3000"
	DefaultSystemUserName     = "System"
	DefaultSystemUserEmail    = "system@taskflow.local"
	// Reconciler defaults
	DefaultReconcileEnabled     = true
	DefaultReconcileIntervalSec = 60
	DefaultReconcileBatchSize   = 100
	DefaultLogLevel             = "info"
	// Pagination defaults
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Default returns a Config populated with default values only.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               DefaultServerPort,
			Host:               DefaultServerHost,
			ShutdownTimeoutSec: DefaultShutdownTimeoutSec,
		},
		Mongo: MongoConfig{
			URI:        DefaultMongoURI,
			Database:   DefaultMongoDB,
			TimeoutSec: DefaultMongoTimeoutSec,
		},
		Auth: AuthConfig{
			AccessTTLHours:  DefaultAccessTTLHours,
			RefreshTTLHours: DefaultRefreshTTLHours,
		},
		SMTP: SMTPConfig{
			Port: DefaultSMTPPort,
			From: DefaultMailFrom,
		},
		App: AppConfig{
			Name:        DefaultAppName,
			FrontendURL: DefaultFrontendURL,
		},
		SystemUser: SystemUserConfig{
			Name:  DefaultSystemUserName,
			Email: DefaultSystemUserEmail,
		},
		Reconcile: ReconcileConfig{
			Enabled:     DefaultReconcileEnabled,
			IntervalSec: DefaultReconcileIntervalSec,
			BatchSize:   DefaultReconcileBatchSize,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// Load builds the configuration from defaults, an optional TOML file at path
// and environment variables, in increasing precedence. A .env file in the
// working directory is loaded into the environment first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.ShutdownTimeoutSec = getEnvInt("SHUTDOWN_TIMEOUT_SEC", c.Server.ShutdownTimeoutSec)

	c.Mongo.URI = getEnv("MONGODB_URI", c.Mongo.URI)
	c.Mongo.Database = getEnv("MONGODB_DB", c.Mongo.Database)
	c.Mongo.TimeoutSec = getEnvInt("MONGODB_TIMEOUT_SEC", c.Mongo.TimeoutSec)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.JWTRefreshSecret = getEnv("JWT_REFRESH_SECRET", c.Auth.JWTRefreshSecret)
	c.Auth.AccessTTLHours = getEnvInt("JWT_EXPIRE_HOURS", c.Auth.AccessTTLHours)
	c.Auth.RefreshTTLHours = getEnvInt("JWT_REFRESH_EXPIRE_HOURS", c.Auth.RefreshTTLHours)
	c.Auth.OpenRoleRegistration = getEnvBool("OPEN_ROLE_REGISTRATION", c.Auth.OpenRoleRegistration)

	c.SMTP.Host = getEnv("SMTP_HOST", c.SMTP.Host)
	c.SMTP.Port = getEnvInt("SMTP_PORT", c.SMTP.Port)
	c.SMTP.Username = getEnv("SMTP_USER", c.SMTP.Username)
	c.SMTP.Password = getEnv("SMTP_PASS", c.SMTP.Password)
	c.SMTP.From = getEnv("MAIL_FROM", c.SMTP.From)

	c.App.Name = getEnv("APP_NAME", c.App.Name)
	c.App.FrontendURL = getEnv("FRONTEND_URL", c.App.FrontendURL)

	c.SystemUser.Name = getEnv("SYSTEM_USER_NAME", c.SystemUser.Name)
	c.SystemUser.Email = getEnv("SYSTEM_USER_EMAIL", c.SystemUser.Email)
	c.SystemUser.Password = getEnv("SYSTEM_USER_PASSWORD", c.SystemUser.Password)

	c.Reconcile.Enabled = getEnvBool("RECONCILE_ENABLED", c.Reconcile.Enabled)
	c.Reconcile.IntervalSec = getEnvInt("RECONCILE_INTERVAL_SEC", c.Reconcile.IntervalSec)
	c.Reconcile.BatchSize = getEnvInt("RECONCILE_BATCH_SIZE", c.Reconcile.BatchSize)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Auth.JWTRefreshSecret == "" {
		c.Auth.JWTRefreshSecret = c.Auth.JWTSecret
	}
	if c.Auth.AccessTTLHours <= 0 || c.Auth.RefreshTTLHours <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.Mongo.URI == "" || c.Mongo.Database == "" {
		return fmt.Errorf("mongo uri and database are required")
	}
	return nil
}

// Address returns the server address string
func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c *ServerConfig) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutSec <= 0 {
		return DefaultShutdownTimeoutSec * time.Second
	}
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

func (c *MongoConfig) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return DefaultMongoTimeoutSec * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c *AuthConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLHours) * time.Hour
}

func (c *AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLHours) * time.Hour
}

func (c *ReconcileConfig) Interval() time.Duration {
	if c.IntervalSec <= 0 {
		return DefaultReconcileIntervalSec * time.Second
	}
	return time.Duration(c.IntervalSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(value) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return defaultValue
}
