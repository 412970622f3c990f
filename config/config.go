package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. The backend reads Server,
// Database, Redis, JWT, OTP and Metrics; the simulator reads Client, Sync and
// Redis (as its device-local cache).
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	OTP      OTPConfig      `mapstructure:"otp"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Client   ClientConfig   `mapstructure:"client"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	HealthPeriod    time.Duration `mapstructure:"health_period"`
}

// DSN returns the PostgreSQL connection URL with credentials escaped.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// OTPConfig controls one-time passcode issuance.
type OTPConfig struct {
	CodeTTL        time.Duration `mapstructure:"code_ttl"`
	ResendInterval time.Duration `mapstructure:"resend_interval"`
	CodeLength     int           `mapstructure:"code_length"`
	SMSGatewayURL  string        `mapstructure:"sms_gateway_url"`
	SMSAPIKey      string        `mapstructure:"sms_api_key"`
	SenderID       string        `mapstructure:"sender_id"`
}

// SyncConfig controls the client-side state synchronization engine.
type SyncConfig struct {
	DebounceWindow  time.Duration `mapstructure:"debounce_window"`
	RemoteTimeout   time.Duration `mapstructure:"remote_timeout"`
	NotificationTTL time.Duration `mapstructure:"notification_ttl"`
	DefaultBalance  string        `mapstructure:"default_balance"` // decimal string
	Timezone        string        `mapstructure:"timezone"`
	CacheNamespace  string        `mapstructure:"cache_namespace"`
}

// Location resolves Timezone, falling back to the process local zone.
func (s SyncConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// ClientConfig is read by the simulator to reach the backend.
type ClientConfig struct {
	APIBaseURL    string        `mapstructure:"api_base_url"`
	IdentityToken string        `mapstructure:"identity_token"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	Language      string        `mapstructure:"language"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

var defaults = map[string]any{
	"server.host":             "0.0.0.0",
	"server.port":             8080,
	"server.mode":             "debug",
	"server.read_timeout":     "15s",
	"server.write_timeout":    "30s",
	"server.shutdown_timeout": "10s",

	"database.host":              "localhost",
	"database.port":              5432,
	"database.user":              "postgres",
	"database.password":          "postgres",
	"database.dbname":            "payquest",
	"database.sslmode":           "disable",
	"database.max_conns":         20,
	"database.min_conns":         2,
	"database.conn_max_lifetime": "30m",
	"database.health_period":     "1m",

	"redis.host":         "localhost",
	"redis.port":         6379,
	"redis.password":     "",
	"redis.db":           0,
	"redis.pool_size":    10,
	"redis.dial_timeout": "5s",

	"jwt.secret": "",
	"jwt.expiry": "24h",
	"jwt.issuer": "payquest",

	"otp.code_ttl":        "5m",
	"otp.resend_interval": "60s",
	"otp.code_length":     6,
	"otp.sms_gateway_url": "",
	"otp.sms_api_key":     "",
	"otp.sender_id":       "PAYQST",

	"sync.debounce_window":  "1s",
	"sync.remote_timeout":   "10s",
	"sync.notification_ttl": "5s",
	"sync.default_balance":  "10000",
	"sync.timezone":         "Local",
	"sync.cache_namespace":  "payquest",

	"client.api_base_url":   "http://localhost:8080",
	"client.identity_token": "",
	"client.http_timeout":   "15s",
	"client.language":       "en",

	"metrics.enabled": true,
	"metrics.path":    "/metrics",

	"log.level":  "info",
	"log.pretty": false,
}

// Load reads an optional YAML file (path, or config.yaml in . and ./config)
// and overlays PQ_-prefixed environment variables, so database.host is
// PQ_DATABASE_HOST.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("PQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// ValidateServer reports the settings the API server cannot start without.
func (c *Config) ValidateServer() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required (PQ_JWT_SECRET)"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, fmt.Errorf("database.min_conns %d exceeds max_conns %d", c.Database.MinConns, c.Database.MaxConns))
	}
	if c.OTP.CodeLength < 4 {
		errs = append(errs, fmt.Errorf("otp.code_length %d is too short", c.OTP.CodeLength))
	}
	return errors.Join(errs...)
}
