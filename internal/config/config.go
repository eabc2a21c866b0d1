// Package config loads service settings from defaults, an optional YAML
// file and the environment, in that order of precedence (last wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Defaults
// =============================================================================

const (
	DefaultDriver   = "mysql"
	DefaultDBHost   = "localhost"
	DefaultDBPort   = 3306
	DefaultDBUser   = "monitor"
	DefaultDBPass   = "monitor123"
	DefaultDBName   = "monitoring"
	DefaultDBPath   = "../db/metrics.db"
	DefaultPoolSize = 10

	// DefaultConnectRetries is the startup connection budget. Attempts are
	// spaced by DefaultRetryBackoff, doubling each time (2s, 4s, 8s, 16s).
	DefaultConnectRetries = 5
	DefaultRetryBackoff   = 2 * time.Second
	DefaultDialTimeout    = 5 * time.Second

	DefaultPort = 8080

	// DefaultAPIName tags every error body so replicas behind one ingress
	// can be told apart.
	DefaultAPIName = "Go"

	// DefaultRequestTimeout bounds every database call made for a request,
	// including the wait for a pooled connection.
	DefaultRequestTimeout  = 5 * time.Second
	DefaultShutdownTimeout = 25 * time.Second

	DefaultLogDir   = "../log"
	DefaultLogFile  = "webService.log"
	DefaultLogLevel = "info"
)

// Config is the full service configuration.
type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Log      Log      `yaml:"log"`
}

type Server struct {
	Port            int           `yaml:"port"`
	APIName         string        `yaml:"api_name"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Database struct {
	Driver         string        `yaml:"driver"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	Name           string        `yaml:"name"`
	Path           string        `yaml:"path"`
	PoolSize       int           `yaml:"pool_size"`
	ConnectRetries int           `yaml:"connect_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
}

type Log struct {
	Dir     string `yaml:"dir"`
	File    string `yaml:"file"`
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

func Default() Config {
	return Config{
		Server: Server{
			Port:            DefaultPort,
			APIName:         DefaultAPIName,
			RequestTimeout:  DefaultRequestTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Database: Database{
			Driver:         DefaultDriver,
			Host:           DefaultDBHost,
			Port:           DefaultDBPort,
			User:           DefaultDBUser,
			Password:       DefaultDBPass,
			Name:           DefaultDBName,
			Path:           DefaultDBPath,
			PoolSize:       DefaultPoolSize,
			ConnectRetries: DefaultConnectRetries,
			RetryBackoff:   DefaultRetryBackoff,
			DialTimeout:    DefaultDialTimeout,
		},
		Log: Log{
			Dir:     DefaultLogDir,
			File:    DefaultLogFile,
			Level:   DefaultLogLevel,
			Console: true,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the process environment. The returned warnings name
// environment values that were ignored.
func Load(path string) (Config, []string, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, nil, err
		}
	}

	warnings := cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return Config{}, warnings, err
	}
	return cfg, warnings, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment. Unset variables keep the
// current value; malformed numbers and durations are skipped and reported.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) []string {
	var warnings []string

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			warnings = append(warnings, fmt.Sprintf("ignoring %s=%q: not a positive integer", key, v))
			return
		}
		*dst = n
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			warnings = append(warnings, fmt.Sprintf("ignoring %s=%q: not a positive duration", key, v))
			return
		}
		*dst = d
	}
	flag := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("ignoring %s=%q: not a boolean", key, v))
			return
		}
		*dst = b
	}

	str("DB_DRIVER", &c.Database.Driver)
	str("DB_HOST", &c.Database.Host)
	num("DB_PORT", &c.Database.Port)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_NAME", &c.Database.Name)
	str("DB_PATH", &c.Database.Path)
	num("DB_POOL_SIZE", &c.Database.PoolSize)
	num("DB_CONNECT_RETRIES", &c.Database.ConnectRetries)
	dur("DB_RETRY_BACKOFF", &c.Database.RetryBackoff)

	num("PORT", &c.Server.Port)
	str("API_NAME", &c.Server.APIName)
	dur("REQUEST_TIMEOUT", &c.Server.RequestTimeout)

	str("LOG_DIR", &c.Log.Dir)
	str("LOG_LEVEL", &c.Log.Level)
	flag("LOG_CONSOLE", &c.Log.Console)

	return warnings
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "mysql", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: must be mysql or sqlite3", c.Database.Driver))
	}
	if c.Database.Driver == "sqlite3" && c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required for sqlite3"))
	}
	if c.Database.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("database.pool_size %d: must be positive", c.Database.PoolSize))
	}
	if c.Database.ConnectRetries <= 0 {
		errs = append(errs, fmt.Errorf("database.connect_retries %d: must be positive", c.Database.ConnectRetries))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d: out of range", c.Server.Port))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server.request_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// Addr is the HTTP listen address.
func (s Server) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}
