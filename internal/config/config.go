package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends for the channel list.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

var (
	// ErrInvalidBackend is returned for an unknown STORAGE_BACKEND.
	ErrInvalidBackend = errors.New("invalid storage backend")
	// ErrMissingDatabaseURL is returned when the postgres backend has no DATABASE_URL.
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required for the postgres backend")
	// ErrMissingRedisURL is returned when the redis backend has no REDIS_URL.
	ErrMissingRedisURL = errors.New("REDIS_URL is required for the redis backend")
)

// Config holds application configuration.
type Config struct {
	Backend     string `yaml:"storage_backend" env:"STORAGE_BACKEND"`
	DataDir     string `yaml:"data_dir" env:"DATA_DIR"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL    string `yaml:"redis_url" env:"REDIS_URL"`
	ServerPort  string `yaml:"server_port" env:"SERVER_PORT"`

	PlayerCommand string   `yaml:"player_command" env:"PLAYER_COMMAND"`
	PlayerArgs    []string `yaml:"player_args" env:"PLAYER_ARGS"`
	PlayerHLSArgs []string `yaml:"player_hls_args" env:"PLAYER_HLS_ARGS"`
	Autoplay      bool     `yaml:"autoplay" env:"AUTOPLAY"`

	UserAgent   string        `yaml:"user_agent" env:"FETCHER_USER_AGENT"`
	Timeout     time.Duration `yaml:"timeout" env:"FETCHER_TIMEOUT"`
	LogoWorkers int           `yaml:"logo_workers" env:"LOGO_WORKERS"`
	LogoRate    int           `yaml:"logo_rate" env:"LOGO_RATE"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		DataDir:       "./data",
		ServerPort:    "8080",
		PlayerCommand: "mpv",
		PlayerHLSArgs: []string{"--demuxer-lavf-format=hls"},
		Autoplay:      true,
		UserAgent:     "TVPlayer/1.0",
		Timeout:       30 * time.Second,
		LogoWorkers:   4,
		LogoRate:      10,
		LogLevel:      "info",
	}
}

// Load builds config from environment variables.
// If neither STORAGE_BACKEND nor DATABASE_URL is set, Load first tries .env.local
// and .env from the current directory. Every variable is optional.
func Load() (*Config, error) {
	if os.Getenv("STORAGE_BACKEND") == "" && os.Getenv("DATABASE_URL") == "" {
		loadEnvFiles()
	}
	c := Defaults()
	setString(&c.Backend, "STORAGE_BACKEND")
	setString(&c.DataDir, "DATA_DIR")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.ServerPort, "SERVER_PORT")
	setString(&c.PlayerCommand, "PLAYER_COMMAND")
	setString(&c.UserAgent, "FETCHER_USER_AGENT")
	setString(&c.LogLevel, "LOG_LEVEL")
	if s := os.Getenv("PLAYER_ARGS"); s != "" {
		c.PlayerArgs = strings.Fields(s)
	}
	// Set but empty disables the HLS hint.
	if s, ok := os.LookupEnv("PLAYER_HLS_ARGS"); ok {
		c.PlayerHLSArgs = strings.Fields(s)
	}
	if s := os.Getenv("FETCHER_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("FETCHER_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if err := setInt(&c.LogoWorkers, "LOGO_WORKERS"); err != nil {
		return nil, err
	}
	if err := setInt(&c.LogoRate, "LOGO_RATE"); err != nil {
		return nil, err
	}
	if s := os.Getenv("AUTOPLAY"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("AUTOPLAY: %w", err)
		}
		c.Autoplay = b
	}
	if err := c.finalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// Cached reports whether the postgres store should be fronted by Redis.
func (c *Config) Cached() bool {
	return c.Backend == BackendPostgres && c.RedisURL != ""
}

// finalize picks the default backend and checks that it can be opened.
func (c *Config) finalize() error {
	if c.Backend == "" {
		switch {
		case c.DatabaseURL != "":
			c.Backend = BackendPostgres
		case c.RedisURL != "":
			c.Backend = BackendRedis
		default:
			c.Backend = BackendFile
		}
	}
	c.Backend = strings.ToLower(c.Backend)
	switch c.Backend {
	case BackendFile:
		if c.DataDir == "" {
			c.DataDir = "./data"
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return ErrMissingRedisURL
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Backend)
	}
	if c.LogoWorkers <= 0 {
		c.LogoWorkers = 1
	}
	if c.LogoRate <= 0 {
		c.LogoRate = 1
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
