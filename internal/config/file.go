package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	StorageBackend string   `yaml:"storage_backend"`
	DataDir        string   `yaml:"data_dir"`
	DatabaseURL    string   `yaml:"database_url"`
	RedisURL       string   `yaml:"redis_url"`
	ServerPort     string   `yaml:"server_port"`
	PlayerCommand  string   `yaml:"player_command"`
	PlayerArgs     []string `yaml:"player_args"`
	PlayerHLSArgs  []string `yaml:"player_hls_args"`
	Autoplay       *bool    `yaml:"autoplay"`
	UserAgent      string   `yaml:"user_agent"`
	Timeout        string   `yaml:"timeout"`
	LogoWorkers    int      `yaml:"logo_workers"`
	LogoRate       int      `yaml:"logo_rate"`
	LogLevel       string   `yaml:"log_level"`
}

// LoadFromFile loads config from a YAML file. Missing keys keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	c := Defaults()
	c.Backend = f.StorageBackend
	c.DatabaseURL = f.DatabaseURL
	c.RedisURL = f.RedisURL
	orDefault(&c.DataDir, f.DataDir)
	orDefault(&c.ServerPort, f.ServerPort)
	orDefault(&c.PlayerCommand, f.PlayerCommand)
	orDefault(&c.UserAgent, f.UserAgent)
	orDefault(&c.LogLevel, f.LogLevel)
	if f.PlayerArgs != nil {
		c.PlayerArgs = f.PlayerArgs
	}
	if f.PlayerHLSArgs != nil {
		c.PlayerHLSArgs = f.PlayerHLSArgs
	}
	if f.Autoplay != nil {
		c.Autoplay = *f.Autoplay
	}
	if f.LogoWorkers != 0 {
		c.LogoWorkers = f.LogoWorkers
	}
	if f.LogoRate != 0 {
		c.LogoRate = f.LogoRate
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return nil, fmt.Errorf("timeout: %w", err)
		}
		c.Timeout = d
	}
	if err := c.finalize(); err != nil {
		return nil, err
	}
	return c, nil
}

func orDefault(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
