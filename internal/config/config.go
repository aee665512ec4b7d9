// Package config holds the server configuration. Values come from an
// optional YAML file and are then overridden by command-line flags.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/erazemk/polica/internal/batch"
)

// Config defines the server configuration.
type Config struct {
	DB        string `yaml:"db"`
	Addr      string `yaml:"addr"`
	AdminUser string `yaml:"admin_user"`
	Log       string `yaml:"log"`
	Limiter   struct {
		RPS     float64 `yaml:"rps"`
		Burst   int     `yaml:"burst"`
		Enabled bool    `yaml:"enabled"`
	} `yaml:"limiter"`
	Batch struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"batch"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	var c Config
	c.DB = "polica.sqlite3"
	c.Addr = ":8080"
	c.AdminUser = "Admin"
	c.Limiter.RPS = 10
	c.Limiter.Burst = 20
	c.Batch.Concurrency = batch.DefaultConcurrency
	return c
}

// Decode reads YAML from r on top of c. Unknown keys are an error.
func (c *Config) Decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

// LoadFile reads the YAML file at path on top of c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	return c.Decode(bytes.NewReader(data))
}

// Validate checks values that would otherwise fail later and less clearly.
func (c Config) Validate() error {
	switch {
	case c.DB == "":
		return errors.New("db path required")
	case c.Addr == "":
		return errors.New("listen address required")
	case c.AdminUser == "":
		return errors.New("admin user required")
	case c.Limiter.Enabled && (c.Limiter.RPS <= 0 || c.Limiter.Burst <= 0):
		return errors.New("limiter rps and burst must be positive")
	case c.Batch.Concurrency < 0:
		return errors.New("batch concurrency must not be negative")
	}
	return nil
}

// Parse builds the configuration from args. Defaults apply first, then the
// file named by -config, then any flag given explicitly.
func Parse(name string, args []string, usage func()) (Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = usage

	var configPath string
	fs.StringVar(&configPath, "config", "", "")
	fs.StringVar(&configPath, "c", "", "")

	var flags Config
	fs.StringVar(&flags.DB, "db", cfg.DB, "")
	fs.StringVar(&flags.DB, "d", cfg.DB, "")
	fs.StringVar(&flags.Addr, "addr", cfg.Addr, "")
	fs.StringVar(&flags.Addr, "a", cfg.Addr, "")
	fs.StringVar(&flags.AdminUser, "user", cfg.AdminUser, "")
	fs.StringVar(&flags.AdminUser, "u", cfg.AdminUser, "")
	fs.StringVar(&flags.Log, "log", cfg.Log, "")
	fs.StringVar(&flags.Log, "l", cfg.Log, "")
	fs.BoolVar(&flags.Limiter.Enabled, "limit", cfg.Limiter.Enabled, "")
	fs.Float64Var(&flags.Limiter.RPS, "limit-rps", cfg.Limiter.RPS, "")
	fs.IntVar(&flags.Limiter.Burst, "limit-burst", cfg.Limiter.Burst, "")
	fs.IntVar(&flags.Batch.Concurrency, "batch-concurrency", cfg.Batch.Concurrency, "")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	if configPath != "" {
		if err := cfg.LoadFile(configPath); err != nil {
			return Config{}, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db", "d":
			cfg.DB = flags.DB
		case "addr", "a":
			cfg.Addr = flags.Addr
		case "user", "u":
			cfg.AdminUser = flags.AdminUser
		case "log", "l":
			cfg.Log = flags.Log
		case "limit":
			cfg.Limiter.Enabled = flags.Limiter.Enabled
		case "limit-rps":
			cfg.Limiter.RPS = flags.Limiter.RPS
		case "limit-burst":
			cfg.Limiter.Burst = flags.Limiter.Burst
		case "batch-concurrency":
			cfg.Batch.Concurrency = flags.Batch.Concurrency
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
