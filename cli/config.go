package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jay8860/DD-TaskDashboardClone/board"
)

const (
	envPrefix       = "PLANNER"
	defaultEndpoint = "http://localhost:8080"
	defaultInterval = 10 * time.Second
)

// Output formats accepted by --output.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// Config is the planner client configuration. Values come from flags, then
// PLANNER_* environment variables, then the config file, then defaults.
type Config struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Token    string        `mapstructure:"token" yaml:"token,omitempty"`
	View     string        `mapstructure:"view" yaml:"view"`
	Output   string        `mapstructure:"output" yaml:"output"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Endpoint: defaultEndpoint,
		View:     string(board.ViewBoth),
		Output:   OutputTable,
		Interval: defaultInterval,
	}
}

// DefaultConfigPath is $HOME/.config/planner/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "planner", "config.yaml")
	}
	return filepath.Join(home, ".config", "planner", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("endpoint", d.Endpoint)
	v.SetDefault("token", d.Token)
	v.SetDefault("view", d.View)
	v.SetDefault("output", d.Output)
	v.SetDefault("interval", d.Interval)
}

func loadConfig(v *viper.Viper, path string) (Config, error) {
	setDefaults(v)
	if path == "" {
		path = DefaultConfigPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint must be set")
	}
	if _, err := board.ParseViewMode(c.View); err != nil {
		return err
	}
	switch c.Output {
	case OutputTable, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("invalid output format %q", c.Output)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("invalid refresh interval %s", c.Interval)
	}
	return nil
}

func (c Config) viewMode() board.ViewMode {
	m, _ := board.ParseViewMode(c.View)
	return m
}

// redacted returns a copy safe to print.
func (c Config) redacted() Config {
	if c.Token != "" {
		c.Token = "****"
	}
	return c
}
