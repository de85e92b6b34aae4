// Package config holds the settings of the tripwire command.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Rules RulesConfig `yaml:"rules"`
	Log   LogConfig   `yaml:"log"`
}

type RulesConfig struct {
	// Path of the rule file.
	Path string `yaml:"path"`

	// Allow rules that prompt the user.
	UserInteraction bool `yaml:"user_interaction"`

	// Reload the rule file when it changes. Running the command without a
	// subcommand watches when set and checks the file once otherwise.
	Watch bool `yaml:"watch"`

	// How long to wait for the rule file to settle before reloading.
	Debounce time.Duration `yaml:"debounce"`
}

type LogConfig struct {
	// panic, fatal, error, warn, info, debug or trace
	Level string `yaml:"level"`

	// "text" or "json"
	Format string `yaml:"format"`
}

var (
	defaultRules = RulesConfig{
		Path:     "rules.yaml",
		Debounce: 100 * time.Millisecond,
	}

	defaultLog = LogConfig{
		Level:  "info",
		Format: "text",
	}
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Rules: defaultRules,
		Log:   defaultLog,
	}
}

// Load reads the configuration in filename. Settings missing from the file
// keep their defaults.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &cfg, nil
}

// Validate checks the settings that are not checked by decoding.
func (c Config) Validate() error {
	if c.Rules.Path == "" {
		return fmt.Errorf("rules.path is required")
	}
	if c.Rules.Debounce < 0 {
		return fmt.Errorf("rules.debounce must not be negative")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

// Logger returns a logger configured by c.
func (c Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.Out = os.Stderr
	logger.SetLevel(level)
	if c.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
		})
	}
	return logger, nil
}
