// Package config loads structq settings from defaults, an optional
// .structq.{yaml,toml,json} file, a .env file and STRUCTQ_* variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/termfx/structq/rewrite"
)

// EnvPrefix prefixes every environment override, e.g. STRUCTQ_WORKERS or
// STRUCTQ_LOG_LEVEL.
const EnvPrefix = "STRUCTQ"

// FileName is the config file name searched for, without extension.
const FileName = ".structq"

// Config holds the settings shared by every command.
type Config struct {
	Language          string    `mapstructure:"language"`
	Include           []string  `mapstructure:"include"`
	Exclude           []string  `mapstructure:"exclude"`
	Workers           int       `mapstructure:"workers"`
	MaxDepth          int       `mapstructure:"max_depth"`
	MaxFiles          int       `mapstructure:"max_files"`
	FollowSymlinks    bool      `mapstructure:"follow_symlinks"`
	Policy            string    `mapstructure:"policy"`
	AllMatches        bool      `mapstructure:"all_matches"`
	TriviaInsensitive bool      `mapstructure:"trivia_insensitive"`
	StrictLint        bool      `mapstructure:"strict_lint"`
	Rules             string    `mapstructure:"rules"`
	DB                DBConfig  `mapstructure:"db"`
	Log               LogConfig `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// DBConfig configures the rule store and run journal.
type DBConfig struct {
	DSN       string `mapstructure:"dsn"`
	Debug     bool   `mapstructure:"debug"`
	Retention int    `mapstructure:"retention"` // runs kept; 0 keeps all
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Error reports an invalid setting.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config error in field %q: %s", e.Field, e.Message)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("language", "")
	v.SetDefault("include", []string{})
	v.SetDefault("exclude", []string{"**/.git/**", "**/node_modules/**", "**/vendor/**"})
	v.SetDefault("workers", 0)
	v.SetDefault("max_depth", 0)
	v.SetDefault("max_files", 0)
	v.SetDefault("follow_symlinks", false)
	v.SetDefault("policy", rewrite.DropLater.String())
	v.SetDefault("all_matches", false)
	v.SetDefault("trivia_insensitive", true)
	v.SetDefault("strict_lint", false)
	v.SetDefault("rules", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.debug", false)
	v.SetDefault("db.retention", 0)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
}

// Default returns the built-in settings.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads settings for the project rooted at dir. When file is non-empty
// it must exist and is used instead of searching dir for .structq.*. A .env
// file in dir is loaded into the process environment without overriding
// variables that are already set.
func Load(dir, file string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return &Error{Field: "workers", Message: "must not be negative"}
	}
	if c.MaxDepth < 0 {
		return &Error{Field: "max_depth", Message: "must not be negative"}
	}
	if c.MaxFiles < 0 {
		return &Error{Field: "max_files", Message: "must not be negative"}
	}
	if c.DB.Retention < 0 {
		return &Error{Field: "db.retention", Message: "must not be negative"}
	}
	if _, err := rewrite.ParsePolicy(c.Policy); err != nil {
		return &Error{Field: "policy", Message: err.Error()}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return &Error{Field: "log.format", Message: "must be text or json"}
	}
	return nil
}

// ConflictPolicy returns the parsed rewrite policy.
func (c *Config) ConflictPolicy() rewrite.Policy {
	p, _ := rewrite.ParsePolicy(c.Policy)
	return p
}
