// Package config resolves run settings from flags, environment variables,
// .env files and an optional YAML config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultFilename     = "proxies.yaml"
	DefaultNum          = 64
	DefaultFetchTimeout = 30 * time.Second
	DefaultLogLevel     = "info"
)

type Config struct {
	Filename         string        `mapstructure:"filename" validate:"required"`
	Num              int           `mapstructure:"num" validate:"gte=1,lte=1024"`
	URL              string        `mapstructure:"url" validate:"required,url"`
	ManualURL        string        `mapstructure:"manual_url" validate:"omitempty,url"`
	PageURL          string        `mapstructure:"page_url" validate:"omitempty,url"`
	SpecialProtocols bool          `mapstructure:"special_protocols"`
	Bin              string        `mapstructure:"bin"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout" validate:"gt=0"`
	MetricsFile      string        `mapstructure:"metrics_file"`
	LogLevel         string        `mapstructure:"log_level" validate:"oneof=debug info warn warning error"`
}

// envBindings keeps the variable names the deployment already uses.
var envBindings = map[string][]string{
	"filename":          {"SUBMERGE_FILENAME"},
	"num":               {"SUBMERGE_NUM"},
	"url":               {"EXISTS_LINK"},
	"manual_url":        {"MANUAL_EXISTS_LINK"},
	"page_url":          {"PAGE_EXISTS_LINK"},
	"special_protocols": {"SUBMERGE_SPECIAL_PROTOCOLS"},
	"bin":               {"SUBCONVERTER_BIN"},
	"fetch_timeout":     {"SUBMERGE_FETCH_TIMEOUT"},
	"metrics_file":      {"SUBMERGE_METRICS_FILE"},
	"log_level":         {"SUBMERGE_LOG_LEVEL"},
}

// ErrMissingURL is returned when no primary feed is configured.
var ErrMissingURL = errors.New("primary source url is required")

// loadEnvFiles loads ENV_FILE when set, else .env.local and .env. Missing
// files are ignored; variables already in the environment win.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("filename", DefaultFilename)
	v.SetDefault("num", DefaultNum)
	v.SetDefault("special_protocols", true)
	v.SetDefault("fetch_timeout", DefaultFetchTimeout)
	v.SetDefault("log_level", DefaultLogLevel)
}

// Load builds a Config. flags may be nil; a flag only overrides lower layers
// when it was set on the command line. configFile may be empty.
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if flags != nil {
		for key := range envBindings {
			f := flags.Lookup(strings.ReplaceAll(key, "_", "-"))
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Filename = strings.TrimSpace(c.Filename)
	c.URL = strings.TrimSpace(c.URL)
	c.ManualURL = strings.TrimSpace(c.ManualURL)
	c.PageURL = strings.TrimSpace(c.PageURL)
	c.Bin = strings.TrimSpace(c.Bin)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

var validate = validator.New()

// Validate reports the first invalid setting. A missing primary URL is
// reported as ErrMissingURL.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrMissingURL
	}
	if err := validate.Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fe := ve[0]
			return fmt.Errorf("invalid %s: %q fails %q", fe.Field(), fmt.Sprint(fe.Value()), fe.Tag())
		}
		return err
	}
	return nil
}
