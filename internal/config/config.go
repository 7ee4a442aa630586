package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Grid    GridConfig    `yaml:"grid" mapstructure:"grid"`
	Convert ConvertConfig `yaml:"convert" mapstructure:"convert"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// GridConfig locates the reference grid data.
type GridConfig struct {
	DataRoot     string `yaml:"data_root" mapstructure:"data_root"`
	ScratchDir   string `yaml:"scratch_dir" mapstructure:"scratch_dir"`
	PurgeOnStart bool   `yaml:"purge_on_start" mapstructure:"purge_on_start"`
	FetchBaseURL string `yaml:"fetch_base_url" mapstructure:"fetch_base_url"`
}

// ConvertConfig configures the conversion service.
type ConvertConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ExportConfig configures tile coverage exports.
type ExportConfig struct {
	DefaultName string `yaml:"default_name" mapstructure:"default_name"`
}

// FetchConfig configures reference data downloads.
type FetchConfig struct {
	Concurrency       int     `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GRIDCONV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("grid.data_root", "./grid_files")
	v.SetDefault("grid.scratch_dir", filepath.Join(os.TempDir(), "gridconv"))
	v.SetDefault("grid.purge_on_start", true)
	v.SetDefault("grid.fetch_base_url", "")
	v.SetDefault("convert.concurrency", 4)
	v.SetDefault("export.default_name", "tile_coverage.shp")
	v.SetDefault("fetch.concurrency", 4)
	v.SetDefault("fetch.timeout_secs", 600)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.requests_per_second", 5)
	v.SetDefault("fetch.user_agent", "gridconv/1.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: "convert", "fetch",
// "serve".
func (c *Config) Validate(mode string) error {
	var errs []string
	if c.Grid.DataRoot == "" {
		errs = append(errs, "grid.data_root is required")
	}
	if c.Convert.Concurrency < 1 || c.Convert.Concurrency > 64 {
		errs = append(errs, "convert.concurrency must be between 1 and 64")
	}

	switch mode {
	case "convert":
	case "fetch":
		if c.Grid.FetchBaseURL == "" {
			errs = append(errs, "grid.fetch_base_url is required")
		}
		if c.Fetch.Concurrency < 1 {
			errs = append(errs, "fetch.concurrency must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
