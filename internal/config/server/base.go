package server

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type BaseServerConfig struct {
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	Log      LogServerConfig      `mapstructure:"log"      yaml:"log"`
	Metadata MetadataServerConfig `mapstructure:"metadata" yaml:"metadata"`
	Storage  StorageServerConfig  `mapstructure:"storage"  yaml:"storage"`
	Oracle   OracleServerConfig   `mapstructure:"oracle"   yaml:"oracle"`
	HTTP     HTTPServerConfig     `mapstructure:"http"     yaml:"http"`
	Metrics  MetricsServerConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

func LoadServerConfig() (*BaseServerConfig, error) {
	cfg := &BaseServerConfig{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the settings that cannot be repaired with a default.
func (cfg *BaseServerConfig) Validate() error {
	switch cfg.Metadata.Type {
	case "sqlite":
		if cfg.Metadata.SQLite.Path == "" {
			return fmt.Errorf("metadata.sqlite.path is required")
		}
	default:
		return fmt.Errorf("unsupported metadata type '%s'", cfg.Metadata.Type)
	}

	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}

	switch cfg.Oracle.Type {
	case "http":
		if cfg.Oracle.HTTP.URL == "" {
			return fmt.Errorf("oracle.http.url is required")
		}
	case "tflite":
		if cfg.Oracle.TFLite.ModelPath == "" || cfg.Oracle.TFLite.TagsPath == "" {
			return fmt.Errorf("oracle.tflite.model_path and oracle.tflite.tags_path are required")
		}
	default:
		return fmt.Errorf("unsupported oracle type '%s'", cfg.Oracle.Type)
	}

	if cfg.HTTP.Auth.TokenTTL != "" {
		if _, err := time.ParseDuration(cfg.HTTP.Auth.TokenTTL); err != nil {
			return fmt.Errorf("invalid http.auth.token_ttl: %w", err)
		}
	}

	return nil
}
