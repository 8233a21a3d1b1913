package server

import "github.com/spf13/viper"

func GetServerDefault() BaseServerConfig {
	return BaseServerConfig{
		ShutdownTimeout: "10s",

		Log: LogServerConfig{
			Name:       "illustag",
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogServerRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},
		Metadata: MetadataServerConfig{
			Type: "sqlite",
			SQLite: MetadataSQLiteConfig{
				Path:          "./data/illustag.db",
				SlowThreshold: "200ms",
			},
		},
		Storage: StorageServerConfig{
			Path:          "./data/files",
			MaxUploadSize: 32 << 20,
		},
		Oracle: OracleServerConfig{
			Type:               "http",
			PlausibleThreshold: 0.5,
			TopCount:           10,
			HTTP: OracleHTTPConfig{
				URL:     "http://127.0.0.1:8501",
				Timeout: "",
			},
			TFLite: OracleTFLiteConfig{
				ModelPath: "",
				TagsPath:  "",
				Threads:   0,
			},
		},
		HTTP: HTTPServerConfig{
			Address: ":8080",
			RateLimit: HTTPRateLimitConfig{
				Requests: 10,
				Interval: "1s",
			},
			Auth: HTTPAuthConfig{
				Secret:   "",
				TokenTTL: "720h",
			},
		},
		Metrics: MetricsServerConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

func setDefaults() {
	defaults := GetServerDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.name", defaults.Log.Name)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("metadata.type", defaults.Metadata.Type)
	viper.SetDefault("metadata.sqlite.path", defaults.Metadata.SQLite.Path)
	viper.SetDefault("metadata.sqlite.slow_threshold", defaults.Metadata.SQLite.SlowThreshold)

	viper.SetDefault("storage.path", defaults.Storage.Path)
	viper.SetDefault("storage.max_upload_size", defaults.Storage.MaxUploadSize)

	viper.SetDefault("oracle.type", defaults.Oracle.Type)
	viper.SetDefault("oracle.plausible_threshold", defaults.Oracle.PlausibleThreshold)
	viper.SetDefault("oracle.top_count", defaults.Oracle.TopCount)
	viper.SetDefault("oracle.http.url", defaults.Oracle.HTTP.URL)
	viper.SetDefault("oracle.http.timeout", defaults.Oracle.HTTP.Timeout)
	viper.SetDefault("oracle.tflite.model_path", defaults.Oracle.TFLite.ModelPath)
	viper.SetDefault("oracle.tflite.tags_path", defaults.Oracle.TFLite.TagsPath)
	viper.SetDefault("oracle.tflite.threads", defaults.Oracle.TFLite.Threads)

	viper.SetDefault("http.address", defaults.HTTP.Address)
	viper.SetDefault("http.rate_limit.requests", defaults.HTTP.RateLimit.Requests)
	viper.SetDefault("http.rate_limit.interval", defaults.HTTP.RateLimit.Interval)
	viper.SetDefault("http.auth.secret", defaults.HTTP.Auth.Secret)
	viper.SetDefault("http.auth.token_ttl", defaults.HTTP.Auth.TokenTTL)

	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.path", defaults.Metrics.Path)
}
