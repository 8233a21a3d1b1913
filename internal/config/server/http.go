package server

type HTTPServerConfig struct {
	Address   string              `mapstructure:"address"    yaml:"address"`
	RateLimit HTTPRateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Auth      HTTPAuthConfig      `mapstructure:"auth"       yaml:"auth"`
}

// HTTPRateLimitConfig limits how often estimation endpoints may be hit,
// since a cache miss runs model inference.
type HTTPRateLimitConfig struct {
	Requests int    `mapstructure:"requests" yaml:"requests"`
	Interval string `mapstructure:"interval" yaml:"interval"`
}

// HTTPAuthConfig protects uploads, deletes and curation with HS256 bearer
// tokens. An empty secret leaves the API open.
type HTTPAuthConfig struct {
	Secret   string `mapstructure:"secret"    yaml:"secret"`
	TokenTTL string `mapstructure:"token_ttl" yaml:"token_ttl"`
}

type MetricsServerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}
