package server

// OracleServerConfig selects and configures the tag estimation model.
type OracleServerConfig struct {
	Type               string  `mapstructure:"type"                yaml:"type"`
	PlausibleThreshold float64 `mapstructure:"plausible_threshold" yaml:"plausible_threshold"`
	TopCount           int     `mapstructure:"top_count"           yaml:"top_count"`

	HTTP   OracleHTTPConfig   `mapstructure:"http"   yaml:"http"`
	TFLite OracleTFLiteConfig `mapstructure:"tflite" yaml:"tflite"`
}

type OracleHTTPConfig struct {
	URL     string `mapstructure:"url"     yaml:"url"`
	Timeout string `mapstructure:"timeout" yaml:"timeout"`
}

type OracleTFLiteConfig struct {
	ModelPath string `mapstructure:"model_path" yaml:"model_path"`
	TagsPath  string `mapstructure:"tags_path"  yaml:"tags_path"`
	Threads   int    `mapstructure:"threads"    yaml:"threads"`
}
