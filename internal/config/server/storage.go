package server

// StorageServerConfig controls where uploaded illustrations are placed.
type StorageServerConfig struct {
	Path          string `mapstructure:"path"            yaml:"path"`
	MaxUploadSize int64  `mapstructure:"max_upload_size" yaml:"max_upload_size"`
}
