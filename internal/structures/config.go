package structures

import (
	"net/http"
	"time"
)

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type StorageConfig struct {
	Dir              string        `yaml:"dir" validate:"required|unixPath"`
	MaxSizeMB        int           `yaml:"maxSizeMB"`
	MinFreeMB        int           `yaml:"minFreeMB"`
	Retention        time.Duration `yaml:"retention" validate:"required|min:1"`
	ListenedGrace    time.Duration `yaml:"listenedGrace" validate:"required|min:1"`
	AssumedEpisodeMB int           `yaml:"assumedEpisodeMB"`
}

type CatalogConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
}

type CleanupConfig struct {
	Interval time.Duration `yaml:"interval" validate:"required|min:1"`
}

type DownloadConfig struct {
	RatePerMinute int `yaml:"ratePerMinute"`
	Burst         int `yaml:"burst"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName   string
	Debug     bool
	Path      string
	Storage   StorageConfig  `yaml:"storage"`
	Catalog   CatalogConfig  `yaml:"catalog"`
	Cleanup   CleanupConfig  `yaml:"cleanup"`
	Download  DownloadConfig `yaml:"download"`
	WebServer Server         `yaml:"webServer"`
	Logger    LoggerConfig   `yaml:"logger"`
	Cache     CacheConfig    `yaml:"cache"`
	Metrics   MetricsConfig  `yaml:"metrics"`
}

type CliFlags struct {
	ConfigPath string
	DebugMode  bool
}

type Route struct {
	Url     string
	Method  string
	Handler http.Handler
}
