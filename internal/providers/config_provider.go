package providers

import (
	"fmt"
	"path/filepath"
	"podcache/internal/structures"
	"strings"

	"github.com/spf13/viper"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.BindEnv("logger.level", "PODCACHE_LOG_LEVEL")
	viper.BindEnv("storage.dir", "PODCACHE_STORAGE_DIR")
	viper.BindEnv("storage.maxSizeMB", "PODCACHE_MAX_SIZE_MB")
	viper.BindEnv("catalog.baseURL", "PODCACHE_CATALOG_URL")
	viper.BindEnv("cleanup.interval", "PODCACHE_CLEANUP_INTERVAL")
	viper.BindEnv("cache.enabled", "PODCACHE_CACHE_ENABLED")
	viper.BindEnv("cache.size", "PODCACHE_CACHE_SIZE")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	applyDefaults(&conf)

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "PodcastOfflineCache"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}

// Defaults: 500 MB budget, 50 MB free-space floor, 8 MB assumed episode
// size for unknown-length progress, 30 download triggers per minute.
func applyDefaults(conf *structures.Config) {
	if conf.Storage.MaxSizeMB == 0 {
		conf.Storage.MaxSizeMB = 500
	}
	if conf.Storage.MinFreeMB == 0 {
		conf.Storage.MinFreeMB = 50
	}
	if conf.Storage.AssumedEpisodeMB == 0 {
		conf.Storage.AssumedEpisodeMB = 8
	}
	if conf.Download.RatePerMinute == 0 {
		conf.Download.RatePerMinute = 30
	}
	if conf.Download.Burst == 0 {
		conf.Download.Burst = 5
	}
}
