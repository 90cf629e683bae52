// Package config loads settings from defaults, an optional YAML file and
// DIGITALINK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DefaultModel string           `mapstructure:"default_model"`
	Catalog      string           `mapstructure:"catalog"`
	Models       ModelsConfig     `mapstructure:"models"`
	Recognizer   RecognizerConfig `mapstructure:"recognizer"`
	Server       ServerConfig     `mapstructure:"server"`
}

// ModelsConfig is where bundles live and how they are fetched.
type ModelsConfig struct {
	Dir                   string `mapstructure:"dir"`
	Database              string `mapstructure:"database"`
	BaseURL               string `mapstructure:"base_url"`
	Concurrency           int64  `mapstructure:"concurrency"`
	AllowCellular         bool   `mapstructure:"allow_cellular"`
	AllowBackground       bool   `mapstructure:"allow_background"`
	DownloadDefaultOnInit bool   `mapstructure:"download_default_on_init"`
}

// RecognizerConfig holds the remote recognizer credentials.
type RecognizerConfig struct {
	URL            string        `mapstructure:"url"`
	ApplicationKey string        `mapstructure:"application_key"`
	HMACKey        string        `mapstructure:"hmac_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
	// JWTSecret enables bearer auth when set.
	JWTSecret string `mapstructure:"jwt_secret"`
}

// Load reads configuration. DIGITALINK_CONFIG names the file; otherwise
// ~/.config/digitalink/config.yaml is used when present.
func Load() (Config, error) {
	dataDir, err := DataDir()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()

	v.SetDefault("default_model", "en-US")
	v.SetDefault("catalog", "")
	v.SetDefault("models.dir", filepath.Join(dataDir, "models"))
	v.SetDefault("models.database", filepath.Join(dataDir, "models.db"))
	v.SetDefault("models.base_url", "")
	v.SetDefault("models.concurrency", 2)
	v.SetDefault("models.allow_cellular", false)
	v.SetDefault("models.allow_background", true)
	v.SetDefault("models.download_default_on_init", true)
	v.SetDefault("recognizer.url", "")
	v.SetDefault("recognizer.application_key", "")
	v.SetDefault("recognizer.hmac_key", "")
	v.SetDefault("recognizer.timeout", "30s")
	v.SetDefault("server.port", 6060)
	v.SetDefault("server.jwt_secret", "")

	v.SetConfigType("yaml")

	if cfgPath := os.Getenv("DIGITALINK_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "digitalink"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("DIGITALINK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// HasRecognizer reports whether remote recognizer credentials are set.
func (c Config) HasRecognizer() bool {
	return c.Recognizer.ApplicationKey != "" && c.Recognizer.HMACKey != ""
}
