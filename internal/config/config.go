package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Storage StorageConfig
	Runtime RuntimeConfig
	Log     LogConfig
}

// StorageConfig controls where conversation records and the message archive live.
type StorageConfig struct {
	ConversationsDir string `mapstructure:"conversations_dir"`
	ArchivePath      string `mapstructure:"archive_path"`
}

// RuntimeConfig holds the model runtime configuration. The base URL points at
// an OpenAI-compatible endpoint; Ollama exposes one under /v1.
type RuntimeConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from config.yaml in the working directory, or from
// the file named by CONFIG_PATH. A missing file is not an error; defaults apply.
func Load() (*Config, error) {
	v := viper.New()

	home, _ := os.UserHomeDir()
	v.SetDefault("storage.conversations_dir", filepath.Join(home, ".ollamadesk", "chats"))
	v.SetDefault("storage.archive_path", filepath.Join(home, ".ollamadesk", "archive.db"))
	// Explicit IPv4 avoids IPv6 localhost resolution issues on some platforms.
	v.SetDefault("runtime.base_url", "http://127.0.0.1:11434/v1")
	v.SetDefault("runtime.api_key", "ollama")
	v.SetDefault("runtime.model", "llama3")
	v.SetDefault("runtime.timeout", time.Duration(0))
	v.SetDefault("log.level", "info")

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// Search-path mode reports ConfigFileNotFoundError; an explicit
		// CONFIG_PATH that does not exist surfaces as a plain path error.
		// Both mean "no file": defaults apply.
		_, searchMiss := err.(viper.ConfigFileNotFoundError)
		if !searchMiss && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
