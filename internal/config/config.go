package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Image   ImageConfig   `mapstructure:"image"`
	Speech  SpeechConfig  `mapstructure:"speech"`
	Log     LogConfig     `mapstructure:"log"`
}

// LLMConfig holds the chat completion endpoint configuration
type LLMConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Storage backends understood by kv.Open.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// StorageConfig selects and configures the key-value backend
type StorageConfig struct {
	Backend string      `mapstructure:"backend"`
	Path    string      `mapstructure:"path"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds the Redis connection configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// ImageConfig holds the image generation defaults
type ImageConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	Width   int    `mapstructure:"width"`
	Height  int    `mapstructure:"height"`
}

// SpeechConfig holds the text-to-speech defaults
type SpeechConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Voice   string `mapstructure:"voice"`
}

// LogConfig holds the logger configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads config.yaml from the working directory, or the file named by
// CONFIG_PATH. A missing config.yaml is not an error; defaults and
// POCKETCHAT_* environment variables apply.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	explicit := os.Getenv("CONFIG_PATH")
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("POCKETCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.base_url", "https://text.pollinations.ai/openai")
	v.SetDefault("llm.api_key", "dummy-key")
	v.SetDefault("llm.model", "gpt-4")
	v.SetDefault("llm.system_prompt", "You are a helpful AI assistant.")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")

	v.SetDefault("storage.backend", StorageSQLite)
	v.SetDefault("storage.path", "pocketchat.db")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "pocketchat:")

	v.SetDefault("image.base_url", "https://image.pollinations.ai/prompt")
	v.SetDefault("image.model", "flux")
	v.SetDefault("image.width", 1024)
	v.SetDefault("image.height", 1024)

	v.SetDefault("speech.base_url", "https://api.streamelements.com/kappa/v2/speech")
	v.SetDefault("speech.voice", "alloy")

	v.SetDefault("log.level", "info")
}
