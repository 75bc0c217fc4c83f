package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Gazetteer GazetteerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Cache     CacheConfig
	LLM       LLMConfig
	Refine    RefineConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int

	// MaxTextLength bounds free-text request fields, in runes.
	MaxTextLength int
	Development   bool
}

type GazetteerConfig struct {
	Path string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CacheConfig struct {
	Backend string
	TTLSec  int

	// Drop cached resolutions at startup; they may name locations the
	// current gazetteer no longer has.
	FlushOnStart bool
}

type LLMConfig struct {
	BaseURL           string
	Model             string
	APIKey            string
	Temperature       float32
	MaxTokens         int
	ConnectTimeoutSec int
	ReadTimeoutSec    int
	MaxAttempts       int
	BackoffBaseSec    int
	VerifySSL         bool
	RequestsPerMinute int
}

type RefineConfig struct {
	Workers        int
	QueueSize      int
	TaskTimeoutSec int
	MinConfidence  float64
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/campus-card")

	v.SetEnvPrefix("CAMPUS_CARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The bare provider variable is honored alongside the prefixed one.
	if err := v.BindEnv("llm.apiKey", "CAMPUS_CARD_LLM_APIKEY", "DEEPSEEK_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key env: %w", err)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.maxTextLength", 500)
	v.SetDefault("server.development", false)

	v.SetDefault("gazetteer.path", "./data/location_database.json")

	v.SetDefault("sqlite.path", "./data/campus_card.db")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttlSec", 7200)
	v.SetDefault("cache.flushOnStart", true)

	v.SetDefault("llm.baseURL", "https://api.deepseek.com/v1")
	v.SetDefault("llm.model", "deepseek-chat")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.maxTokens", 500)
	v.SetDefault("llm.connectTimeoutSec", 30)
	v.SetDefault("llm.readTimeoutSec", 90)
	v.SetDefault("llm.maxAttempts", 3)
	v.SetDefault("llm.backoffBaseSec", 2)
	v.SetDefault("llm.verifySSL", true)
	v.SetDefault("llm.requestsPerMinute", 60)

	v.SetDefault("refine.workers", 4)
	v.SetDefault("refine.queueSize", 256)
	v.SetDefault("refine.taskTimeoutSec", 400)
	v.SetDefault("refine.minConfidence", 0.5)

	v.SetDefault("ratelimit.requestsPerMinute", 120)
	v.SetDefault("ratelimit.burst", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
