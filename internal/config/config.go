package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Webhook WebhookConfig `yaml:"webhook"`
	GroupMe GroupMeConfig `yaml:"groupme"`
	WeChat  WeChatConfig  `yaml:"wechat"`
	Slack   SlackConfig   `yaml:"slack"`
}

// ServerConfig binds the shared mux that serves health probes and the
// routers of adapters without their own transport.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// WebhookConfig applies to every webhook transport, shared or per adapter.
type WebhookConfig struct {
	RateLimit    int   `yaml:"rateLimit"`
	MaxBodyBytes int64 `yaml:"maxBodyBytes"`
}

// HTTPConfig gives an adapter its own webhook server.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type GroupMeConfig struct {
	Enabled     bool          `yaml:"enabled"`
	ServiceID   string        `yaml:"serviceID"`
	LogLevel    string        `yaml:"logLevel"`
	Token       string        `yaml:"token"`
	TokenSecret string        `yaml:"tokenSecret"`
	Username    string        `yaml:"username"`
	HTTP        *HTTPConfig   `yaml:"http"`
	APIBaseURL  string        `yaml:"apiBaseURL"`
	CacheTTL    time.Duration `yaml:"cacheTTL"`
}

type WeChatConfig struct {
	Enabled    bool        `yaml:"enabled"`
	ServiceID  string      `yaml:"serviceID"`
	LogLevel   string      `yaml:"logLevel"`
	AppID      string      `yaml:"appID"`
	AppSecret  string      `yaml:"appSecret"`
	HTTP       *HTTPConfig `yaml:"http"`
	APIBaseURL string      `yaml:"apiBaseURL"`
	TempDir    string      `yaml:"tempDir"`
}

type SlackConfig struct {
	Enabled       bool          `yaml:"enabled"`
	ServiceID     string        `yaml:"serviceID"`
	LogLevel      string        `yaml:"logLevel"`
	BotToken      string        `yaml:"botToken"`
	SigningSecret string        `yaml:"signingSecret"`
	BotUserID     string        `yaml:"botUserID"`
	HTTP          *HTTPConfig   `yaml:"http"`
	APIBaseURL    string        `yaml:"apiBaseURL"`
	CacheTTL      time.Duration `yaml:"cacheTTL"`
}

// Load reads a YAML config file and returns a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a Config with sensible defaults. No platform is
// enabled until credentials are supplied.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Webhook: WebhookConfig{
			RateLimit:    600,
			MaxBodyBytes: 10 << 20,
		},
		GroupMe: GroupMeConfig{
			CacheTTL: 350 * time.Second,
		},
		Slack: SlackConfig{
			CacheTTL: 350 * time.Second,
		},
	}
}

// expandEnvVars replaces ${VAR} patterns with environment variable values.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "${" + key + "}"
	})
}
