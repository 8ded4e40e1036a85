package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TokenEnvVar names the variable holding the Telegram bot token, both in the
// process environment and in the dotenv fallback file.
const TokenEnvVar = "TELEGRAM_BOT_TOKEN"

// ErrMissingToken is returned when neither the environment nor the dotenv file provide a token.
var ErrMissingToken = errors.New("config: telegram token is required (set " + TokenEnvVar + " or add it to the env file)")

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	// Token is never read from YAML; it comes from the environment or the env file.
	Token   string `yaml:"-" envconfig:"TELEGRAM_BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// EnvFile is the dotenv file consulted when the token is absent from the environment.
	EnvFile string `yaml:"env_file" envconfig:"TELEGRAM_ENV_FILE"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// KeepAliveConfig configures the liveness HTTP endpoint polled by uptime monitors.
type KeepAliveConfig struct {
	Listen   string `yaml:"listen" envconfig:"KEEPALIVE_LISTEN"`
	Disabled bool   `yaml:"disabled" envconfig:"KEEPALIVE_DISABLED"`
}

// StoryConfig points at the document holding the story texts.
// An empty Path means the story lives in the main config file.
type StoryConfig struct {
	Path string `yaml:"path" envconfig:"STORY_PATH"`
}

// CacheConfig sizes the in-memory caches.
type CacheConfig struct {
	ConfigTTL      time.Duration `yaml:"config_ttl" envconfig:"CACHE_CONFIG_TTL"`
	ConfigCapacity uint64        `yaml:"config_capacity" envconfig:"CACHE_CONFIG_CAPACITY"`
	SeenTTL        time.Duration `yaml:"seen_ttl" envconfig:"CACHE_SEEN_TTL"`
	SeenCapacity   uint64        `yaml:"seen_capacity" envconfig:"CACHE_SEEN_CAPACITY"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
	// UpdateMyChatMember identifies bot membership changes for rate limit exclusions.
	UpdateMyChatMember = "my_chat_member"
)

const (
	DefaultEnvFile         = ".env"
	DefaultKeepAliveListen = ":8080"
	DefaultConfigTTL       = time.Hour
	DefaultConfigCapacity  = 100
	DefaultSeenTTL         = 5 * time.Minute
	DefaultSeenCapacity    = 1000
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
// - "my_chat_member": the bot being added to or removed from a chat
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the runtime configuration of the bot process.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	KeepAlive KeepAliveConfig `yaml:"keepalive"`
	Story     StoryConfig     `yaml:"story"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Source is the file the configuration was loaded from.
	Source string `yaml:"-" ignored:"true"`
}

// CoreConfig lets Config satisfy the runner's carrier interface.
func (c *Config) CoreConfig() *Config {
	return c
}

// Load reads configuration from a YAML file, environment variables and,
// for the token only, the dotenv fallback file.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	cfg.Source = path

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		token, err := tokenFromEnvFile(envFileOrDefault(cfg.Telegram.EnvFile))
		if err != nil {
			return nil, err
		}
		cfg.Telegram.Token = token
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envFileOrDefault(path string) string {
	if p := strings.TrimSpace(path); p != "" {
		return p
	}
	return DefaultEnvFile
}

// tokenFromEnvFile returns the token line of a dotenv file. A missing file is
// not an error; the caller decides whether an empty token is acceptable.
func tokenFromEnvFile(path string) (string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return strings.TrimSpace(values[TokenEnvVar]), nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	cfg.Telegram.Token = strings.TrimSpace(cfg.Telegram.Token)
	if cfg.Telegram.Token == "" {
		return ErrMissingToken
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" || rm == "polling" {
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm
	cfg.Telegram.EnvFile = envFileOrDefault(cfg.Telegram.EnvFile)

	if strings.TrimSpace(cfg.KeepAlive.Listen) == "" {
		cfg.KeepAlive.Listen = DefaultKeepAliveListen
	}
	if strings.TrimSpace(cfg.Story.Path) == "" {
		cfg.Story.Path = cfg.Source
	}

	if err := normalizeCache(&cfg.Cache); err != nil {
		return err
	}

	allowed := map[string]struct{}{
		UpdateCallback:     {},
		UpdateMessage:      {},
		UpdateInlineQuery:  {},
		UpdateMyChatMember: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query, my_chat_member", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}

func normalizeCache(c *CacheConfig) error {
	if c.ConfigTTL < 0 || c.SeenTTL < 0 {
		return fmt.Errorf("cache ttl values must be >= 0")
	}
	if c.ConfigTTL == 0 {
		c.ConfigTTL = DefaultConfigTTL
	}
	if c.ConfigCapacity == 0 {
		c.ConfigCapacity = DefaultConfigCapacity
	}
	if c.SeenTTL == 0 {
		c.SeenTTL = DefaultSeenTTL
	}
	if c.SeenCapacity == 0 {
		c.SeenCapacity = DefaultSeenCapacity
	}
	return nil
}
