package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/robfig/cron/v3"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

// PostMarker is the placeholder in the prompt template replaced by the post text.
const PostMarker = "<INSERT TARGET HANDLE post>"

const DefaultPromptTemplate = "Fact check what the user is saying below in a helpful tone with high degree of factuality " + PostMarker

type Config struct {
	// Threads
	ThreadsAPIKey  string        `env:"THREADS_API_KEY,required"`
	ThreadsBaseURL string        `env:"THREADS_BASE_URL" envDefault:"https://www.threads.net/api/v1"`
	TargetHandles  []string      `env:"TARGET_HANDLES" envSeparator:"," envDefault:"example_handle1,example_handle2"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"5m"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	HandleDelay    time.Duration `env:"HANDLE_DELAY" envDefault:"1s"`
	ErrorCooldown  time.Duration `env:"ERROR_COOLDOWN" envDefault:"60s"`
	PostsPageSize  int           `env:"POSTS_PAGE_SIZE" envDefault:"5"`

	// LLM settings
	LLMProvider      LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	Model            string      `env:"LLM_MODEL" envDefault:"gpt-3.5-turbo"`
	OpenAIAPIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string      `env:"OPENAI_BASE_URL"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	// Prompt and generation bounds
	PromptTemplate     string  `env:"PROMPT_TEMPLATE"`
	PromptTemplatePath string  `env:"PROMPT_TEMPLATE_PATH"`
	InputTokenLength   int     `env:"INPUT_TOKEN_LENGTH" envDefault:"512"`
	OutputTokenLength  int     `env:"OUTPUT_TOKEN_LENGTH" envDefault:"256"`
	Temperature        float64 `env:"TEMPERATURE" envDefault:"0.7"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage
	StateDBPath  string `env:"STATE_DB_PATH"`
	ReplyLogPath string `env:"REPLY_LOG_PATH" envDefault:"data/replies.jsonl"`

	// Metrics
	MetricsAddr string `env:"METRICS_ADDR"`

	// Operator notifications
	TelegramBotToken    string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAdminChatID int64  `env:"TELEGRAM_ADMIN_CHAT_ID"`
	DigestSchedule      string `env:"DIGEST_SCHEDULE" envDefault:"0 21 * * *"`
}

// ConfigurationError reports a missing or invalid setting. It is fatal at startup.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// New parses the process environment and validates the result.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, &ConfigurationError{Reason: err.Error(), Err: err}
	}
	if cfg.PromptTemplatePath != "" {
		data, err := os.ReadFile(cfg.PromptTemplatePath)
		if err != nil {
			return nil, &ConfigurationError{Field: "PROMPT_TEMPLATE_PATH", Reason: "unreadable", Err: err}
		}
		cfg.PromptTemplate = string(data)
	}
	if strings.TrimSpace(cfg.PromptTemplate) == "" {
		cfg.PromptTemplate = DefaultPromptTemplate
	}
	cfg.TargetHandles = normalizeHandles(cfg.TargetHandles)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants the rest of the program relies on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.ThreadsAPIKey) == "":
		return &ConfigurationError{Field: "THREADS_API_KEY", Reason: "is required"}
	case len(c.TargetHandles) == 0:
		return &ConfigurationError{Field: "TARGET_HANDLES", Reason: "at least one handle is required"}
	case c.PollInterval <= 0:
		return &ConfigurationError{Field: "POLL_INTERVAL", Reason: "must be positive"}
	case c.RequestTimeout <= 0:
		return &ConfigurationError{Field: "REQUEST_TIMEOUT", Reason: "must be positive"}
	case c.HandleDelay < 0:
		return &ConfigurationError{Field: "HANDLE_DELAY", Reason: "must not be negative"}
	case c.ErrorCooldown <= 0:
		return &ConfigurationError{Field: "ERROR_COOLDOWN", Reason: "must be positive"}
	case c.PostsPageSize <= 0:
		return &ConfigurationError{Field: "POSTS_PAGE_SIZE", Reason: "must be positive"}
	case c.InputTokenLength <= 0:
		return &ConfigurationError{Field: "INPUT_TOKEN_LENGTH", Reason: "must be positive"}
	case c.OutputTokenLength <= 0:
		return &ConfigurationError{Field: "OUTPUT_TOKEN_LENGTH", Reason: "must be positive"}
	case c.Temperature < 0 || c.Temperature > 1:
		return &ConfigurationError{Field: "TEMPERATURE", Reason: "must be within [0, 1]"}
	case !strings.Contains(c.PromptTemplate, PostMarker):
		return &ConfigurationError{Field: "PROMPT_TEMPLATE", Reason: fmt.Sprintf("must contain %q", PostMarker)}
	}
	for _, h := range c.TargetHandles {
		if strings.TrimSpace(h) == "" {
			return &ConfigurationError{Field: "TARGET_HANDLES", Reason: "contains an empty handle"}
		}
	}
	switch c.LLMProvider {
	case ProviderOpenAI:
	case ProviderYandex:
		if c.YandexOAuthToken == "" || c.YandexFolderID == "" {
			return &ConfigurationError{Field: "YANDEX_OAUTH_TOKEN", Reason: "yandex provider needs YANDEX_OAUTH_TOKEN and YANDEX_FOLDER_ID"}
		}
	default:
		return &ConfigurationError{Field: "LLM_PROVIDER", Reason: fmt.Sprintf("unknown provider %q", c.LLMProvider)}
	}
	// empty disables the digest
	if c.DigestSchedule != "" {
		if _, err := cron.ParseStandard(c.DigestSchedule); err != nil {
			return &ConfigurationError{Field: "DIGEST_SCHEDULE", Reason: "invalid cron schedule", Err: err}
		}
	}
	return nil
}

// NotificationsEnabled reports whether both Telegram settings are present.
func (c *Config) NotificationsEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramAdminChatID != 0
}

func normalizeHandles(in []string) []string {
	out := make([]string, 0, len(in))
	for _, h := range in {
		h = strings.TrimPrefix(strings.TrimSpace(h), "@")
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}
