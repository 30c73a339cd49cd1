package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"indexreport/internal/calendar"
)

// Config represents the application configuration
type Config struct {
	Symbol     string           `yaml:"symbol" validate:"required"`
	IndexName  string           `yaml:"index_name"`
	Currency   string           `yaml:"currency"`
	Providers  []ProviderConfig `yaml:"providers" validate:"min=1,dive"`
	Timeouts   TimeoutConfig    `yaml:"timeouts"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Email      EmailConfig      `yaml:"email"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Calendar   CalendarConfig   `yaml:"calendar"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ProviderConfig holds individual provider settings. The list order is the
// fallback order.
type ProviderConfig struct {
	Name      string            `yaml:"name" validate:"required,oneof=tushare alphavantage finnhub yahoo"`
	Key       string            `yaml:"key"`
	RateLimit int               `yaml:"rate_limit" validate:"gte=0"` // requests per minute
	BaseURL   string            `yaml:"base_url" validate:"omitempty,url"`
	Tickers   map[string]string `yaml:"tickers"` // index symbol -> provider ticker
}

// TimeoutConfig bounds each network call
type TimeoutConfig struct {
	Provider   time.Duration `yaml:"provider" validate:"gt=0"`
	Summarizer time.Duration `yaml:"summarizer" validate:"gt=0"`
	Notifier   time.Duration `yaml:"notifier" validate:"gt=0"`
}

// SummarizerConfig selects the narrative model
type SummarizerConfig struct {
	Provider    string  `yaml:"provider" validate:"omitempty,oneof=gemini claude none"`
	Model       string  `yaml:"model"`
	GeminiKey   string  `yaml:"gemini_key"`
	ClaudeKey   string  `yaml:"claude_key"`
	MaxTokens   int     `yaml:"max_tokens" validate:"gte=0"`
	Temperature float32 `yaml:"temperature" validate:"gte=0,lte=2"`
	Language    string  `yaml:"language"`
}

// EmailConfig holds SMTP settings
type EmailConfig struct {
	SMTPServer string   `yaml:"smtp_server"`
	SMTPPort   int      `yaml:"smtp_port" validate:"gte=0,lte=65535"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	From       string   `yaml:"from" validate:"omitempty,email"`
	FromName   string   `yaml:"from_name"`
	To         []string `yaml:"to" validate:"dive,email"`
}

// Enabled reports whether enough is configured to send mail
func (e EmailConfig) Enabled() bool {
	return e.SMTPServer != "" && e.From != "" && len(e.To) > 0
}

// TelegramConfig holds bot settings
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

// Enabled reports whether the bot can post
func (t TelegramConfig) Enabled() bool {
	return t.Token != "" && t.ChatID != ""
}

// CalendarConfig defines business days
type CalendarConfig struct {
	Timezone string   `yaml:"timezone"`
	Holidays []string `yaml:"holidays" validate:"dive,datetime=2006-01-02"`
}

// ScheduleConfig holds the in-process trigger
type ScheduleConfig struct {
	Spec string `yaml:"spec" validate:"required,cronspec"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Pretty bool   `yaml:"pretty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Symbol:    "000300.SH",
		IndexName: "CSI 300",
		Currency:  "CNY",
		Providers: []ProviderConfig{
			{Name: "tushare", RateLimit: 120},
			{Name: "alphavantage", RateLimit: 5, Tickers: map[string]string{"000300.SH": "000300.SHH"}},
			{Name: "finnhub", RateLimit: 60, Tickers: map[string]string{"000300.SH": "000300.SS"}},
			{Name: "yahoo", RateLimit: 30, Tickers: map[string]string{"000300.SH": "000300.SS"}},
		},
		Timeouts: TimeoutConfig{
			Provider:   30 * time.Second,
			Summarizer: 60 * time.Second,
			Notifier:   60 * time.Second,
		},
		Summarizer: SummarizerConfig{
			Provider: "gemini",
			Language: "English",
		},
		Email: EmailConfig{
			SMTPPort: 587,
		},
		Calendar: CalendarConfig{
			Timezone: calendar.DefaultTimezone,
		},
		Schedule: ScheduleConfig{
			Spec: calendar.DefaultSpec,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads .env (if present), then the YAML file at path over the
// defaults, then environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// providerKeyEnv maps provider names to their credential variables
var providerKeyEnv = map[string]string{
	"tushare":      "TUSHARE_TOKEN",
	"alphavantage": "ALPHA_VANTAGE_API_KEY",
	"finnhub":      "FINNHUB_API_KEY",
}

func (c *Config) applyEnv(getenv func(string) string) error {
	for i := range c.Providers {
		if name, ok := providerKeyEnv[c.Providers[i].Name]; ok {
			if key := getenv(name); key != "" {
				c.Providers[i].Key = key
			}
		}
	}

	if v := getenv("INDEX_SYMBOL"); v != "" {
		c.Symbol = v
	}
	if v := getenv("GEMINI_API_KEY"); v != "" {
		c.Summarizer.GeminiKey = v
	}
	if v := getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Summarizer.ClaudeKey = v
	}
	if v := getenv("SUMMARIZER"); v != "" {
		c.Summarizer.Provider = strings.ToLower(v)
	}

	if v := getenv("SMTP_SERVER"); v != "" {
		c.Email.SMTPServer = v
	}
	if v := getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SMTP_PORT %q: %w", v, err)
		}
		c.Email.SMTPPort = port
	}
	if v := getenv("SMTP_USERNAME"); v != "" {
		c.Email.Username = v
	}
	if v := getenv("SMTP_PASSWORD"); v != "" {
		c.Email.Password = v
	}
	if v := getenv("FROM_EMAIL"); v != "" {
		c.Email.From = v
	}
	if v := getenv("TO_EMAILS"); v != "" {
		c.Email.To = splitList(v)
	}

	if v := getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("cronspec", func(fl validator.FieldLevel) bool {
		_, err := calendar.ParseSpec(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]bool)
	for _, p := range c.Providers {
		if seen[p.Name] {
			return fmt.Errorf("invalid config: provider %q listed twice", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}
