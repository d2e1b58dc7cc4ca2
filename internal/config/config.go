// Package config loads runtime settings from the environment.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Captcha tunes the verification-code pipeline.
type Captcha struct {
	MaxAttempts   int           `env:"MAX_ATTEMPTS, default=5"`
	CodeLength    int           `env:"CODE_LENGTH, default=4"`
	Alphabet      string        `env:"ALPHABET, default=0123456789"`
	OCRLanguage   string        `env:"OCR_LANGUAGE, default=eng"`
	OCRTimeout    time.Duration `env:"OCR_TIMEOUT, default=5s"`
	ManualTimeout time.Duration `env:"MANUAL_TIMEOUT, default=2m"`
}

// Config is the full runtime configuration.
type Config struct {
	BaseURL  string `env:"FORUMBOT_BASE_URL, default=https://ixpt.itechwx.com/MicrosoftForum"`
	LoginURL string `env:"FORUMBOT_LOGIN_URL, default=https://ixpt.itechwx.com/login"`
	Username string `env:"FORUMBOT_USERNAME"`
	Password string `env:"FORUMBOT_PASSWORD"`

	Headless        bool   `env:"FORUMBOT_HEADLESS, default=true"`
	ListenAddr      string `env:"FORUMBOT_LISTEN_ADDR, default=:5000"`
	ChromeDebugAddr string `env:"FORUMBOT_DEBUG_ADDR, default=127.0.0.1:9222"`

	CheckInterval time.Duration `env:"FORUMBOT_CHECK_INTERVAL, default=30s"`
	OpTimeout     time.Duration `env:"FORUMBOT_OP_TIMEOUT, default=30s"`

	Captcha Captcha `env:", prefix=FORUMBOT_CAPTCHA_"`
}

// Load reads the configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Captcha.MaxAttempts < 1 {
		return fmt.Errorf("config: captcha max attempts must be positive, got %d", c.Captcha.MaxAttempts)
	}
	if c.Captcha.CodeLength < 1 {
		return fmt.Errorf("config: captcha code length must be positive, got %d", c.Captcha.CodeLength)
	}
	if c.Captcha.Alphabet == "" {
		return fmt.Errorf("config: captcha alphabet must not be empty")
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("config: check interval must be positive, got %s", c.CheckInterval)
	}
	return nil
}
