package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	var cfg Config
	err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.MapLookuper(env),
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func TestDefaults(t *testing.T) {
	cfg, err := load(t, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://ixpt.itechwx.com/MicrosoftForum", cfg.BaseURL)
	assert.Equal(t, "https://ixpt.itechwx.com/login", cfg.LoginURL)
	assert.True(t, cfg.Headless)
	assert.Equal(t, ":5000", cfg.ListenAddr)
	assert.Equal(t, "127.0.0.1:9222", cfg.ChromeDebugAddr)
	assert.Equal(t, 30*time.Second, cfg.CheckInterval)

	assert.Equal(t, 5, cfg.Captcha.MaxAttempts)
	assert.Equal(t, 4, cfg.Captcha.CodeLength)
	assert.Equal(t, "0123456789", cfg.Captcha.Alphabet)
	assert.Equal(t, "eng", cfg.Captcha.OCRLanguage)
	assert.Equal(t, 2*time.Minute, cfg.Captcha.ManualTimeout)
}

func TestOverrides(t *testing.T) {
	cfg, err := load(t, map[string]string{
		"FORUMBOT_USERNAME":             "alice",
		"FORUMBOT_HEADLESS":             "false",
		"FORUMBOT_CHECK_INTERVAL":       "2m",
		"FORUMBOT_CAPTCHA_CODE_LENGTH":  "6",
		"FORUMBOT_CAPTCHA_ALPHABET":     "0123456789ABCDEF",
		"FORUMBOT_CAPTCHA_MAX_ATTEMPTS": "3",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.Username)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 2*time.Minute, cfg.CheckInterval)
	assert.Equal(t, 6, cfg.Captcha.CodeLength)
	assert.Equal(t, "0123456789ABCDEF", cfg.Captcha.Alphabet)
	assert.Equal(t, 3, cfg.Captcha.MaxAttempts)
}

func TestValidation(t *testing.T) {
	_, err := load(t, map[string]string{"FORUMBOT_CAPTCHA_MAX_ATTEMPTS": "0"})
	assert.Error(t, err)

	_, err = load(t, map[string]string{"FORUMBOT_CAPTCHA_CODE_LENGTH": "-1"})
	assert.Error(t, err)

	_, err = load(t, map[string]string{"FORUMBOT_CAPTCHA_ALPHABET": ""})
	assert.Error(t, err)

	_, err = load(t, map[string]string{"FORUMBOT_CHECK_INTERVAL": "0s"})
	assert.Error(t, err)
}
