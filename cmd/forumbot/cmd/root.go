package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chelton/forumbot/internal/browser"
	"github.com/chelton/forumbot/internal/captcha"
	"github.com/chelton/forumbot/internal/config"
	"github.com/chelton/forumbot/internal/logging"
	"github.com/chelton/forumbot/internal/ocr"
)

var (
	logLevel  string
	logFormat string

	// logRing holds the tail served on the dashboard's log endpoint.
	logRing *logging.Ring
)

var RootCmd = &cobra.Command{
	Use:          "forumbot",
	Short:        "forum case-intake bot with OCR captcha login",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ring, err := logging.Setup(logLevel, logFormat)
		if err != nil {
			return err
		}
		logRing = ring
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(runCmd)
}

// buildAutomation wires the browser session, the OCR engine and the captcha
// resolver from config. The session doubles as the resolver's image source.
func buildAutomation(cfg *config.Config) *browser.Automation {
	session := browser.NewSession(browser.Config{
		BaseURL:   cfg.BaseURL,
		LoginURL:  cfg.LoginURL,
		DebugAddr: cfg.ChromeDebugAddr,
		Headless:  cfg.Headless,
		OpTimeout: cfg.OpTimeout,
	})
	engine := &ocr.Tesseract{
		Languages: []string{cfg.Captcha.OCRLanguage},
		Timeout:   cfg.Captcha.OCRTimeout,
	}
	resolver := &captcha.Resolver{
		Source:     session,
		Engine:     engine,
		Strategies: captcha.DefaultStrategies(),
		Configs:    captcha.DefaultEngineConfigs(cfg.Captcha.Alphabet),
		Format: captcha.Format{
			Length:   cfg.Captcha.CodeLength,
			Alphabet: cfg.Captcha.Alphabet,
		},
		MaxAttempts: cfg.Captcha.MaxAttempts,
		Logger:      slog.Default(),
	}
	return &browser.Automation{
		Session:  session,
		Resolver: resolver,
		Logger:   slog.Default(),
	}
}
