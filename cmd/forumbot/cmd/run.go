package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chelton/forumbot/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "log in and process the case table once, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := config.Load(ctx)
		if err != nil {
			return err
		}
		if cfg.Username == "" || cfg.Password == "" {
			return errors.New("FORUMBOT_USERNAME and FORUMBOT_PASSWORD must be set")
		}

		auto := buildAutomation(cfg)
		// no dashboard here; ask on the terminal when OCR gives up
		auto.Manual = promptCode

		if err := auto.Start(ctx); err != nil {
			return fmt.Errorf("start browser: %w", err)
		}
		defer func() { _ = auto.Close() }()

		if err := auto.Login(ctx, cfg.Username, cfg.Password); err != nil {
			return fmt.Errorf("login: %w", err)
		}

		report, err := auto.ProcessCases(ctx)
		if err != nil {
			return err
		}
		slog.Info("cycle finished",
			slog.Int("total", report.Total),
			slog.Int("processed", report.Processed))
		return nil
	},
}

func promptCode(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, "verification code: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
