package cmd

import (
	"errors"
	"log/slog"
	"net"

	"github.com/spf13/cobra"

	"github.com/chelton/forumbot/internal/bot"
	"github.com/chelton/forumbot/internal/config"
	"github.com/chelton/forumbot/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the dashboard and control the bot from the browser",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := config.Load(ctx)
		if err != nil {
			return err
		}

		auto := buildAutomation(cfg)
		b := bot.New(auto, cfg.CheckInterval, cfg.Captcha.ManualTimeout, slog.Default())
		// the dashboard's manual code entry backs the exhausted-OCR fallback
		auto.Manual = b.ManualCode

		srv := server.New(b, logRing,
			server.Credentials{Username: cfg.Username, Password: cfg.Password},
			debugPort(cfg.ChromeDebugAddr), slog.Default())

		go func() {
			<-ctx.Done()
			if err := b.Stop(); err != nil && !errors.Is(err, bot.ErrNotRunning) {
				slog.Warn("bot shutdown", slog.Any("error", err))
			}
			_ = srv.Shutdown()
		}()

		return srv.Listen(cfg.ListenAddr)
	},
}

// debugPort extracts the port the websocket proxy dials from the configured
// remote-debugging address.
func debugPort(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return port
}
