package cli

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/heibot/chatguard/config"
	"github.com/heibot/chatguard/internal/server"
	"github.com/heibot/chatguard/visibility"
)

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, else :8080)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP moderation server",
	Long: "Serves the moderation API for the chat-send pipeline.\n" +
		"When a config file is used its rules are hot-reloaded on change.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd.ErrOrStderr())
	if !strings.EqualFold(os.Getenv(EnvLogLevel), "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, mod, l, err := setup(ctx, logger)
	if err != nil {
		return err
	}
	defer l.Close()

	renderer := visibility.NewRenderer()
	renderer.Policy = cfg.Server.Visibility
	renderer.Lang = cfg.Server.Lang

	if cfg.Path != "" {
		go func() {
			err := config.Watch(ctx, cfg.Path, logger, func(next *config.Config) {
				set, err := next.RuleSet()
				if err != nil {
					logger.Warn("rule reload skipped", "error", err)
					return
				}
				if err := mod.ReloadRules(set); err != nil {
					logger.Warn("rule reload skipped", "error", err)
				}
			})
			if err != nil && ctx.Err() == nil {
				logger.Warn("hot-reload disabled", "error", err)
			}
		}()
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	srv := server.New(mod, server.Options{Renderer: renderer, Logger: logger})
	return srv.Run(ctx, addr)
}
