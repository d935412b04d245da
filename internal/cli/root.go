// Package cli implements the chatguard command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heibot/chatguard/config"
	"github.com/heibot/chatguard/ledger"
	"github.com/heibot/chatguard/moderation"
	"github.com/heibot/chatguard/redact"
)

// EnvLogLevel selects the log level: debug, info, warn or error.
const EnvLogLevel = "CHATGUARD_LOG_LEVEL"

var (
	configPath string
	userID     string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default $"+config.EnvPath+")")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "cli", "User ID the checked messages are counted against")
}

var rootCmd = &cobra.Command{
	Use:           "chatguard",
	Short:         "Anti-circumvention moderation for marketplace chat",
	Long:          "Classifies chat messages for contact details, off-platform deals and abuse,\nredacts the offending spans and escalates repeat offenders.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "chatguard: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds a text logger on w at the level named by $CHATGUARD_LOG_LEVEL.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	switch strings.ToLower(os.Getenv(EnvLogLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// setup loads the configuration and builds a moderator on the configured
// ledger. The caller closes the ledger.
func setup(ctx context.Context, logger *slog.Logger) (*config.Config, *moderation.Moderator, *ledger.Resilient, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	mod, l, err := build(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, mod, l, nil
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*moderation.Moderator, *ledger.Resilient, error) {
	set, err := cfg.RuleSet()
	if err != nil {
		return nil, nil, err
	}

	l, err := config.OpenLedger(ctx, cfg.Ledger, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	mod, err := moderation.New(moderation.Options{
		Ledger:            l,
		Rules:             set,
		Policy:            cfg.EscalationPolicy(),
		Redactor:          redact.New(cfg.RedactorOptions()...),
		Logger:            logger,
		MaskAllCategories: cfg.Redaction.MaskAllCategories,
		Lang:              cfg.Server.Lang,
	})
	if err != nil {
		l.Close()
		return nil, nil, err
	}
	return mod, l, nil
}
