package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradekit/config"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// rootOptions carries the persistent flags and what PersistentPreRunE
// builds from them.
type rootOptions struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *logrus.Logger
}

func NewRootCmd() *cobra.Command {
	ro := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "trader",
		Short:         "Trader: tick aggregation, account simulation and replay tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global / persistent flags
	cmd.PersistentFlags().StringVar(&ro.configPath, "config", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&ro.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(ro.configPath)
		if err != nil {
			return err
		}
		if ro.logLevel != "" {
			cfg.Log.Level = ro.logLevel
		}
		log, err := newLogger(cfg.Log, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		ro.cfg, ro.log = cfg, log
		return nil
	}

	cmd.AddCommand(
		newAggregateCmd(ro),
		newReplayCmd(ro),
		newJournalCmd(ro),
		newConfigCmd(ro),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "trader (%s)\n", Version)
		},
	})

	return cmd
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newLogger(lc config.LogConfig, w io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(w)

	level := logrus.InfoLevel
	if lc.Level != "" {
		var err error
		if level, err = logrus.ParseLevel(lc.Level); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	log.SetLevel(level)

	if strings.EqualFold(lc.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}

// parseTime accepts RFC3339 or a plain date. Empty is the zero time.
func parseTime(flag, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: want RFC3339 or YYYY-MM-DD, got %q", flag, s)
	}
	return t, nil
}
