// Command drishti runs live face recognition on a camera feed and manages
// the face gallery.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/drishti/internal/config"
)

// Version is the application version.
const Version = "0.1.0"

var (
	cfg    *config.Config
	logger *slog.Logger

	flagDataDir  string
	flagListen   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "drishti",
	Short:         "Live face recognition for a local camera",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Read()
		if err != nil {
			return err
		}
		if flagDataDir != "" {
			c.DataDir = flagDataDir
		}
		if flagListen != "" {
			c.ListenAddr = flagListen
		}
		if flagLogLevel != "" {
			c.LogLevel = flagLogLevel
		}
		if err := c.Resolve(); err != nil {
			return err
		}

		l, err := config.NewLogger(os.Stderr, c.LogLevel, c.LogFormat)
		if err != nil {
			return err
		}
		slog.SetDefault(l)

		cfg, logger = c, l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default ~/.drishti)")
	rootCmd.PersistentFlags().StringVar(&flagListen, "listen", "", "HTTP listen address (default :8080)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error")
}

func main() {
	// Cancel on Ctrl+C (SIGINT) or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "drishti:", err)
		os.Exit(1)
	}
}
