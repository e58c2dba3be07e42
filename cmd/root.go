// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/portfolio-core/internal/config"
	"github.com/naka-gawa/portfolio-core/internal/logging"
)

// State shared by every subcommand, populated in the root PersistentPreRunE.
var (
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error // set while a logger is installed; cleared by closeLogger
)

var rootCmd = &cobra.Command{
	Use:   "portfolio-core",
	Short: "Data core of a personal portfolio: GitHub activity and local attachments.",
	Long: `portfolio-core aggregates a GitHub account's contribution years, per-year commit
totals, repositories and repository languages, and keeps binary attachments
(images, PDFs) in a local SQLite store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A .env file is optional; a missing one is not an error.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		format, _ := cmd.Flags().GetString("output")
		if format != formatJSON && format != formatYAML {
			return fmt.Errorf("unsupported output format %q (want %s or %s)", format, formatJSON, formatYAML)
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		if logFile, _ := cmd.Flags().GetString("log-file"); logFile != "" {
			cfg.LogFile = logFile
		}

		l, closer, err := logging.SetupLogger(logging.Options{
			Level:   cfg.LogLevel,
			File:    cfg.LogFile,
			Verbose: verbose,
			Stderr:  cmd.ErrOrStderr(),
		})
		if err != nil {
			return fmt.Errorf("setup logger: %w", err)
		}
		logger = l
		closeLog = closer
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		stop()
		os.Exit(1)
	}
}

// closeLogger releases the log file after every execution, including failed ones.
func closeLogger() {
	if closeLog == nil {
		return
	}
	if err := closeLog(); err != nil {
		fmt.Fprintf(os.Stderr, "close log file: %v\n", err)
	}
	closeLog = nil
}

func init() {
	cobra.OnFinalize(closeLogger)

	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().StringP("output", "o", formatJSON, "Output format: json or yaml")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this rotated file")
}
