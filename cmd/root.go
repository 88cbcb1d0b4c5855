package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	cfgpkg "github.com/KaramelBytes/datacheck-cli/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool

	// Loaded configuration and the error, if any, from loading it.
	cfg    *cfgpkg.Global
	cfgErr error

	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:           "datacheck",
	Short:         "datacheck: score and repair the quality of tabular datasets",
	Long:          `datacheck runs data-quality checks (missing values, outliers, duplicates, formats, class balance, skew) over CSV, TSV and XLSX files, scores the result, and applies remediations that write a cleaned copy.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.datacheck/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	addInputFlags(rootCmd)
}

func loadConfig() {
	cfg, cfgErr = cfgpkg.Load(cfgFile)
	if cfgErr != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "⚠ Warning: failed to load config: %v\n", cfgErr)
		return
	}
	level := cfg.Level()
	if debug {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(rootCmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// settings returns the loaded configuration, failing when it could not be
// loaded or does not validate.
func settings() (*cfgpkg.Global, error) {
	if cfgErr != nil {
		return nil, cfgErr
	}
	if cfg == nil {
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
