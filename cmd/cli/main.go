package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inferloop/anonsearch/cmd/cli/commands"
	"github.com/inferloop/anonsearch/cmd/cli/config"
	"github.com/inferloop/anonsearch/pkg/constants"
)

type rootOptions struct {
	cfgFile   string
	logLevel  string
	logFormat string
	verbose   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := createRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func createRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "anonsearch-cli",
		Short: "k-anonymity / l-diversity parameter search",
		Long: `A command-line interface for anonymizing survey tables with k-anonymity and
l-diversity, and for searching the (k, l) pair that best trades privacy for utility.`,
		Version:       constants.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.anonsearch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	load := newRuntimeLoader(rootCmd, opts)

	rootCmd.AddCommand(commands.NewGenerateCmd(load))
	rootCmd.AddCommand(commands.NewAnonymizeCmd(load))
	rootCmd.AddCommand(commands.NewSearchCmd(load))
	rootCmd.AddCommand(commands.NewValidateCmd(load))
	rootCmd.AddCommand(commands.NewReportCmd(load))
	rootCmd.AddCommand(commands.NewConfigCmd(load))

	return rootCmd
}

// newRuntimeLoader loads the configuration once, after flags are parsed
func newRuntimeLoader(rootCmd *cobra.Command, opts *rootOptions) commands.RuntimeLoader {
	var rt *commands.Runtime

	return func() (*commands.Runtime, error) {
		if rt != nil {
			return rt, nil
		}

		cfg, err := config.LoadConfig(opts.cfgFile)
		if err != nil {
			return nil, err
		}

		if opts.logLevel != "" {
			cfg.Log.Level = opts.logLevel
		}
		if opts.logFormat != "" {
			cfg.Log.Format = opts.logFormat
		}
		if opts.verbose {
			cfg.Log.Level = "debug"
		}

		logger := commands.NewLogger(cfg.Log.Level, cfg.Log.Format, rootCmd.ErrOrStderr())
		if opts.cfgFile != "" {
			logger.WithField("config", opts.cfgFile).Debug("Using config file")
		}

		rt = &commands.Runtime{
			Config:     cfg,
			Logger:     logger,
			ConfigFile: opts.cfgFile,
		}
		return rt, nil
	}
}
