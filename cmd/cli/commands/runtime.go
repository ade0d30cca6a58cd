package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inferloop/anonsearch/cmd/cli/config"
	"github.com/inferloop/anonsearch/internal/dataset"
	"github.com/inferloop/anonsearch/internal/export"
	"github.com/inferloop/anonsearch/pkg/models"
)

// Runtime carries the loaded configuration and logger shared by all commands
type Runtime struct {
	Config     *config.CLIConfig
	Logger     *logrus.Logger
	ConfigFile string
}

// RuntimeLoader resolves the runtime once the root flags are parsed
type RuntimeLoader func() (*Runtime, error)

// NewLogger builds a logger writing to w at the given level and format (json|text)
func NewLogger(level, format string, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// readRecords loads a survey CSV from path, or stdin for "-"
func readRecords(cmd *cobra.Command, path string) ([]models.Record, error) {
	if path == "-" {
		return dataset.ReadCSV(cmd.InOrStdin())
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return dataset.ReadCSV(file)
}

// openOutput returns a writer for path, or stdout for "-"
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, file.Close, nil
}

// summaryWriter keeps human-readable output off stdout when data goes there
func summaryWriter(cmd *cobra.Command, output string) io.Writer {
	if output == "-" {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

func newExporter(rt *Runtime) (*export.ExportEngine, error) {
	return export.NewExportEngine(&export.ExportConfig{
		OutputDirectory:   rt.Config.Output.Directory,
		EnableCompression: rt.Config.Output.Compress,
	}, rt.Logger)
}

// outputFormat prefers the flag value over output.format
func outputFormat(flag string, rt *Runtime) string {
	if flag != "" {
		return flag
	}
	return rt.Config.Output.Format
}
