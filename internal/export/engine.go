package export

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

// ExportEngine writes released datasets and search reports in the registered formats.
type ExportEngine struct {
	logger    *logrus.Logger
	config    *ExportConfig
	mu        sync.RWMutex
	exporters map[ExportFormat]Exporter
}

// ExportConfig configures the export engine
type ExportConfig struct {
	OutputDirectory   string `json:"output_directory" mapstructure:"output_directory"`
	EnableCompression bool   `json:"enable_compression" mapstructure:"enable_compression"`
	CompressionLevel  int    `json:"compression_level" mapstructure:"compression_level"`
}

// ExportFormat defines supported export formats
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ExportOptions contains export-specific options
type ExportOptions struct {
	IncludeHeaders bool        `json:"include_headers"`
	CSVOptions     CSVOptions  `json:"csv_options,omitempty"`
	JSONOptions    JSONOptions `json:"json_options,omitempty"`
}

type CSVOptions struct {
	Delimiter string `json:"delimiter"`
}

type JSONOptions struct {
	Pretty bool `json:"pretty"`
	// StreamFormat writes one record per line instead of a single document.
	StreamFormat bool `json:"stream_format"`
}

// ExportResult describes a file written by ExportToFile.
type ExportResult struct {
	JobID       string        `json:"job_id"`
	Format      ExportFormat  `json:"format"`
	Path        string        `json:"path"`
	RecordCount int           `json:"record_count"`
	Compressed  bool          `json:"compressed"`
	Duration    time.Duration `json:"duration"`
}

// Exporter interface for format-specific exporters
type Exporter interface {
	Name() string
	SupportedFormats() []ExportFormat
	Export(ctx context.Context, writer io.Writer, data *models.AnonymizedDataset, options ExportOptions) error
	ValidateOptions(options ExportOptions) error
}

// NewExportEngine creates a new export engine
func NewExportEngine(config *ExportConfig, logger *logrus.Logger) (*ExportEngine, error) {
	if config == nil {
		config = getDefaultExportConfig()
	}

	if logger == nil {
		logger = logrus.New()
	}

	engine := &ExportEngine{
		logger:    logger,
		config:    config,
		exporters: make(map[ExportFormat]Exporter),
	}

	engine.RegisterExporter(&CSVExporter{})
	engine.RegisterExporter(&JSONExporter{})

	return engine, nil
}

// RegisterExporter registers an exporter for every format it supports
func (ee *ExportEngine) RegisterExporter(exporter Exporter) {
	ee.mu.Lock()
	defer ee.mu.Unlock()

	for _, format := range exporter.SupportedFormats() {
		ee.exporters[format] = exporter
	}
	ee.logger.WithField("exporter", exporter.Name()).Debug("Registered exporter")
}

// GetSupportedFormats returns all supported export formats, sorted
func (ee *ExportEngine) GetSupportedFormats() []ExportFormat {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	formats := make([]ExportFormat, 0, len(ee.exporters))
	for format := range ee.exporters {
		formats = append(formats, format)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

// ExportDataset writes a released dataset synchronously.
func (ee *ExportEngine) ExportDataset(ctx context.Context, data *models.AnonymizedDataset, format ExportFormat, writer io.Writer, options ExportOptions) error {
	ee.mu.RLock()
	exporter, exists := ee.exporters[format]
	ee.mu.RUnlock()

	if !exists {
		return errors.NewValidationError(errors.CodeInvalidFormat, fmt.Sprintf("no exporter found for format %s", format))
	}

	if err := exporter.ValidateOptions(options); err != nil {
		return fmt.Errorf("invalid export options: %w", err)
	}

	start := time.Now()
	err := exporter.Export(ctx, writer, data, options)

	ee.logger.WithFields(logrus.Fields{
		"format":   format,
		"records":  data.Len(),
		"duration": time.Since(start),
	}).Debug("Export completed")

	return err
}

// ExportReport writes a complete search report as JSON.
func (ee *ExportEngine) ExportReport(ctx context.Context, report *models.SearchReport, writer io.Writer, options ExportOptions) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return writeJSON(writer, report, options.JSONOptions.Pretty)
}

// ExportToFile writes a dataset under the output directory, gzip-compressed when enabled.
func (ee *ExportEngine) ExportToFile(ctx context.Context, data *models.AnonymizedDataset, format ExportFormat, name string, options ExportOptions) (*ExportResult, error) {
	start := time.Now()
	result := &ExportResult{
		JobID:       uuid.New().String(),
		Format:      format,
		RecordCount: data.Len(),
		Compressed:  ee.config.EnableCompression,
	}

	ext, ok := constants.FileExtensions[string(format)]
	if !ok {
		return nil, errors.NewValidationError(errors.CodeInvalidFormat, fmt.Sprintf("unsupported export format: %s", format))
	}
	if name == "" {
		name = fmt.Sprintf("anonymized_%s", result.JobID)
	}
	path := filepath.Join(ee.config.OutputDirectory, name+ext)
	if ee.config.EnableCompression {
		path += ".gz"
	}
	result.Path = path

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	var writer io.Writer = file
	if ee.config.EnableCompression {
		gz, err := gzip.NewWriterLevel(file, ee.compressionLevel())
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		writer = gz
	}

	if err := ee.ExportDataset(ctx, data, format, writer, options); err != nil {
		return nil, err
	}
	if gz, ok := writer.(*gzip.Writer); ok {
		if err := gz.Close(); err != nil {
			return nil, fmt.Errorf("failed to finish gzip stream: %w", err)
		}
	}

	result.Duration = time.Since(start)
	ee.logger.WithFields(logrus.Fields{
		"job_id":  result.JobID,
		"path":    result.Path,
		"records": result.RecordCount,
	}).Info("Exported anonymized dataset")

	return result, nil
}

func (ee *ExportEngine) compressionLevel() int {
	if ee.config.CompressionLevel == 0 {
		return gzip.DefaultCompression
	}
	return ee.config.CompressionLevel
}

func getDefaultExportConfig() *ExportConfig {
	return &ExportConfig{
		OutputDirectory:   ".",
		EnableCompression: false,
		CompressionLevel:  gzip.DefaultCompression,
	}
}
