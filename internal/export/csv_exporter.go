package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/inferloop/anonsearch/pkg/models"
)

// CSVExporter implements CSV export functionality
type CSVExporter struct{}

// Name returns the exporter name
func (ce *CSVExporter) Name() string {
	return "csv"
}

// SupportedFormats returns supported formats
func (ce *CSVExporter) SupportedFormats() []ExportFormat {
	return []ExportFormat{FormatCSV}
}

// Export writes released records in table order, one row per record
func (ce *CSVExporter) Export(ctx context.Context, writer io.Writer, data *models.AnonymizedDataset, options ExportOptions) error {
	csvWriter := csv.NewWriter(writer)
	if options.CSVOptions.Delimiter != "" {
		csvWriter.Comma = rune(options.CSVOptions.Delimiter[0])
	}

	if options.IncludeHeaders {
		if err := csvWriter.Write(models.Fields); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, record := range data.Records {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := csvWriter.Write(record.Strings()); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// ValidateOptions validates CSV export options
func (ce *CSVExporter) ValidateOptions(options ExportOptions) error {
	if options.CSVOptions.Delimiter != "" && len(options.CSVOptions.Delimiter) != 1 {
		return fmt.Errorf("CSV delimiter must be a single character")
	}
	return nil
}
