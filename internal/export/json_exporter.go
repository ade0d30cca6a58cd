package export

import (
	"context"
	"encoding/json"
	"io"

	"github.com/inferloop/anonsearch/pkg/models"
)

// JSONExporter implements JSON export functionality
type JSONExporter struct{}

// Name returns the exporter name
func (je *JSONExporter) Name() string {
	return "json"
}

// SupportedFormats returns supported formats
func (je *JSONExporter) SupportedFormats() []ExportFormat {
	return []ExportFormat{FormatJSON}
}

// Export writes the dataset as one document, or as JSON lines in stream format
func (je *JSONExporter) Export(ctx context.Context, writer io.Writer, data *models.AnonymizedDataset, options ExportOptions) error {
	if !options.JSONOptions.StreamFormat {
		return writeJSON(writer, data, options.JSONOptions.Pretty)
	}

	encoder := json.NewEncoder(writer)
	for _, record := range data.Records {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := encoder.Encode(record); err != nil {
			return err
		}
	}
	return nil
}

// ValidateOptions validates JSON export options
func (je *JSONExporter) ValidateOptions(options ExportOptions) error {
	return nil
}

func writeJSON(writer io.Writer, v interface{}, pretty bool) error {
	encoder := json.NewEncoder(writer)
	if pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}
