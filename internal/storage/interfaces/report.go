package interfaces

import (
	"context"

	"github.com/inferloop/anonsearch/pkg/models"
)

// ReportStore persists search reports produced by the parameter search.
type ReportStore interface {
	// Type names the backend, e.g. "redis" or "s3"
	Type() string

	// Connect establishes the backend connection
	Connect(ctx context.Context) error

	// Close releases the backend connection
	Close() error

	// Ping checks the backend is reachable
	Ping(ctx context.Context) error

	// Save stores a report under its ID
	Save(ctx context.Context, report *models.SearchReport) error

	// Load fetches a report by ID; ErrReportNotFound when absent
	Load(ctx context.Context, id string) (*models.SearchReport, error)

	// List returns up to limit stored report IDs; limit <= 0 lists all
	List(ctx context.Context, limit int64) ([]string, error)
}
