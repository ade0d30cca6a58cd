package storage

import (
	"context"
	"time"

	"github.com/inferloop/anonsearch/internal/storage/interfaces"
	"github.com/inferloop/anonsearch/pkg/models"
)

// OperationRecorder receives per-operation storage telemetry.
type OperationRecorder interface {
	RecordStorageOperation(backend, operation, status string, duration time.Duration)
}

// InstrumentedStore times every call on the wrapped store.
type InstrumentedStore struct {
	interfaces.ReportStore
	recorder OperationRecorder
}

// WithMetrics wraps store; a nil recorder returns store unchanged.
func WithMetrics(store interfaces.ReportStore, recorder OperationRecorder) interfaces.ReportStore {
	if recorder == nil {
		return store
	}
	return &InstrumentedStore{ReportStore: store, recorder: recorder}
}

func (s *InstrumentedStore) Save(ctx context.Context, report *models.SearchReport) error {
	started := time.Now()
	err := s.ReportStore.Save(ctx, report)
	s.record("save", err, started)
	return err
}

func (s *InstrumentedStore) Load(ctx context.Context, id string) (*models.SearchReport, error) {
	started := time.Now()
	report, err := s.ReportStore.Load(ctx, id)
	s.record("load", err, started)
	return report, err
}

func (s *InstrumentedStore) List(ctx context.Context, limit int64) ([]string, error) {
	started := time.Now()
	ids, err := s.ReportStore.List(ctx, limit)
	s.record("list", err, started)
	return ids, err
}

func (s *InstrumentedStore) record(operation string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	s.recorder.RecordStorageOperation(s.Type(), operation, status, time.Since(started))
}
