package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/internal/dataset"
	"github.com/inferloop/anonsearch/internal/export"
	"github.com/inferloop/anonsearch/internal/observability/health"
	"github.com/inferloop/anonsearch/internal/privacy"
	"github.com/inferloop/anonsearch/internal/search"
	"github.com/inferloop/anonsearch/internal/storage/interfaces"
	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

// BuildInfo describes the running binary
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// HandlersConfig wires the handlers to the search components
type HandlersConfig struct {
	Searcher       *search.Searcher
	Engine         *privacy.Engine
	Exporter       *export.ExportEngine
	Store          interfaces.ReportStore
	SearchDefaults search.Config
	BuildInfo      BuildInfo
	MaxRecords     int
	MaxK           int
}

// Handlers serves the search, anonymize and report endpoints
type Handlers struct {
	searcher   *search.Searcher
	engine     *privacy.Engine
	exporter   *export.ExportEngine
	store      interfaces.ReportStore
	defaults   search.Config
	build      BuildInfo
	maxRecords int
	maxK       int
	monitor    *health.Monitor
	logger     *logrus.Logger
}

// SearchRequest is the body of POST /api/v1/search. Omitted settings fall
// back to the server defaults.
type SearchRequest struct {
	Records          []models.Record `json:"records"`
	QuasiIdentifiers []string        `json:"quasi_identifiers,omitempty"`
	SensitiveField   string          `json:"sensitive_field,omitempty"`
	MaxK             *int            `json:"max_k,omitempty"`
	AllowedDrop      *int            `json:"allowed_drop,omitempty"`
	LBound           string          `json:"l_bound,omitempty"`
}

// SearchResponse wraps the report with its persistence outcome
type SearchResponse struct {
	Report *models.SearchReport `json:"report"`
	Stored bool                 `json:"stored"`
}

// AnonymizeRequest is the body of POST /api/v1/anonymize
type AnonymizeRequest struct {
	Records          []models.Record `json:"records"`
	QuasiIdentifiers []string        `json:"quasi_identifiers,omitempty"`
	SensitiveField   string          `json:"sensitive_field,omitempty"`
	K                int             `json:"k"`
	L                int             `json:"l"`
}

// NewHandlers creates a new handlers instance
func NewHandlers(config HandlersConfig, logger *logrus.Logger) (*Handlers, error) {
	if logger == nil {
		logger = logrus.New()
	}

	engine := config.Engine
	if engine == nil {
		engine = privacy.NewEngine(logger)
	}

	searcher := config.Searcher
	if searcher == nil {
		searcher = search.NewSearcher(engine, nil, logger)
	}

	exporter := config.Exporter
	if exporter == nil {
		var err error
		exporter, err = export.NewExportEngine(nil, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create export engine: %w", err)
		}
	}

	defaults := config.SearchDefaults
	if defaults.MaxK == 0 {
		defaults = search.DefaultConfig()
	}

	maxRecords := config.MaxRecords
	if maxRecords <= 0 {
		maxRecords = constants.MaxRequestRecords
	}

	maxK := config.MaxK
	if maxK <= 0 {
		maxK = constants.MaxRequestMaxK
	}

	monitor := health.NewMonitor(nil, logger)
	if config.Store != nil {
		monitor.Register(health.NewCheck("storage", false, config.Store.Ping))
	}

	return &Handlers{
		searcher:   searcher,
		engine:     engine,
		exporter:   exporter,
		store:      config.Store,
		defaults:   defaults,
		build:      config.BuildInfo,
		maxRecords: maxRecords,
		maxK:       maxK,
		monitor:    monitor,
		logger:     logger,
	}, nil
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	report := h.monitor.Run(r.Context())

	status := http.StatusOK
	if report.Status != health.StatusHealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"status":    report.Status,
		"version":   h.build.Version,
		"timestamp": report.Timestamp,
		"uptime":    report.Uptime,
		"checks":    report.Checks,
	})
}

// Version handles GET /version
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.build)
}

// Search handles POST /api/v1/search
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.checkRecords(r, req.Records); err != nil {
		h.writeError(w, r, err)
		return
	}

	cfg := h.defaults
	if len(req.QuasiIdentifiers) > 0 {
		cfg.QuasiIdentifiers = req.QuasiIdentifiers
	}
	if req.SensitiveField != "" {
		cfg.SensitiveField = req.SensitiveField
	}
	if req.MaxK != nil {
		if *req.MaxK > h.maxK {
			h.writeError(w, r, errors.NewValidationError(errors.CodeOutOfRange,
				fmt.Sprintf("max_k %d exceeds the server limit of %d", *req.MaxK, h.maxK)))
			return
		}
		cfg.MaxK = *req.MaxK
	}
	if req.AllowedDrop != nil {
		cfg.AllowedDrop = *req.AllowedDrop
	}
	if req.LBound != "" {
		cfg.LBound = req.LBound
	}

	report, err := h.searcher.Search(r.Context(), req.Records, cfg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response := SearchResponse{Report: report}
	if h.store != nil {
		if err := h.store.Save(r.Context(), report); err != nil {
			h.logger.WithFields(logrus.Fields{
				"search_id":  report.ID,
				"request_id": getRequestID(r),
				"retryable":  errors.IsRetryable(err),
			}).WithError(err).Error("Failed to store search report")
		} else {
			response.Stored = true
		}
	}

	w.Header().Set(constants.HeaderSearchID, report.ID)
	writeJSON(w, http.StatusOK, response)
}

// Anonymize handles POST /api/v1/anonymize. The released table is returned as
// JSON, or as CSV when ?format=csv or Accept: text/csv.
func (h *Handlers) Anonymize(w http.ResponseWriter, r *http.Request) {
	var req AnonymizeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.checkRecords(r, req.Records); err != nil {
		h.writeError(w, r, err)
		return
	}

	qis := req.QuasiIdentifiers
	if len(qis) == 0 {
		qis = h.defaults.QuasiIdentifiers
	}
	sensitive := req.SensitiveField
	if sensitive == "" {
		sensitive = h.defaults.SensitiveField
	}

	data, err := h.engine.Apply(r.Context(), req.Records, qis, sensitive, req.K, req.L)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if wantsCSV(r) {
		w.Header().Set(constants.HeaderContentType, constants.MimeTypeCSV)
		w.WriteHeader(http.StatusOK)
		if err := h.exporter.ExportDataset(r.Context(), data, export.FormatCSV, w, export.ExportOptions{IncludeHeaders: true}); err != nil {
			h.logger.WithError(err).WithField("request_id", getRequestID(r)).Error("Failed to stream CSV response")
		}
		return
	}

	writeJSON(w, http.StatusOK, data)
}

// GetReport handles GET /api/v1/reports/{id}
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, r, errors.NewStorageError(errors.CodeStorageNotConfigured, "Report storage is not configured"))
		return
	}

	id := mux.Vars(r)["id"]
	report, err := h.store.Load(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// ListReports handles GET /api/v1/reports?limit=N
func (h *Handlers) ListReports(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, r, errors.NewStorageError(errors.CodeStorageNotConfigured, "Report storage is not configured"))
		return
	}

	limit := int64(constants.DefaultReportListLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 || parsed > constants.MaxReportListLimit {
			h.writeError(w, r, errors.NewValidationError(errors.CodeOutOfRange,
				fmt.Sprintf("limit must be between 1 and %d, got %q", constants.MaxReportListLimit, raw)))
			return
		}
		limit = parsed
	}

	ids, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": ids,
		"count":   len(ids),
	})
}

// NotFound handles unknown routes
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	err := errors.NewAppError(errors.ErrorTypeValidation, "NOT_FOUND", fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
	err.HTTPStatus = http.StatusNotFound
	h.writeError(w, r, err)
}

func (h *Handlers) checkRecords(r *http.Request, records []models.Record) error {
	if len(records) == 0 {
		return errors.NewValidationError(errors.CodeMissingField, "records must not be empty")
	}
	if len(records) > h.maxRecords {
		return errors.NewValidationError(errors.CodeOutOfRange,
			fmt.Sprintf("request holds %d records, limit is %d", len(records), h.maxRecords))
	}
	if strict, _ := strconv.ParseBool(r.URL.Query().Get("strict")); strict {
		return dataset.ValidateRecords(records)
	}
	return nil
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		appErr = errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError, "Internal server error")
		appErr.HTTPStatus = http.StatusInternalServerError
	}

	status := errors.StatusCode(appErr)
	entry := h.logger.WithFields(logrus.Fields{
		"code":       appErr.Code,
		"status":     status,
		"path":       r.URL.Path,
		"request_id": getRequestID(r),
	})
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("Request failed")
	} else {
		entry.Debug(appErr.Error())
	}

	writeJSON(w, status, errors.ErrorResponse{
		Error:     appErr,
		RequestID: getRequestID(r),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	})
}

func decodeJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			appErr := errors.NewValidationError(errors.CodeOutOfRange, "Request body too large")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			return appErr
		}
		return errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "Malformed JSON body").
			WithDetails(err.Error())
	}
	return nil
}

func wantsCSV(r *http.Request) bool {
	if format := r.URL.Query().Get("format"); format != "" {
		return format == string(export.FormatCSV)
	}
	return r.Header.Get(constants.HeaderAccept) == constants.MimeTypeCSV
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set(constants.HeaderContentType, constants.MimeTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
