package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonsearch/internal/testutil"
	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

type memoryStore struct {
	reports map[string]*models.SearchReport
	pingErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{reports: make(map[string]*models.SearchReport)}
}

func (m *memoryStore) Type() string                      { return "memory" }
func (m *memoryStore) Connect(ctx context.Context) error { return nil }
func (m *memoryStore) Close() error                      { return nil }
func (m *memoryStore) Ping(ctx context.Context) error    { return m.pingErr }

func (m *memoryStore) Save(ctx context.Context, report *models.SearchReport) error {
	m.reports[report.ID] = report
	return nil
}

func (m *memoryStore) Load(ctx context.Context, id string) (*models.SearchReport, error) {
	report, ok := m.reports[id]
	if !ok {
		return nil, errors.NewStorageError(errors.CodeReportNotFound, "report "+id+" not found")
	}
	return report, nil
}

func (m *memoryStore) List(ctx context.Context, limit int64) ([]string, error) {
	ids := make([]string, 0, len(m.reports))
	for id := range m.reports {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit > 0 && int64(len(ids)) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type recordedRequest struct {
	method, path, status string
}

type fakeRecorder struct {
	requests []recordedRequest
}

func (f *fakeRecorder) RecordHTTPRequest(method, path, status string, _ time.Duration) {
	f.requests = append(f.requests, recordedRequest{method, path, status})
}

func newTestServer(t *testing.T, store *memoryStore, recorder HTTPRecorder) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	config := HandlersConfig{BuildInfo: BuildInfo{Version: "test", GitCommit: "abc123"}}
	if store != nil {
		config.Store = store
	}
	handlers, err := NewHandlers(config, logger)
	require.NoError(t, err)

	server, err := NewServer(DefaultConfig(), handlers, recorder, logger)
	require.NoError(t, err)
	return server
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errors.AppError {
	t.Helper()

	var response struct {
		Error     errors.AppError `json:"error"`
		RequestID string          `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	return response.Error
}

func TestHealthAndVersion(t *testing.T) {
	server := newTestServer(t, nil, nil)

	rec := doJSON(t, server.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = doJSON(t, server.Handler(), http.MethodGet, "/version", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var info BuildInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "test", info.Version)
	assert.Equal(t, "abc123", info.GitCommit)
}

func TestHealthDegradedStore(t *testing.T) {
	store := newMemoryStore()
	store.pingErr = errors.NewStorageError(errors.CodeConnectionFailed, "Redis not connected")
	server := newTestServer(t, store, nil)

	rec := doJSON(t, server.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func TestSearchEndpoint(t *testing.T) {
	store := newMemoryStore()
	server := newTestServer(t, store, nil)

	maxK := 4
	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/search", SearchRequest{
		Records: testutil.ScenarioRecords(),
		MaxK:    &maxK,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.NotNil(t, response.Report)
	assert.True(t, response.Stored)
	assert.Equal(t, response.Report.ID, rec.Header().Get("X-Search-ID"))
	assert.Equal(t, 4, response.Report.Settings.MaxK)
	assert.Len(t, response.Report.Candidates, 9)
	assert.Greater(t, response.Report.BestScore, 0.0)
	assert.Contains(t, store.reports, response.Report.ID)

	rec = doJSON(t, server.Handler(), http.MethodGet, "/api/v1/reports/"+response.Report.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var loaded models.SearchReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loaded))
	assert.Equal(t, response.Report.BestK, loaded.BestK)
	assert.Equal(t, response.Report.BestL, loaded.BestL)
}

func TestSearchEndpointInvalidConfig(t *testing.T) {
	server := newTestServer(t, nil, nil)

	maxK := 1
	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/search", SearchRequest{
		Records: testutil.ScenarioRecords(),
		MaxK:    &maxK,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.CodeInvalidConfiguration, decodeError(t, rec).Code)

	rec = doJSON(t, server.Handler(), http.MethodPost, "/api/v1/search", SearchRequest{
		Records:          testutil.ScenarioRecords(),
		QuasiIdentifiers: []string{"age", "income"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "income")
}

func TestSearchEndpointMaxKLimit(t *testing.T) {
	server := newTestServer(t, newMemoryStore(), nil)

	maxK := 4000000000
	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/search", SearchRequest{
		Records: testutil.IdenticalRecords(1),
		MaxK:    &maxK,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.CodeOutOfRange, decodeError(t, rec).Code)

	// Within the limit, a grid wider than the record count is clamped.
	maxK = 1000
	rec = doJSON(t, server.Handler(), http.MethodPost, "/api/v1/search", SearchRequest{
		Records: testutil.IdenticalRecords(1),
		MaxK:    &maxK,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Len(t, response.Report.Candidates, 1)
	assert.Equal(t, 1000, response.Report.Settings.MaxK)
}

func TestSearchEndpointBadBody(t *testing.T) {
	server := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"records": [`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.CodeInvalidInput, decodeError(t, rec).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"records": [], "bogus": 1}`))
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, server.Handler(), http.MethodPost, "/api/v1/search", SearchRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.CodeMissingField, decodeError(t, rec).Code)
}

func TestSearchEndpointStrict(t *testing.T) {
	server := newTestServer(t, nil, nil)

	records := testutil.ScenarioRecords()
	records[2].Age = 7
	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/search?strict=true", SearchRequest{Records: records})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	appErr := decodeError(t, rec)
	assert.Equal(t, errors.CodeOutOfRange, appErr.Code)
	assert.EqualValues(t, 2, appErr.Context["index"])
}

func TestAnonymizeEndpoint(t *testing.T) {
	server := newTestServer(t, nil, nil)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/anonymize", AnonymizeRequest{
		Records: testutil.ScenarioRecords(),
		K:       3,
		L:       2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data models.AnonymizedDataset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	require.Equal(t, 6, data.Len())
	assert.Equal(t, 0, data.Dropped())
	require.Len(t, data.Groups, 2)
	assert.Equal(t, "20-20", data.Groups[0].Generalized["age"])
	assert.Equal(t, "40-40", data.Groups[1].Generalized["age"])
}

func TestAnonymizeEndpointCSV(t *testing.T) {
	server := newTestServer(t, nil, nil)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/anonymize?format=csv", AnonymizeRequest{
		Records: testutil.ScenarioRecords(),
		K:       3,
		L:       2,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "age,zipcode,medical_condition", lines[0])
	assert.Equal(t, "20-20,10001-10001,Condition A", lines[1])
	assert.True(t, strings.HasPrefix(lines[6], "40-40,20002-20002,"))
}

func TestAnonymizeEndpointInvalidK(t *testing.T) {
	server := newTestServer(t, nil, nil)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/anonymize", AnonymizeRequest{
		Records: testutil.ScenarioRecords(),
		K:       0,
		L:       2,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetReportErrors(t *testing.T) {
	server := newTestServer(t, nil, nil)
	rec := doJSON(t, server.Handler(), http.MethodGet, "/api/v1/reports/abc", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, errors.CodeStorageNotConfigured, decodeError(t, rec).Code)

	server = newTestServer(t, newMemoryStore(), nil)
	rec = doJSON(t, server.Handler(), http.MethodGet, "/api/v1/reports/abc", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errors.CodeReportNotFound, decodeError(t, rec).Code)
}

func TestListReports(t *testing.T) {
	server := newTestServer(t, nil, nil)
	rec := doJSON(t, server.Handler(), http.MethodGet, "/api/v1/reports", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	store := newMemoryStore()
	for _, id := range []string{"search-a", "search-b", "search-c"} {
		store.reports[id] = &models.SearchReport{ID: id}
	}
	server = newTestServer(t, store, nil)

	rec = doJSON(t, server.Handler(), http.MethodGet, "/api/v1/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Reports []string `json:"reports"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, []string{"search-a", "search-b", "search-c"}, listing.Reports)
	assert.Equal(t, 3, listing.Count)

	rec = doJSON(t, server.Handler(), http.MethodGet, "/api/v1/reports?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Len(t, listing.Reports, 2)

	for _, bad := range []string{"0", "abc", "100000"} {
		rec = doJSON(t, server.Handler(), http.MethodGet, "/api/v1/reports?limit="+bad, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
		assert.Equal(t, errors.CodeOutOfRange, decodeError(t, rec).Code)
	}
}

func TestNotFoundRoute(t *testing.T) {
	server := newTestServer(t, nil, nil)

	rec := doJSON(t, server.Handler(), http.MethodGet, "/api/v1/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	recorder := &fakeRecorder{}
	server := newTestServer(t, newMemoryStore(), recorder)

	doJSON(t, server.Handler(), http.MethodGet, "/api/v1/reports/first", nil)
	doJSON(t, server.Handler(), http.MethodGet, "/api/v1/reports/second", nil)
	doJSON(t, server.Handler(), http.MethodGet, "/health", nil)

	assert.Equal(t, []recordedRequest{
		{"GET", "/api/v1/reports/{id}", "404"},
		{"GET", "/api/v1/reports/{id}", "404"},
		{"GET", "/health", "200"},
	}, recorder.requests)
}

func TestRequestIDPropagation(t *testing.T) {
	server := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/abc", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	var response errors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "req-42", response.RequestID)
}

func TestRequestSizeLimit(t *testing.T) {
	logger := logrus.New()
	handlers, err := NewHandlers(HandlersConfig{}, logger)
	require.NoError(t, err)

	config := DefaultConfig()
	config.MaxRequestSize = 16
	server, err := NewServer(config, handlers, nil, logger)
	require.NoError(t, err)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/search", SearchRequest{Records: testutil.ScenarioRecords()})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	assert.NoError(t, config.Validate())

	config.Port = 0
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.TLSCertFile = "cert.pem"
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.MaxK = 1
	assert.Error(t, config.Validate())

	_, err := NewServer(&Config{Port: 8080}, nil, nil, nil)
	assert.Error(t, err)
}
