package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonsearch/internal/privacy"
	"github.com/inferloop/anonsearch/internal/testutil"
	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

type fakeRecorder struct {
	mu         sync.Mutex
	runs       []string
	candidates int
	accepted   int
	best       float64
	released   int
	dropped    int
}

func (f *fakeRecorder) RecordSearchRun(status string, duration time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, status)
}

func (f *fakeRecorder) RecordCandidate(accepted bool, dropped int, duration time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates++
	if accepted {
		f.accepted++
	}
}

func (f *fakeRecorder) SetBestScore(score float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.best = score
}

func (f *fakeRecorder) RecordAnonymization(released, dropped int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released += released
	f.dropped += dropped
}

func newTestSearcher(t *testing.T, recorder MetricsRecorder) *Searcher {
	logger := testutil.GetTestLogger(t)
	return NewSearcher(privacy.NewEngine(logger), recorder, logger)
}

func testConfig(maxK, allowedDrop int) Config {
	cfg := DefaultConfig()
	cfg.MaxK = maxK
	cfg.AllowedDrop = allowedDrop
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, models.DefaultQuasiIdentifiers, cfg.QuasiIdentifiers)
	assert.Equal(t, models.DefaultSensitiveField, cfg.SensitiveField)
	assert.Equal(t, constants.DefaultMaxK, cfg.MaxK)
	assert.Equal(t, constants.DefaultAllowedDrop, cfg.AllowedDrop)
	assert.Equal(t, constants.LBoundMaxK, cfg.LBound)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"max k below 2", func(c *Config) { c.MaxK = 1 }},
		{"negative allowed drop", func(c *Config) { c.AllowedDrop = -1 }},
		{"unknown l bound", func(c *Config) { c.LBound = "widest" }},
		{"no quasi-identifiers", func(c *Config) { c.QuasiIdentifiers = nil }},
		{"sensitive is quasi-identifier", func(c *Config) { c.SensitiveField = models.FieldZipcode }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidConfiguration))
		})
	}
}

func TestConfigLMax(t *testing.T) {
	cfg := testConfig(5, 0)
	assert.Equal(t, 5, cfg.lMax(testutil.ScenarioRecords()))

	cfg.LBound = constants.LBoundCategories
	assert.Equal(t, 4, cfg.lMax(testutil.ScenarioRecords()))
	assert.Equal(t, 2, cfg.lMax(testutil.IdenticalRecords(3)))
}

func TestSearchScenario(t *testing.T) {
	recorder := &fakeRecorder{}
	searcher := newTestSearcher(t, recorder)

	report, err := searcher.Search(context.Background(), testutil.ScenarioRecords(), testConfig(4, 5))
	require.NoError(t, err)

	require.Len(t, report.Candidates, 9)
	assert.Equal(t, 1, report.BestK)
	assert.Equal(t, 3, report.BestL)
	testutil.AssertFloatEquals(t, 18, report.BestScore, 1e-9)
	assert.Empty(t, report.Flags)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 6, report.InputSize)
	assert.Equal(t, models.SearchSettings{
		QuasiIdentifiers: models.DefaultQuasiIdentifiers,
		SensitiveField:   models.DefaultSensitiveField,
		MaxK:             4,
		LMax:             4,
		AllowedDrop:      5,
	}, report.Settings)

	require.NotNil(t, report.Dataset)
	assert.Equal(t, 1, report.Dataset.K)
	assert.Equal(t, 3, report.Dataset.L)
	assert.Equal(t, 6, report.Dataset.Len())
	assert.False(t, report.CompletedAt.Before(report.StartedAt))

	assert.Equal(t, []string{"success"}, recorder.runs)
	assert.Equal(t, 9, recorder.candidates)
	assert.Equal(t, 9, recorder.accepted)
	assert.Equal(t, 18.0, recorder.best)
	assert.Equal(t, 6, recorder.released)
}

func TestSearchCandidateOrder(t *testing.T) {
	searcher := newTestSearcher(t, nil)

	cfg := testConfig(4, 0)
	cfg.Workers = 8
	report, err := searcher.Search(context.Background(), testutil.ScenarioRecords(), cfg)
	require.NoError(t, err)

	i := 0
	for k := 1; k < 4; k++ {
		for l := 1; l < 4; l++ {
			assert.Equal(t, k, report.Candidates[i].K)
			assert.Equal(t, l, report.Candidates[i].L)
			i++
		}
	}

	// (1,2) and (2,2) drop the lone Condition C record.
	assert.False(t, report.Candidates[1].Accepted)
	assert.Equal(t, 1, report.Candidates[1].Dropped)
	assert.Zero(t, report.Candidates[1].CombinedScore)
	assert.True(t, report.Candidates[0].Accepted)
	testutil.AssertFloatEquals(t, 7.5, report.Candidates[0].CombinedScore, 1e-9)
}

func TestSearchTieKeepsSmallestPair(t *testing.T) {
	searcher := newTestSearcher(t, nil)

	report, err := searcher.Search(context.Background(), testutil.ScenarioRecords(), testConfig(4, 5))
	require.NoError(t, err)

	// (1,3), (2,3) and (3,3) all score 18; the first wins.
	for _, c := range report.Candidates {
		if c.L == 3 {
			testutil.AssertFloatEquals(t, 18, c.CombinedScore, 1e-9)
		}
	}
	assert.Equal(t, 1, report.BestK)
}

func TestSearchLowDiversityWinner(t *testing.T) {
	searcher := newTestSearcher(t, nil)

	// One condition only: every l > 1 drops the whole table.
	report, err := searcher.Search(context.Background(), testutil.IdenticalRecords(6), testConfig(4, 0))
	require.NoError(t, err)

	assert.Equal(t, 1, report.BestL)
	assert.Equal(t, 1, report.BestK)
	assert.Equal(t, []string{FlagLowDiversity}, report.Flags)
	testutil.AssertFloatEquals(t, 6, report.BestScore, 1e-9)
}

func TestSearchCategoriesBound(t *testing.T) {
	searcher := newTestSearcher(t, nil)

	cfg := testConfig(3, 5)
	cfg.LBound = constants.LBoundCategories
	report, err := searcher.Search(context.Background(), testutil.ScenarioRecords(), cfg)
	require.NoError(t, err)

	assert.Len(t, report.Candidates, 6)
	assert.Equal(t, 4, report.Settings.LMax)
}

func TestSearchRandomData(t *testing.T) {
	searcher := newTestSearcher(t, nil)
	records := testutil.RandomRecords(t, 300, 21)

	cfg := testConfig(6, 10)
	report, err := searcher.Search(testutil.GetTestContext(t, 30*time.Second), records, cfg)
	require.NoError(t, err)

	best := 0.0
	for _, c := range report.Candidates {
		if c.CombinedScore > best {
			best = c.CombinedScore
		}
		if !c.Accepted {
			assert.Greater(t, c.Dropped, cfg.AllowedDrop)
			assert.Zero(t, c.CombinedScore)
		}
	}
	assert.Equal(t, best, report.BestScore)
	assert.LessOrEqual(t, report.Dataset.Dropped(), cfg.AllowedDrop)
	testutil.AssertGroupsSatisfy(t, report.Dataset, report.BestK, report.BestL)
}

func TestSearchEmptyInput(t *testing.T) {
	searcher := newTestSearcher(t, nil)

	_, err := searcher.Search(context.Background(), nil, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfiguration))
}

func TestSearchInvalidConfig(t *testing.T) {
	recorder := &fakeRecorder{}
	searcher := newTestSearcher(t, recorder)

	_, err := searcher.Search(context.Background(), testutil.ScenarioRecords(), testConfig(1, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfiguration))
	assert.Empty(t, recorder.runs)
}

func TestSearchCancelled(t *testing.T) {
	recorder := &fakeRecorder{}
	searcher := newTestSearcher(t, recorder)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := searcher.Search(ctx, testutil.ScenarioRecords(), testConfig(4, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSearchCancelled))
	assert.Equal(t, []string{"error"}, recorder.runs)
}

func TestSearchHugeMaxKClampsGrid(t *testing.T) {
	recorder := &fakeRecorder{}
	searcher := newTestSearcher(t, recorder)
	records := testutil.IdenticalRecords(1)

	report, err := searcher.Search(context.Background(), records, testConfig(4000000000, 0))
	require.NoError(t, err)

	require.Len(t, report.Candidates, 1)
	assert.Equal(t, 1, report.BestK)
	assert.Equal(t, 1, report.BestL)
	assert.Equal(t, 4000000000, report.Settings.MaxK)
	assert.Equal(t, 1, recorder.candidates)
}

func TestSearchClampsGridToRecordCount(t *testing.T) {
	searcher := newTestSearcher(t, nil)
	records := testutil.ScenarioRecords()

	wide, err := searcher.Search(context.Background(), records, testConfig(50, 0))
	require.NoError(t, err)
	exact, err := searcher.Search(context.Background(), records, testConfig(len(records)+1, 0))
	require.NoError(t, err)

	assert.Len(t, wide.Candidates, len(records)*len(records))
	assert.Equal(t, exact.Candidates, wide.Candidates)
	assert.Equal(t, exact.BestK, wide.BestK)
	assert.Equal(t, exact.BestL, wide.BestL)
	assert.Equal(t, 50, wide.Settings.MaxK)
}

func TestSearchGridLimit(t *testing.T) {
	recorder := &fakeRecorder{}
	searcher := newTestSearcher(t, recorder)
	records := testutil.RandomRecords(t, 1100, 3)

	_, err := searcher.Search(context.Background(), records, testConfig(1100, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInputData))
	assert.Zero(t, recorder.candidates)
	assert.Equal(t, []string{"error"}, recorder.runs)
}

func TestSelectBest(t *testing.T) {
	tests := []struct {
		name       string
		candidates []models.Candidate
		expected   int
	}{
		{"empty", nil, -1},
		{"all zero", []models.Candidate{{CombinedScore: 0}, {CombinedScore: 0}}, -1},
		{"strictly greater wins", []models.Candidate{{CombinedScore: 2}, {CombinedScore: 3}, {CombinedScore: 1}}, 1},
		{"tie keeps first", []models.Candidate{{CombinedScore: 4}, {CombinedScore: 4}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, selectBest(tt.candidates))
		})
	}
}

func TestEvaluate(t *testing.T) {
	searcher := newTestSearcher(t, nil)

	candidate, err := searcher.Evaluate(context.Background(), testutil.ScenarioRecords(), testConfig(4, 0), 3, 2)
	require.NoError(t, err)

	assert.Equal(t, models.Candidate{
		K:             3,
		L:             2,
		Dropped:       0,
		Accepted:      true,
		Groups:        2,
		PrivacyScore:  7.5,
		CombinedScore: 7.5,
	}, candidate)
}
