package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonsearch/internal/privacy"
	"github.com/inferloop/anonsearch/internal/testutil"
	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

func apply(t *testing.T, records []models.Record, k, l int) *models.AnonymizedDataset {
	t.Helper()

	released, err := privacy.NewEngine(testutil.GetTestLogger(t)).Apply(context.Background(), records,
		models.DefaultQuasiIdentifiers, models.DefaultSensitiveField, k, l)
	require.NoError(t, err)
	return released
}

func TestScoreUtility(t *testing.T) {
	released := apply(t, testutil.ScenarioRecords(), 1, 2) // drops one record

	tests := []struct {
		name        string
		allowedDrop int
		expected    UtilityResult
	}{
		{"within allowance", 1, Accepted(1)},
		{"generous allowance", 5, Accepted(1)},
		{"exceeds allowance", 0, Rejected(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ScoreUtility(released, 6, tt.allowedDrop))
		})
	}
}

func TestScoreUtilityNoDrops(t *testing.T) {
	released := apply(t, testutil.ScenarioRecords(), 3, 2)
	assert.Equal(t, Accepted(0), ScoreUtility(released, 6, 0))
}

func TestScorePrivacy(t *testing.T) {
	tests := []struct {
		name          string
		k, l          int
		groupSizes    []float64
		diversities   []float64
		expectedScore float64
	}{
		{"two blocks", 3, 2, []float64{3, 3}, []float64{2, 3}, 7.5},
		{"singletons regroup by cells", 1, 1, []float64{3, 3}, []float64{2, 3}, 7.5},
		{"one group", 1, 3, []float64{6}, []float64{3}, 18},
		{"dropped tail", 1, 2, []float64{2, 3}, []float64{2, 2}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			released := apply(t, testutil.ScenarioRecords(), tt.k, tt.l)

			score, err := ScorePrivacy(released, models.DefaultQuasiIdentifiers, models.DefaultSensitiveField)
			require.NoError(t, err)

			assert.Equal(t, tt.groupSizes, score.GroupSizes)
			assert.Equal(t, tt.diversities, score.Diversities)
			testutil.AssertFloatEquals(t, tt.expectedScore, score.Score, 1e-9)
			testutil.AssertFloatEquals(t, score.MeanGroupSize*score.MeanDiversity, score.Score, 1e-9)
		})
	}
}

func TestScorePrivacyEmpty(t *testing.T) {
	released := apply(t, testutil.IdenticalRecords(5), 2, 2)

	score, err := ScorePrivacy(released, models.DefaultQuasiIdentifiers, models.DefaultSensitiveField)
	require.NoError(t, err)
	assert.Zero(t, score.Score)
	assert.Empty(t, score.GroupSizes)
}

func TestScorePrivacyInvalidFields(t *testing.T) {
	released := apply(t, testutil.ScenarioRecords(), 1, 1)

	_, err := ScorePrivacy(released, []string{"income"}, models.DefaultSensitiveField)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfiguration))
}

func TestCombine(t *testing.T) {
	assert.Equal(t, 7.5, Combine(Accepted(2), 7.5))
	assert.Equal(t, 0.0, Combine(Rejected(2), 7.5))
	assert.Equal(t, 0.0, Combine(Accepted(0), 0))
}
