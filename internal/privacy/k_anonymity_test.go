package privacy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonsearch/internal/testutil"
	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

func releasedScenario(t *testing.T, k, l int) []models.GeneralizedRecord {
	t.Helper()

	released, err := newTestEngine(t).Apply(context.Background(), testutil.ScenarioRecords(),
		models.DefaultQuasiIdentifiers, models.DefaultSensitiveField, k, l)
	require.NoError(t, err)
	return released.Records
}

func TestBuildEquivalenceClasses(t *testing.T) {
	classes, err := BuildEquivalenceClasses(releasedScenario(t, 3, 2),
		models.DefaultQuasiIdentifiers, models.DefaultSensitiveField)
	require.NoError(t, err)
	require.Len(t, classes, 2)

	assert.Equal(t, []string{"20-20", "10001-10001"}, classes[0].Values)
	assert.Equal(t, 3, classes[0].Size)
	assert.Equal(t, map[string]int{"Condition A": 2, "Condition B": 1}, classes[0].SensitiveCounts)
	assert.Equal(t, 2, classes[0].Diversity())

	assert.Equal(t, []string{"40-40", "20002-20002"}, classes[1].Values)
	assert.Equal(t, 3, classes[1].Diversity())
}

func TestBuildEquivalenceClassesMergesEqualGroups(t *testing.T) {
	// k=1 releases six singleton groups, but only two distinct cell combinations.
	classes, err := BuildEquivalenceClasses(releasedScenario(t, 1, 1),
		models.DefaultQuasiIdentifiers, models.DefaultSensitiveField)
	require.NoError(t, err)

	require.Len(t, classes, 2)
	assert.Equal(t, 3, classes[0].Size)
	assert.Equal(t, 3, classes[1].Size)
	assert.Len(t, classes[0].Records, 3)
}

func TestBuildEquivalenceClassesInvalidFields(t *testing.T) {
	_, err := BuildEquivalenceClasses(nil, []string{"income"}, models.DefaultSensitiveField)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfiguration))
}

func TestKAnonymityValidator(t *testing.T) {
	records := releasedScenario(t, 3, 2)
	logger := testutil.GetTestLogger(t)

	valid, err := NewKAnonymityValidator(3, logger).ValidateKAnonymity(records,
		models.DefaultQuasiIdentifiers, models.DefaultSensitiveField)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = NewKAnonymityValidator(4, logger).ValidateKAnonymity(records,
		models.DefaultQuasiIdentifiers, models.DefaultSensitiveField)
	require.Error(t, err)
	assert.False(t, valid)
	assert.True(t, errors.Is(err, errors.ErrPrivacyViolation))
	assert.Equal(t, 403, errors.StatusCode(err))
}

func TestKAnonymityValidatorRandomReleases(t *testing.T) {
	engine := newTestEngine(t)
	records := testutil.RandomRecords(t, 150, 5)

	for k := 1; k <= 5; k++ {
		released, err := engine.Apply(context.Background(), records,
			models.DefaultQuasiIdentifiers, models.DefaultSensitiveField, k, 2)
		require.NoError(t, err)

		valid, err := NewKAnonymityValidator(k, nil).ValidateKAnonymity(released.Records,
			models.DefaultQuasiIdentifiers, models.DefaultSensitiveField)
		require.NoError(t, err, "k=%d", k)
		assert.True(t, valid)
	}
}
