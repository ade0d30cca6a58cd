package privacy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonsearch/internal/testutil"
	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

func TestTClosenessMaxDistance(t *testing.T) {
	// Table: A 1/2, B 1/3, C 1/6. Classes {A:2, B:1} and {A, B, C}.
	records := releasedScenario(t, 3, 2)

	emd := NewTClosenessValidator(&TClosenessConfig{T: 1, DistanceMetric: DistanceEMD}, testutil.GetTestLogger(t))
	distance, err := emd.MaxDistance(records, models.DefaultQuasiIdentifiers, models.DefaultSensitiveField)
	require.NoError(t, err)
	testutil.AssertFloatEquals(t, 1.0/6, distance, 1e-9)

	kl := NewTClosenessValidator(&TClosenessConfig{T: 1, DistanceMetric: DistanceKL}, testutil.GetTestLogger(t))
	distance, err = kl.MaxDistance(records, models.DefaultQuasiIdentifiers, models.DefaultSensitiveField)
	require.NoError(t, err)
	testutil.AssertFloatEquals(t, 2.0/3*math.Log(4.0/3), distance, 1e-9)
}

func TestTClosenessValidator(t *testing.T) {
	records := releasedScenario(t, 3, 2)

	tests := []struct {
		name   string
		config *TClosenessConfig
		valid  bool
	}{
		{"emd within", &TClosenessConfig{T: 0.2, DistanceMetric: DistanceEMD}, true},
		{"emd exact bound", &TClosenessConfig{T: 1.0 / 6, DistanceMetric: DistanceEMD}, true},
		{"emd too strict", &TClosenessConfig{T: 0.1, DistanceMetric: DistanceEMD}, false},
		{"kl too strict", &TClosenessConfig{T: 0.15, DistanceMetric: DistanceKL}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewTClosenessValidator(tt.config, testutil.GetTestLogger(t))
			valid, err := validator.ValidateTCloseness(records, models.DefaultQuasiIdentifiers, models.DefaultSensitiveField)

			assert.Equal(t, tt.valid, valid)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrPrivacyViolation))
			}
		})
	}
}

func TestTClosenessSingleClass(t *testing.T) {
	// Generalizing everything into one class matches the table exactly.
	records := releasedScenario(t, 6, 1)

	validator := NewTClosenessValidator(&TClosenessConfig{T: 0}, testutil.GetTestLogger(t))
	valid, err := validator.ValidateTCloseness(records, models.DefaultQuasiIdentifiers, models.DefaultSensitiveField)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestEarthMoversDistance(t *testing.T) {
	assert.InDelta(t, 0.0, earthMoversDistance(map[string]float64{"A": 1}, map[string]float64{"A": 1}), 1e-12)
	assert.InDelta(t, 1.0, earthMoversDistance(map[string]float64{"A": 1}, map[string]float64{"B": 1}), 1e-12)
	assert.InDelta(t, 0.5, earthMoversDistance(map[string]float64{"A": 1}, map[string]float64{"A": 0.5, "B": 0.5}), 1e-12)
}

func TestKLDivergence(t *testing.T) {
	assert.InDelta(t, 0.0, klDivergence(map[string]float64{"A": 1}, map[string]float64{"A": 1}), 1e-12)
	assert.InDelta(t, math.Log(2), klDivergence(map[string]float64{"A": 1}, map[string]float64{"A": 0.5, "B": 0.5}), 1e-12)
	assert.InDelta(t, 0.0, klDivergence(map[string]float64{}, map[string]float64{"A": 1}), 1e-12)
	assert.False(t, math.IsInf(klDivergence(map[string]float64{"A": 0.5, "B": 0.5}, map[string]float64{"A": 1}), 1))
}
