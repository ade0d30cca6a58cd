package testutil

import (
	"context"
	"fmt"
	"io"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonsearch/internal/dataset"
	"github.com/inferloop/anonsearch/pkg/models"
)

// GetTestLogger returns a logger that discards output unless -v is set
func GetTestLogger(t *testing.T) *logrus.Logger {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	if !testing.Verbose() {
		logger.SetOutput(io.Discard)
	}
	return logger
}

// GetTestContext returns a context cancelled when the test ends or the timeout passes
func GetTestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// ScenarioRecords is the six-row table used across the package tests:
// two age/zipcode blocks, the first with two conditions, the second with three.
func ScenarioRecords() []models.Record {
	return []models.Record{
		{Age: 20, Zipcode: 10001, MedicalCondition: "Condition A"},
		{Age: 20, Zipcode: 10001, MedicalCondition: "Condition B"},
		{Age: 20, Zipcode: 10001, MedicalCondition: "Condition A"},
		{Age: 40, Zipcode: 20002, MedicalCondition: "Condition A"},
		{Age: 40, Zipcode: 20002, MedicalCondition: "Condition B"},
		{Age: 40, Zipcode: 20002, MedicalCondition: "Condition C"},
	}
}

// IdenticalRecords returns n copies of one record
func IdenticalRecords(n int) []models.Record {
	records := make([]models.Record, n)
	for i := range records {
		records[i] = models.Record{Age: 30, Zipcode: 12345, MedicalCondition: "Condition A"}
	}
	return records
}

// RandomRecords returns a reproducible synthetic survey
func RandomRecords(t *testing.T, n int, seed int64) []models.Record {
	t.Helper()

	return dataset.NewGenerator(&dataset.GeneratorConfig{
		NumRecords: n,
		Seed:       seed,
	}, GetTestLogger(t)).Generate()
}

// AssertFloatEquals asserts that two floats are equal within tolerance
func AssertFloatEquals(t *testing.T, expected, actual, tolerance float64, msgAndArgs ...interface{}) {
	t.Helper()

	diff := math.Abs(expected - actual)
	assert.True(t, diff <= tolerance,
		"expected %f to be within %f of %f (diff: %f). %s",
		actual, tolerance, expected, diff, fmt.Sprint(msgAndArgs...))
}

// AssertGroupsSatisfy checks every released group against k and l and that
// group summaries tile the released records in order.
func AssertGroupsSatisfy(t *testing.T, released *models.AnonymizedDataset, k, l int) {
	t.Helper()

	require.NotNil(t, released)

	offset := 0
	for _, group := range released.Groups {
		assert.Equal(t, offset, group.Start, "group %d does not start where the previous one ended", group.Index)
		assert.GreaterOrEqual(t, group.Size, k, "group %d smaller than k", group.Index)
		assert.GreaterOrEqual(t, group.Diversity, l, "group %d less diverse than l", group.Index)

		distinct := make(map[string]struct{})
		for _, record := range released.Records[group.Start : group.Start+group.Size] {
			sensitive, err := record.Get(released.SensitiveField)
			require.NoError(t, err)
			distinct[sensitive] = struct{}{}

			for _, qi := range released.QuasiIdentifiers {
				value, err := record.Get(qi)
				require.NoError(t, err)
				assert.Equal(t, group.Generalized[qi], value, "group %d has mixed %s cells", group.Index, qi)
			}
		}
		assert.Len(t, distinct, group.Diversity)
		offset += group.Size
	}
	assert.Equal(t, released.Len(), offset)
}
