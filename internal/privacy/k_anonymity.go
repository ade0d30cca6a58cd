package privacy

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

// EquivalenceClass is a set of released records sharing every quasi-identifier cell.
type EquivalenceClass struct {
	Identifier      string
	Values          []string
	Records         []models.GeneralizedRecord
	Size            int
	SensitiveCounts map[string]int
}

// Diversity returns the number of distinct sensitive values in the class.
func (c *EquivalenceClass) Diversity() int {
	return len(c.SensitiveCounts)
}

// BuildEquivalenceClasses regroups released records by their joint
// quasi-identifier values. Classes are returned in order of first appearance,
// which for engine output is group-formation order.
func BuildEquivalenceClasses(records []models.GeneralizedRecord, quasiIdentifiers []string, sensitiveField string) ([]*EquivalenceClass, error) {
	if err := ValidateFields(quasiIdentifiers, sensitiveField); err != nil {
		return nil, err
	}

	index := make(map[string]*EquivalenceClass)
	classes := make([]*EquivalenceClass, 0)

	for _, record := range records {
		values := make([]string, len(quasiIdentifiers))
		for i, qi := range quasiIdentifiers {
			values[i], _ = record.Get(qi)
		}
		classID := equivalenceClassID(values)

		class, exists := index[classID]
		if !exists {
			class = &EquivalenceClass{
				Identifier:      classID,
				Values:          values,
				SensitiveCounts: make(map[string]int),
			}
			index[classID] = class
			classes = append(classes, class)
		}

		sensitive, _ := record.Get(sensitiveField)
		class.Records = append(class.Records, record)
		class.Size++
		class.SensitiveCounts[sensitive]++
	}

	return classes, nil
}

func equivalenceClassID(values []string) string {
	return strings.Join(values, "|")
}

// KAnonymityValidator checks released data for group sizes below k.
type KAnonymityValidator struct {
	k      int
	logger *logrus.Logger
}

func NewKAnonymityValidator(k int, logger *logrus.Logger) *KAnonymityValidator {
	if logger == nil {
		logger = logrus.New()
	}

	return &KAnonymityValidator{
		k:      k,
		logger: logger,
	}
}

// ValidateKAnonymity reports the first equivalence class smaller than k.
func (v *KAnonymityValidator) ValidateKAnonymity(records []models.GeneralizedRecord, quasiIdentifiers []string, sensitiveField string) (bool, error) {
	classes, err := BuildEquivalenceClasses(records, quasiIdentifiers, sensitiveField)
	if err != nil {
		return false, err
	}

	for _, class := range classes {
		if class.Size < v.k {
			v.logger.WithFields(logrus.Fields{
				"class": class.Identifier,
				"size":  class.Size,
				"k":     v.k,
			}).Warn("k-anonymity violated")
			return false, errors.NewPrivacyError(fmt.Sprintf("equivalence class %s has size %d, less than k=%d",
				class.Identifier, class.Size, v.k))
		}
	}

	return true, nil
}
