package privacy

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

// Diversity models understood by LDiversityValidator. The engine itself
// only enforces the distinct model.
const (
	DiversityDistinct  = "distinct"
	DiversityEntropy   = "entropy"
	DiversityRecursive = "recursive"
)

type LDiversityConfig struct {
	L              int     `json:"l" mapstructure:"l"`
	DiversityModel string  `json:"diversity_model" mapstructure:"diversity_model"`
	RecursiveC     float64 `json:"recursive_c" mapstructure:"recursive_c"`
}

// LDiversityValidator checks released data for classes lacking sensitive-value diversity.
type LDiversityValidator struct {
	config *LDiversityConfig
	logger *logrus.Logger
}

func NewLDiversityValidator(config *LDiversityConfig, logger *logrus.Logger) *LDiversityValidator {
	if config == nil {
		config = getDefaultLDiversityConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &LDiversityValidator{
		config: config,
		logger: logger,
	}
}

// ValidateLDiversity reports the first equivalence class that fails the configured model.
func (v *LDiversityValidator) ValidateLDiversity(records []models.GeneralizedRecord, quasiIdentifiers []string, sensitiveField string) (bool, error) {
	classes, err := BuildEquivalenceClasses(records, quasiIdentifiers, sensitiveField)
	if err != nil {
		return false, err
	}

	for _, class := range classes {
		if !v.checkDiversity(class.SensitiveCounts) {
			v.logger.WithFields(logrus.Fields{
				"class":     class.Identifier,
				"diversity": class.Diversity(),
				"l":         v.config.L,
				"model":     v.config.DiversityModel,
			}).Warn("l-diversity violated")
			return false, errors.NewPrivacyError(fmt.Sprintf("group %s does not satisfy %s %d-diversity",
				class.Identifier, v.config.DiversityModel, v.config.L))
		}
	}

	return true, nil
}

func (v *LDiversityValidator) checkDiversity(counts map[string]int) bool {
	if len(counts) < v.config.L {
		return false
	}

	switch v.config.DiversityModel {
	case DiversityEntropy:
		return checkEntropyDiversity(counts, v.config.L)
	case DiversityRecursive:
		return checkRecursiveDiversity(counts, v.config.L, v.config.RecursiveC)
	default:
		return true
	}
}

// checkEntropyDiversity requires the class entropy to be at least log(l).
func checkEntropyDiversity(counts map[string]int, l int) bool {
	total := 0
	for _, count := range counts {
		total += count
	}
	if total == 0 {
		return l <= 1
	}

	p := make([]float64, 0, len(counts))
	for _, count := range counts {
		p = append(p, float64(count)/float64(total))
	}

	return stat.Entropy(p) >= math.Log(float64(l))-1e-12
}

// checkRecursiveDiversity implements recursive (c,l)-diversity: r1 < c * (r_l + ... + r_m).
func checkRecursiveDiversity(counts map[string]int, l int, c float64) bool {
	sorted := make([]int, 0, len(counts))
	for _, count := range counts {
		sorted = append(sorted, count)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	if len(sorted) == 0 {
		return false
	}
	if l < 1 {
		l = 1
	}

	tail := 0
	for i := l - 1; i < len(sorted); i++ {
		tail += sorted[i]
	}

	return float64(sorted[0]) < c*float64(tail)
}

func getDefaultLDiversityConfig() *LDiversityConfig {
	return &LDiversityConfig{
		L:              2,
		DiversityModel: DiversityDistinct,
		RecursiveC:     3.0,
	}
}
