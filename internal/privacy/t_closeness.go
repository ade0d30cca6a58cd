package privacy

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

// Distance metrics understood by TClosenessValidator
const (
	DistanceEMD = "emd"
	DistanceKL  = "kl"
)

type TClosenessConfig struct {
	T              float64 `json:"t" mapstructure:"t"`
	DistanceMetric string  `json:"distance_metric" mapstructure:"distance_metric"`
}

// TClosenessValidator compares each class's sensitive-value distribution
// with the distribution over the whole released table. It only reports;
// the engine never merges groups to reach closeness.
type TClosenessValidator struct {
	config *TClosenessConfig
	logger *logrus.Logger
}

func NewTClosenessValidator(config *TClosenessConfig, logger *logrus.Logger) *TClosenessValidator {
	if config == nil {
		config = getDefaultTClosenessConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &TClosenessValidator{
		config: config,
		logger: logger,
	}
}

// MaxDistance returns the largest class-to-table distance found.
func (v *TClosenessValidator) MaxDistance(records []models.GeneralizedRecord, quasiIdentifiers []string, sensitiveField string) (float64, error) {
	classes, err := BuildEquivalenceClasses(records, quasiIdentifiers, sensitiveField)
	if err != nil {
		return 0, err
	}

	global := globalDistribution(classes)
	worst := 0.0
	for _, class := range classes {
		if d := v.distance(normalize(class.SensitiveCounts), global); d > worst {
			worst = d
		}
	}
	return worst, nil
}

// ValidateTCloseness reports the first class farther than t from the table.
func (v *TClosenessValidator) ValidateTCloseness(records []models.GeneralizedRecord, quasiIdentifiers []string, sensitiveField string) (bool, error) {
	classes, err := BuildEquivalenceClasses(records, quasiIdentifiers, sensitiveField)
	if err != nil {
		return false, err
	}

	global := globalDistribution(classes)
	for _, class := range classes {
		distance := v.distance(normalize(class.SensitiveCounts), global)
		if distance > v.config.T+1e-12 {
			v.logger.WithFields(logrus.Fields{
				"class":    class.Identifier,
				"distance": distance,
				"t":        v.config.T,
				"metric":   v.config.DistanceMetric,
			}).Warn("t-closeness violated")
			return false, errors.NewPrivacyError(fmt.Sprintf("group %s is %.4f from the table distribution, more than t=%.4f",
				class.Identifier, distance, v.config.T))
		}
	}

	return true, nil
}

func (v *TClosenessValidator) distance(class, global map[string]float64) float64 {
	if v.config.DistanceMetric == DistanceKL {
		return klDivergence(class, global)
	}
	return earthMoversDistance(class, global)
}

// earthMoversDistance uses the equal ground distance, under which EMD
// reduces to half the L1 distance between the distributions.
func earthMoversDistance(p, q map[string]float64) float64 {
	ps := make([]float64, 0, len(p)+len(q))
	qs := make([]float64, 0, len(p)+len(q))
	for value, pv := range p {
		ps = append(ps, pv)
		qs = append(qs, q[value])
	}
	for value, qv := range q {
		if _, ok := p[value]; !ok {
			ps = append(ps, 0)
			qs = append(qs, qv)
		}
	}
	return floats.Distance(ps, qs, 1) / 2
}

// klDivergence skips values the table never holds; every class value is
// in the table, so none are skipped for released data.
func klDivergence(p, q map[string]float64) float64 {
	ps := make([]float64, 0, len(p))
	qs := make([]float64, 0, len(p))
	for value, pv := range p {
		if qv := q[value]; pv > 0 && qv > 0 {
			ps = append(ps, pv)
			qs = append(qs, qv)
		}
	}
	return stat.KullbackLeibler(ps, qs)
}

func globalDistribution(classes []*EquivalenceClass) map[string]float64 {
	counts := make(map[string]int)
	for _, class := range classes {
		for value, count := range class.SensitiveCounts {
			counts[value] += count
		}
	}
	return normalize(counts)
}

func normalize(counts map[string]int) map[string]float64 {
	total := 0
	for _, count := range counts {
		total += count
	}

	dist := make(map[string]float64, len(counts))
	if total == 0 {
		return dist
	}
	for value, count := range counts {
		dist[value] = float64(count) / float64(total)
	}
	return dist
}

func getDefaultTClosenessConfig() *TClosenessConfig {
	return &TClosenessConfig{
		T:              0.2,
		DistanceMetric: DistanceEMD,
	}
}
