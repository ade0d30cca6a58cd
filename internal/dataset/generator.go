package dataset

import (
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/models"
)

// GeneratorConfig controls synthetic survey generation.
type GeneratorConfig struct {
	NumRecords int      `json:"num_records" mapstructure:"num_records"`
	Seed       int64    `json:"seed" mapstructure:"seed"`
	Conditions []string `json:"conditions" mapstructure:"conditions"`
}

// Generator produces uniformly distributed survey records.
type Generator struct {
	config *GeneratorConfig
	logger *logrus.Logger
	rand   *rand.Rand
}

// NewGenerator works on a copy of config; the caller's value is left as is.
func NewGenerator(config *GeneratorConfig, logger *logrus.Logger) *Generator {
	if config == nil {
		config = getDefaultGeneratorConfig()
	}
	cfg := *config
	if len(cfg.Conditions) == 0 {
		cfg.Conditions = models.MedicalConditions
	}
	cfg.Conditions = append([]string(nil), cfg.Conditions...)
	if logger == nil {
		logger = logrus.New()
	}

	return &Generator{
		config: &cfg,
		logger: logger,
		rand:   rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Generate returns NumRecords records with age in [18, 90], zipcode in
// [10000, 99999] and a condition drawn from the configured set.
func (g *Generator) Generate() []models.Record {
	records := make([]models.Record, g.config.NumRecords)
	for i := range records {
		records[i] = models.Record{
			Age:              models.MinAge + g.rand.Intn(models.MaxAge-models.MinAge+1),
			Zipcode:          models.MinZipcode + g.rand.Intn(models.MaxZipcode-models.MinZipcode+1),
			MedicalCondition: g.config.Conditions[g.rand.Intn(len(g.config.Conditions))],
		}
	}

	g.logger.WithFields(logrus.Fields{
		"records":    len(records),
		"seed":       g.config.Seed,
		"conditions": len(g.config.Conditions),
	}).Info("Generated synthetic survey records")

	return records
}

func getDefaultGeneratorConfig() *GeneratorConfig {
	return &GeneratorConfig{
		NumRecords: constants.DefaultNumRecords,
		Seed:       constants.DefaultSeed,
		Conditions: models.MedicalConditions,
	}
}
