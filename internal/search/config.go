package search

import (
	"fmt"

	"github.com/inferloop/anonsearch/internal/privacy"
	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

// Config carries every value the search needs; nothing is read from process state.
type Config struct {
	QuasiIdentifiers []string `json:"quasi_identifiers" mapstructure:"quasi_identifiers"`
	SensitiveField   string   `json:"sensitive_field" mapstructure:"sensitive_field"`
	// MaxK is the exclusive upper bound of k, and of l unless LBound says otherwise.
	MaxK        int `json:"max_k" mapstructure:"max_k"`
	AllowedDrop int `json:"allowed_drop" mapstructure:"allowed_drop"`
	// LBound is "max_k" (l < MaxK) or "categories" (l <= distinct sensitive values).
	LBound  string `json:"l_bound" mapstructure:"l_bound"`
	Workers int    `json:"workers" mapstructure:"workers"`
}

// DefaultConfig returns the survey defaults.
func DefaultConfig() Config {
	return Config{
		QuasiIdentifiers: append([]string(nil), models.DefaultQuasiIdentifiers...),
		SensitiveField:   models.DefaultSensitiveField,
		MaxK:             constants.DefaultMaxK,
		AllowedDrop:      constants.DefaultAllowedDrop,
		LBound:           constants.LBoundMaxK,
		Workers:          constants.DefaultWorkers,
	}
}

// Validate fails fast on configurations the search cannot run with.
func (c Config) Validate() error {
	if c.MaxK < 2 {
		return errors.NewConfigurationError(fmt.Sprintf("max k must be >= 2, got %d", c.MaxK))
	}
	if c.AllowedDrop < 0 {
		return errors.NewConfigurationError(fmt.Sprintf("allowed drop must be >= 0, got %d", c.AllowedDrop))
	}
	switch c.LBound {
	case "", constants.LBoundMaxK, constants.LBoundCategories:
	default:
		return errors.NewConfigurationError(fmt.Sprintf("unknown l bound %q", c.LBound))
	}
	return privacy.ValidateFields(c.QuasiIdentifiers, c.SensitiveField)
}

// lMax returns the exclusive upper bound of l for the given records.
func (c Config) lMax(records []models.Record) int {
	if c.LBound != constants.LBoundCategories {
		return c.MaxK
	}

	distinct := make(map[string]struct{})
	for _, r := range records {
		v, _ := r.Value(c.SensitiveField)
		distinct[v.String()] = struct{}{}
	}
	return len(distinct) + 1
}

func (c Config) settings(lMax int) models.SearchSettings {
	return models.SearchSettings{
		QuasiIdentifiers: append([]string(nil), c.QuasiIdentifiers...),
		SensitiveField:   c.SensitiveField,
		MaxK:             c.MaxK,
		LMax:             lMax,
		AllowedDrop:      c.AllowedDrop,
	}
}
