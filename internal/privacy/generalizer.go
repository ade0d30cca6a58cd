package privacy

import (
	"fmt"

	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

// Generalize returns the single representative of field over group:
// "min-max" for numeric fields, a fixed placeholder for categorical ones.
func Generalize(group []models.Record, field string) (string, error) {
	if len(group) == 0 {
		return "", errors.NewValidationError(errors.CodeInvalidInput, "cannot generalize an empty group")
	}

	first, err := group[0].Value(field)
	if err != nil {
		return "", err
	}
	if first.Kind != models.KindNumeric {
		return constants.GeneralizedCategory, nil
	}

	lo, hi := first.Int, first.Int
	for _, r := range group[1:] {
		v, _ := r.Value(field)
		if v.Int < lo {
			lo = v.Int
		}
		if v.Int > hi {
			hi = v.Int
		}
	}
	return fmt.Sprintf("%d%s%d", lo, constants.RangeSeparator, hi), nil
}
