package privacy

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

// Engine partitions sorted records into groups that satisfy both
// k-anonymity and distinct l-diversity and generalizes each group.
//
// A call costs O(n log n) for the sort plus O(n + w) for the window scan,
// where w is the total growth past k across all windows.
type Engine struct {
	logger *logrus.Logger
}

func NewEngine(logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}

	return &Engine{
		logger: logger,
	}
}

// Apply releases the longest prefix of the sorted input that can be cut into
// satisfying windows. The unconsumed suffix is dropped, which is reported
// through AnonymizedDataset.Dropped rather than as an error.
func (e *Engine) Apply(ctx context.Context, records []models.Record, quasiIdentifiers []string, sensitiveField string, k, l int) (*models.AnonymizedDataset, error) {
	if len(records) == 0 {
		return nil, errors.NewConfigurationError("record set is empty")
	}
	if k < 1 || l < 1 {
		return nil, errors.NewConfigurationError(fmt.Sprintf("k and l must be >= 1, got k=%d l=%d", k, l))
	}
	if err := ValidateFields(quasiIdentifiers, sensitiveField); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeSearch, errors.CodeSearchCancelled, "anonymization cancelled")
	}

	sorted := SortRecords(records, quasiIdentifiers)

	dataset := &models.AnonymizedDataset{
		K:                k,
		L:                l,
		QuasiIdentifiers: append([]string(nil), quasiIdentifiers...),
		SensitiveField:   sensitiveField,
		InputSize:        len(records),
		Records:          make([]models.GeneralizedRecord, 0, len(records)),
	}

	n := len(sorted)
	seen := make(map[string]int)
	start := 0
	for start < n {
		select {
		case <-ctx.Done():
			return nil, errors.WrapError(ctx.Err(), errors.ErrorTypeSearch, errors.CodeSearchCancelled, "anonymization cancelled")
		default:
		}

		end, distinct, ok := growWindow(sorted, start, k, l, sensitiveField, seen)
		if !ok {
			break
		}

		group := sorted[start:end]
		summary := models.GroupSummary{
			Index:       len(dataset.Groups),
			Start:       start,
			Size:        len(group),
			Diversity:   distinct,
			Generalized: make(map[string]string, len(quasiIdentifiers)),
		}
		for _, qi := range quasiIdentifiers {
			value, err := Generalize(group, qi)
			if err != nil {
				return nil, err
			}
			summary.Generalized[qi] = value
		}

		for _, r := range group {
			out := models.NewGeneralizedRecord(r)
			for _, qi := range quasiIdentifiers {
				_ = out.Set(qi, summary.Generalized[qi])
			}
			dataset.Records = append(dataset.Records, out)
		}
		dataset.Groups = append(dataset.Groups, summary)
		start = end
	}

	e.logger.WithFields(logrus.Fields{
		"k":       k,
		"l":       l,
		"input":   n,
		"groups":  len(dataset.Groups),
		"dropped": dataset.Dropped(),
	}).Debug("Anonymization complete")

	return dataset, nil
}

// growWindow extends [start, start+k) one record at a time until it holds at
// least l distinct sensitive values. It reports false when the remaining
// records run out first.
func growWindow(sorted []models.Record, start, k, l int, sensitiveField string, seen map[string]int) (int, int, bool) {
	n := len(sorted)
	end := start + k
	if end > n {
		return 0, 0, false
	}

	clear(seen)
	for _, r := range sorted[start:end] {
		v, _ := r.Value(sensitiveField)
		seen[v.String()]++
	}
	for len(seen) < l {
		if end == n {
			return 0, 0, false
		}
		v, _ := sorted[end].Value(sensitiveField)
		seen[v.String()]++
		end++
	}
	return end, len(seen), true
}

// SortRecords returns a stably sorted copy ordered by the quasi-identifiers
// in listed precedence. The input is left untouched.
func SortRecords(records []models.Record, quasiIdentifiers []string) []models.Record {
	type keyed struct {
		record models.Record
		keys   []models.Value
	}

	rows := make([]keyed, len(records))
	for i, r := range records {
		keys := make([]models.Value, len(quasiIdentifiers))
		for j, qi := range quasiIdentifiers {
			keys[j], _ = r.Value(qi)
		}
		rows[i] = keyed{record: r, keys: keys}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for c := range quasiIdentifiers {
			if cmp := rows[i].keys[c].Compare(rows[j].keys[c]); cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})

	sorted := make([]models.Record, len(rows))
	for i, row := range rows {
		sorted[i] = row.record
	}
	return sorted
}

// ValidateFields checks the quasi-identifier list and sensitive field against the schema.
func ValidateFields(quasiIdentifiers []string, sensitiveField string) error {
	if len(quasiIdentifiers) == 0 {
		return errors.NewConfigurationError("quasi-identifier list is empty")
	}

	seen := make(map[string]bool, len(quasiIdentifiers))
	for _, qi := range quasiIdentifiers {
		if !models.IsField(qi) {
			return errors.NewConfigurationError(fmt.Sprintf("unknown quasi-identifier %q", qi))
		}
		if seen[qi] {
			return errors.NewConfigurationError(fmt.Sprintf("duplicate quasi-identifier %q", qi))
		}
		seen[qi] = true
	}

	if !models.IsField(sensitiveField) {
		return errors.NewConfigurationError(fmt.Sprintf("unknown sensitive field %q", sensitiveField))
	}
	if seen[sensitiveField] {
		return errors.NewConfigurationError(fmt.Sprintf("sensitive field %q is also a quasi-identifier", sensitiveField))
	}
	return nil
}
