package scoring

import (
	"gonum.org/v1/gonum/stat"

	"github.com/inferloop/anonsearch/internal/privacy"
	"github.com/inferloop/anonsearch/pkg/models"
)

// PrivacyScore holds the per-group statistics behind a privacy score.
type PrivacyScore struct {
	GroupSizes    []float64 `json:"group_sizes"`
	Diversities   []float64 `json:"diversities"`
	MeanGroupSize float64   `json:"mean_group_size"`
	MeanDiversity float64   `json:"mean_diversity"`
	Score         float64   `json:"score"`
}

// ScorePrivacy regroups the released records by their generalized
// quasi-identifiers and returns mean(group size) * mean(distinct sensitive values).
// An empty dataset scores 0.
func ScorePrivacy(anonymized *models.AnonymizedDataset, quasiIdentifiers []string, sensitiveField string) (PrivacyScore, error) {
	if anonymized.Len() == 0 {
		return PrivacyScore{}, nil
	}

	classes, err := privacy.BuildEquivalenceClasses(anonymized.Records, quasiIdentifiers, sensitiveField)
	if err != nil {
		return PrivacyScore{}, err
	}

	score := PrivacyScore{
		GroupSizes:  make([]float64, len(classes)),
		Diversities: make([]float64, len(classes)),
	}
	for i, class := range classes {
		score.GroupSizes[i] = float64(class.Size)
		score.Diversities[i] = float64(class.Diversity())
	}

	score.MeanGroupSize = stat.Mean(score.GroupSizes, nil)
	score.MeanDiversity = stat.Mean(score.Diversities, nil)
	score.Score = score.MeanGroupSize * score.MeanDiversity
	return score, nil
}
