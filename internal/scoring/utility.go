package scoring

import "github.com/inferloop/anonsearch/pkg/models"

// UtilityResult is either Rejected or Accepted(Dropped).
type UtilityResult struct {
	Accepted bool `json:"accepted"`
	Dropped  int  `json:"dropped"`
}

// Accepted builds an accepted result carrying the dropped count.
func Accepted(dropped int) UtilityResult {
	return UtilityResult{Accepted: true, Dropped: dropped}
}

// Rejected builds a rejected result; the dropped count is kept for reporting only.
func Rejected(dropped int) UtilityResult {
	return UtilityResult{Accepted: false, Dropped: dropped}
}

// ScoreUtility rejects the dataset when more than allowedDrop records were discarded.
func ScoreUtility(anonymized *models.AnonymizedDataset, originalSize, allowedDrop int) UtilityResult {
	dropped := originalSize - anonymized.Len()
	if dropped > allowedDrop {
		return Rejected(dropped)
	}
	return Accepted(dropped)
}
