package search

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/inferloop/anonsearch/internal/privacy"
	"github.com/inferloop/anonsearch/internal/scoring"
	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

// FlagLowDiversity marks a winner with l == 1. Such a result is reported as
// found, never rewritten to another l.
const FlagLowDiversity = "low_diversity_winner"

// MetricsRecorder receives search telemetry. PrometheusMetrics implements it.
type MetricsRecorder interface {
	RecordSearchRun(status string, duration time.Duration)
	RecordCandidate(accepted bool, dropped int, duration time.Duration)
	SetBestScore(score float64)
	RecordAnonymization(released, dropped int)
}

// Searcher evaluates every (k, l) pair of the grid and keeps the best one.
//
// The grid holds (MaxK-1) * (LMax-1) pairs; each evaluation costs one sort
// and one window scan, so a run is O(MaxK * LMax * (n log n + n * window)).
// Pairs with k or l above the record count release nothing and score 0, so
// both bounds are clamped to n+1 before the grid is built.
type Searcher struct {
	engine  *privacy.Engine
	metrics MetricsRecorder
	logger  *logrus.Logger
}

func NewSearcher(engine *privacy.Engine, metrics MetricsRecorder, logger *logrus.Logger) *Searcher {
	if logger == nil {
		logger = logrus.New()
	}
	if engine == nil {
		engine = privacy.NewEngine(logger)
	}

	return &Searcher{
		engine:  engine,
		metrics: metrics,
		logger:  logger,
	}
}

// Evaluate anonymizes records with (k, l) and scores the outcome.
func (s *Searcher) Evaluate(ctx context.Context, records []models.Record, cfg Config, k, l int) (models.Candidate, error) {
	started := time.Now()

	dataset, err := s.engine.Apply(ctx, records, cfg.QuasiIdentifiers, cfg.SensitiveField, k, l)
	if err != nil {
		return models.Candidate{}, err
	}

	utility := scoring.ScoreUtility(dataset, len(records), cfg.AllowedDrop)
	privacyScore, err := scoring.ScorePrivacy(dataset, cfg.QuasiIdentifiers, cfg.SensitiveField)
	if err != nil {
		return models.Candidate{}, err
	}

	candidate := models.Candidate{
		K:             k,
		L:             l,
		Dropped:       utility.Dropped,
		Accepted:      utility.Accepted,
		Groups:        len(privacyScore.GroupSizes),
		PrivacyScore:  privacyScore.Score,
		CombinedScore: scoring.Combine(utility, privacyScore.Score),
	}

	if s.metrics != nil {
		s.metrics.RecordCandidate(candidate.Accepted, candidate.Dropped, time.Since(started))
	}

	s.logger.WithFields(logrus.Fields{
		"k":        k,
		"l":        l,
		"dropped":  candidate.Dropped,
		"accepted": candidate.Accepted,
		"score":    candidate.CombinedScore,
	}).Debug("Candidate evaluated")

	return candidate, nil
}

// Search runs the grid and returns a report for the winning pair, including
// the dataset released with it. It returns ErrNoValidCombination when no
// candidate reaches a positive combined score.
func (s *Searcher) Search(ctx context.Context, records []models.Record, cfg Config) (*models.SearchReport, error) {
	if len(records) == 0 {
		return nil, errors.NewConfigurationError("record set is empty")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	report, err := s.search(ctx, records, cfg, started)

	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, errors.ErrNoValidCombination):
		status = "no_valid_combination"
	default:
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.RecordSearchRun(status, time.Since(started))
	}

	return report, err
}

func (s *Searcher) search(ctx context.Context, records []models.Record, cfg Config, started time.Time) (*models.SearchReport, error) {
	lMax := cfg.lMax(records)
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	kLimit := min(cfg.MaxK, len(records)+1)
	lLimit := min(lMax, len(records)+1)
	if size := (kLimit - 1) * max(lLimit-1, 0); size > constants.MaxGridCandidates {
		return nil, errors.NewValidationError(errors.CodeOutOfRange,
			fmt.Sprintf("grid of %d candidates exceeds the limit of %d", size, constants.MaxGridCandidates))
	}

	report := &models.SearchReport{
		ID:        uuid.New().String(),
		Settings:  cfg.settings(lMax),
		InputSize: len(records),
		StartedAt: started,
	}

	logger := s.logger.WithFields(logrus.Fields{
		"search_id": report.ID,
		"max_k":     cfg.MaxK,
		"l_max":     lMax,
		"k_limit":   kLimit,
		"l_limit":   lLimit,
		"allowed":   cfg.AllowedDrop,
	})
	logger.WithField("records", len(records)).Info("Starting parameter search")

	candidates, err := s.evaluateGrid(ctx, records, cfg, kLimit, lLimit, workers)
	if err != nil {
		return nil, err
	}
	report.Candidates = candidates

	best := selectBest(candidates)
	if best < 0 {
		logger.WithField("candidates", len(candidates)).Warn("No candidate reached a positive score")
		return nil, errors.NewSearchError(errors.CodeNoValidCombination,
			"no (k, l) candidate satisfied the allowed drop count").
			WithDetails(fmt.Sprintf("evaluated %d candidates with k < %d, l < %d, allowed drop %d",
				len(candidates), cfg.MaxK, lMax, cfg.AllowedDrop))
	}

	winner := candidates[best]
	report.BestK = winner.K
	report.BestL = winner.L
	report.BestScore = winner.CombinedScore

	if winner.L == 1 {
		report.Flags = append(report.Flags, FlagLowDiversity)
		logger.WithFields(logrus.Fields{
			"k": winner.K,
			"l": winner.L,
		}).Warn("Winning candidate enforces no diversity (l = 1)")
	}

	dataset, err := s.engine.Apply(ctx, records, cfg.QuasiIdentifiers, cfg.SensitiveField, winner.K, winner.L)
	if err != nil {
		return nil, err
	}
	report.Dataset = dataset

	report.CompletedAt = time.Now()
	report.Duration = report.CompletedAt.Sub(started)

	if s.metrics != nil {
		s.metrics.SetBestScore(winner.CombinedScore)
		s.metrics.RecordAnonymization(dataset.Len(), dataset.Dropped())
	}

	logger.WithFields(logrus.Fields{
		"best_k":   winner.K,
		"best_l":   winner.L,
		"score":    winner.CombinedScore,
		"released": dataset.Len(),
		"dropped":  dataset.Dropped(),
		"duration": report.Duration,
	}).Info("Parameter search complete")

	return report, nil
}

// evaluateGrid scores every pair with k < kLimit and l < lLimit on a bounded
// worker pool. Each pair writes its own slot, so the returned slice is in
// k-outer, l-inner order.
func (s *Searcher) evaluateGrid(ctx context.Context, records []models.Record, cfg Config, kLimit, lLimit, workers int) ([]models.Candidate, error) {
	width := max(lLimit-1, 0)
	candidates := make([]models.Candidate, max(kLimit-1, 0)*width)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for k := 1; k < kLimit; k++ {
		for l := 1; l < lLimit; l++ {
			slot := (k-1)*width + (l - 1)
			g.Go(func() error {
				candidate, err := s.Evaluate(gctx, records, cfg, k, l)
				if err != nil {
					return err
				}
				candidates[slot] = candidate
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return candidates, nil
}

// selectBest returns the index of the first candidate with the strictly
// highest positive combined score, or -1.
func selectBest(candidates []models.Candidate) int {
	best := -1
	bestScore := 0.0
	for i, c := range candidates {
		if c.CombinedScore > bestScore {
			best = i
			bestScore = c.CombinedScore
		}
	}
	return best
}
