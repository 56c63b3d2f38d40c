package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/temcen/shelfrank/pkg/models"
)

const (
	// maxHistorySeeds caps how many completed books seed the content side
	// of a user-mode hybrid call.
	maxHistorySeeds = 5

	// Cold-start handling: sample a few improvised seeds from the front of
	// the catalog and damp their scores to reflect the lower confidence.
	coldStartPool    = 50
	coldStartSeeds   = 3
	coldStartDamping = 0.5
)

// FusionWeights is the content/collaborative blend for one hybrid call.
// The pair always sums to 1.0.
type FusionWeights struct {
	Content       float64
	Collaborative float64
}

// WeightsFor maps a named preference profile to its fusion weights. Any
// unrecognized value falls back to the balanced profile.
func WeightsFor(preference string) FusionWeights {
	switch preference {
	case models.PreferencePopular:
		return FusionWeights{Content: 0.3, Collaborative: 0.7}
	case models.PreferenceNiche:
		return FusionWeights{Content: 0.8, Collaborative: 0.2}
	default:
		return FusionWeights{Content: 0.6, Collaborative: 0.4}
	}
}

// HybridRequest selects the signal sources for one fusion call. With a
// seed book, content scoring starts there; otherwise a user's completed
// history (or, for cold starts, sampled catalog books) seeds it. The
// collaborative side runs whenever UserID is set.
type HybridRequest struct {
	UserID     *int64
	SeedBookID *int64
	Limit      int
	Preference string
}

type fusionCandidate struct {
	contentScore       float64
	collaborativeScore float64
}

// Recommend blends content and collaborative candidates under the
// request's weighting profile. Each source writes its weighted score into
// its own accumulator field; the final score is their sum, items at or
// below 0 are dropped, and the reason label follows whichever component
// dominates. With neither a user nor a seed there is no signal source and
// the result is empty.
func (s *RecommendationService) Recommend(ctx context.Context, req HybridRequest) ([]models.RankedBook, error) {
	if req.UserID == nil && req.SeedBookID == nil {
		return nil, nil
	}

	weights := WeightsFor(req.Preference)
	candidates := make(map[int64]*fusionCandidate)
	exclude := make(map[int64]struct{})

	switch {
	case req.SeedBookID != nil:
		recs, err := s.RecommendByContent(ctx, *req.SeedBookID, req.Limit*2, exclude)
		if err != nil {
			return nil, fmt.Errorf("hybrid recommendation: %w", err)
		}
		for _, rec := range recs {
			c := fusionCandidateFor(candidates, rec.BookID)
			c.contentScore = rec.Score * weights.Content
		}
		exclude[*req.SeedBookID] = struct{}{}

	case req.UserID != nil:
		completed, err := s.behavior.CompletedBookIDs(ctx, *req.UserID)
		if err != nil {
			return nil, fmt.Errorf("hybrid recommendation: %w", err)
		}

		if len(completed) > 0 {
			// Nothing the user already finished may come back as a
			// recommendation, whichever seed surfaced it.
			for _, id := range completed {
				exclude[id] = struct{}{}
			}

			seeds := completed
			if len(seeds) > maxHistorySeeds {
				seeds = seeds[:maxHistorySeeds]
			}
			// An item similar to several seeds keeps its best content
			// score rather than a sum, so it is not rewarded twice.
			for _, seedID := range seeds {
				if err := s.mergeContentSeed(ctx, candidates, exclude, seedID, req.Limit, weights.Content); err != nil {
					return nil, err
				}
			}
		} else if err := s.mergeColdStartSeeds(ctx, candidates, exclude, req.Limit, weights.Content); err != nil {
			return nil, err
		}
	}

	if req.UserID != nil {
		recs, err := s.RecommendByCollaboration(ctx, *req.UserID, req.Limit*2, exclude)
		if err != nil {
			return nil, fmt.Errorf("hybrid recommendation: %w", err)
		}
		for _, rec := range recs {
			c := fusionCandidateFor(candidates, rec.BookID)
			c.collaborativeScore = rec.Score * weights.Collaborative
		}
	}

	return finalizeFusion(candidates, req.Limit), nil
}

func (s *RecommendationService) mergeContentSeed(ctx context.Context, candidates map[int64]*fusionCandidate, exclude map[int64]struct{}, seedID int64, limit int, contentWeight float64) error {
	recs, err := s.RecommendByContent(ctx, seedID, limit, exclude)
	if err != nil {
		return fmt.Errorf("hybrid recommendation: %w", err)
	}
	for _, rec := range recs {
		c := fusionCandidateFor(candidates, rec.BookID)
		if weighted := rec.Score * contentWeight; weighted > c.contentScore {
			c.contentScore = weighted
		}
	}
	exclude[seedID] = struct{}{}
	return nil
}

// mergeColdStartSeeds improvises content seeds for a user with no history:
// a random sample from the front of the catalog, scored with a reduced
// per-seed limit and the cold-start damping factor.
func (s *RecommendationService) mergeColdStartSeeds(ctx context.Context, candidates map[int64]*fusionCandidate, exclude map[int64]struct{}, limit int, contentWeight float64) error {
	pool, err := s.catalog.FirstBooks(ctx, coldStartPool)
	if err != nil {
		return fmt.Errorf("hybrid recommendation: %w", err)
	}
	if len(pool) == 0 {
		return nil
	}

	seedCount := coldStartSeeds
	if len(pool) < seedCount {
		seedCount = len(pool)
	}
	perSeedLimit := limit/seedCount + 1

	s.rngMu.Lock()
	order := s.rng.Perm(len(pool))
	s.rngMu.Unlock()

	for _, idx := range order[:seedCount] {
		seedID := pool[idx].ID
		recs, err := s.RecommendByContent(ctx, seedID, perSeedLimit, exclude)
		if err != nil {
			return fmt.Errorf("hybrid recommendation: %w", err)
		}
		for _, rec := range recs {
			c := fusionCandidateFor(candidates, rec.BookID)
			if weighted := rec.Score * contentWeight * coldStartDamping; weighted > c.contentScore {
				c.contentScore = weighted
			}
		}
		exclude[seedID] = struct{}{}
	}

	return nil
}

func fusionCandidateFor(candidates map[int64]*fusionCandidate, bookID int64) *fusionCandidate {
	c, ok := candidates[bookID]
	if !ok {
		c = &fusionCandidate{}
		candidates[bookID] = c
	}
	return c
}

func finalizeFusion(candidates map[int64]*fusionCandidate, limit int) []models.RankedBook {
	var results []models.RankedBook
	for bookID, c := range candidates {
		total := c.contentScore + c.collaborativeScore
		if total <= 0 {
			continue
		}

		var reason string
		switch {
		case c.contentScore > c.collaborativeScore:
			reason = models.ReasonContent
		case c.collaborativeScore > c.contentScore:
			reason = models.ReasonCollaborative
		default:
			reason = models.ReasonHybrid
		}

		results = append(results, models.RankedBook{
			BookID: bookID,
			Score:  total,
			Reason: reason,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results
}
