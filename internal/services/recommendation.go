package services

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/temcen/shelfrank/pkg/models"
)

// minSharedCompletions is the co-occurrence threshold for collaborative
// neighbors: another user counts as a neighbor only after finishing at
// least this many of the same books.
const minSharedCompletions = 2

// RecommendationService implements the content, collaborative and hybrid
// recommenders. It holds no per-call state; fusion weights are resolved
// per request, so concurrent calls with different preferences never
// interfere. The cold-start sampler is the one piece of shared mutable
// state and is guarded by rngMu, since rand.Rand is not goroutine-safe
// and live requests overlap with refresh runs.
type RecommendationService struct {
	catalog  CatalogStore
	behavior BehaviorStore
	rngMu    sync.Mutex
	rng      *rand.Rand
	logger   *logrus.Logger
}

// NewRecommendationService wires the recommenders. rng drives cold-start
// seed sampling; tests pass a seeded source to pin the selection.
func NewRecommendationService(catalog CatalogStore, behavior BehaviorStore, rng *rand.Rand, logger *logrus.Logger) *RecommendationService {
	return &RecommendationService{
		catalog:  catalog,
		behavior: behavior,
		rng:      rng,
		logger:   logger,
	}
}

// RecommendByContent ranks the catalog against a seed book by feature
// similarity. The seed and any excluded ids never appear in the result;
// only candidates with similarity strictly above 0 are kept. A missing
// seed yields an empty result, not an error. Cost is one feature
// extraction and comparison per catalog book.
func (s *RecommendationService) RecommendByContent(ctx context.Context, seedBookID int64, limit int, exclude map[int64]struct{}) ([]models.RankedBook, error) {
	seed, err := s.catalog.BookByID(ctx, seedBookID)
	if err != nil {
		return nil, fmt.Errorf("content recommendation for book %d: %w", seedBookID, err)
	}
	if seed == nil {
		s.logger.WithField("book_id", seedBookID).Debug("Content seed book not found")
		return nil, nil
	}

	books, err := s.catalog.AllBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("content recommendation for book %d: %w", seedBookID, err)
	}

	seedVector := ExtractFeatures(seed)

	var candidates []models.RankedBook
	for i := range books {
		book := &books[i]
		if book.ID == seedBookID {
			continue
		}
		if _, skip := exclude[book.ID]; skip {
			continue
		}

		similarity := Similarity(seedVector, ExtractFeatures(book))
		if similarity > 0 {
			candidates = append(candidates, models.RankedBook{
				BookID: book.ID,
				Score:  similarity,
				Reason: models.ReasonContent,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	return candidates, nil
}

// CachedForUser serves the rows materialized by the last batch refresh
// without recomputing. Rows come back in stored order, best score first.
func (s *RecommendationService) CachedForUser(ctx context.Context, userID int64) ([]models.RankedBook, error) {
	cached, err := s.behavior.CachedUserRecommendations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cached recommendations for user %d: %w", userID, err)
	}

	ranked := make([]models.RankedBook, 0, len(cached))
	for _, rec := range cached {
		ranked = append(ranked, models.RankedBook{
			BookID: rec.BookID,
			Score:  rec.Score,
			Reason: rec.Reason,
		})
	}

	return ranked, nil
}

// CachedForBook serves the content-similarity rows materialized for a book
// by the last batch refresh.
func (s *RecommendationService) CachedForBook(ctx context.Context, bookID int64) ([]models.RankedBook, error) {
	cached, err := s.behavior.CachedBookRecommendations(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("cached recommendations for book %d: %w", bookID, err)
	}

	ranked := make([]models.RankedBook, 0, len(cached))
	for _, rec := range cached {
		ranked = append(ranked, models.RankedBook{
			BookID: rec.RecommendedBookID,
			Score:  rec.Score,
			Reason: rec.Reason,
		})
	}

	return ranked, nil
}

// RecommendByCollaboration ranks books popular among users who share
// completed reads with the target user. Empty history and an empty
// neighbor set are both empty results: collaborative filtering is optional
// signal, never a hard dependency.
func (s *RecommendationService) RecommendByCollaboration(ctx context.Context, userID int64, limit int, exclude map[int64]struct{}) ([]models.RankedBook, error) {
	completed, err := s.behavior.CompletedBookIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("collaborative recommendation for user %d: %w", userID, err)
	}
	if len(completed) == 0 {
		return nil, nil
	}

	excluded := make([]int64, 0, len(exclude)+len(completed))
	for id := range exclude {
		excluded = append(excluded, id)
	}
	excluded = append(excluded, completed...)

	neighbors, err := s.behavior.NeighborUserIDs(ctx, userID, completed, minSharedCompletions)
	if err != nil {
		return nil, fmt.Errorf("collaborative recommendation for user %d: %w", userID, err)
	}
	if len(neighbors) == 0 {
		return nil, nil
	}

	counts, err := s.behavior.NeighborCompletionCounts(ctx, neighbors, excluded, limit*2)
	if err != nil {
		return nil, fmt.Errorf("collaborative recommendation for user %d: %w", userID, err)
	}
	if len(counts) == 0 {
		return nil, nil
	}

	maxCount := 1
	for _, c := range counts {
		if c.Count > maxCount {
			maxCount = c.Count
		}
	}

	recommendations := make([]models.RankedBook, 0, len(counts))
	for _, c := range counts {
		recommendations = append(recommendations, models.RankedBook{
			BookID: c.BookID,
			Score:  float64(c.Count) / float64(maxCount),
			Reason: models.ReasonCollaborative,
		})
	}

	if len(recommendations) > limit {
		recommendations = recommendations[:limit]
	}

	return recommendations, nil
}
