package services

import (
	"context"

	"github.com/temcen/shelfrank/internal/storage"
	"github.com/temcen/shelfrank/pkg/models"
)

// CatalogStore is the read-only view of the catalog the engine needs.
// Implemented by storage.CatalogRepository.
type CatalogStore interface {
	BookByID(ctx context.Context, id int64) (*models.Book, error)
	AllBooks(ctx context.Context) ([]models.Book, error)
	FirstBooks(ctx context.Context, n int) ([]models.Book, error)
	CountBooks(ctx context.Context) (int64, error)
}

// BehaviorStore covers behavioral reads plus the cached-recommendation
// replaces. Write methods take a storage.Querier so the refresh job can
// run them inside its transaction. Implemented by
// storage.BehaviorRepository.
type BehaviorStore interface {
	Users(ctx context.Context) ([]models.User, error)
	CompletedBookIDs(ctx context.Context, userID int64) ([]int64, error)
	Preference(ctx context.Context, userID int64) (string, error)
	NeighborUserIDs(ctx context.Context, userID int64, bookIDs []int64, minShared int) ([]int64, error)
	NeighborCompletionCounts(ctx context.Context, neighborIDs, excludedBookIDs []int64, limit int) ([]models.BookCompletionCount, error)
	CachedUserRecommendations(ctx context.Context, userID int64) ([]models.UserRecommendation, error)
	CachedBookRecommendations(ctx context.Context, bookID int64) ([]models.BookRecommendation, error)
	ReplaceUserRecommendations(ctx context.Context, q storage.Querier, userID int64, recs []models.RankedBook) error
	ReplaceBookRecommendations(ctx context.Context, q storage.Querier, bookID int64, recs []models.RankedBook) error
}

// Recommender is the scoring surface the refresh job and the HTTP handlers
// call. Implemented by RecommendationService.
type Recommender interface {
	Recommend(ctx context.Context, req HybridRequest) ([]models.RankedBook, error)
	RecommendByContent(ctx context.Context, seedBookID int64, limit int, exclude map[int64]struct{}) ([]models.RankedBook, error)
	CachedForUser(ctx context.Context, userID int64) ([]models.RankedBook, error)
	CachedForBook(ctx context.Context, bookID int64) ([]models.RankedBook, error)
}
