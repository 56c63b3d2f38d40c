package services

import (
	"context"
	"sort"

	"github.com/temcen/shelfrank/internal/storage"
	"github.com/temcen/shelfrank/pkg/models"
)

// fakeCatalog is an in-memory CatalogStore.
type fakeCatalog struct {
	books    []models.Book
	bookErr  error
	booksErr error
}

func (f *fakeCatalog) BookByID(_ context.Context, id int64) (*models.Book, error) {
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	for i := range f.books {
		if f.books[i].ID == id {
			book := f.books[i]
			return &book, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) AllBooks(_ context.Context) ([]models.Book, error) {
	if f.booksErr != nil {
		return nil, f.booksErr
	}
	return append([]models.Book(nil), f.books...), nil
}

func (f *fakeCatalog) FirstBooks(_ context.Context, n int) ([]models.Book, error) {
	if f.booksErr != nil {
		return nil, f.booksErr
	}
	if n > len(f.books) {
		n = len(f.books)
	}
	return append([]models.Book(nil), f.books[:n]...), nil
}

func (f *fakeCatalog) CountBooks(_ context.Context) (int64, error) {
	return int64(len(f.books)), nil
}

// fakeBehavior is an in-memory BehaviorStore. Neighbor discovery mirrors
// the SQL of storage.BehaviorRepository over the completed map.
type fakeBehavior struct {
	users     []models.User
	usersErr  error
	completed map[int64][]int64
	prefs     map[int64]string
	prefErr   map[int64]error

	cached      map[int64][]models.UserRecommendation
	cachedBooks map[int64][]models.BookRecommendation

	replacedUsers  map[int64][]models.RankedBook
	replacedBooks  map[int64][]models.RankedBook
	replaceUserErr map[int64]error
}

func (f *fakeBehavior) Users(_ context.Context) ([]models.User, error) {
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return f.users, nil
}

func (f *fakeBehavior) CompletedBookIDs(_ context.Context, userID int64) ([]int64, error) {
	return f.completed[userID], nil
}

func (f *fakeBehavior) Preference(_ context.Context, userID int64) (string, error) {
	if err := f.prefErr[userID]; err != nil {
		return "", err
	}
	return f.prefs[userID], nil
}

func (f *fakeBehavior) NeighborUserIDs(_ context.Context, userID int64, bookIDs []int64, minShared int) ([]int64, error) {
	wanted := make(map[int64]struct{}, len(bookIDs))
	for _, id := range bookIDs {
		wanted[id] = struct{}{}
	}

	var neighbors []int64
	for otherID, books := range f.completed {
		if otherID == userID {
			continue
		}
		shared := 0
		for _, id := range books {
			if _, ok := wanted[id]; ok {
				shared++
			}
		}
		if shared >= minShared {
			neighbors = append(neighbors, otherID)
		}
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })
	return neighbors, nil
}

func (f *fakeBehavior) NeighborCompletionCounts(_ context.Context, neighborIDs, excludedBookIDs []int64, limit int) ([]models.BookCompletionCount, error) {
	excluded := make(map[int64]struct{}, len(excludedBookIDs))
	for _, id := range excludedBookIDs {
		excluded[id] = struct{}{}
	}

	counts := make(map[int64]int)
	for _, neighborID := range neighborIDs {
		for _, bookID := range f.completed[neighborID] {
			if _, skip := excluded[bookID]; skip {
				continue
			}
			counts[bookID]++
		}
	}

	var results []models.BookCompletionCount
	for bookID, count := range counts {
		results = append(results, models.BookCompletionCount{BookID: bookID, Count: count})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Count > results[j].Count })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (f *fakeBehavior) CachedUserRecommendations(_ context.Context, userID int64) ([]models.UserRecommendation, error) {
	return f.cached[userID], nil
}

func (f *fakeBehavior) CachedBookRecommendations(_ context.Context, bookID int64) ([]models.BookRecommendation, error) {
	return f.cachedBooks[bookID], nil
}

func (f *fakeBehavior) ReplaceUserRecommendations(_ context.Context, _ storage.Querier, userID int64, recs []models.RankedBook) error {
	if err := f.replaceUserErr[userID]; err != nil {
		return err
	}
	if f.replacedUsers == nil {
		f.replacedUsers = make(map[int64][]models.RankedBook)
	}
	f.replacedUsers[userID] = recs
	return nil
}

func (f *fakeBehavior) ReplaceBookRecommendations(_ context.Context, _ storage.Querier, bookID int64, recs []models.RankedBook) error {
	if f.replacedBooks == nil {
		f.replacedBooks = make(map[int64][]models.RankedBook)
	}
	f.replacedBooks[bookID] = recs
	return nil
}

// fakeRecommender returns canned results keyed by user or seed book id.
type fakeRecommender struct {
	userRecs map[int64][]models.RankedBook
	userErr  map[int64]error
	bookRecs map[int64][]models.RankedBook
	bookErr  map[int64]error

	recommendCalls int
}

func (f *fakeRecommender) Recommend(_ context.Context, req HybridRequest) ([]models.RankedBook, error) {
	f.recommendCalls++
	if req.UserID == nil {
		return nil, nil
	}
	if err := f.userErr[*req.UserID]; err != nil {
		return nil, err
	}
	return f.userRecs[*req.UserID], nil
}

func (f *fakeRecommender) RecommendByContent(_ context.Context, seedBookID int64, _ int, _ map[int64]struct{}) ([]models.RankedBook, error) {
	if err := f.bookErr[seedBookID]; err != nil {
		return nil, err
	}
	return f.bookRecs[seedBookID], nil
}

func (f *fakeRecommender) CachedForUser(context.Context, int64) ([]models.RankedBook, error) {
	return nil, nil
}

func (f *fakeRecommender) CachedForBook(context.Context, int64) ([]models.RankedBook, error) {
	return nil, nil
}

// fakeLock records acquire/release calls for refresh tests.
type fakeLock struct {
	acquireOK  bool
	acquireErr error
	released   bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	return f.acquireOK, f.acquireErr
}

func (f *fakeLock) Release(context.Context) error {
	f.released = true
	return nil
}
