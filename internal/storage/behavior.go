package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shelfrank/pkg/models"
)

// BehaviorRepository serves the behavioral store: user enumeration,
// completed-reading history, weighting-preference records, and the two
// cached-recommendation tables the refresh job replaces.
type BehaviorRepository struct {
	db     Querier
	logger *logrus.Logger
}

func NewBehaviorRepository(db Querier, logger *logrus.Logger) *BehaviorRepository {
	return &BehaviorRepository{
		db:     db,
		logger: logger,
	}
}

// Users returns all non-reserved users. Ids at or below zero belong to
// system accounts and are filtered here.
func (r *BehaviorRepository) Users(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM users WHERE id > 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			r.logger.WithError(err).Error("Failed to scan user row")
			continue
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user row iteration failed: %w", err)
	}

	return users, nil
}

// CompletedBookIDs returns the ids of books the user has finished reading.
func (r *BehaviorRepository) CompletedBookIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT book_id FROM book_read_link WHERE user_id = $1 AND read_status = $2 ORDER BY book_id`,
		userID, models.ReadStatusFinished,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load read history for user %d: %w", userID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			r.logger.WithError(err).Error("Failed to scan read history row")
			continue
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history iteration failed: %w", err)
	}

	return ids, nil
}

// Preference returns the user's named weighting profile, or "" when none is
// on file.
func (r *BehaviorRepository) Preference(ctx context.Context, userID int64) (string, error) {
	var preference string
	err := r.db.QueryRow(ctx,
		`SELECT preference FROM user_recommendation_prefs WHERE user_id = $1`,
		userID,
	).Scan(&preference)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load preference for user %d: %w", userID, err)
	}

	return preference, nil
}

// NeighborUserIDs finds users who completed at least minShared of the given
// books, excluding the target user.
func (r *BehaviorRepository) NeighborUserIDs(ctx context.Context, userID int64, bookIDs []int64, minShared int) ([]int64, error) {
	query := `
		SELECT user_id
		FROM book_read_link
		WHERE book_id = ANY($1)
			AND user_id <> $2
			AND read_status = $3
		GROUP BY user_id
		HAVING COUNT(DISTINCT book_id) >= $4`

	rows, err := r.db.Query(ctx, query, bookIDs, userID, models.ReadStatusFinished, minShared)
	if err != nil {
		return nil, fmt.Errorf("failed to find neighbor users for user %d: %w", userID, err)
	}
	defer rows.Close()

	var neighbors []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			r.logger.WithError(err).Error("Failed to scan neighbor user row")
			continue
		}
		neighbors = append(neighbors, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("neighbor user iteration failed: %w", err)
	}

	return neighbors, nil
}

// NeighborCompletionCounts counts distinct neighbor completions per book,
// skipping excluded ids, ordered by count descending and limited to the
// candidate pool size.
func (r *BehaviorRepository) NeighborCompletionCounts(ctx context.Context, neighborIDs, excludedBookIDs []int64, limit int) ([]models.BookCompletionCount, error) {
	query := `
		SELECT book_id, COUNT(DISTINCT user_id) AS user_count
		FROM book_read_link
		WHERE user_id = ANY($1)
			AND NOT (book_id = ANY($2))
			AND read_status = $3
		GROUP BY book_id
		ORDER BY COUNT(DISTINCT user_id) DESC
		LIMIT $4`

	rows, err := r.db.Query(ctx, query, neighborIDs, excludedBookIDs, models.ReadStatusFinished, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to count neighbor completions: %w", err)
	}
	defer rows.Close()

	var counts []models.BookCompletionCount
	for rows.Next() {
		var c models.BookCompletionCount
		if err := rows.Scan(&c.BookID, &c.Count); err != nil {
			r.logger.WithError(err).Error("Failed to scan completion count row")
			continue
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("completion count iteration failed: %w", err)
	}

	return counts, nil
}

// CachedUserRecommendations reads the stored recommendation rows for a
// user, most relevant first.
func (r *BehaviorRepository) CachedUserRecommendations(ctx context.Context, userID int64) ([]models.UserRecommendation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id, book_id, score, reason
		FROM user_recommendations
		WHERE user_id = $1
		ORDER BY score DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached recommendations for user %d: %w", userID, err)
	}
	defer rows.Close()

	var recs []models.UserRecommendation
	for rows.Next() {
		var rec models.UserRecommendation
		if err := rows.Scan(&rec.UserID, &rec.BookID, &rec.Score, &rec.Reason); err != nil {
			r.logger.WithError(err).Error("Failed to scan cached recommendation row")
			continue
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cached recommendation iteration failed: %w", err)
	}

	return recs, nil
}

// CachedBookRecommendations reads the stored content-similarity rows for a
// book, most similar first.
func (r *BehaviorRepository) CachedBookRecommendations(ctx context.Context, bookID int64) ([]models.BookRecommendation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT book_id, recommended_book_id, score, reason, kind
		FROM book_recommendations
		WHERE book_id = $1 AND kind = $2
		ORDER BY score DESC`,
		bookID, models.RecommendationKindContent,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached recommendations for book %d: %w", bookID, err)
	}
	defer rows.Close()

	var recs []models.BookRecommendation
	for rows.Next() {
		var rec models.BookRecommendation
		if err := rows.Scan(&rec.BookID, &rec.RecommendedBookID, &rec.Score, &rec.Reason, &rec.Kind); err != nil {
			r.logger.WithError(err).Error("Failed to scan cached recommendation row")
			continue
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cached recommendation iteration failed: %w", err)
	}

	return recs, nil
}

// ReplaceUserRecommendations swaps a user's cached row set for the given
// recommendations. Delete and inserts run against q so the refresh job can
// scope the whole replace to its transaction; callers must not pass an
// empty set (a failed recompute keeps the prior rows).
func (r *BehaviorRepository) ReplaceUserRecommendations(ctx context.Context, q Querier, userID int64, recs []models.RankedBook) error {
	if _, err := q.Exec(ctx, `DELETE FROM user_recommendations WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete cached recommendations for user %d: %w", userID, err)
	}

	for _, rec := range recs {
		_, err := q.Exec(ctx,
			`INSERT INTO user_recommendations (user_id, book_id, score, reason) VALUES ($1, $2, $3, $4)`,
			userID, rec.BookID, rec.Score, rec.Reason,
		)
		if err != nil {
			return fmt.Errorf("failed to insert recommendation for user %d: %w", userID, err)
		}
	}

	return nil
}

// ReplaceBookRecommendations swaps a book's cached content-similarity rows.
// Only rows of the content kind are touched.
func (r *BehaviorRepository) ReplaceBookRecommendations(ctx context.Context, q Querier, bookID int64, recs []models.RankedBook) error {
	if _, err := q.Exec(ctx,
		`DELETE FROM book_recommendations WHERE book_id = $1 AND kind = $2`,
		bookID, models.RecommendationKindContent,
	); err != nil {
		return fmt.Errorf("failed to delete cached recommendations for book %d: %w", bookID, err)
	}

	for _, rec := range recs {
		_, err := q.Exec(ctx,
			`INSERT INTO book_recommendations (book_id, recommended_book_id, score, reason, kind) VALUES ($1, $2, $3, $4, $5)`,
			bookID, rec.BookID, rec.Score, rec.Reason, models.RecommendationKindContent,
		)
		if err != nil {
			return fmt.Errorf("failed to insert recommendation for book %d: %w", bookID, err)
		}
	}

	return nil
}
