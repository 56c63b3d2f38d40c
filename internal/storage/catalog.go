package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shelfrank/pkg/models"
)

// CatalogRepository reads books and their related-entity id sets from the
// catalog store. The catalog is owned elsewhere; this repository never
// writes to it.
type CatalogRepository struct {
	db     Querier
	logger *logrus.Logger
}

func NewCatalogRepository(db Querier, logger *logrus.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:     db,
		logger: logger,
	}
}

// bookColumns pulls each related-entity dimension through a scalar
// subselect so one row per book comes back regardless of how many links a
// book has. The rating is the first recorded one, 0 when none exists.
const bookColumns = `
	b.id,
	b.title,
	(SELECT COALESCE(array_agg(author ORDER BY author), '{}')
		FROM books_authors_link WHERE book = b.id) AS author_ids,
	(SELECT COALESCE(array_agg(tag ORDER BY tag), '{}')
		FROM books_tags_link WHERE book = b.id) AS tag_ids,
	(SELECT COALESCE(array_agg(series ORDER BY series), '{}')
		FROM books_series_link WHERE book = b.id) AS series_ids,
	(SELECT COALESCE(array_agg(publisher ORDER BY publisher), '{}')
		FROM books_publishers_link WHERE book = b.id) AS publisher_ids,
	(SELECT COALESCE(array_agg(lang_code ORDER BY lang_code), '{}')
		FROM books_languages_link WHERE book = b.id) AS language_ids,
	COALESCE((SELECT r.rating
		FROM books_ratings_link brl
		JOIN ratings r ON r.id = brl.rating
		WHERE brl.book = b.id
		ORDER BY brl.id
		LIMIT 1), 0) AS rating`

// BookByID returns the book with the given id, or nil when it does not
// exist. A missing book is not an error.
func (r *CatalogRepository) BookByID(ctx context.Context, id int64) (*models.Book, error) {
	query := `SELECT` + bookColumns + ` FROM books b WHERE b.id = $1`

	var book models.Book
	err := r.db.QueryRow(ctx, query, id).Scan(
		&book.ID, &book.Title,
		&book.AuthorIDs, &book.TagIDs, &book.SeriesIDs,
		&book.PublisherIDs, &book.LanguageIDs, &book.Rating,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load book %d: %w", id, err)
	}

	return &book, nil
}

// AllBooks returns the full catalog with feature relations loaded.
func (r *CatalogRepository) AllBooks(ctx context.Context) ([]models.Book, error) {
	query := `SELECT` + bookColumns + ` FROM books b ORDER BY b.id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate books: %w", err)
	}
	defer rows.Close()

	return r.scanBooks(rows)
}

// FirstBooks returns up to n books in catalog order. The hybrid recommender
// samples cold-start seeds from this slice.
func (r *CatalogRepository) FirstBooks(ctx context.Context, n int) ([]models.Book, error) {
	query := `SELECT` + bookColumns + ` FROM books b ORDER BY b.id LIMIT $1`

	rows, err := r.db.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to load first %d books: %w", n, err)
	}
	defer rows.Close()

	return r.scanBooks(rows)
}

func (r *CatalogRepository) CountBooks(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM books`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return count, nil
}

func (r *CatalogRepository) scanBooks(rows pgx.Rows) ([]models.Book, error) {
	var books []models.Book
	for rows.Next() {
		var book models.Book
		if err := rows.Scan(
			&book.ID, &book.Title,
			&book.AuthorIDs, &book.TagIDs, &book.SeriesIDs,
			&book.PublisherIDs, &book.LanguageIDs, &book.Rating,
		); err != nil {
			r.logger.WithError(err).Error("Failed to scan book row")
			continue
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("book row iteration failed: %w", err)
	}

	return books, nil
}
