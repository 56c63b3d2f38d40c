package models

import "time"

// Reason labels attached to ranked candidates. Fixed set; the web layer
// renders them verbatim.
const (
	ReasonContent       = "content similarity"
	ReasonCollaborative = "similar users' reading history"
	ReasonHybrid        = "content similarity and reading behavior"
)

// RecommendationKindContent tags cached per-book rows produced by the
// content recommender.
const RecommendationKindContent = "content"

// RankedBook is a scored recommendation candidate.
type RankedBook struct {
	BookID int64   `json:"book_id"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// UserRecommendation is a cached recommendation row for a user. The row set
// for a user is fully replaced on every batch refresh.
type UserRecommendation struct {
	UserID int64   `json:"user_id" db:"user_id"`
	BookID int64   `json:"book_id" db:"book_id"`
	Score  float64 `json:"score" db:"score"`
	Reason string  `json:"reason" db:"reason"`
}

// BookRecommendation is a cached similar-book row. Kind is always
// RecommendationKindContent for rows written by the refresh job.
type BookRecommendation struct {
	BookID            int64   `json:"book_id" db:"book_id"`
	RecommendedBookID int64   `json:"recommended_book_id" db:"recommended_book_id"`
	Score             float64 `json:"score" db:"score"`
	Reason            string  `json:"reason" db:"reason"`
	Kind              string  `json:"kind" db:"kind"`
}

type SimilarBooksResponse struct {
	BookID          int64        `json:"book_id"`
	Recommendations []RankedBook `json:"recommendations"`
	GeneratedAt     time.Time    `json:"generated_at"`
}

type UserRecommendationsResponse struct {
	UserID          int64        `json:"user_id"`
	Preference      string       `json:"preference"`
	Recommendations []RankedBook `json:"recommendations"`
	GeneratedAt     time.Time    `json:"generated_at"`
}
