package models

// Book is a catalog item together with the related-entity id sets the
// feature extractor works on. Loaded once per scoring pass and treated as
// immutable afterwards.
type Book struct {
	ID           int64   `json:"id" db:"id"`
	Title        string  `json:"title" db:"title"`
	AuthorIDs    []int64 `json:"author_ids" db:"author_ids"`
	TagIDs       []int64 `json:"tag_ids" db:"tag_ids"`
	SeriesIDs    []int64 `json:"series_ids" db:"series_ids"`
	PublisherIDs []int64 `json:"publisher_ids" db:"publisher_ids"`
	LanguageIDs  []int64 `json:"language_ids" db:"language_ids"`
	Rating       float64 `json:"rating" db:"rating"`
}

// BookCompletionCount is the number of distinct neighbor users that
// completed a book, as counted by the collaborative recommender.
type BookCompletionCount struct {
	BookID int64 `json:"book_id"`
	Count  int   `json:"count"`
}
