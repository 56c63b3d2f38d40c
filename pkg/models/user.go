package models

// Weighting preference profiles. Unrecognized values fall back to balanced.
const (
	PreferencePopular  = "popular"
	PreferenceNiche    = "niche"
	PreferenceBalanced = "balanced"
)

// ReadStatusFinished marks a history entry as a completed read. Only
// completed entries carry collaborative signal.
const ReadStatusFinished = 1

// User is a behavioral-store user. Ids at or below zero are reserved for
// system accounts and never receive recommendations.
type User struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
