package services

import (
	"gonum.org/v1/gonum/floats"

	"github.com/temcen/shelfrank/pkg/models"
)

// Feature dimension names. The five categorical dimensions hold
// related-entity id sets; rating is the only scalar dimension.
const (
	dimAuthors    = "authors"
	dimTags       = "tags"
	dimSeries     = "series"
	dimPublishers = "publishers"
	dimLanguages  = "languages"
	dimRating     = "rating"
)

// FeatureVector is the comparable representation of a book: id sets for the
// categorical dimensions plus scalar dimensions. Built fresh per scoring
// call and never persisted.
type FeatureVector struct {
	Sets    map[string][]int64
	Scalars map[string]float64
}

// ExtractFeatures converts a book into its feature vector. A relation with
// no entries is left out of the vector entirely, so a dimension empty on
// both sides contributes nothing to similarity; a missing rating becomes 0.
// Extraction never fails.
func ExtractFeatures(book *models.Book) FeatureVector {
	vec := FeatureVector{
		Sets: make(map[string][]int64, 5),
		Scalars: map[string]float64{
			dimRating: book.Rating,
		},
	}

	for dim, ids := range map[string][]int64{
		dimAuthors:    book.AuthorIDs,
		dimTags:       book.TagIDs,
		dimSeries:     book.SeriesIDs,
		dimPublishers: book.PublisherIDs,
		dimLanguages:  book.LanguageIDs,
	} {
		if len(ids) > 0 {
			vec.Sets[dim] = ids
		}
	}

	return vec
}

// Similarity computes a cosine-style similarity in [0, 1] between two
// feature vectors. Set-valued dimensions are reduced to intersection size
// on one side and union size (at least 1) on the other before entering the
// dot product; scalar dimensions enter with their raw values. A dimension
// key carried as a set by one vector and as a scalar by the other
// contributes through both passes; that double contribution matches the
// historical scorer and only arises from malformed input, so it is kept.
// Returns exactly 0 when either accumulated norm is 0.
func Similarity(a, b FeatureVector) float64 {
	var xs, ys []float64

	for key := range unionKeys(a.Sets, b.Sets) {
		inter, union := setOverlap(a.Sets[key], b.Sets[key])
		if union == 0 {
			union = 1
		}
		xs = append(xs, float64(inter))
		ys = append(ys, float64(union))
	}

	for key := range unionScalarKeys(a.Scalars, b.Scalars) {
		xs = append(xs, a.Scalars[key])
		ys = append(ys, b.Scalars[key])
	}

	normX := floats.Norm(xs, 2)
	normY := floats.Norm(ys, 2)
	if normX == 0 || normY == 0 {
		return 0.0
	}

	return floats.Dot(xs, ys) / (normX * normY)
}

func unionKeys(a, b map[string][]int64) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return keys
}

func unionScalarKeys(a, b map[string]float64) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return keys
}

// setOverlap returns intersection and union sizes of two id slices,
// treating each slice as a set.
func setOverlap(a, b []int64) (intersection, union int) {
	seen := make(map[int64]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	union = len(seen)

	matched := make(map[int64]struct{}, len(b))
	for _, id := range b {
		if _, dup := matched[id]; dup {
			continue
		}
		matched[id] = struct{}{}
		if _, ok := seen[id]; ok {
			intersection++
		} else {
			union++
		}
	}

	return intersection, union
}
