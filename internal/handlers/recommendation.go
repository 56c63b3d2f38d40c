package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shelfrank/internal/metrics"
	"github.com/temcen/shelfrank/internal/services"
	"github.com/temcen/shelfrank/pkg/models"
)

const (
	defaultSimilarBooksLimit        = 5
	defaultUserRecommendationsLimit = 10
)

var validate = validator.New()

// RecommendationHandler serves the two read surfaces. Both recompute on
// every call unless cached=true is passed; the batch refresh job is the
// only writer of cached rows.
type RecommendationHandler struct {
	recommender services.Recommender
	logger      *logrus.Logger
}

func NewRecommendationHandler(recommender services.Recommender, logger *logrus.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		recommender: recommender,
		logger:      logger,
	}
}

// SimilarBooks handles GET /api/v1/books/:id/similar. cached=true serves
// the rows materialized by the last batch refresh instead of scoring the
// catalog live.
func (h *RecommendationHandler) SimilarBooks(c *gin.Context) {
	bookID, ok := parseID(c, "id", "INVALID_BOOK_ID", "Invalid book ID")
	if !ok {
		return
	}

	limit, ok := parseLimit(c, defaultSimilarBooksLimit)
	if !ok {
		return
	}

	metrics.RecommendationRequests.WithLabelValues("similar_books").Inc()

	var (
		recommendations []models.RankedBook
		err             error
	)
	if c.Query("cached") == "true" {
		recommendations, err = h.recommender.CachedForBook(c.Request.Context(), bookID)
		if err == nil && len(recommendations) > limit {
			recommendations = recommendations[:limit]
		}
	} else {
		recommendations, err = h.recommender.RecommendByContent(c.Request.Context(), bookID, limit, nil)
	}
	if err != nil {
		h.logger.WithError(err).WithField("book_id", bookID).Error("Failed to compute similar books")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "RECOMMENDATION_FAILED",
				"message": "Failed to compute similar books",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.SimilarBooksResponse{
		BookID:          bookID,
		Recommendations: emptyIfNil(recommendations),
		GeneratedAt:     time.Now(),
	})
}

// UserRecommendations handles GET /api/v1/users/:id/recommendations. An
// unrecognized preference value falls back to the balanced profile inside
// the engine rather than failing the request. With cached=true the rows
// materialized by the last batch refresh are served instead of a live
// recompute; the limit caps how many of them come back.
func (h *RecommendationHandler) UserRecommendations(c *gin.Context) {
	userID, ok := parseID(c, "id", "INVALID_USER_ID", "Invalid user ID")
	if !ok {
		return
	}

	limit, ok := parseLimit(c, defaultUserRecommendationsLimit)
	if !ok {
		return
	}

	preference := c.DefaultQuery("preference", models.PreferenceBalanced)

	metrics.RecommendationRequests.WithLabelValues("user_recommendations").Inc()

	var (
		recommendations []models.RankedBook
		err             error
	)
	if c.Query("cached") == "true" {
		recommendations, err = h.recommender.CachedForUser(c.Request.Context(), userID)
		if err == nil && len(recommendations) > limit {
			recommendations = recommendations[:limit]
		}
	} else {
		recommendations, err = h.recommender.Recommend(c.Request.Context(), services.HybridRequest{
			UserID:     &userID,
			Limit:      limit,
			Preference: preference,
		})
	}
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to compute user recommendations")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "RECOMMENDATION_FAILED",
				"message": "Failed to compute recommendations",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.UserRecommendationsResponse{
		UserID:          userID,
		Preference:      preference,
		Recommendations: emptyIfNil(recommendations),
		GeneratedAt:     time.Now(),
	})
}

func parseID(c *gin.Context, param, code, message string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    code,
				"message": message,
			},
		})
		return 0, false
	}
	return id, true
}

func parseLimit(c *gin.Context, fallback int) (int, bool) {
	limit := fallback
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err == nil {
			err = validate.Var(parsed, "gte=1,lte=100")
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "INVALID_LIMIT",
					"message": "limit must be an integer between 1 and 100",
				},
			})
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

// emptyIfNil keeps "no recommendations" rendering as an empty list, never
// null.
func emptyIfNil(recs []models.RankedBook) []models.RankedBook {
	if recs == nil {
		return []models.RankedBook{}
	}
	return recs
}
