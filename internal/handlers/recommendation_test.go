package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/shelfrank/internal/services"
	"github.com/temcen/shelfrank/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRecommender struct {
	recs   []models.RankedBook
	cached []models.RankedBook
	err    error

	lastRequest *services.HybridRequest
	lastSeed    int64
	lastLimit   int
	cachedCalls int
}

func (s *stubRecommender) Recommend(_ context.Context, req services.HybridRequest) ([]models.RankedBook, error) {
	s.lastRequest = &req
	return s.recs, s.err
}

func (s *stubRecommender) CachedForUser(_ context.Context, _ int64) ([]models.RankedBook, error) {
	s.cachedCalls++
	return s.cached, s.err
}

func (s *stubRecommender) CachedForBook(_ context.Context, _ int64) ([]models.RankedBook, error) {
	s.cachedCalls++
	return s.cached, s.err
}

func (s *stubRecommender) RecommendByContent(_ context.Context, seedBookID int64, limit int, _ map[int64]struct{}) ([]models.RankedBook, error) {
	s.lastSeed = seedBookID
	s.lastLimit = limit
	return s.recs, s.err
}

func newTestRouter(stub *stubRecommender) *gin.Engine {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	handler := NewRecommendationHandler(stub, logger)

	router := gin.New()
	router.GET("/api/v1/books/:id/similar", handler.SimilarBooks)
	router.GET("/api/v1/users/:id/recommendations", handler.UserRecommendations)
	return router
}

func performRequest(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestSimilarBooks(t *testing.T) {
	t.Run("returns ranked books", func(t *testing.T) {
		stub := &stubRecommender{recs: []models.RankedBook{
			{BookID: 2, Score: 0.9, Reason: models.ReasonContent},
		}}
		router := newTestRouter(stub)

		w := performRequest(router, "/api/v1/books/1/similar")
		require.Equal(t, http.StatusOK, w.Code)

		var resp models.SimilarBooksResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.BookID)
		require.Len(t, resp.Recommendations, 1)
		assert.Equal(t, int64(2), resp.Recommendations[0].BookID)
		assert.Equal(t, int64(1), stub.lastSeed)
		assert.Equal(t, 5, stub.lastLimit)
	})

	t.Run("empty result renders as empty list", func(t *testing.T) {
		router := newTestRouter(&stubRecommender{})

		w := performRequest(router, "/api/v1/books/1/similar")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"recommendations":[]`)
	})

	t.Run("cached mode serves materialized rows", func(t *testing.T) {
		stub := &stubRecommender{cached: []models.RankedBook{
			{BookID: 4, Score: 0.7, Reason: models.ReasonContent},
		}}
		router := newTestRouter(stub)

		w := performRequest(router, "/api/v1/books/1/similar?cached=true")
		require.Equal(t, http.StatusOK, w.Code)

		var resp models.SimilarBooksResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Recommendations, 1)
		assert.Equal(t, int64(4), resp.Recommendations[0].BookID)
		assert.Equal(t, 1, stub.cachedCalls)
		assert.Zero(t, stub.lastSeed)
	})

	t.Run("custom limit is forwarded", func(t *testing.T) {
		stub := &stubRecommender{}
		router := newTestRouter(stub)

		w := performRequest(router, "/api/v1/books/1/similar?limit=20")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 20, stub.lastLimit)
	})

	t.Run("non-numeric id is rejected", func(t *testing.T) {
		router := newTestRouter(&stubRecommender{})

		w := performRequest(router, "/api/v1/books/abc/similar")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_BOOK_ID")
	})

	t.Run("out-of-range limit is rejected", func(t *testing.T) {
		router := newTestRouter(&stubRecommender{})

		for _, limit := range []string{"0", "101", "abc"} {
			w := performRequest(router, "/api/v1/books/1/similar?limit="+limit)
			assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)
			assert.Contains(t, w.Body.String(), "INVALID_LIMIT")
		}
	})

	t.Run("engine failure maps to 500", func(t *testing.T) {
		router := newTestRouter(&stubRecommender{err: errors.New("boom")})

		w := performRequest(router, "/api/v1/books/1/similar")
		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "RECOMMENDATION_FAILED")
	})
}

func TestUserRecommendations(t *testing.T) {
	t.Run("returns ranked books with defaults", func(t *testing.T) {
		stub := &stubRecommender{recs: []models.RankedBook{
			{BookID: 7, Score: 0.6, Reason: models.ReasonHybrid},
		}}
		router := newTestRouter(stub)

		w := performRequest(router, "/api/v1/users/3/recommendations")
		require.Equal(t, http.StatusOK, w.Code)

		var resp models.UserRecommendationsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(3), resp.UserID)
		assert.Equal(t, models.PreferenceBalanced, resp.Preference)
		require.Len(t, resp.Recommendations, 1)

		require.NotNil(t, stub.lastRequest)
		require.NotNil(t, stub.lastRequest.UserID)
		assert.Equal(t, int64(3), *stub.lastRequest.UserID)
		assert.Equal(t, 10, stub.lastRequest.Limit)
		assert.Equal(t, models.PreferenceBalanced, stub.lastRequest.Preference)
	})

	t.Run("preference query is forwarded", func(t *testing.T) {
		stub := &stubRecommender{}
		router := newTestRouter(stub)

		w := performRequest(router, "/api/v1/users/3/recommendations?preference=niche")
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, stub.lastRequest)
		assert.Equal(t, models.PreferenceNiche, stub.lastRequest.Preference)
	})

	t.Run("cached mode serves materialized rows", func(t *testing.T) {
		stub := &stubRecommender{cached: []models.RankedBook{
			{BookID: 9, Score: 0.8, Reason: models.ReasonContent},
			{BookID: 7, Score: 0.5, Reason: models.ReasonHybrid},
		}}
		router := newTestRouter(stub)

		w := performRequest(router, "/api/v1/users/3/recommendations?cached=true&limit=1")
		require.Equal(t, http.StatusOK, w.Code)

		var resp models.UserRecommendationsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Recommendations, 1)
		assert.Equal(t, int64(9), resp.Recommendations[0].BookID)
		assert.Equal(t, 1, stub.cachedCalls)
		assert.Nil(t, stub.lastRequest)
	})

	t.Run("non-numeric id is rejected", func(t *testing.T) {
		router := newTestRouter(&stubRecommender{})

		w := performRequest(router, "/api/v1/users/abc/recommendations")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_USER_ID")
	})

	t.Run("engine failure maps to 500", func(t *testing.T) {
		router := newTestRouter(&stubRecommender{err: errors.New("boom")})

		w := performRequest(router, "/api/v1/users/3/recommendations")
		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "RECOMMENDATION_FAILED")
	})
}
