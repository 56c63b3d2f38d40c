package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shelfrank/internal/config"
	"github.com/temcen/shelfrank/internal/messaging"
	"github.com/temcen/shelfrank/internal/metrics"
	"github.com/temcen/shelfrank/pkg/models"
)

// userPhaseShare is the slice of the progress range occupied by the
// user-refresh phase; the book phase covers the remainder.
const userPhaseShare = 0.8

// TxBeginner opens the transaction that scopes all cache writes of one
// refresh run. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RefreshSummary reports what one refresh run accomplished.
type RefreshSummary struct {
	RunID        uuid.UUID
	UsersUpdated int
	UsersFailed  int
	BooksUpdated int
	BooksFailed  int
	Duration     time.Duration
}

// RefreshService recomputes and persists recommendations for every user
// and every book. Phases run strictly sequentially, one entity at a time;
// all cache writes commit together at the end of the run. A failure on one
// entity is logged and skipped, a failure during setup aborts the run and
// discards any uncommitted writes.
type RefreshService struct {
	pool        TxBeginner
	catalog     CatalogStore
	behavior    BehaviorStore
	recommender Recommender
	lock        RunLock
	bus         *messaging.MessageBus
	cfg         config.RefreshConfig
	logger      *logrus.Logger

	// OnProgress, when set, receives the run's progress fraction in [0, 1]
	// after every processed entity.
	OnProgress func(float64)
}

func NewRefreshService(
	pool TxBeginner,
	catalog CatalogStore,
	behavior BehaviorStore,
	recommender Recommender,
	lock RunLock,
	bus *messaging.MessageBus,
	cfg config.RefreshConfig,
	logger *logrus.Logger,
) *RefreshService {
	return &RefreshService{
		pool:        pool,
		catalog:     catalog,
		behavior:    behavior,
		recommender: recommender,
		lock:        lock,
		bus:         bus,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run executes one full refresh. Returns ErrRefreshInProgress when another
// run holds the lock.
func (s *RefreshService) Run(ctx context.Context) (*RefreshSummary, error) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire refresh lock: %w", err)
		}
		if !acquired {
			return nil, ErrRefreshInProgress
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WithError(err).Warn("Failed to release refresh lock")
			}
		}()
	}

	summary := &RefreshSummary{RunID: uuid.New()}
	start := time.Now()
	log := s.logger.WithField("run_id", summary.RunID)
	log.Info("Starting recommendation refresh")

	s.reportProgress(0)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		metrics.RefreshRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to begin refresh transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	users, err := s.behavior.Users(ctx)
	if err != nil {
		metrics.RefreshRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("refresh setup: %w", err)
	}

	for i, user := range users {
		if user.ID > 0 {
			s.refreshUser(ctx, tx, user.ID, log, summary)
		}
		s.reportProgress(float64(i+1) / float64(len(users)) * userPhaseShare)
	}

	books, err := s.catalog.AllBooks(ctx)
	if err != nil {
		metrics.RefreshRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("refresh setup: %w", err)
	}

	for i, book := range books {
		s.refreshBook(ctx, tx, book.ID, log, summary)
		s.reportProgress(userPhaseShare + float64(i+1)/float64(len(books))*(1-userPhaseShare))
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.RefreshRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to commit refresh: %w", err)
	}
	committed = true

	s.reportProgress(1.0)
	summary.Duration = time.Since(start)
	metrics.RefreshRuns.WithLabelValues("completed").Inc()
	metrics.RefreshLastCompleted.SetToCurrentTime()

	s.publishCompleted(ctx, summary, log)

	log.WithFields(logrus.Fields{
		"users_updated": summary.UsersUpdated,
		"users_failed":  summary.UsersFailed,
		"books_updated": summary.BooksUpdated,
		"books_failed":  summary.BooksFailed,
		"duration":      summary.Duration,
	}).Info("Recommendation refresh completed")

	return summary, nil
}

// refreshUser recomputes one user's recommendation set and replaces the
// cached rows when the recompute produced output. An empty or failed
// recompute leaves the prior rows untouched.
func (s *RefreshService) refreshUser(ctx context.Context, tx pgx.Tx, userID int64, log *logrus.Entry, summary *RefreshSummary) {
	preference, err := s.behavior.Preference(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Failed to load preference, skipping user")
		summary.UsersFailed++
		metrics.RefreshEntityFailures.WithLabelValues("users").Inc()
		return
	}
	if preference == "" {
		preference = models.PreferenceBalanced
	}

	recommendations, err := s.recommender.Recommend(ctx, HybridRequest{
		UserID:     &userID,
		Limit:      s.cfg.UserResultCount,
		Preference: preference,
	})
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Failed to recompute recommendations, skipping user")
		summary.UsersFailed++
		metrics.RefreshEntityFailures.WithLabelValues("users").Inc()
		return
	}
	if len(recommendations) == 0 {
		return
	}

	if err := s.behavior.ReplaceUserRecommendations(ctx, tx, userID, recommendations); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Failed to replace cached recommendations, skipping user")
		summary.UsersFailed++
		metrics.RefreshEntityFailures.WithLabelValues("users").Inc()
		return
	}

	summary.UsersUpdated++
}

func (s *RefreshService) refreshBook(ctx context.Context, tx pgx.Tx, bookID int64, log *logrus.Entry, summary *RefreshSummary) {
	similar, err := s.recommender.RecommendByContent(ctx, bookID, s.cfg.BookResultCount, nil)
	if err != nil {
		log.WithError(err).WithField("book_id", bookID).Error("Failed to recompute similar books, skipping book")
		summary.BooksFailed++
		metrics.RefreshEntityFailures.WithLabelValues("books").Inc()
		return
	}
	if len(similar) == 0 {
		return
	}

	if err := s.behavior.ReplaceBookRecommendations(ctx, tx, bookID, similar); err != nil {
		log.WithError(err).WithField("book_id", bookID).Error("Failed to replace cached similar books, skipping book")
		summary.BooksFailed++
		metrics.RefreshEntityFailures.WithLabelValues("books").Inc()
		return
	}

	summary.BooksUpdated++
}

func (s *RefreshService) reportProgress(fraction float64) {
	metrics.RefreshProgress.Set(fraction)
	if s.OnProgress != nil {
		s.OnProgress(fraction)
	}
}

func (s *RefreshService) publishCompleted(ctx context.Context, summary *RefreshSummary, log *logrus.Entry) {
	if s.bus == nil {
		return
	}

	event := messaging.RefreshCompletedEvent{
		RunID:        summary.RunID,
		UsersUpdated: summary.UsersUpdated,
		UsersFailed:  summary.UsersFailed,
		BooksUpdated: summary.BooksUpdated,
		BooksFailed:  summary.BooksFailed,
		Duration:     summary.Duration,
		CompletedAt:  time.Now(),
	}

	if err := s.bus.PublishRefreshCompleted(ctx, event); err != nil {
		log.WithError(err).Warn("Failed to publish refresh event")
	}
}
