package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/pkg/cache"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
	"github.com/noah-isme/academy-api/pkg/jobs"
)

const (
	revenueCacheNamespace = "revenue"
	revenueInvalidateJob  = "revenue.invalidate"
)

type revenueAggregator interface {
	Aggregate(ctx context.Context, branchID string, from, to time.Time) ([]models.RevenueRow, error)
}

type revenueCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// RevenueOptions tunes summary caching and the invalidation worker pool.
type RevenueOptions struct {
	CacheTTL time.Duration
	Workers  int
}

// RevenueService derives income, refunds and expenses from the payment journal.
type RevenueService struct {
	journal   revenueAggregator
	cache     revenueCache
	queue     *jobs.Queue
	ttl       time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRevenueService constructs the revenue reporting service along with its invalidation queue.
func NewRevenueService(journal revenueAggregator, cacheSvc revenueCache, opts RevenueOptions, validate *validator.Validate, logger *zap.Logger) *RevenueService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RevenueService{
		journal:   journal,
		cache:     cacheSvc,
		ttl:       opts.CacheTTL,
		validator: validate,
		logger:    logger,
	}
	svc.queue = jobs.NewQueue("revenue-invalidation", svc.handleInvalidation, jobs.QueueConfig{
		Workers:    opts.Workers,
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
		Logger:     logger,
	})
	return svc
}

// Start launches the invalidation workers.
func (s *RevenueService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the invalidation workers.
func (s *RevenueService) Stop() {
	s.queue.Stop()
}

// Summary aggregates the journal between two calendar dates, both inclusive.
func (s *RevenueService) Summary(ctx context.Context, scope models.Scope, query dto.RevenueQuery) (*models.RevenueSummary, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, validationError(err, "invalid revenue period")
	}
	from, err := time.Parse(sessionDateLayout, query.From)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must be formatted as YYYY-MM-DD")
	}
	to, err := time.Parse(sessionDateLayout, query.To)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must be formatted as YYYY-MM-DD")
	}
	if from.After(to) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}

	key := cache.Key(revenueCacheNamespace, scope.BranchID, query.From, query.To)
	var cached models.RevenueSummary
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		cached.Cached = true
		return &cached, nil
	}

	rows, err := s.journal.Aggregate(ctx, scope.BranchID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to aggregate revenue")
	}
	if rows == nil {
		rows = []models.RevenueRow{}
	}
	summary := &models.RevenueSummary{BranchID: scope.BranchID, From: from, To: to}
	summary.Summarize(rows)

	if err := s.cache.Set(ctx, key, summary, s.ttl); err != nil {
		s.logger.Debug("revenue summary not cached", zap.String("key", key), zap.Error(err))
	}
	return summary, nil
}

// InvalidateBranch schedules removal of cached summaries that include the branch. When the queue
// cannot take the job the cache is cleared inline.
func (s *RevenueService) InvalidateBranch(branchID string) {
	job := jobs.Job{Key: revenueCacheNamespace + ":" + branchID, Type: revenueInvalidateJob, Payload: branchID}
	if _, err := s.queue.Enqueue(job); err != nil {
		s.logger.Debug("revenue invalidation queued inline", zap.String("branch_id", branchID), zap.Error(err))
		if err := s.invalidate(context.Background(), branchID); err != nil {
			s.logger.Warn("revenue invalidation failed", zap.String("branch_id", branchID), zap.Error(err))
		}
	}
}

func (s *RevenueService) handleInvalidation(ctx context.Context, job jobs.Job) error {
	branchID, _ := job.Payload.(string)
	return s.invalidate(ctx, branchID)
}

func (s *RevenueService) invalidate(ctx context.Context, branchID string) error {
	if branchID != "" {
		if err := s.cache.Invalidate(ctx, cache.Key(revenueCacheNamespace, branchID, "*")); err != nil {
			return err
		}
	}
	return s.cache.Invalidate(ctx, cache.Key(revenueCacheNamespace, "", "*"))
}
