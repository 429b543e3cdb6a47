package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/pkg/cache"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

type stubAggregator struct {
	calls    int
	branchID string
	from, to time.Time
	rows     []models.RevenueRow
}

func (s *stubAggregator) Aggregate(ctx context.Context, branchID string, from, to time.Time) ([]models.RevenueRow, error) {
	s.calls++
	s.branchID, s.from, s.to = branchID, from, to
	return s.rows, nil
}

func newRevenueFixture() (*RevenueService, *stubAggregator, *memoryCache) {
	agg := &stubAggregator{rows: []models.RevenueRow{
		{Kind: models.PaymentKindCourseFee, EntryType: models.EntryTypePayment, Total: dec("3000"), Entries: 3},
		{Kind: models.PaymentKindCafeteria, EntryType: models.EntryTypePayment, Total: dec("150.50"), Entries: 12},
		{Kind: models.PaymentKindCourseFee, EntryType: models.EntryTypeRefund, Total: dec("500"), Entries: 1},
		{Kind: models.PaymentKindOther, EntryType: models.EntryTypeExpense, Total: dec("1200"), Entries: 2},
	}}
	mem := newMemoryCache()
	cacheSvc := NewCacheService(mem, nil, time.Minute, nil, true)
	return NewRevenueService(agg, cacheSvc, RevenueOptions{CacheTTL: time.Minute, Workers: 1}, nil, nil), agg, mem
}

func TestRevenueSummaryAggregatesAndCaches(t *testing.T) {
	svc, agg, _ := newRevenueFixture()
	query := dto.RevenueQuery{From: "2026-03-01", To: "2026-03-31"}

	summary, err := svc.Summary(context.Background(), adminScope, query)
	require.NoError(t, err)
	assert.True(t, summary.Income.Equal(dec("3150.50")))
	assert.True(t, summary.Refunds.Equal(dec("500")))
	assert.True(t, summary.Expenses.Equal(dec("1200")))
	assert.True(t, summary.Net.Equal(dec("1450.50")))
	assert.False(t, summary.Cached)
	assert.Equal(t, "branch-1", agg.branchID)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), agg.to, "end date is inclusive")

	again, err := svc.Summary(context.Background(), adminScope, query)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.True(t, again.Net.Equal(summary.Net))
	assert.Equal(t, 1, agg.calls)
}

func TestRevenueSummaryRejectsBadPeriods(t *testing.T) {
	svc, agg, _ := newRevenueFixture()

	_, err := svc.Summary(context.Background(), adminScope, dto.RevenueQuery{From: "2026-04-01", To: "2026-03-01"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.Summary(context.Background(), adminScope, dto.RevenueQuery{From: "March", To: "2026-03-01"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
	assert.Zero(t, agg.calls)
}

func TestInvalidateBranchInlineWhenQueueIdle(t *testing.T) {
	svc, _, mem := newRevenueFixture()
	ctx := context.Background()
	_, err := svc.Summary(ctx, adminScope, dto.RevenueQuery{From: "2026-03-01", To: "2026-03-31"})
	require.NoError(t, err)
	_, err = svc.Summary(ctx, superScope, dto.RevenueQuery{From: "2026-03-01", To: "2026-03-31"})
	require.NoError(t, err)
	_, err = svc.Summary(ctx, otherBranch, dto.RevenueQuery{From: "2026-03-01", To: "2026-03-31"})
	require.NoError(t, err)
	require.Len(t, mem.entries, 3)

	svc.InvalidateBranch("branch-1")

	_, branchCached := mem.entries[cache.Key("revenue", "branch-1", "2026-03-01", "2026-03-31")]
	_, allCached := mem.entries[cache.Key("revenue", "", "2026-03-01", "2026-03-31")]
	_, otherCached := mem.entries[cache.Key("revenue", "branch-2", "2026-03-01", "2026-03-31")]
	assert.False(t, branchCached)
	assert.False(t, allCached)
	assert.True(t, otherCached)
}

func TestInvalidateBranchThroughQueue(t *testing.T) {
	svc, _, mem := newRevenueFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	_, err := svc.Summary(ctx, adminScope, dto.RevenueQuery{From: "2026-03-01", To: "2026-03-31"})
	require.NoError(t, err)

	svc.InvalidateBranch("branch-1")
	svc.InvalidateBranch("branch-1")

	assert.Eventually(t, func() bool {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		return len(mem.entries) == 0
	}, time.Second, 10*time.Millisecond)
}
