package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
)

type stubRevenue struct {
	summary   *models.RevenueSummary
	err       error
	lastQuery dto.RevenueQuery
}

func (s *stubRevenue) Summary(_ context.Context, _ models.Scope, query dto.RevenueQuery) (*models.RevenueSummary, error) {
	s.lastQuery = query
	return s.summary, s.err
}

func TestReportHandlerRevenue(t *testing.T) {
	stub := &stubRevenue{summary: &models.RevenueSummary{BranchID: "branch-1", Net: decimal.NewFromInt(750), Cached: true}}
	h := NewReportHandler(stub)
	r := newRouter(accountantClaims)
	r.GET("/reports/revenue", h.Revenue)

	rec, env := doRequest(t, r, http.MethodGet, "/reports/revenue?from=2026-03-01&to=2026-03-31", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-03-01", stub.lastQuery.From)
	assert.Equal(t, "2026-03-31", stub.lastQuery.To)
	assert.Equal(t, true, env.Meta["cached"])
	var summary models.RevenueSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.True(t, summary.Net.Equal(decimal.NewFromInt(750)))
}

func TestReportHandlerRevenueRequiresClaims(t *testing.T) {
	h := NewReportHandler(&stubRevenue{})
	r := newRouter(nil)
	r.GET("/reports/revenue", h.Revenue)

	rec, _ := doRequest(t, r, http.MethodGet, "/reports/revenue?from=2026-03-01&to=2026-03-31", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
