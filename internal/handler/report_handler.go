package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/pkg/response"
)

type revenueReporter interface {
	Summary(ctx context.Context, scope models.Scope, query dto.RevenueQuery) (*models.RevenueSummary, error)
}

// ReportHandler exposes reporting endpoints.
type ReportHandler struct {
	revenue revenueReporter
}

// NewReportHandler constructs handler.
func NewReportHandler(revenue revenueReporter) *ReportHandler {
	return &ReportHandler{revenue: revenue}
}

// Revenue godoc
// @Summary Revenue summary derived from the payment journal
// @Tags Reports
// @Produce json
// @Param from query string true "First day (YYYY-MM-DD)"
// @Param to query string true "Last day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/revenue [get]
func (h *ReportHandler) Revenue(c *gin.Context) {
	scope, err := scopeFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.RevenueQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	summary, err := h.revenue.Summary(c.Request.Context(), scope, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{"cached": summary.Cached})
}
