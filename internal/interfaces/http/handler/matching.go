package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appmatching "github.com/storelink/backend/internal/application/matching"
	"github.com/storelink/backend/internal/domain/matching"
	"github.com/storelink/backend/internal/domain/shared"
	"github.com/storelink/backend/internal/infrastructure/telemetry"
	"github.com/storelink/backend/internal/interfaces/http/dto"
)

// MatchingService is the application surface the handler depends on
type MatchingService interface {
	GetStats(ctx context.Context) (*appmatching.StatsResponse, error)
	ListUnmapped(ctx context.Context, filter shared.Filter) (*shared.Paginated[appmatching.OrderResponse], error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*appmatching.OrderResponse, error)
	SearchCustomers(ctx context.Context, query string, limit int) ([]appmatching.CustomerResponse, error)
	ManualMap(ctx context.Context, req appmatching.ManualMapRequest, operator string) (*appmatching.MappingAppliedResponse, error)
	Unmap(ctx context.Context, orderID uuid.UUID, operator string) error
	RunAutoMap(ctx context.Context) (*matching.RunReport, error)
	RunBatchSync(ctx context.Context) (*matching.RunReport, error)
}

// MatchingHandler handles order-customer matching API endpoints
type MatchingHandler struct {
	BaseHandler
	service MatchingService
	metrics *telemetry.MatchingMetrics
}

// NewMatchingHandler creates a new MatchingHandler
func NewMatchingHandler(service MatchingService, metrics *telemetry.MatchingMetrics) *MatchingHandler {
	return &MatchingHandler{
		service: service,
		metrics: metrics,
	}
}

// RegisterRoutes registers all matching routes
func (h *MatchingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/matching")
	{
		group.GET("/stats", h.GetStats)
		group.GET("/unmapped", h.ListUnmapped)
		group.GET("/orders/:id", h.GetOrder)
		group.GET("/customers/search", h.SearchCustomers)
		group.POST("/manual-map", h.ManualMap)
		group.DELETE("/orders/:id/mapping", h.Unmap)
		group.POST("/auto-map", h.RunAutoMap)
		group.POST("/batch-sync", h.RunBatchSync)
	}
}

// GetStats returns mapping coverage statistics
func (h *MatchingHandler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, stats)
}

// ListUnmapped returns unmapped orders, oldest first
func (h *MatchingHandler) ListUnmapped(c *gin.Context) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.service.ListUnmapped(c.Request.Context(), shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetOrder returns one order with live match candidates when unmapped
func (h *MatchingHandler) GetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	resp, err := h.service.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, resp)
}

// SearchCustomers searches customers by phone, name, or email
func (h *MatchingHandler) SearchCustomers(c *gin.Context) {
	query := c.Query("q")
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.BadRequest(c, "Invalid limit")
			return
		}
		limit = parsed
	}

	results, err := h.service.SearchCustomers(c.Request.Context(), query, limit)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, results)
}

// ManualMapRequest represents a manual mapping request
type ManualMapRequest struct {
	OrderID    uuid.UUID `json:"order_id" binding:"required"`
	CustomerID uuid.UUID `json:"customer_id" binding:"required"`
}

// ManualMap maps an order to a customer by operator decision
func (h *MatchingHandler) ManualMap(c *gin.Context) {
	var req ManualMapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	applied, err := h.service.ManualMap(c.Request.Context(), appmatching.ManualMapRequest{
		OrderID:    req.OrderID,
		CustomerID: req.CustomerID,
	}, getOperator(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, applied)
}

// Unmap removes an order's mapping and reverses its aggregate contribution
func (h *MatchingHandler) Unmap(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	if err := h.service.Unmap(c.Request.Context(), orderID, getOperator(c)); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.NoContent(c)
}

// RunAutoMap sweeps unmapped orders, resuming from the saved cursor
func (h *MatchingHandler) RunAutoMap(c *gin.Context) {
	report, err := h.service.RunAutoMap(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.metrics.RecordRun(c.Request.Context(), report)
	h.Success(c, report)
}

// RunBatchSync sweeps all unmapped orders from the beginning
func (h *MatchingHandler) RunBatchSync(c *gin.Context) {
	report, err := h.service.RunBatchSync(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.metrics.RecordRun(c.Request.Context(), report)
	h.Success(c, report)
}
