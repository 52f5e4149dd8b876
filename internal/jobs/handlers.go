package jobs

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/recontent/recontent/internal/quota"
)

// Handler provides HTTP endpoints for job submission and inspection.
type Handler struct {
	gate *Gate
}

// NewHandler creates a new job handler.
func NewHandler(gate *Gate) *Handler {
	return &Handler{gate: gate}
}

// RegisterRoutes sets up job routes under an organization scope.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orgs/:orgId/jobs", h.Submit)
	r.GET("/orgs/:orgId/jobs", h.List)
	r.GET("/orgs/:orgId/jobs/:id", h.Get)
	r.GET("/orgs/:orgId/quota", h.Quota)
}

// SubmitJobRequest is the body for POST /v1/orgs/:orgId/jobs.
type SubmitJobRequest struct {
	Type            string `json:"type" binding:"required"`
	HeadshotAssetID string `json:"headshotAssetId"`
	RoomAssetID     string `json:"roomAssetId" binding:"required"`
	Brief           string `json:"brief"`
	VirtuallyStaged bool   `json:"virtuallyStaged"`
}

// Submit handles POST /v1/orgs/:orgId/jobs
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	job, window, err := h.gate.Submit(c.Request.Context(), c.Param("orgId"), SubmitRequest{
		Type:            Type(req.Type),
		HeadshotAssetID: req.HeadshotAssetID,
		RoomAssetID:     req.RoomAssetID,
		Brief:           req.Brief,
		VirtuallyStaged: req.VirtuallyStaged,
	})
	if err != nil {
		h.submitError(c, window, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"job": job, "quota": window})
}

// submitError maps gate failures to distinct response shapes so clients
// can tell a billing problem from an exhausted quota.
func (h *Handler) submitError(c *gin.Context, window *quota.Window, err error) {
	switch {
	case errors.Is(err, quota.ErrOrgNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Organization not found",
		})
	case errors.Is(err, quota.ErrOrgSuspended):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":   "org_suspended",
			"message": "Organization is suspended for non-payment",
		})
	case errors.Is(err, quota.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":   "quota_exceeded",
			"message": "Weekly job limit reached",
			"quota":   window,
		})
	case errors.Is(err, ErrInvalidType), errors.Is(err, ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
	case errors.Is(err, ErrAssetWrongOrg):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "Input asset belongs to another organization",
		})
	case errors.Is(err, ErrAssetNotReady):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "asset_not_ready",
			"message": err.Error(),
		})
	case errors.Is(err, ErrPublishFailed):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "queue_unavailable",
			"message": "Job could not be enqueued; quota was not charged",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}

// Get handles GET /v1/orgs/:orgId/jobs/:id
func (h *Handler) Get(c *gin.Context) {
	job, err := h.gate.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Job not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	if job.OrgID != c.Param("orgId") {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Job not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job": job})
}

// List handles GET /v1/orgs/:orgId/jobs
func (h *Handler) List(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 200 {
				limit = 200
			}
		}
	}

	list, err := h.gate.ListByOrg(c.Request.Context(), c.Param("orgId"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  list,
		"count": len(list),
	})
}

// Quota handles GET /v1/orgs/:orgId/quota
func (h *Handler) Quota(c *gin.Context) {
	window, err := h.gate.Usage(c.Request.Context(), c.Param("orgId"))
	if err != nil {
		if errors.Is(err, quota.ErrWindowNotFound) {
			c.JSON(http.StatusOK, gin.H{"quota": nil})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"quota": window})
}
