package posts

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for post drafting.
type Handler struct {
	service *Service
}

// NewHandler creates a new post handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up post routes under an organization scope.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orgs/:orgId/posts", h.Draft)
	r.GET("/orgs/:orgId/posts", h.List)
	r.GET("/orgs/:orgId/posts/:id", h.Get)
}

// DraftPostRequest is the body for POST /v1/orgs/:orgId/posts.
type DraftPostRequest struct {
	Platform      string     `json:"platform" binding:"required"`
	Brief         string     `json:"brief" binding:"required"`
	ImageAssetIDs []string   `json:"imageAssetIds" binding:"required"`
	Staged        bool       `json:"virtuallyStaged"`
	ScheduledFor  *time.Time `json:"scheduledFor"`
}

// Draft handles POST /v1/orgs/:orgId/posts
func (h *Handler) Draft(c *gin.Context) {
	var req DraftPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	post, err := h.service.Draft(c.Request.Context(), c.Param("orgId"), DraftRequest{
		Platform:      Platform(req.Platform),
		Brief:         req.Brief,
		ImageAssetIDs: req.ImageAssetIDs,
		Staged:        req.Staged,
		ScheduledFor:  req.ScheduledFor,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPlatform):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_platform",
				"message": "Platform must be instagram, facebook or linkedin",
			})
		case errors.Is(err, ErrNoImages):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "no_images",
				"message": "At least one image asset is required",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"post": post})
}

// Get handles GET /v1/orgs/:orgId/posts/:id
func (h *Handler) Get(c *gin.Context) {
	post, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil || post.OrgID != c.Param("orgId") {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Post not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post})
}

// List handles GET /v1/orgs/:orgId/posts
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

	list, err := h.service.ListByOrg(c.Request.Context(), c.Param("orgId"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts": list,
		"count": len(list),
	})
}
