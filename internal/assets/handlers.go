package assets

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for asset operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new asset handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up asset routes under an organization scope.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orgs/:orgId/assets/upload-url", h.RequestUpload)
	r.POST("/orgs/:orgId/assets/:id/confirm", h.ConfirmUpload)
	r.GET("/orgs/:orgId/assets/:id/download-url", h.DownloadURL)
	r.GET("/orgs/:orgId/assets", h.List)
}

// UploadRequest is the body for POST /v1/orgs/:orgId/assets/upload-url.
type UploadRequest struct {
	Kind        string `json:"kind" binding:"required"`
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
}

// RequestUpload handles POST /v1/orgs/:orgId/assets/upload-url
func (h *Handler) RequestUpload(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	asset, url, err := h.service.RequestUpload(c.Request.Context(),
		c.Param("orgId"), Kind(req.Kind), req.Filename, req.ContentType)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidKind):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_kind",
				"message": "Unknown or non-uploadable asset kind",
			})
		case errors.Is(err, ErrInvalidContentType):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_content_type",
				"message": "Only JPEG, PNG and WebP images are accepted",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"asset": asset, "upload": url})
}

// ConfirmUpload handles POST /v1/orgs/:orgId/assets/:id/confirm
func (h *Handler) ConfirmUpload(c *gin.Context) {
	asset, err := h.service.ConfirmUpload(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrAssetNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Asset not found",
			})
		case errors.Is(err, ErrNotUploaded):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "not_uploaded",
				"message": "Object has not been uploaded yet",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"asset": asset})
}

// DownloadURL handles GET /v1/orgs/:orgId/assets/:id/download-url
func (h *Handler) DownloadURL(c *gin.Context) {
	url, err := h.service.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrAssetNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Asset not found",
			})
		case errors.Is(err, ErrNotUploaded):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "not_uploaded",
				"message": "Object has not been uploaded yet",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"download": url})
}

// List handles GET /v1/orgs/:orgId/assets
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
		"assets": list,
		"count":  len(list),
	})
}
