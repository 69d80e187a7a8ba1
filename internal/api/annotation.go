package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/marginalia/internal/middleware"
	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/repository"
	"go.uber.org/zap"
)

// ClientIDHeader identifies the websocket client making an API call, so
// the resulting notification is not echoed back to it.
const ClientIDHeader = "X-Client-Id"

// Notifier delivers annotation notifications to connected clients.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type AnnotationHandler struct {
	repo     repository.AnnotationRepository
	notifier Notifier
	logger   *zap.Logger
}

func NewAnnotationHandler(repo repository.AnnotationRepository, notifier Notifier, logger *zap.Logger) *AnnotationHandler {
	return &AnnotationHandler{repo: repo, notifier: notifier, logger: logger}
}

func (h *AnnotationHandler) notify(c *gin.Context, action string, anns ...models.Annotation) {
	n := models.Notification{
		Type:           models.MessageAnnotationNotification,
		Payload:        anns,
		Options:        models.NotificationOptions{Action: action},
		SourceClientID: c.GetHeader(ClientIDHeader),
	}
	if err := h.notifier.Notify(c.Request.Context(), n); err != nil {
		// The change is stored; clients catch up on their next fetch.
		h.logger.Warn("failed to send notification", zap.String("action", action), zap.Error(err))
	}
}

type createAnnotationRequest struct {
	Group       string             `json:"group" binding:"required"`
	URI         string             `json:"uri" binding:"required"`
	Text        string             `json:"text"`
	Tags        []string           `json:"tags"`
	Target      []models.Target    `json:"target"`
	References  []string           `json:"references"`
	Permissions models.Permissions `json:"permissions"`
	Document    models.Document    `json:"document"`
	Mentions    []models.Mention   `json:"mentions"`
	UserInfo    *models.UserInfo   `json:"user_info"`
}

// Create handles POST /v1/annotations
func (h *AnnotationHandler) Create(c *gin.Context) {
	var req createAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ann := models.Annotation{
		User:        middleware.GetUserID(c),
		UserInfo:    req.UserInfo,
		URI:         req.URI,
		Group:       req.Group,
		Text:        req.Text,
		Tags:        req.Tags,
		Target:      req.Target,
		References:  req.References,
		Permissions: req.Permissions,
		Document:    req.Document,
		Mentions:    req.Mentions,
	}
	if ann.Tags == nil {
		ann.Tags = []string{}
	}

	created, err := h.repo.Create(c.Request.Context(), ann)
	if err != nil {
		h.logger.Error("failed to create annotation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create annotation"})
		return
	}
	h.notify(c, models.ActionCreate, *created)
	c.JSON(http.StatusCreated, created)
}

// List handles GET /v1/annotations?group=<id>&limit=200. Total counts the
// whole group, so it can exceed the number of rows returned.
func (h *AnnotationHandler) List(c *gin.Context) {
	group := c.Query("group")
	if group == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing 'group' parameter"})
		return
	}

	limit := 200
	if l := c.Query("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
		if limit > 1000 {
			limit = 1000
		}
	}

	anns, err := h.repo.ListByGroup(c.Request.Context(), group, limit)
	if err != nil {
		h.logger.Error("failed to list annotations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list annotations"})
		return
	}
	total, err := h.repo.CountByGroup(c.Request.Context(), group)
	if err != nil {
		h.logger.Error("failed to count annotations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list annotations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "rows": anns})
}

type updateAnnotationRequest struct {
	Text        *string             `json:"text"`
	Tags        *[]string           `json:"tags"`
	Group       *string             `json:"group"`
	Target      *[]models.Target    `json:"target"`
	Mentions    *[]models.Mention   `json:"mentions"`
	Permissions *models.Permissions `json:"permissions"`
}

// loadOwned fetches the annotation named in the path and checks the caller
// owns it. It writes the error response itself and returns nil on failure.
func (h *AnnotationHandler) loadOwned(c *gin.Context) *models.Annotation {
	ann, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("failed to get annotation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get annotation"})
		return nil
	}
	if ann == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "annotation not found"})
		return nil
	}
	if ann.User != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the annotation's author"})
		return nil
	}
	return ann
}

// Update handles PATCH /v1/annotations/:id
func (h *AnnotationHandler) Update(c *gin.Context) {
	var req updateAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ann := h.loadOwned(c)
	if ann == nil {
		return
	}

	if req.Text != nil {
		ann.Text = *req.Text
	}
	if req.Tags != nil {
		ann.Tags = *req.Tags
	}
	if req.Group != nil {
		ann.Group = *req.Group
	}
	if req.Target != nil {
		ann.Target = *req.Target
	}
	if req.Mentions != nil {
		ann.Mentions = *req.Mentions
	}
	if req.Permissions != nil {
		ann.Permissions = *req.Permissions
	}

	updated, err := h.repo.Update(c.Request.Context(), *ann)
	if err != nil {
		h.logger.Error("failed to update annotation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update annotation"})
		return
	}
	if updated == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "annotation not found"})
		return
	}
	h.notify(c, models.ActionUpdate, *updated)
	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /v1/annotations/:id
func (h *AnnotationHandler) Delete(c *gin.Context) {
	ann := h.loadOwned(c)
	if ann == nil {
		return
	}
	found, err := h.repo.Delete(c.Request.Context(), ann.ID)
	if err != nil {
		h.logger.Error("failed to delete annotation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete annotation"})
		return
	}
	if found {
		h.notify(c, models.ActionDelete, models.Annotation{ID: ann.ID})
	}
	c.JSON(http.StatusOK, gin.H{"id": ann.ID, "deleted": true})
}
