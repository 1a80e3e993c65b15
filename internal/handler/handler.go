// Package handler exposes the generation service over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medsim-server/internal/model"
	"medsim-server/internal/service"
)

// maxUploadBytes caps the image payload accepted for analysis.
const maxUploadBytes = 10 << 20

// APIError is the standardized error response body.
type APIError struct {
	Message string `json:"message"`
}

// generateRequest is the shared request body for all generate endpoints.
type generateRequest struct {
	Topic      string `json:"topic" binding:"required"`
	Language   string `json:"language"`
	Count      int    `json:"count"`
	Difficulty string `json:"difficulty"`
	Subtype    string `json:"subtype"`
}

// Handler routes HTTP requests to the generation service.
type Handler struct {
	service  *service.Service
	logger   *zap.Logger
	wsHandle gin.HandlerFunc
	degraded bool
}

// New creates a Handler. wsHandle serves the websocket update feed;
// degraded marks the health payload when no backend credential is present.
func New(svc *service.Service, logger *zap.Logger, wsHandle gin.HandlerFunc, degraded bool) *Handler {
	return &Handler{
		service:  svc,
		logger:   logger.Named("handler"),
		wsHandle: wsHandle,
		degraded: degraded,
	}
}

// RegisterRoutes mounts all API routes on the router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		ws := api.Group("/workspaces")
		{
			ws.POST("/simulation/generate", h.generateSimulation)
			ws.POST("/protocol/generate", h.generateProtocol)
			ws.POST("/gallery/generate", h.generateGallery)
			ws.POST("/quiz/generate", h.generateQuiz)
			ws.GET("/:kind", h.getWorkspace)
		}
		api.POST("/analysis", h.analyzeImage)
		api.GET("/chat", h.getChat)
	}
	r.GET("/ws", h.wsHandle)
	r.GET("/health", h.health)
	r.HEAD("/health", h.health)
}

func (h *Handler) health(c *gin.Context) {
	if h.degraded {
		c.JSON(http.StatusOK, gin.H{"status": "degraded", "reason": "backend credential is not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) generateSimulation(c *gin.Context) {
	h.generate(c, h.service.GenerateSimulation)
}

func (h *Handler) generateProtocol(c *gin.Context) {
	h.generate(c, h.service.GenerateProtocol)
}

func (h *Handler) generateGallery(c *gin.Context) {
	h.generate(c, h.service.GenerateGallery)
}

func (h *Handler) generateQuiz(c *gin.Context) {
	h.generate(c, h.service.GenerateQuiz)
}

// generate binds the shared request body and dispatches to one of the
// workspace generation methods.
func (h *Handler) generate(c *gin.Context, run func(ctx context.Context, req model.GenerationRequest) (model.WorkspaceRecord, error)) {
	var body generateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
		return
	}

	req := model.GenerationRequest{
		Topic:      body.Topic,
		Language:   body.Language,
		Count:      body.Count,
		Difficulty: body.Difficulty,
		Subtype:    model.ImageSubtype(body.Subtype),
	}

	record, err := run(c.Request.Context(), req)
	if err != nil {
		h.handleServiceError(c, err, body.Language)
		return
	}
	c.JSON(http.StatusAccepted, record)
}

func (h *Handler) getWorkspace(c *gin.Context) {
	kind, err := model.ParseWorkspaceKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusNotFound, APIError{Message: err.Error()})
		return
	}
	record, err := h.service.Snapshot(kind)
	if err != nil {
		c.JSON(http.StatusNotFound, APIError{Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) getChat(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entries": h.service.ChatLog()})
}

func (h *Handler) analyzeImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "Missing image file: " + err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "Failed to read image: " + err.Error()})
		return
	}
	if len(data) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, APIError{Message: "Image exceeds the 10 MB limit"})
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	language := c.PostForm("language")

	result, err := h.service.Analyze(c.Request.Context(), data, mimeType, language)
	if err != nil {
		h.handleServiceError(c, err, language)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleServiceError maps pipeline and store errors to HTTP statuses.
func (h *Handler) handleServiceError(c *gin.Context, err error, language string) {
	msg := service.StatusMessage(err, language)

	switch {
	case errors.Is(err, model.ErrWorkspaceBusy):
		c.JSON(http.StatusConflict, APIError{Message: msg})
		return
	case errors.Is(err, model.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, APIError{Message: msg})
		return
	case errors.Is(err, model.ErrWorkspaceNotFound):
		c.JSON(http.StatusNotFound, APIError{Message: msg})
		return
	}

	status := http.StatusInternalServerError
	switch model.ClassifyError(err) {
	case model.FailureRateLimited:
		status = http.StatusTooManyRequests
	case model.FailureMissingCredential:
		status = http.StatusServiceUnavailable
	case model.FailureTransient, model.FailureNoContent, model.FailureParse:
		status = http.StatusBadGateway
	}

	h.logger.Error("Request failed",
		zap.String("path", c.Request.URL.Path),
		zap.String("classification", string(model.ClassifyError(err))),
		zap.Error(err),
	)
	c.JSON(status, APIError{Message: msg})
}
