package dashboard

import (
	"context"
	"errors"
	"net/http"

	"github.com/beewatch/backend/internal/hiveapi"
	"github.com/beewatch/backend/internal/prediction"
	"github.com/beewatch/backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// AudioRequest toggles the alarm consent
type AudioRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// Backend is what the controller needs from the session
type Backend interface {
	View() View
	SetAudioPermission(ctx context.Context, enabled bool) (View, error)
	Predict(ctx context.Context, f prediction.Features) (prediction.Prediction, error)
}

// Controller serves the dashboard view and commands
type Controller struct {
	backend Backend
	hub     *Hub
	logger  *utils.Logger
}

// NewController creates a new dashboard controller
func NewController(backend Backend, hub *Hub, logger *utils.Logger) *Controller {
	return &Controller{
		backend: backend,
		hub:     hub,
		logger:  logger.Named("dashboard_controller"),
	}
}

// RegisterRoutes registers the dashboard routes
func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("", c.GetView)
	router.PUT("/audio", c.SetAudio)
	router.POST("/predict", c.Predict)
}

// GetView returns the current dashboard view
// @Summary Get dashboard view
// @Tags dashboard
// @Produce json
// @Success 200 {object} View
// @Router /api/dashboard [get]
func (c *Controller) GetView(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.backend.View())
}

// SetAudio grants or revokes permission to sound the alarm
// @Summary Toggle audio alarm
// @Tags dashboard
// @Accept json
// @Produce json
// @Param request body AudioRequest true "Audio permission"
// @Success 200 {object} View
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/dashboard/audio [put]
func (c *Controller) SetAudio(ctx *gin.Context) {
	var req AudioRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.HandleValidationErrors(ctx, err)
		return
	}

	view, err := c.backend.SetAudioPermission(ctx.Request.Context(), *req.Enabled)
	if err != nil {
		utils.HandleError(ctx, err, c.logger)
		return
	}

	ctx.JSON(http.StatusOK, view)
}

// Predict classifies user entered features
// @Summary Submit manual prediction
// @Tags dashboard
// @Accept json
// @Produce json
// @Param request body prediction.Features true "Features"
// @Success 200 {object} prediction.Prediction
// @Failure 400 {object} utils.ErrorResponse
// @Failure 502 {object} utils.ErrorResponse
// @Router /api/dashboard/predict [post]
func (c *Controller) Predict(ctx *gin.Context) {
	var req prediction.Features
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.HandleValidationErrors(ctx, err)
		return
	}

	p, err := c.backend.Predict(ctx.Request.Context(), req)
	if err != nil {
		var apiErr *hiveapi.APIError
		if utils.IsServiceUnavailableError(err) {
			utils.HandleError(ctx, err, c.logger)
			return
		}
		resp := utils.ErrorResponse{Error: "prediction_failed", Message: "prediction endpoint unavailable"}
		if errors.As(err, &apiErr) {
			resp.Message = apiErr.Message
		}
		ctx.JSON(http.StatusBadGateway, resp)
		return
	}

	ctx.JSON(http.StatusOK, p)
}

// ServeWS upgrades the connection to a websocket receiving every view
func (c *Controller) ServeWS(ctx *gin.Context) {
	c.hub.ServeWS(ctx.Writer, ctx.Request)
}
