package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/beewatch/backend/internal/api/middleware"
	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/services"
	"github.com/beewatch/backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// AcknowledgeAlertRequest is the optional body for acknowledging an alert
type AcknowledgeAlertRequest struct {
	AckBy string `json:"ack_by" binding:"omitempty,max=100"`
}

// AlertController records and lists dashboard alert transitions
type AlertController struct {
	alertService *services.AlertService
	logger       *utils.Logger
}

// NewAlertController creates a new alert controller
func NewAlertController(alertService *services.AlertService, logger *utils.Logger) *AlertController {
	return &AlertController{
		alertService: alertService,
		logger:       logger.Named("alert_controller"),
	}
}

// RegisterRoutes registers the alert routes
func (ac *AlertController) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("", ac.RecordAlert)
	router.GET("", ac.ListAlerts)
	router.POST("/:id/acknowledge", ac.AcknowledgeAlert)
}

// RecordAlert stores an alert transition
// @Summary Record alert event
// @Tags alerts
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body models.AlertEvent true "Alert event"
// @Success 201 {object} models.AlertEvent
// @Failure 400 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse
// @Router /api/alerts [post]
func (ac *AlertController) RecordAlert(ctx *gin.Context) {
	var event models.AlertEvent
	if err := ctx.ShouldBindJSON(&event); err != nil {
		utils.HandleValidationErrors(ctx, err)
		return
	}

	if event.Source == "" {
		event.Source = middleware.DeviceID(ctx)
	}

	if err := ac.alertService.Record(&event); err != nil {
		utils.HandleError(ctx, err, ac.logger)
		return
	}

	ctx.JSON(http.StatusCreated, event)
}

// ListAlerts returns alert events, newest first
// @Summary List alert events
// @Tags alerts
// @Produce json
// @Param limit query int false "Maximum rows (default 100, max 1000)"
// @Param unacknowledged query bool false "Only unacknowledged events"
// @Success 200 {array} models.AlertEvent
// @Router /api/alerts [get]
func (ac *AlertController) ListAlerts(ctx *gin.Context) {
	limit := utils.LimitFromContext(ctx, 100, 1000)
	unackOnly, _ := strconv.ParseBool(ctx.DefaultQuery("unacknowledged", "false"))

	events, err := ac.alertService.List(limit, unackOnly)
	if err != nil {
		utils.HandleError(ctx, err, ac.logger)
		return
	}

	ctx.JSON(http.StatusOK, events)
}

// AcknowledgeAlert marks an alert event as handled
// @Summary Acknowledge alert event
// @Tags alerts
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param request body AcknowledgeAlertRequest false "Acknowledgement"
// @Success 200 {object} models.AlertEvent
// @Failure 404 {object} utils.ErrorResponse
// @Router /api/alerts/{id}/acknowledge [post]
func (ac *AlertController) AcknowledgeAlert(ctx *gin.Context) {
	var req AcknowledgeAlertRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			utils.HandleValidationErrors(ctx, err)
			return
		}
	}

	if req.AckBy == "" {
		req.AckBy = middleware.DeviceID(ctx)
	}

	event, err := ac.alertService.Acknowledge(ctx.Param("id"), req.AckBy)
	if err != nil {
		utils.HandleError(ctx, err, ac.logger)
		return
	}

	ctx.JSON(http.StatusOK, event)
}
