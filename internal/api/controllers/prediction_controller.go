package controllers

import (
	"errors"
	"net/http"

	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/hiveapi"
	"github.com/beewatch/backend/internal/services"
	"github.com/beewatch/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PredictionController exposes the model service through the API
type PredictionController struct {
	predictionService *services.PredictionService
	logger            *utils.Logger
}

// NewPredictionController creates a new prediction controller
func NewPredictionController(predictionService *services.PredictionService, logger *utils.Logger) *PredictionController {
	return &PredictionController{
		predictionService: predictionService,
		logger:            logger.Named("prediction_controller"),
	}
}

// RegisterRoutes registers the prediction history routes
func (pc *PredictionController) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("", pc.ListPredictions)
	router.GET("/latest", pc.GetLatest)
}

// Predict classifies the posted features
// @Summary Predict activity
// @Description Classifies hive conditions as high or low activity using the configured model
// @Tags predictions
// @Accept json
// @Produce json
// @Param request body hiveapi.PredictRequest true "Features"
// @Success 200 {object} models.PredictionRecord
// @Failure 400 {object} utils.ValidationErrorResponse
// @Failure 502 {object} utils.ErrorResponse
// @Failure 503 {object} utils.ErrorResponse
// @Router /api/predicao [post]
func (pc *PredictionController) Predict(ctx *gin.Context) {
	var req hiveapi.PredictRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.HandleValidationErrors(ctx, err)
		return
	}

	record, err := pc.predictionService.Predict(ctx.Request.Context(), req, models.PredictionSourceManual)
	if err != nil {
		if utils.IsServiceUnavailableError(err) {
			utils.HandleError(ctx, err, pc.logger)
			return
		}

		pc.logger.Warn("Prediction failed", zap.Error(err))
		resp := utils.ErrorResponse{Error: "prediction_failed", Message: "model service unavailable"}
		var apiErr *hiveapi.APIError
		if errors.As(err, &apiErr) {
			resp.Message = apiErr.Message
		}
		ctx.JSON(http.StatusBadGateway, resp)
		return
	}

	ctx.JSON(http.StatusOK, record)
}

// GetLatest returns the last recorded prediction
// @Summary Latest prediction
// @Tags predictions
// @Produce json
// @Success 200 {object} models.PredictionRecord
// @Failure 404 {object} utils.ErrorResponse
// @Router /api/predicoes/latest [get]
func (pc *PredictionController) GetLatest(ctx *gin.Context) {
	record, err := pc.predictionService.Latest()
	if err != nil {
		utils.HandleError(ctx, err, pc.logger)
		return
	}

	ctx.JSON(http.StatusOK, record)
}

// ListPredictions returns recorded predictions, newest first
// @Summary List predictions
// @Tags predictions
// @Produce json
// @Param limit query int false "Maximum rows (default 50, max 500)"
// @Success 200 {array} models.PredictionRecord
// @Router /api/predicoes [get]
func (pc *PredictionController) ListPredictions(ctx *gin.Context) {
	limit := utils.LimitFromContext(ctx, 50, 500)

	records, err := pc.predictionService.List(limit)
	if err != nil {
		utils.HandleError(ctx, err, pc.logger)
		return
	}

	ctx.JSON(http.StatusOK, records)
}
