package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/beewatch/backend/internal/api/middleware"
	"github.com/beewatch/backend/internal/config"
	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/services"
	"github.com/beewatch/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IngestResponse wraps a stored reading
type IngestResponse struct {
	OK   bool            `json:"ok"`
	Data *models.Reading `json:"data"`
}

// DataController serves stored hive readings
type DataController struct {
	readingService *services.ReadingService
	dataConfig     *config.DataConfig
	logger         *utils.Logger
}

// NewDataController creates a new data controller
func NewDataController(readingService *services.ReadingService, dataConfig *config.DataConfig, logger *utils.Logger) *DataController {
	return &DataController{
		readingService: readingService,
		dataConfig:     dataConfig,
		logger:         logger.Named("data_controller"),
	}
}

// RegisterRoutes registers the read-only data routes
func (dc *DataController) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/dados", dc.ListReadings)
	router.GET("/stats", dc.GetStats)
	router.GET("/noise", dc.GetNoise)
}

// ListReadings returns the most recent readings
// @Summary List readings
// @Description Returns stored readings, newest first
// @Tags data
// @Produce json
// @Param limit query int false "Maximum rows (default 300, max 1000)"
// @Success 200 {array} models.Reading
// @Failure 500 {object} utils.ErrorResponse
// @Router /api/data/dados [get]
func (dc *DataController) ListReadings(ctx *gin.Context) {
	limit := utils.LimitFromContext(ctx, dc.dataConfig.DefaultLimit, dc.dataConfig.MaxLimit)

	readings, err := dc.readingService.List(limit)
	if err != nil {
		utils.HandleError(ctx, err, dc.logger)
		return
	}

	ctx.JSON(http.StatusOK, readings)
}

// GetStats returns activity label counts over all readings
// @Summary Reading statistics
// @Tags data
// @Produce json
// @Success 200 {object} models.ReadingStats
// @Failure 500 {object} utils.ErrorResponse
// @Router /api/data/stats [get]
func (dc *DataController) GetStats(ctx *gin.Context) {
	stats, err := dc.readingService.Stats()
	if err != nil {
		utils.HandleError(ctx, err, dc.logger)
		return
	}

	ctx.JSON(http.StatusOK, stats)
}

// GetNoise returns a simulated hive noise sample
// @Summary Hive noise sample
// @Tags data
// @Produce json
// @Success 200 {object} services.NoiseSample
// @Router /api/data/noise [get]
func (dc *DataController) GetNoise(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, dc.readingService.Noise())
}

// Ingest stores a reading. An empty body stores a simulated one.
// @Summary Ingest reading
// @Description Stores a sensor reading, deriving activity and noise status when absent
// @Tags data
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body services.IngestRequest false "Reading"
// @Success 201 {object} IngestResponse
// @Failure 400 {object} utils.ValidationErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Failure 429 {object} utils.ErrorResponse
// @Router /api/data/ingest [post]
func (dc *DataController) Ingest(ctx *gin.Context) {
	deviceID := middleware.DeviceID(ctx)

	var reading *models.Reading
	var err error

	var req services.IngestRequest
	bindErr := errEmptyBody
	if ctx.Request.ContentLength != 0 {
		bindErr = ctx.ShouldBindJSON(&req)
	}

	switch {
	case errors.Is(bindErr, errEmptyBody), errors.Is(bindErr, io.EOF):
		reading, err = dc.readingService.Generate(deviceID)
	case bindErr != nil:
		utils.HandleValidationErrors(ctx, bindErr)
		return
	default:
		reading, err = dc.readingService.Ingest(&req, deviceID)
	}

	if err != nil {
		utils.HandleError(ctx, err, dc.logger)
		return
	}

	dc.logger.Debug("Reading ingested", zap.Uint("id", reading.ID), zap.String("device_id", deviceID))
	ctx.JSON(http.StatusCreated, IngestResponse{OK: true, Data: reading})
}

var errEmptyBody = errors.New("empty body")
