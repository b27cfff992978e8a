package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// LimitFromContext reads the "limit" query parameter.
// Missing or non-positive values fall back to def; values above max are capped.
func LimitFromContext(ctx *gin.Context, def, max int) int {
	limitStr := ctx.DefaultQuery("limit", strconv.Itoa(def))
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = def
	}

	if limit > max {
		limit = max
	}

	return limit
}

// ApplyLimit applies a row limit to a GORM query
func ApplyLimit(query *gorm.DB, limit int) *gorm.DB {
	if limit <= 0 {
		return query
	}
	return query.Limit(limit)
}
