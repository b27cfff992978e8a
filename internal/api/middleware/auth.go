package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/beewatch/backend/internal/config"
	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by the auth middleware
const (
	ContextDeviceID = "device_id"
	ContextRole     = "role"
)

// AuthMiddleware provides device token authentication for Gin
type AuthMiddleware struct {
	jwtConfig *config.JWTConfig
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(jwtConfig *config.JWTConfig) *AuthMiddleware {
	return &AuthMiddleware{
		jwtConfig: jwtConfig,
	}
}

// RequireDevice ensures a valid device token is present. When device tokens
// are not required by configuration, requests without an Authorization
// header pass through; a header that is present must still be valid.
func (am *AuthMiddleware) RequireDevice() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if !am.jwtConfig.RequireDevice {
				c.Next()
				return
			}
			abort(c, "Authorization header is required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abort(c, "Authorization header format must be Bearer {token}")
			return
		}

		claims, err := validateToken(parts[1], am.jwtConfig.Secret)
		if err != nil {
			abort(c, err.Error())
			return
		}

		if claims.Role != models.DeviceRole {
			c.AbortWithStatusJSON(http.StatusForbidden, utils.ErrorResponse{
				Error:   "forbidden",
				Message: "token is not a device token",
			})
			return
		}

		c.Set(ContextDeviceID, claims.DeviceID)
		c.Set(ContextRole, claims.Role)

		c.Next()
	}
}

// DeviceID returns the authenticated device, if any
func DeviceID(c *gin.Context) string {
	return c.GetString(ContextDeviceID)
}

func abort(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{
		Error:   "unauthorized",
		Message: message,
	})
}

// validateToken validates the JWT token and returns the claims
func validateToken(tokenString string, secretKey string) (*models.DeviceClaims, error) {
	if secretKey == "" {
		return nil, errors.New("JWT secret key is not configured")
	}

	claims := &models.DeviceClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}

		return []byte(secretKey), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("token has expired")
		}
		return nil, errors.New("invalid token")
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
