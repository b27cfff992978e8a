package models

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DeviceRole is the only role a sensor token may carry
const DeviceRole = "device"

// DeviceClaims are the JWT claims carried by a sensor that posts readings
type DeviceClaims struct {
	DeviceID string `json:"device_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateDeviceToken signs a token for the given device
func GenerateDeviceToken(deviceID, secretKey string, ttl time.Duration) (string, error) {
	if secretKey == "" {
		return "", errors.New("empty JWT secret key")
	}
	if deviceID == "" {
		return "", errors.New("empty device id")
	}

	now := time.Now()
	claims := &DeviceClaims{
		DeviceID: deviceID,
		Role:     DeviceRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "beewatch",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secretKey))
}
