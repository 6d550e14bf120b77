package utils

import (
	"net/http"
	"os"
	"time"
	"tqs/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

// GenerateJWT mints the bearer token handed out by /auth/login.
func GenerateJWT(userId, email, role string) (string, error) {
	expiry := time.Now().Add(24 * time.Hour)
	claims := types.Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userId,
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

// AbortWithError writes the shared error body and stops the handler chain.
func AbortWithError(ctx *gin.Context, status int, message string) {
	ctx.AbortWithStatusJSON(status, types.APIError{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Path:       ctx.Request.URL.Path,
	})
}
