package middlewares

import (
	"log"
	"net/http"
	"os"
	"strings"
	"tqs/src/db"
	"tqs/src/models"
	"tqs/src/types"
	"tqs/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

func AuthMiddleware(ctx *gin.Context) {
	bearerToken := ctx.Request.Header.Get("Authorization")
	if !strings.HasPrefix(bearerToken, "Bearer") {
		utils.AbortWithError(ctx, http.StatusUnauthorized, "missing bearer token")
		return
	}
	reqToken := strings.Split(bearerToken, " ")[1]
	if reqToken == "" {
		utils.AbortWithError(ctx, http.StatusUnauthorized, "missing bearer token")
		return
	}
	claims := &types.Claims{}
	tkn, err := jwt.ParseWithClaims(reqToken, claims, func(t *jwt.Token) (any, error) {
		return jwtKey, nil
	})
	if err != nil {
		log.Printf("token error: %s\n", err.Error())
		utils.AbortWithError(ctx, http.StatusUnauthorized, "invalid token")
		return
	}
	if !tkn.Valid {
		utils.AbortWithError(ctx, http.StatusUnauthorized, "invalid token")
		return
	}

	gdb := db.GetDb()
	var user models.User
	if err := gdb.
		Model(&models.User{}).
		Where("id = ?", claims.Subject).
		First(&user).
		Error; err != nil {
		utils.AbortWithError(ctx, http.StatusUnauthorized, "unknown user")
		return
	}

	ctx.Set("id", user.ID.String())
	ctx.Set("email", user.Email)
	ctx.Set("role", string(user.Role))
}

// AdminMiddleware gates the /admin group. Runs after AuthMiddleware.
func AdminMiddleware(ctx *gin.Context) {
	if ctx.GetString("role") != string(types.ROLE_ADMIN) {
		utils.AbortWithError(ctx, http.StatusForbidden, "admin role required")
		return
	}
}
